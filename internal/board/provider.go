package board

import "strings"

// Provider describes one external tool provider the board knows about.
type Provider struct {
	// Name is the value stored in Element.ToolType.
	Name string
	// IconSignature identifies the provider's logo inside an
	// img[src*="external-tools"] reference.
	IconSignature string
	// LaunchHost is a hostname substring of the provider's launch URLs.
	LaunchHost string
	// SearchText is typed into the tool picker to filter the list.
	SearchText string
	// ListItemTitle is the picker entry to click after filtering. Empty
	// means the entry is chosen with the keyboard (ArrowDown, Enter).
	ListItemTitle string
	// NeedsToolID reports whether the tool form has an identifier field.
	NeedsToolID bool
}

const (
	ProviderLichtblick  = "Lichtblick"
	ProviderBettermarks = "Bettermarks"
)

// Providers is the closed provider registry.
var Providers = []Provider{
	{
		Name:          ProviderLichtblick,
		IconSignature: "656e06272113d049ac0611b0",
		LaunchHost:    "lichtblick.moin-schule.nwdl.eu",
		SearchText:    "Licht",
		ListItemTitle: "Lichtblick-Filmsequenz",
		NeedsToolID:   true,
	},
	{
		Name:          ProviderBettermarks,
		IconSignature: "651d3288054b8000e321532e",
		SearchText:    "Bettermarks",
		NeedsToolID:   false,
	},
}

// DefaultProvider is used on import when an element has no tool type.
const DefaultProvider = ProviderLichtblick

// ProviderByIcon returns the provider whose icon signature occurs in src.
func ProviderByIcon(src string) (Provider, bool) {
	for _, p := range Providers {
		if p.IconSignature != "" && strings.Contains(src, p.IconSignature) {
			return p, true
		}
	}
	return Provider{}, false
}

// ProviderByName looks up a provider by tool type. Empty names resolve to
// DefaultProvider.
func ProviderByName(name string) (Provider, bool) {
	if name == "" {
		name = DefaultProvider
	}
	for _, p := range Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}
