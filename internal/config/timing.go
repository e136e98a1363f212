package config

import (
	"fmt"
	"time"
)

// TimingConfig holds the replay settle delays as duration strings. The
// board's UI offers no completion signal, so every interaction is followed
// by a fixed wait.
type TimingConfig struct {
	Click               string `yaml:"click"`
	Field               string `yaml:"field"`
	Action              string `yaml:"action"`
	ColumnCreation      string `yaml:"column_creation"`
	ColumnStabilization string `yaml:"column_stabilization"`
	ButtonSearch        string `yaml:"button_search"`
	ElementCreation     string `yaml:"element_creation"`
	ElementSelection    string `yaml:"element_selection"`
	ElementContent      string `yaml:"element_content"`
	UIStabilization     string `yaml:"ui_stabilization"`
	LinkInput           string `yaml:"link_input"`
	BoldFormatting      string `yaml:"bold_formatting"`
	ExternalTool        string `yaml:"external_tool"`
	Dropdown            string `yaml:"dropdown"`
	Focus               string `yaml:"focus"`
	// Scale multiplies every delay; 0 means 1.
	Scale float64 `yaml:"scale" env:"BOARDSNAP_TIMING_SCALE"`
}

// DefaultTiming returns the delays the board UI is known to need.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		Click:               "3000ms",
		Field:               "1000ms",
		Action:              "1200ms",
		ColumnCreation:      "2500ms",
		ColumnStabilization: "2000ms",
		ButtonSearch:        "1000ms",
		ElementCreation:     "2000ms",
		ElementSelection:    "2500ms",
		ElementContent:      "1000ms",
		UIStabilization:     "1500ms",
		LinkInput:           "1000ms",
		BoldFormatting:      "500ms",
		ExternalTool:        "1500ms",
		Dropdown:            "800ms",
		Focus:               "200ms",
		Scale:               1,
	}
}

// Timing is TimingConfig resolved to durations.
type Timing struct {
	Click               time.Duration
	Field               time.Duration
	Action              time.Duration
	ColumnCreation      time.Duration
	ColumnStabilization time.Duration
	ButtonSearch        time.Duration
	ElementCreation     time.Duration
	ElementSelection    time.Duration
	ElementContent      time.Duration
	UIStabilization     time.Duration
	LinkInput           time.Duration
	BoldFormatting      time.Duration
	ExternalTool        time.Duration
	Dropdown            time.Duration
	Focus               time.Duration
}

func (c TimingConfig) fields() []struct {
	name string
	raw  string
	dst  func(*Timing) *time.Duration
} {
	return []struct {
		name string
		raw  string
		dst  func(*Timing) *time.Duration
	}{
		{"click", c.Click, func(t *Timing) *time.Duration { return &t.Click }},
		{"field", c.Field, func(t *Timing) *time.Duration { return &t.Field }},
		{"action", c.Action, func(t *Timing) *time.Duration { return &t.Action }},
		{"column_creation", c.ColumnCreation, func(t *Timing) *time.Duration { return &t.ColumnCreation }},
		{"column_stabilization", c.ColumnStabilization, func(t *Timing) *time.Duration { return &t.ColumnStabilization }},
		{"button_search", c.ButtonSearch, func(t *Timing) *time.Duration { return &t.ButtonSearch }},
		{"element_creation", c.ElementCreation, func(t *Timing) *time.Duration { return &t.ElementCreation }},
		{"element_selection", c.ElementSelection, func(t *Timing) *time.Duration { return &t.ElementSelection }},
		{"element_content", c.ElementContent, func(t *Timing) *time.Duration { return &t.ElementContent }},
		{"ui_stabilization", c.UIStabilization, func(t *Timing) *time.Duration { return &t.UIStabilization }},
		{"link_input", c.LinkInput, func(t *Timing) *time.Duration { return &t.LinkInput }},
		{"bold_formatting", c.BoldFormatting, func(t *Timing) *time.Duration { return &t.BoldFormatting }},
		{"external_tool", c.ExternalTool, func(t *Timing) *time.Duration { return &t.ExternalTool }},
		{"dropdown", c.Dropdown, func(t *Timing) *time.Duration { return &t.Dropdown }},
		{"focus", c.Focus, func(t *Timing) *time.Duration { return &t.Focus }},
	}
}

// Validate reports the first delay that does not parse.
func (c TimingConfig) Validate() error {
	if c.Scale < 0 {
		return fmt.Errorf("invalid timing.scale %v", c.Scale)
	}
	for _, f := range c.fields() {
		if d, err := time.ParseDuration(f.raw); err != nil || d < 0 {
			return fmt.Errorf("invalid timing.%s %q", f.name, f.raw)
		}
	}
	return nil
}

// Resolve parses every delay and applies Scale. Unparseable values fall back
// to their defaults.
func (c TimingConfig) Resolve() Timing {
	scale := c.Scale
	if scale == 0 {
		scale = 1
	}
	var t Timing
	defaults := DefaultTiming().fields()
	for i, f := range c.fields() {
		d, err := time.ParseDuration(f.raw)
		if err != nil || d < 0 {
			d, _ = time.ParseDuration(defaults[i].raw)
		}
		*f.dst(&t) = time.Duration(float64(d) * scale)
	}
	return t
}

// GetTiming returns the resolved replay delays.
func (c *Config) GetTiming() Timing {
	return c.Timing.Resolve()
}
