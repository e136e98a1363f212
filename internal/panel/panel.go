// Package panel keeps the floating export/import panel mounted on a board
// page and feeds its button presses to a single sequential handler.
//
// The board is a single page app that re-renders freely, so the panel can
// vanish at any time. Keeper re-checks on a fixed interval and mounts the
// panel again when it is gone; Ensure is idempotent.
package panel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"boardsnap/internal/logging"

	"golang.org/x/sync/errgroup"
)

// DOM identity and labels of the panel.
const (
	ElementID   = "nbc-ui"
	ExportLabel = "Export v8.7"
	ImportLabel = "Import"
)

// Action is a panel button.
type Action string

const (
	ActionExport Action = "export"
	ActionImport Action = "import"
)

// Request is one button press. Import requests carry the chosen file.
type Request struct {
	Action Action
	Name   string
	Data   []byte
}

// ErrBusy is returned to the page when a request arrives while the queue
// is full.
var ErrBusy = errors.New("a run is already in progress")

// Mounter is the page the panel lives on.
type Mounter interface {
	PanelMounted(ctx context.Context) (bool, error)
	MountPanel(ctx context.Context) error
}

// Keeper owns the panel of one page.
type Keeper struct {
	target   Mounter
	interval time.Duration
	mounts   atomic.Int64
	log      *logging.Logger
}

// NewKeeper creates a Keeper checking target every interval.
func NewKeeper(target Mounter, interval time.Duration) *Keeper {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Keeper{
		target:   target,
		interval: interval,
		log:      logging.Get(logging.CategoryPanel),
	}
}

// Ensure mounts the panel unless it is already present. It reports whether
// a mount happened.
func (k *Keeper) Ensure(ctx context.Context) (bool, error) {
	ok, err := k.target.PanelMounted(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := k.target.MountPanel(ctx); err != nil {
		return false, err
	}
	n := k.mounts.Add(1)
	k.log.Debug("panel mounted (%d)", n)
	return true, nil
}

// Mounts returns how often the panel has been mounted.
func (k *Keeper) Mounts() int {
	return int(k.mounts.Load())
}

// Run ensures the panel now and then on every tick until ctx is done.
// Failed checks are logged; the page may be mid-navigation.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		if _, err := k.Ensure(ctx); err != nil && ctx.Err() == nil {
			k.log.Warn("panel check failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Handler processes one request.
type Handler func(ctx context.Context, req Request) error

// Serve hands requests to h one at a time until ctx is done or reqs is
// closed. Handler errors are logged and do not stop the loop.
func Serve(ctx context.Context, reqs <-chan Request, h Handler) error {
	log := logging.Get(logging.CategoryPanel)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-reqs:
			if !ok {
				return nil
			}
			log.Info("panel request: %s %s", req.Action, req.Name)
			if err := h(ctx, req); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error("%s failed: %v", req.Action, err)
			}
		}
	}
}

// Run keeps k's panel mounted while serving reqs with h. It returns when
// ctx is done.
func Run(ctx context.Context, k *Keeper, reqs <-chan Request, h Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return k.Run(ctx) })
	g.Go(func() error { return Serve(ctx, reqs, h) })
	return g.Wait()
}
