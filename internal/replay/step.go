package replay

import (
	"context"
	"fmt"
	"time"

	"boardsnap/internal/locator"
)

// Step is one simulated interaction followed by a fixed settle delay. The
// board UI exposes no readiness signal, so the delay stands in for it.
type Step struct {
	Name   string
	Do     func(ctx context.Context) error
	Settle time.Duration
}

// Perform issues the interaction. A step without Do only waits.
func (s Step) Perform(ctx context.Context) error {
	if s.Do == nil {
		return nil
	}
	if err := s.Do(ctx); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	return nil
}

// AwaitSettle blocks for the settle delay or until ctx is done.
func (s Step) AwaitSettle(ctx context.Context) error {
	return sleepWithContext(ctx, s.Settle)
}

// Run performs steps in order, settling after each. It stops at the first
// failure.
func Run(ctx context.Context, steps ...Step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Perform(ctx); err != nil {
			return err
		}
		if err := s.AwaitSettle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Wait is a step that only settles.
func Wait(name string, d time.Duration) Step {
	return Step{Name: name, Settle: d}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Steps over a control located by an earlier step. The pointer is read when
// the step runs.

func locate(c locator.Cascade, s locator.Surface, dst *locator.Control) Step {
	return Step{
		Name: "locate " + c.Target,
		Do: func(ctx context.Context) error {
			ctl, err := c.Locate(ctx, s)
			if err != nil {
				return err
			}
			*dst = ctl
			return nil
		},
	}
}

func click(name string, c *locator.Control, settle time.Duration) Step {
	return Step{Name: name, Settle: settle, Do: func(ctx context.Context) error {
		return (*c).Click(ctx)
	}}
}

func focus(name string, c *locator.Control, settle time.Duration) Step {
	return Step{Name: name, Settle: settle, Do: func(ctx context.Context) error {
		return (*c).Focus(ctx)
	}}
}

func setValue(name string, c *locator.Control, value string, settle time.Duration) Step {
	return Step{Name: name, Settle: settle, Do: func(ctx context.Context) error {
		return (*c).SetValue(ctx, value)
	}}
}

func press(name string, c *locator.Control, key locator.Key, settle time.Duration) Step {
	return Step{Name: name, Settle: settle, Do: func(ctx context.Context) error {
		return (*c).Press(ctx, key)
	}}
}

func setRichText(name string, c *locator.Control, html string, settle time.Duration) Step {
	return Step{Name: name, Settle: settle, Do: func(ctx context.Context) error {
		return (*c).SetRichText(ctx, html)
	}}
}
