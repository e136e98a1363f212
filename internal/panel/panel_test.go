package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePage loses its panel whenever vanish is called.
type fakePage struct {
	mu       sync.Mutex
	mounted  bool
	mountErr error
	checks   int
}

func (f *fakePage) PanelMounted(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.mounted, nil
}

func (f *fakePage) MountPanel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mountErr != nil {
		return f.mountErr
	}
	f.mounted = true
	return nil
}

func (f *fakePage) vanish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounted = false
}

func (f *fakePage) isMounted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounted
}

func TestEnsure_Idempotent(t *testing.T) {
	page := &fakePage{}
	k := NewKeeper(page, time.Second)

	mounted, err := k.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, mounted)

	for i := 0; i < 3; i++ {
		mounted, err = k.Ensure(context.Background())
		require.NoError(t, err)
		assert.False(t, mounted)
	}
	assert.Equal(t, 1, k.Mounts())
}

func TestEnsure_MountError(t *testing.T) {
	page := &fakePage{mountErr: errors.New("detached")}
	k := NewKeeper(page, time.Second)

	mounted, err := k.Ensure(context.Background())
	assert.EqualError(t, err, "detached")
	assert.False(t, mounted)
	assert.Zero(t, k.Mounts())
}

func TestKeeper_RemountsAfterRerender(t *testing.T) {
	page := &fakePage{}
	k := NewKeeper(page, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	require.Eventually(t, page.isMounted, time.Second, time.Millisecond)
	page.vanish()
	require.Eventually(t, func() bool { return k.Mounts() == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestServe_Sequential(t *testing.T) {
	reqs := make(chan Request, 3)
	reqs <- Request{Action: ActionExport}
	reqs <- Request{Action: ActionImport, Name: "a.json", Data: []byte("{}")}
	reqs <- Request{Action: ActionExport}
	close(reqs)

	var (
		running int
		seen    []Action
	)
	err := Serve(context.Background(), reqs, func(_ context.Context, req Request) error {
		running++
		defer func() { running-- }()
		assert.Equal(t, 1, running, "handlers must not overlap")
		seen = append(seen, req.Action)
		if req.Action == ActionImport {
			return errors.New("bad file")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionExport, ActionImport, ActionExport}, seen)
}

func TestRun_StopsOnCancel(t *testing.T) {
	page := &fakePage{}
	k := NewKeeper(page, time.Millisecond)
	reqs := make(chan Request)
	ctx, cancel := context.WithCancel(context.Background())

	handled := make(chan Request, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, k, reqs, func(_ context.Context, req Request) error {
			handled <- req
			return nil
		})
	}()

	reqs <- Request{Action: ActionExport}
	assert.Equal(t, ActionExport, (<-handled).Action)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, page.isMounted())
}
