package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher_HandlesNewAndExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-existing.json"), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	handled := make(chan string, 4)
	w := New(dir, func(_ context.Context, path string) error {
		handled <- filepath.Base(path)
		if strings.HasPrefix(filepath.Base(path), "bad") {
			return errors.New("malformed snapshot")
		}
		return nil
	}, WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Equal(t, "a-existing.json", receive(t, handled))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-new.json"), []byte("[]"), 0o644))
	assert.Equal(t, "b-new.json", receive(t, handled))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	assert.Equal(t, "bad.json", receive(t, handled))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, FailedDir, "bad.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.FileExists(t, filepath.Join(dir, DoneDir, "a-existing.json"))
	assert.FileExists(t, filepath.Join(dir, DoneDir, "b-new.json"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.Equal(t, Stats{Handled: 2, Failed: 1}, w.Stats())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	w := New(dir, func(context.Context, string) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.DirExists(t, filepath.Join(dir, DoneDir))
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for handler")
		return ""
	}
}
