package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, enabled map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core), enabled)
	t.Cleanup(func() { Use(nil, nil) })
	return logs
}

func TestGet_NamesLoggerAfterCategory(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryReplay).Info("created %d columns", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "replay", entries[0].LoggerName)
	assert.Equal(t, "created 3 columns", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestGet_DisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"locator": false})

	Get(CategoryLocator).Error("not written")
	Get(CategoryExport).Warn("written")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "export", entries[0].LoggerName)
	assert.False(t, IsCategoryEnabled(CategoryLocator))
	assert.True(t, IsCategoryEnabled(CategoryServer))
}

func TestWithContext_AttachesFields(t *testing.T) {
	logs := observe(t, nil)

	WithRun(CategoryExport, "run-1").With("card", 2).Info("card exported")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "run-1", ctx["run"])
	assert.EqualValues(t, 2, ctx["card"])
}

func TestTimer_StopWithThreshold(t *testing.T) {
	logs := observe(t, nil)

	timer := StartTimer(CategoryBrowser, "capture")
	timer.start = time.Now().Add(-time.Second)
	elapsed := timer.StopWithThreshold(10 * time.Millisecond)

	assert.GreaterOrEqual(t, elapsed, time.Second)
	require.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	l, err := New(Options{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
