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

func observe(t *testing.T, cats map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core), cats)
	t.Cleanup(Reset)
	return recorded
}

func TestCategoryFieldAttached(t *testing.T) {
	recorded := observe(t, nil)

	Tableaux("session %s finished", "abc")

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, "session abc finished", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "tableaux", entry.ContextMap()["category"])
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	recorded := observe(t, map[string]bool{"cache": false})

	CacheDebug("miss %d", 1)
	QueryDebug("plan built")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "query", recorded.All()[0].ContextMap()["category"])
	assert.False(t, IsCategoryEnabled(CategoryCache))
	assert.True(t, IsCategoryEnabled(CategoryRules))
}

func TestWithAddsFields(t *testing.T) {
	recorded := observe(t, nil)

	Get(CategoryReasoner).With("session", "s-1").Warn("budget low")

	require.Equal(t, 1, recorded.Len())
	ctx := recorded.All()[0].ContextMap()
	assert.Equal(t, "s-1", ctx["session"])
	assert.Equal(t, "reasoner", ctx["category"])
}

func TestTimerThreshold(t *testing.T) {
	recorded := observe(t, nil)

	timer := StartTimer(CategoryClassify, "classify")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)

	assert.Greater(t, elapsed, time.Duration(0))
	warnings := recorded.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "performance", warnings[0].ContextMap()["category"])
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	t.Cleanup(Reset)
	err := Initialize(Options{Level: "loud"})
	assert.Error(t, err)

	require.NoError(t, Initialize(Options{Level: "warn", Format: "console"}))
	assert.False(t, Base().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Base().Core().Enabled(zapcore.WarnLevel))
}

func TestNoopBeforeInitialize(t *testing.T) {
	Reset()
	assert.NotPanics(t, func() {
		Get(CategoryArena).Error("nothing is recorded %d", 42)
	})
}
