package alert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadsValidRules(t *testing.T) {
	path := writeRules(t, `
rules:
  - id: rsi-overbought
    kind: indicator
    operator: gte
    feature: rsi
    level: 75
    cooldown_seconds: 3600
  - id: price-cross
    kind: price
    operator: cross_above
    feature: ema_50
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap.Rules, 2)
	assert.Equal(t, "rsi-overbought", snap.Rules[0].ID)
	assert.Equal(t, OpGTE, snap.Rules[0].Operator)
	require.NotNil(t, snap.Rules[0].Level)
	assert.Equal(t, 75.0, *snap.Rules[0].Level)
	assert.Equal(t, 3600, snap.Rules[0].CooldownSeconds)
	assert.Equal(t, KindPrice, snap.Rules[1].Kind)
	assert.Nil(t, snap.Rules[1].Level)
}

func TestRegistryDropsMalformedRulesOnly(t *testing.T) {
	path := writeRules(t, `
rules:
  - id: ok
    kind: indicator
    operator: gt
    feature: rsi
    level: 70
  - id: bad-operator
    kind: indicator
    operator: between
    feature: rsi
  - kind: indicator
    operator: gt
    feature: rsi
  - id: no-level
    kind: indicator
    operator: gt
    feature: rsi
  - id: ok
    kind: indicator
    operator: lt
    feature: rsi
    level: 30
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	snap := reg.Snapshot()
	// One valid rule survives; the bad operator, the missing id, the
	// level-less indicator rule and the duplicate id are all dropped
	// individually.
	require.Len(t, snap.Rules, 1)
	assert.Equal(t, "ok", snap.Rules[0].ID)
	assert.Equal(t, OpGT, snap.Rules[0].Operator)
}

func TestRegistryRejectsUnreadableFile(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = NewRegistry("")
	assert.Error(t, err)
}

func TestSnapshotIsCopied(t *testing.T) {
	path := writeRules(t, `
rules:
  - id: a
    kind: indicator
    operator: gt
    feature: rsi
    level: 1
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	snap := reg.Snapshot()
	snap.Rules[0].ID = "mutated"
	assert.Equal(t, "a", reg.Snapshot().Rules[0].ID)
}
