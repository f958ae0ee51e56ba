package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcore/internal/engine"
)

const fullDoc = `
name: demo
description: every module type
clock: {kind: fixed, step: 0.25}
modules:
  - {type: frame_limit, frames: 300}
  - {type: deadline, seconds: 2.5}
  - {type: stats}
  - {type: journal, flush_every: 64}
  - {type: virtual_mouse, width: 640, height: 480}
  - {type: metrics, namespace: demo}
`

func TestParse_FullDocument(t *testing.T) {
	cfg, err := Parse([]byte(fullDoc))
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "every module type", cfg.Description)
	assert.Equal(t, &ClockConfig{Kind: ClockFixed, Step: 0.25}, cfg.Clock)
	assert.Equal(t, []ModuleConfig{
		{Type: ModuleFrameLimit, Frames: 300},
		{Type: ModuleDeadline, Seconds: 2.5},
		{Type: ModuleStats},
		{Type: ModuleJournal, FlushEvery: 64},
		{Type: ModuleVirtualMouse, Width: 640, Height: 480},
		{Type: ModuleMetrics, Namespace: "demo"},
	}, cfg.Modules)
}

func TestParse_MinimalDocument(t *testing.T) {
	cfg, err := Parse([]byte("name: bare\nmodules: []\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Clock)
	assert.Empty(t, cfg.Modules)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		schema bool // expect a *ValidationError
	}{
		{"empty document", "", false},
		{"unknown top-level key", "name: x\nmodules: []\nextra: 1\n", false},
		{"unknown module key", "name: x\nmodules: [{type: stats, colour: red}]\n", false},
		{"malformed yaml", "name: [unterminated\n", false},
		{"missing name", "modules: []\n", true},
		{"blank name", "name: ' x'\nmodules: []\n", true},
		{"unknown module type", "name: x\nmodules: [{type: teleport}]\n", true},
		{"frame limit without frames", "name: x\nmodules: [{type: frame_limit}]\n", true},
		{"negative deadline", "name: x\nmodules: [{type: deadline, seconds: -1}]\n", true},
		{"field not valid for type", "name: x\nmodules: [{type: stats, frames: 3}]\n", true},
		{"fixed clock without step", "name: x\nclock: {kind: fixed}\nmodules: []\n", true},
		{"unknown clock kind", "name: x\nclock: {kind: sundial}\nmodules: []\n", true},
		{"negative flush_every", "name: x\nmodules: [{type: journal, flush_every: -2}]\n", true},
		{"invalid metrics namespace", "name: x\nmodules: [{type: metrics, namespace: 'a-b'}]\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var verr *ValidationError
			assert.Equal(t, tt.schema, errors.As(err, &verr), "error: %v", err)
			if tt.schema {
				assert.NotEmpty(t, verr.Issues)
				assert.Contains(t, err.Error(), "invalid config")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullDoc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nmodules: [{type: teleport}]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestNormalize_NFC(t *testing.T) {
	decomposed, err := Parse([]byte("name: \"cafe\\u0301\"\nmodules: []\n"))
	require.NoError(t, err)
	composed, err := Parse([]byte("name: \"caf\\u00e9\"\nmodules: []\n"))
	require.NoError(t, err)

	assert.Equal(t, "caf\u00e9", decomposed.Name)
	assert.Equal(t, composed.Hash(), decomposed.Hash())
}

func TestHash(t *testing.T) {
	a, err := Parse([]byte("name: x\nmodules: [{type: frame_limit, frames: 3}]\n"))
	require.NoError(t, err)
	reordered, err := Parse([]byte("modules: [{frames: 3, type: frame_limit}]\nname: x\n"))
	require.NoError(t, err)
	other, err := Parse([]byte("name: x\nmodules: [{type: frame_limit, frames: 4}]\n"))
	require.NoError(t, err)

	assert.Len(t, a.Hash(), 64)
	assert.Equal(t, a.Hash(), reordered.Hash())
	assert.NotEqual(t, a.Hash(), other.Hash())
}

func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte(`{"name":"x"}`)

	plain := sha256.Sum256(data)
	assert.NotEqual(t, hex.EncodeToString(plain[:]), hashWithDomain(hashDomain, data))
	assert.NotEqual(t, hashWithDomain("a", []byte("bc")), hashWithDomain("ab", []byte("c")))
	assert.Equal(t, hashWithDomain(hashDomain, data), hashWithDomain(hashDomain, data))
}

func TestNewClock(t *testing.T) {
	fixed := &Config{Clock: &ClockConfig{Kind: ClockFixed, Step: 0.5}}
	c := fixed.NewClock()
	require.IsType(t, &engine.FixedStepClock{}, c)
	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, 0.5, c.Time())

	assert.IsType(t, &engine.MonotonicClock{}, (&Config{}).NewClock())
	assert.IsType(t, &engine.MonotonicClock{}, (&Config{Clock: &ClockConfig{Kind: ClockMonotonic}}).NewClock())
}

func TestHasModule(t *testing.T) {
	cfg := &Config{Modules: []ModuleConfig{{Type: ModuleStats}}}
	assert.True(t, cfg.HasModule(ModuleStats))
	assert.False(t, cfg.HasModule(ModuleJournal))
}

func TestValidationError_Format(t *testing.T) {
	one := &ValidationError{Issues: []Issue{{Path: "modules.0", Message: "bad"}}}
	assert.Equal(t, "invalid config: modules.0: bad", one.Error())

	two := &ValidationError{Issues: []Issue{{Message: "a"}, {Path: "name", Message: "b"}}}
	assert.Equal(t, "invalid config: 2 issues: a; name: b", two.Error())
}
