// Package config loads tickcore assembly files.
//
// An assembly file names the modules a run is built from:
//
//	name: demo
//	clock: {kind: fixed, step: 0.25}
//	modules:
//	  - {type: frame_limit, frames: 300}
//	  - {type: stats}
//	  - {type: journal, flush_every: 64}
//
// Files are decoded strictly (unknown YAML keys fail), normalized to NFC, and
// validated against the embedded CUE schema. Factory turns a validated Config
// into engine modules.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tickcore/internal/engine"
)

// Module types accepted in an assembly file.
const (
	ModuleFrameLimit   = "frame_limit"
	ModuleDeadline     = "deadline"
	ModuleStats        = "stats"
	ModuleJournal      = "journal"
	ModuleVirtualMouse = "virtual_mouse"
	ModuleMetrics      = "metrics"
)

// Clock kinds accepted in an assembly file.
const (
	ClockMonotonic = "monotonic"
	ClockFixed     = "fixed"
)

// Config is a decoded assembly file.
//
// The json tags define the document validated by the CUE schema and hashed
// by Hash; omitempty keeps optional fields out of both.
type Config struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Clock       *ClockConfig   `yaml:"clock" json:"clock,omitempty"`
	Modules     []ModuleConfig `yaml:"modules" json:"modules"`
}

// ClockConfig selects the engine time source.
type ClockConfig struct {
	Kind string  `yaml:"kind" json:"kind"`
	Step float64 `yaml:"step" json:"step,omitempty"`
}

// ModuleConfig describes one module. Which fields apply depends on Type.
type ModuleConfig struct {
	Type       string  `yaml:"type" json:"type"`
	Frames     int64   `yaml:"frames" json:"frames,omitempty"`
	Seconds    float64 `yaml:"seconds" json:"seconds,omitempty"`
	FlushEvery int     `yaml:"flush_every" json:"flush_every,omitempty"`
	Width      int     `yaml:"width" json:"width,omitempty"`
	Height     int     `yaml:"height" json:"height,omitempty"`
	Namespace  string  `yaml:"namespace" json:"namespace,omitempty"`
}

// Load reads and parses the assembly file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, normalizes and validates an assembly document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: empty document")
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Normalize()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize converts the free-text fields to Unicode NFC and replaces a
// missing module list with an empty one.
func (c *Config) Normalize() {
	c.Name = norm.NFC.String(c.Name)
	c.Description = norm.NFC.String(c.Description)
	if c.Modules == nil {
		c.Modules = []ModuleConfig{}
	}
}

// Hash returns the domain-separated hex SHA-256 of the config's JSON encoding.
//
// Field order is fixed by the struct definition, so equal configs hash equal
// regardless of key order in the source file.
func (c *Config) Hash() string {
	data, err := json.Marshal(c)
	if err != nil {
		// Config holds only strings and numbers; Marshal cannot fail.
		panic(fmt.Sprintf("config: marshal for hash: %v", err))
	}
	return hashWithDomain(hashDomain, data)
}

// hashDomain prefixes config hashes so they never collide with another
// content hash over the same bytes. The version suffix allows migration.
const hashDomain = "tickcore/config/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NewClock returns the time source the config selects.
// A missing clock section means the monotonic clock.
func (c *Config) NewClock() engine.Clock {
	if c.Clock != nil && c.Clock.Kind == ClockFixed {
		return engine.NewFixedStepClock(c.Clock.Step)
	}
	return engine.NewMonotonicClock()
}

// HasModule reports whether the config lists a module of the given type.
func (c *Config) HasModule(typ string) bool {
	for _, m := range c.Modules {
		if m.Type == typ {
			return true
		}
	}
	return false
}
