// Package config loads the bridge manifest: where the compiled bridge library
// lives, which symbol prefix it was generated with, and which generated
// pointee types it is expected to export trampolines for.
//
// Example:
//
//	library: /opt/app/lib/libptrbridge.so
//	prefix: "cxxbridge1$seastar$"
//	log_level: debug
//	types:
//	  - segment: "app$Widget"
//	    name: "app::Widget"
//	    kinds: [compact, full]
//	  - segment: "app$Point"
//	    name: "app::Point"
//	    kinds: [full]
//	    plain: true
package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/obinnaokechukwu/ptrbridge/internal/symbol"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("ptrbridge: invalid manifest")

// Handle kind names used in manifests.
const (
	KindCompact = "compact"
	KindFull    = "full"
)

// Manifest describes one bridge library.
type Manifest struct {
	Library     string     `yaml:"library"`
	SearchPaths []string   `yaml:"search_paths"`
	Prefix      string     `yaml:"prefix"`
	LogLevel    string     `yaml:"log_level"`
	Types       []TypeSpec `yaml:"types"`
}

// TypeSpec is one generated pointee type.
type TypeSpec struct {
	Segment string   `yaml:"segment"`
	Name    string   `yaml:"name"`
	Kinds   []string `yaml:"kinds"`
	Plain   bool     `yaml:"plain"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ptrbridge: reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest, applies defaults and validates it.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Prefix == "" {
		m.Prefix = symbol.DefaultPrefix
	}
	if m.LogLevel == "" {
		m.LogLevel = "info"
	}
	for i := range m.Types {
		if len(m.Types[i].Kinds) == 0 {
			m.Types[i].Kinds = []string{KindCompact, KindFull}
		}
		if m.Types[i].Name == "" {
			m.Types[i].Name = m.Types[i].Segment
		}
	}
}

// Validate checks the manifest for missing or conflicting fields.
func (m *Manifest) Validate() error {
	var errs []error
	if _, err := m.Level(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(m.Types))
	for i, t := range m.Types {
		if t.Segment == "" {
			errs = append(errs, fmt.Errorf("%w: types[%d]: segment is required", ErrInvalid, i))
			continue
		}
		if seen[t.Segment] {
			errs = append(errs, fmt.Errorf("%w: types[%d]: duplicate segment %q", ErrInvalid, i, t.Segment))
		}
		seen[t.Segment] = true
		for _, k := range t.Kinds {
			if k != KindCompact && k != KindFull {
				errs = append(errs, fmt.Errorf("%w: types[%d]: unknown kind %q", ErrInvalid, i, k))
			}
		}
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (m *Manifest) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(m.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	return lvl, nil
}

// SymbolKind maps a manifest kind to its symbol segment.
func SymbolKind(kind string) string {
	if kind == KindFull {
		return symbol.FullKind
	}
	return symbol.CompactKind
}

// Symbol is one expected trampoline and the display name of its pointee.
type Symbol struct {
	Name     string
	TypeName string
}

// Symbols returns every trampoline the manifest's types require.
func (m *Manifest) Symbols() []Symbol {
	var out []Symbol
	for _, t := range m.Types {
		for _, k := range t.Kinds {
			for _, name := range symbol.Names(m.Prefix, SymbolKind(k), t.Segment, t.Plain) {
				out = append(out, Symbol{Name: name, TypeName: t.Name})
			}
		}
	}
	return out
}
