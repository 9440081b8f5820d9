// Package typemap describes the marshalling primitives available for each
// TPM type referenced by a command.
package typemap

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// Kind is the calling convention of a type's Marshal/Unmarshal primitives.
type Kind string

const (
	KindTypedef   Kind = "typedef"
	KindConstant  Kind = "constant"
	KindInterface Kind = "interface"
	KindStructure Kind = "structure"
	// KindUnion primitives take a selector, which a command field cannot
	// provide.
	KindUnion Kind = "union"
)

var (
	ErrUnknownType   = errors.New("unknown type")
	ErrNoSelector    = errors.New("type requires a union selector")
	ErrInvalidKind   = errors.New("invalid type kind")
	ErrInvalidFormat = errors.New("unsupported type table format")
)

// Type is one entry of the table.
type Type struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Kind Kind   `json:"kind" yaml:"kind" toml:"kind"`
	// Conditional types take an extra flag on Unmarshal telling whether the
	// conditional value (usually TPM_RH_NULL / TPM_ALG_NULL) is allowed.
	Conditional bool `json:"conditional,omitempty" yaml:"conditional,omitempty" toml:"conditional,omitempty"`
}

// CommandField reports whether a field of this type can be (un)marshalled
// from command code without extra context.
func (t Type) CommandField() bool { return t.Kind != KindUnion }

type document struct {
	Types []Type `json:"types" yaml:"types" toml:"types"`
}

// Table maps type names to their marshalling capabilities.
type Table struct {
	types map[string]Type
}

//go:embed default_types.yaml
var defaultTypes []byte

// Default returns the built-in table covering the types used by the TPM 2.0
// Part 3 command listing.
func Default() (*Table, error) {
	t, err := Parse(defaultTypes, "yaml")
	if err != nil {
		return nil, fmt.Errorf("built-in type table: %w", err)
	}
	return t, nil
}

// Load reads a table from a .yaml/.yml, .toml or .json file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read type table: %w", err)
	}
	t, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a table document in the given format (yaml, toml or json).
func Parse(data []byte, format string) (*Table, error) {
	var doc document
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		err = toml.Unmarshal(data, &doc)
	case "json":
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode type table: %w", err)
	}

	t := New()
	for _, typ := range doc.Types {
		if err := t.Add(typ); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// New returns an empty table.
func New() *Table {
	return &Table{types: make(map[string]Type)}
}

// Add inserts or replaces a type. An empty kind defaults to typedef.
func (t *Table) Add(typ Type) error {
	if typ.Name == "" {
		return fmt.Errorf("%w: entry without a name", ErrInvalidKind)
	}
	switch typ.Kind {
	case "":
		typ.Kind = KindTypedef
	case KindTypedef, KindConstant, KindInterface, KindStructure, KindUnion:
	default:
		return fmt.Errorf("%w: %s has kind %q", ErrInvalidKind, typ.Name, typ.Kind)
	}
	t.types[typ.Name] = typ
	return nil
}

// Merge copies every entry of other into t, overriding existing names.
func (t *Table) Merge(other *Table) {
	for name, typ := range other.types {
		t.types[name] = typ
	}
}

// Lookup returns the entry for name or an error wrapping ErrUnknownType.
func (t *Table) Lookup(name string) (Type, error) {
	typ, ok := t.types[name]
	if !ok {
		return Type{}, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return typ, nil
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.types) }

// Names returns all type names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.types))
	for n := range t.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
