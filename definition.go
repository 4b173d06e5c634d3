package cpuinfo

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

//go:embed schema/default.yaml
var defaultSchema []byte

// Definition is the decoding schema: CPUID leaves keyed by leaf index and
// MSRs in declaration order. A Definition is read-only once loaded and may
// be shared by concurrent collections.
type Definition struct {
	CPUIDs map[uint32]LeafDesc `yaml:"cpuids" json:"cpuids"`
	MSRs   []MSRDesc           `yaml:"msrs" json:"msrs"`
}

// IndexedLeaf is one schema leaf together with its index.
type IndexedLeaf struct {
	Leaf uint32
	Desc *LeafDesc
}

// Leaves returns the schema leaves in ascending index order. Each Desc is
// a copy that shares its field lists with d.
func (d *Definition) Leaves() []IndexedLeaf {
	keys := slices.Sorted(maps.Keys(d.CPUIDs))
	out := make([]IndexedLeaf, 0, len(keys))
	for _, leaf := range keys {
		desc := d.CPUIDs[leaf]
		out = append(out, IndexedLeaf{Leaf: leaf, Desc: &desc})
	}
	return out
}

// Union merges other into d. Leaves of other replace leaves of d with the
// same index; MSRs of other are appended.
func (d *Definition) Union(other *Definition) {
	if d.CPUIDs == nil {
		d.CPUIDs = make(map[uint32]LeafDesc, len(other.CPUIDs))
	}
	maps.Copy(d.CPUIDs, other.CPUIDs)
	d.MSRs = append(d.MSRs, other.MSRs...)
}

// Validate returns an error for every leaf, MSR or field that cannot be
// dispatched. Problems that only degrade decoding are reported by
// [Definition.Lint].
func (d *Definition) Validate() error {
	var errs []error
	for _, l := range d.Leaves() {
		if err := l.Desc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cpuid %#010x: %w", l.Leaf, err))
		}
	}
	for i := range d.MSRs {
		if err := d.MSRs[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lint returns warnings for schema entries that load but decode poorly,
// such as bits past the end of the register or field names repeated in
// one register. Repeated names produce colliding facts where the last one
// wins.
func (d *Definition) Lint() []string {
	var warnings []string
	for _, l := range d.Leaves() {
		for _, w := range l.Desc.Lint() {
			warnings = append(warnings, fmt.Sprintf("cpuid %#010x: %s", l.Leaf, w))
		}
	}
	seen := make(map[string]bool, len(d.MSRs))
	for i := range d.MSRs {
		warnings = append(warnings, d.MSRs[i].Lint()...)
		if seen[d.MSRs[i].Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate msr name %q", d.MSRs[i].Name))
		}
		seen[d.MSRs[i].Name] = true
	}
	return warnings
}

// SchemaFormat is the encoding of a schema file.
type SchemaFormat string

const (
	SchemaYAML SchemaFormat = "yaml"
	// SchemaJSON also accepts comments and trailing commas.
	SchemaJSON SchemaFormat = "json"
)

// SchemaFormatFromPath selects the schema encoding from a file name.
// Files ending in .json or .jsonc are JSON; everything else is YAML.
func SchemaFormatFromPath(path string) SchemaFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return SchemaJSON
	default:
		return SchemaYAML
	}
}

// ParseDefinition decodes and validates a schema. Unknown keys are
// rejected so that misspelled field attributes do not silently decode as
// zero.
func ParseDefinition(data []byte, format SchemaFormat, source string) (*Definition, error) {
	var def Definition
	switch format {
	case SchemaYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, &ParseError{Source: source, Err: err}
		}
	case SchemaJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, &ParseError{Source: source, Err: err}
		}
	default:
		return nil, fmt.Errorf("schema %s: %w %q", source, ErrUnknownFormat, format)
	}
	if err := def.Validate(); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return &def, nil
}

// LoadDefinition reads and parses one schema file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	return ParseDefinition(data, SchemaFormatFromPath(path), path)
}

// LoadDefinitionFiles merges the schema files at paths into base, in
// order. base is not modified; a nil base starts from an empty schema.
func LoadDefinitionFiles(base *Definition, paths ...string) (*Definition, error) {
	merged := &Definition{CPUIDs: make(map[uint32]LeafDesc)}
	if base != nil {
		merged.Union(base)
	}
	for _, path := range paths {
		def, err := LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		merged.Union(def)
	}
	return merged, nil
}

// DefaultDefinition returns a fresh copy of the built-in schema. It covers
// the vendor leaf, the version and feature leaves, the extended vendor and
// brand string leaves, and a few architectural MSRs.
func DefaultDefinition() *Definition {
	def, err := ParseDefinition(defaultSchema, SchemaYAML, "embedded schema")
	if err != nil {
		panic("cpuinfo: " + err.Error())
	}
	return def
}
