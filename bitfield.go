package cpuinfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Register holds the raw content of one register. CPUID registers use the
// low 32 bits; model-specific registers use all 64.
type Register = uint64

// registerBits is the width of [Register]. Bit positions at or beyond it
// cannot be shifted out and decode as absent.
const registerBits = 64

// FieldType selects how a [Field] is decoded from its register.
type FieldType string

const (
	// FieldFlag is a single bit decoded as a boolean.
	FieldFlag FieldType = "flag"
	// FieldInt is the half-open bit range [start, end) decoded as an
	// unsigned integer.
	FieldInt FieldType = "int"
	// FieldX86Model is the x86 display model: the model nibble, extended
	// with the extended-model nibble for families 0x6 and 0xF.
	FieldX86Model FieldType = "x86model"
	// FieldX86Family is the x86 display family: the family nibble plus
	// the extended-family byte when the nibble is 0xF.
	FieldX86Family FieldType = "x86family"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldFlag, FieldInt, FieldX86Model, FieldX86Family:
		return true
	default:
		return false
	}
}

// Bounds is a half-open bit range [Start, End). It is written as a two
// element list, e.g. `bounds: [4, 8]`.
type Bounds struct {
	Start uint8
	End   uint8
}

// Width returns the number of bits covered by b.
func (b Bounds) Width() int {
	if b.End <= b.Start {
		return 0
	}
	return int(b.End - b.Start)
}

// MarshalYAML implements [yaml.Marshaler].
func (b Bounds) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, bit := range []uint8{b.Start, b.End} {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!int",
			Value: strconv.Itoa(int(bit)),
		})
	}
	return node, nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (b *Bounds) UnmarshalYAML(node *yaml.Node) error {
	var pair []uint8
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("line %d: bounds: %w", node.Line, err)
	}
	return b.set(pair)
}

// MarshalJSON implements [json.Marshaler].
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint8{b.Start, b.End})
}

// UnmarshalJSON implements [json.Unmarshaler].
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var pair []uint8
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	return b.set(pair)
}

func (b *Bounds) set(pair []uint8) error {
	if len(pair) != 2 {
		return fmt.Errorf("bounds must be [start, end], got %d elements", len(pair))
	}
	b.Start, b.End = pair[0], pair[1]
	return nil
}

// Field describes one named quantity inside a register. Fields are loaded
// once from the schema and shared read-only by every decode.
type Field struct {
	Type   FieldType `yaml:"type" json:"type"`
	Name   string    `yaml:"name" json:"name"`
	Bit    uint8     `yaml:"bit,omitempty" json:"bit,omitempty"`
	Bounds *Bounds   `yaml:"bounds,omitempty" json:"bounds,omitempty"`
}

// Validate reports fields that cannot be dispatched at all: a missing
// name or an unknown type.
func (f *Field) Validate() error {
	var errs []error
	if f.Name == "" {
		errs = append(errs, fmt.Errorf("%s field without name", f.Type))
	}
	if !f.Type.Valid() {
		errs = append(errs, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type))
	}
	return errors.Join(errs...)
}

// Lint returns warnings for fields that load but will always decode as
// their zero value. Decoding degrades instead of failing, so these are
// reported, not rejected.
func (f *Field) Lint() []string {
	var warnings []string
	switch f.Type {
	case FieldFlag:
		if f.Bit >= registerBits {
			warnings = append(warnings, fmt.Sprintf("flag %q: bit %d is past the register width", f.Name, f.Bit))
		}
	case FieldInt:
		switch {
		case f.Bounds == nil:
			warnings = append(warnings, fmt.Sprintf("int %q: missing bounds", f.Name))
		case f.Bounds.End <= f.Bounds.Start:
			warnings = append(warnings, fmt.Sprintf("int %q: empty bounds [%d, %d)", f.Name, f.Bounds.Start, f.Bounds.End))
		case f.Bounds.Width() > 32:
			warnings = append(warnings, fmt.Sprintf("int %q: bounds [%d, %d) are wider than 32 bits", f.Name, f.Bounds.Start, f.Bounds.End))
		}
	}
	return warnings
}

// DecodeResult is the outcome of decoding one field. Defaulted is set when
// the field did not fit the register and Value is the zero value of the
// field's variant (false for flags, 0 for integers).
type DecodeResult struct {
	Value     Value
	Defaulted bool
}

// Decode extracts f from reg.
func (f *Field) Decode(reg Register) DecodeResult {
	switch f.Type {
	case FieldFlag:
		set, ok := decodeFlag(f.Bit, reg)
		return DecodeResult{Value: BoolValue(set), Defaulted: !ok}
	case FieldInt:
		if f.Bounds == nil {
			return DecodeResult{Value: UintValue(0), Defaulted: true}
		}
		v, ok := decodeInt(*f.Bounds, reg)
		return DecodeResult{Value: UintValue(uint64(v)), Defaulted: !ok}
	case FieldX86Model:
		return DecodeResult{Value: UintValue(uint64(decodeX86Model(reg)))}
	case FieldX86Family:
		return DecodeResult{Value: UintValue(uint64(decodeX86Family(reg)))}
	default:
		return DecodeResult{Defaulted: true}
	}
}

// decodeFlag returns bit of reg. ok is false when bit is past the register
// width.
func decodeFlag(bit uint8, reg Register) (set, ok bool) {
	if bit >= registerBits {
		return false, false
	}
	return (reg>>bit)&1 != 0, true
}

// decodeInt returns the bits [start, end) of reg. ok is false when start is
// past the register width or when the value does not fit 32 bits.
func decodeInt(b Bounds, reg Register) (uint32, bool) {
	if b.Start >= registerBits {
		return 0, false
	}
	var mask Register
	for bit := b.Start; bit < b.End; bit++ {
		mask = mask<<1 | 1
	}
	v := (reg >> b.Start) & mask
	if v > math.MaxUint32 {
		return 0, false
	}
	return uint32(v), true
}

// decodeX86Model reads the model from a CPUID leaf 1 EAX value.
func decodeX86Model(reg Register) uint32 {
	eax := uint32(reg)
	model := (eax >> 4) & 0xf
	family := (eax >> 8) & 0xf
	if family == 0x6 || family == 0xf {
		extModel := (eax >> 16) & 0xf
		return extModel<<4 | model
	}
	return model
}

// decodeX86Family reads the family from a CPUID leaf 1 EAX value.
func decodeX86Family(reg Register) uint32 {
	eax := uint32(reg)
	family := (eax >> 8) & 0xf
	if family == 0xf {
		return family + (eax>>20)&0xff
	}
	return family
}

// BoundField pairs a raw register value with one [Field]. It is cheap to
// build and is not meant to be stored.
type BoundField struct {
	reg   Register
	field *Field
}

// Bind pairs reg with field.
func Bind(reg Register, field *Field) BoundField {
	return BoundField{reg: reg, field: field}
}

// Name returns the name of the bound field.
func (b BoundField) Name() string {
	return b.field.Name
}

// Decode extracts the field from the bound register.
func (b BoundField) Decode() DecodeResult {
	return b.field.Decode(b.reg)
}

// Value returns the decoded value, falling back to the variant's zero
// value when decoding failed.
func (b BoundField) Value() Value {
	return b.Decode().Value
}

// String renders the field as "<name> = <value>", with booleans and
// hexadecimal integers right-justified to ten columns.
func (b BoundField) String() string {
	v := b.Value()
	switch v.Kind() {
	case KindBool:
		set, _ := v.Bool()
		return fmt.Sprintf("%s = %10s", b.field.Name, strconv.FormatBool(set))
	case KindUint:
		u, _ := v.Uint()
		return fmt.Sprintf("%s = %10x", b.field.Name, u)
	default:
		return fmt.Sprintf("%s = %10s", b.field.Name, "?")
	}
}

// Fact returns the decoded field as a fact named after the field.
func (b BoundField) Fact() Fact[Value] {
	return Fact[Value]{Name: b.field.Name, Value: b.Value()}
}
