package cpuinfo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFlagDecode(t *testing.T) {
	const reg Register = 0x8000_0000_0000_0005

	for bit := range uint8(registerBits) {
		field := &Field{Type: FieldFlag, Name: "f", Bit: bit}
		got := field.Decode(reg)
		want := (reg>>bit)&1 != 0

		require.False(t, got.Defaulted, "bit %d", bit)
		assert.Equal(t, BoolValue(want), got.Value, "bit %d", bit)
	}
}

func TestFlagDecodePastWidthDefaults(t *testing.T) {
	field := &Field{Type: FieldFlag, Name: "f", Bit: 64}
	got := field.Decode(^Register(0))

	assert.True(t, got.Defaulted)
	assert.Equal(t, BoolValue(false), got.Value)
}

func TestIntDecode(t *testing.T) {
	tests := []struct {
		name      string
		bounds    Bounds
		reg       Register
		want      uint64
		defaulted bool
	}{
		{name: "low nibble", bounds: Bounds{0, 4}, reg: 0xABCD, want: 0xD},
		{name: "middle byte", bounds: Bounds{4, 12}, reg: 0xABCD, want: 0xBC},
		{name: "whole low word", bounds: Bounds{0, 32}, reg: 0x1_FFFF_FFFF, want: 0xFFFF_FFFF},
		{name: "high word of msr", bounds: Bounds{32, 64}, reg: 0x1234_5678_0000_0000, want: 0x1234_5678},
		{name: "empty range", bounds: Bounds{8, 8}, reg: 0xFFFF, want: 0},
		{name: "too wide for output", bounds: Bounds{0, 40}, reg: 0xFF_0000_0000, want: 0, defaulted: true},
		{name: "wide but small value", bounds: Bounds{0, 40}, reg: 0x1234, want: 0x1234},
		{name: "start past width", bounds: Bounds{64, 70}, reg: ^Register(0), want: 0, defaulted: true},
		{name: "end past width saturates mask", bounds: Bounds{60, 100}, reg: ^Register(0), want: 0xF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bounds := tt.bounds
			field := &Field{Type: FieldInt, Name: "i", Bounds: &bounds}
			got := field.Decode(tt.reg)

			assert.Equal(t, tt.defaulted, got.Defaulted)
			assert.Equal(t, UintValue(tt.want), got.Value)
		})
	}
}

func TestIntDecodeMatchesShiftAndMask(t *testing.T) {
	regs := []Register{0, 0xDEADBEEF, 0x0AF50641, 0xFFFF_FFFF, 0x1234_5678_9ABC_DEF0}
	for _, reg := range regs {
		for start := uint8(0); start < 32; start += 3 {
			for end := start + 1; end <= start+32 && end <= 64; end += 5 {
				bounds := Bounds{start, end}
				field := &Field{Type: FieldInt, Name: "i", Bounds: &bounds}

				mask := Register(1)<<(end-start) - 1
				if end-start == 64 {
					mask = ^Register(0)
				}
				want := (reg >> start) & mask

				got := field.Decode(reg)
				if want > 0xFFFF_FFFF {
					assert.True(t, got.Defaulted, "reg %#x [%d,%d)", reg, start, end)
					continue
				}
				assert.False(t, got.Defaulted, "reg %#x [%d,%d)", reg, start, end)
				assert.Equal(t, UintValue(want), got.Value, "reg %#x [%d,%d)", reg, start, end)
			}
		}
	}
}

func TestIntDecodeWithoutBoundsDefaults(t *testing.T) {
	field := &Field{Type: FieldInt, Name: "i"}
	got := field.Decode(0xFF)

	assert.True(t, got.Defaulted)
	assert.Equal(t, UintValue(0), got.Value)
}

func TestX86ModelDecode(t *testing.T) {
	field := &Field{Type: FieldX86Model, Name: "model"}

	assert.Equal(t, UintValue(0x4), field.Decode(0x0AF50341).Value)
	assert.Equal(t, UintValue(0x54), field.Decode(0x0AF50641).Value)
	assert.Equal(t, UintValue(0x54), field.Decode(0x0AF50F41).Value)
}

func TestX86FamilyDecode(t *testing.T) {
	field := &Field{Type: FieldX86Family, Name: "family"}

	assert.Equal(t, UintValue(0x3), field.Decode(0x0AE50341).Value)
	assert.Equal(t, UintValue(0xBD), field.Decode(0x0AE50F41).Value)
}

func TestBoundFieldString(t *testing.T) {
	bounds := Bounds{4, 12}
	tests := []struct {
		field Field
		reg   Register
		want  string
	}{
		{Field{Type: FieldFlag, Name: "sse2", Bit: 26}, 1 << 26, "sse2 =       true"},
		{Field{Type: FieldFlag, Name: "sse3", Bit: 0}, 0, "sse3 =      false"},
		{Field{Type: FieldFlag, Name: "bogus", Bit: 99}, ^Register(0), "bogus =      false"},
		{Field{Type: FieldInt, Name: "mid", Bounds: &bounds}, 0xABCD, "mid =         bc"},
		{Field{Type: FieldX86Family, Name: "family"}, 0x0AE50F41, "family =         bd"},
	}

	for _, tt := range tests {
		t.Run(tt.field.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bind(tt.reg, &tt.field).String())
		})
	}
}

func TestBoundFieldFact(t *testing.T) {
	field := &Field{Type: FieldX86Model, Name: "model"}
	fact := Bind(0x0AF50641, field).Fact()

	assert.Equal(t, NewFact("model", UintValue(0x54)), fact)
}

func TestFieldValidateAndLint(t *testing.T) {
	wide := Bounds{0, 40}
	empty := Bounds{5, 5}

	assert.NoError(t, (&Field{Type: FieldFlag, Name: "ok", Bit: 3}).Validate())
	assert.Error(t, (&Field{Type: "nibble", Name: "bad"}).Validate())
	assert.Error(t, (&Field{Type: FieldFlag}).Validate())

	assert.Empty(t, (&Field{Type: FieldX86Model, Name: "model"}).Lint())
	assert.Len(t, (&Field{Type: FieldFlag, Name: "f", Bit: 64}).Lint(), 1)
	assert.Len(t, (&Field{Type: FieldInt, Name: "i"}).Lint(), 1)
	assert.Len(t, (&Field{Type: FieldInt, Name: "i", Bounds: &wide}).Lint(), 1)
	assert.Len(t, (&Field{Type: FieldInt, Name: "i", Bounds: &empty}).Lint(), 1)
}

func TestFieldSchemaEncoding(t *testing.T) {
	const doc = `
- {type: flag, name: fpu, bit: 0}
- {type: int, name: stepping, bounds: [0, 4]}
- {type: x86model, name: model}
- {type: x86family, name: family}
`
	var fields []Field
	require.NoError(t, yaml.Unmarshal([]byte(doc), &fields))
	require.Len(t, fields, 4)
	assert.Equal(t, Field{Type: FieldFlag, Name: "fpu", Bit: 0}, fields[0])
	assert.Equal(t, &Bounds{Start: 0, End: 4}, fields[1].Bounds)
	assert.Equal(t, FieldX86Family, fields[3].Type)

	js, err := json.Marshal(fields[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"int","name":"stepping","bounds":[0,4]}`, string(js))

	var back Field
	require.NoError(t, json.Unmarshal(js, &back))
	assert.Equal(t, fields[1], back)

	out, err := yaml.Marshal(fields[1])
	require.NoError(t, err)
	assert.Contains(t, string(out), "bounds: [0, 4]")

	assert.Error(t, yaml.Unmarshal([]byte(`{type: int, name: x, bounds: [1, 2, 3]}`), &back))
}
