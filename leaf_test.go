package cpuinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// intelVendor is leaf 0x0 of a part reporting "GenuineIntel".
var intelVendor = Registers{EAX: 0x16, EBX: 0x756e6547, ECX: 0x6c65746e, EDX: 0x49656e69}

func featuresLeaf() *LeafDesc {
	return &LeafDesc{
		Name: "features",
		LeafType: LeafType{
			Kind: LeafBitField,
			EAX: []Field{
				{Type: FieldInt, Name: "stepping", Bounds: &Bounds{0, 4}},
				{Type: FieldX86Model, Name: "model"},
				{Type: FieldX86Family, Name: "family"},
			},
			ECX: []Field{{Type: FieldFlag, Name: "sse3", Bit: 0}},
			EDX: []Field{{Type: FieldFlag, Name: "sse2", Bit: 26}},
		},
	}
}

func TestScanSubLeaves(t *testing.T) {
	src := NewMapSource().
		Set(0x0, 0, Registers{}).
		Set(0x1, 0, Registers{ECX: 0x100}).
		Set(0x2, 0, Registers{ECX: 0xFF, EDX: 0xFFFF_FFFF})

	start := &LeafType{Kind: LeafStart}
	bits := &LeafType{Kind: LeafBitField}
	str := &LeafType{Kind: LeafString}

	assert.True(t, start.ScanSubLeaves(0x0, src).Present(), "start leaves are never empty")
	assert.False(t, bits.ScanSubLeaves(0x0, src).Present())
	assert.True(t, bits.ScanSubLeaves(0x1, src).Present())
	assert.False(t, str.ScanSubLeaves(0x2, src).Present())
	assert.False(t, start.ScanSubLeaves(0x9, src).Present(), "absent is not zero")
	assert.Empty(t, start.ScanSubLeaves(0x9, src).Quads)
}

func TestStartLeaf(t *testing.T) {
	desc := &LeafDesc{Name: "vendor", LeafType: LeafType{Kind: LeafStart}}
	src := NewMapSource().Set(0x0, 0, intelVendor)

	bound, ok := desc.Bind(0x0, src)
	require.True(t, ok)

	assert.Equal(t, "vendor: 'GenuineIntel' max leaf:22", bound.String())
	assert.Equal(t, []Fact[Value]{
		NewFact("vendor/max_leaves", UintValue(0x16)),
		NewFact("vendor/type", StringValue("GenuineIntel")),
	}, bound.Facts())
}

func TestStringLeaf(t *testing.T) {
	desc := &LeafDesc{Name: "brand1", LeafType: LeafType{Kind: LeafString}}
	// "Intel(R) Core(TM" packed little-endian into EAX, EBX, ECX, EDX.
	src := NewMapSource().Set(0x8000_0002, 0, Registers{
		EAX: 0x65746e49, EBX: 0x2952286c, ECX: 0x726f4320, EDX: 0x4d542865,
	})

	bound, ok := desc.Bind(0x8000_0002, src)
	require.True(t, ok)
	assert.Equal(t, "brand1: 'Intel(R) Core(TM'", bound.String())
	assert.Equal(t, []Fact[Value]{NewFact("brand1/value", StringValue("Intel(R) Core(TM"))}, bound.Facts())
}

func TestStringLeafTrimsPadding(t *testing.T) {
	desc := &LeafDesc{Name: "brand3", LeafType: LeafType{Kind: LeafString}}
	src := NewMapSource().Set(0x8000_0004, 0, Registers{EAX: 0x007a4847, EBX: 0x1})

	bound, ok := desc.Bind(0x8000_0004, src)
	require.True(t, ok)
	fact := bound.Facts()[0]

	text, _ := fact.Value.Text()
	assert.Equal(t, "GHz\x00\x01", text)
}

func TestStringLeafInvalidUTF8(t *testing.T) {
	assert.Equal(t, "A�B", registerText(0x0042FF41))
}

func TestBitFieldLeaf(t *testing.T) {
	desc := featuresLeaf()
	src := NewMapSource().Set(0x1, 0, Registers{
		EAX: 0x0AF50641, EBX: 0x00100800, ECX: 0x7FFAFBFF, EDX: 0xBFEBFBFF,
	})

	bound, ok := desc.Bind(0x1, src)
	require.True(t, ok)

	assert.Equal(t, []Fact[Value]{
		NewFact("features/eax/stepping", UintValue(0x1)),
		NewFact("features/eax/model", UintValue(0x54)),
		NewFact("features/eax/family", UintValue(0x6)),
		NewFact("features/ecx/sse3", BoolValue(true)),
		NewFact("features/edx/sse2", BoolValue(true)),
	}, bound.Facts())

	want := strings.Join([]string{
		"features: ",
		" eax: 0xaf50641",
		"  stepping =          1",
		"  model =         54",
		"  family =          6",
		" ebx: 0x100800",
		" ecx: 0x7ffafbff",
		"  sse3 =       true",
		" edx: 0xbfebfbff",
		"  sse2 =       true",
		"",
	}, "\n")
	assert.Equal(t, want, bound.String())
}

func TestBitFieldLeafAbsent(t *testing.T) {
	src := NewMapSource().Set(0x1, 0, Registers{EDX: 0xBFEBFBFF})

	bound, ok := featuresLeaf().Bind(0x1, src)
	assert.False(t, ok)
	assert.Nil(t, bound)
}

func TestCPUIDFactNames(t *testing.T) {
	src := NewMapSource().Set(0x1, 0, Registers{EAX: 1, EDX: 1 << 26})

	bound, ok := featuresLeaf().Bind(0x1, src)
	require.True(t, ok)

	facts := prefixFacts(bound.Facts(), "cpuid")
	set := NewFactSet(facts)
	fact, ok := set.Get("cpuid/features/edx/sse2")
	require.True(t, ok)
	assert.Equal(t, BoolValue(true), fact.Value)
}

func TestLeafDescValidateAndLint(t *testing.T) {
	good := featuresLeaf()
	assert.NoError(t, good.Validate())
	assert.Empty(t, good.Lint())

	assert.Error(t, (&LeafDesc{Name: "x", LeafType: LeafType{Kind: "cache"}}).Validate())
	assert.Error(t, (&LeafDesc{LeafType: LeafType{Kind: LeafStart}}).Validate())
	assert.Error(t, (&LeafDesc{Name: "x", LeafType: LeafType{
		Kind: LeafBitField,
		EAX:  []Field{{Type: "nibble", Name: "n"}},
	}}).Validate())

	dup := &LeafDesc{Name: "x", LeafType: LeafType{
		Kind: LeafBitField,
		EDX:  []Field{{Type: FieldFlag, Name: "a", Bit: 0}, {Type: FieldFlag, Name: "a", Bit: 1}},
	}}
	require.NoError(t, dup.Validate())
	assert.Len(t, dup.Lint(), 1)

	ignored := &LeafDesc{Name: "v", LeafType: LeafType{
		Kind: LeafStart,
		EAX:  []Field{{Type: FieldFlag, Name: "a"}},
	}}
	assert.Len(t, ignored.Lint(), 1)
}

func TestLeafDescSchema(t *testing.T) {
	const doc = `
name: features
type: bitfield
eax:
  - {type: x86model, name: model}
edx:
  - {type: flag, name: sse2, bit: 26}
`
	var desc LeafDesc
	require.NoError(t, yaml.Unmarshal([]byte(doc), &desc))

	assert.Equal(t, "features", desc.Name)
	assert.Equal(t, LeafBitField, desc.Kind)
	require.Len(t, desc.EDX, 1)
	assert.Equal(t, uint8(26), desc.EDX[0].Bit)
	assert.Empty(t, desc.EBX)
}
