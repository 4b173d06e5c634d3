package cpuinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprintFacts() []Fact[Value] {
	return []Fact[Value]{
		NewFact("cpuid/vendor/type", StringValue("GenuineIntel")),
		NewFact("cpuid/features/edx/sse2", BoolValue(true)),
		NewFact("cpuid/features/eax/family", UintValue(6)),
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	facts := fingerprintFacts()
	reversed := []Fact[Value]{facts[2], facts[1], facts[0]}

	assert.Equal(t, Fingerprint(facts, "", Fingerprint64), Fingerprint(reversed, "", Fingerprint64))
}

func TestFingerprintDistinguishesKinds(t *testing.T) {
	for _, pair := range [][2]Value{
		{StringValue("1"), UintValue(1)},
		{BoolValue(true), UintValue(1)},
		{BoolValue(false), UintValue(0)},
		{StringValue(""), BoolValue(false)},
	} {
		a := []Fact[Value]{NewFact("x", pair[0])}
		b := []Fact[Value]{NewFact("x", pair[1])}
		assert.NotEqual(t, Fingerprint(a, "", Fingerprint64), Fingerprint(b, "", Fingerprint64),
			"%s %v vs %s %v", pair[0].Kind(), pair[0], pair[1].Kind(), pair[1])
	}
}

func TestFingerprintRecordBoundaries(t *testing.T) {
	// Concatenating name and string payload must not collide.
	a := []Fact[Value]{NewFact("ab", StringValue("c"))}
	b := []Fact[Value]{NewFact("a", StringValue("bc"))}
	assert.NotEqual(t, Fingerprint(a, "", Fingerprint64), Fingerprint(b, "", Fingerprint64))
}

func TestFingerprintDetectsChange(t *testing.T) {
	changed := fingerprintFacts()
	changed[1].Value = BoolValue(false)

	assert.NotEqual(t, Fingerprint(fingerprintFacts(), "", Fingerprint64), Fingerprint(changed, "", Fingerprint64))
}

func TestFingerprintDuplicatesLastWins(t *testing.T) {
	facts := append(fingerprintFacts(), NewFact("cpuid/features/edx/sse2", BoolValue(false)))
	want := fingerprintFacts()
	want[1].Value = BoolValue(false)

	assert.Equal(t, Fingerprint(want, "", Fingerprint64), Fingerprint(facts, "", Fingerprint64))
}

func TestFingerprintSalt(t *testing.T) {
	facts := fingerprintFacts()

	assert.NotEqual(t, Fingerprint(facts, "app1", Fingerprint64), Fingerprint(facts, "app2", Fingerprint64))
}

func TestFingerprintLengths(t *testing.T) {
	for _, length := range []FingerprintLength{Fingerprint32, Fingerprint64, Fingerprint128, Fingerprint256} {
		id := Fingerprint(fingerprintFacts(), "", length)
		assert.Len(t, id, int(length))
		assert.Regexp(t, "^[0-9a-f]+$", id)

		parsed, err := ParseFingerprintLength(int(length))
		require.NoError(t, err)
		assert.Equal(t, length, parsed)
	}

	_, err := ParseFingerprintLength(48)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFingerprintPrefix(t *testing.T) {
	short := Fingerprint(fingerprintFacts(), "s", Fingerprint32)
	full := Fingerprint(fingerprintFacts(), "s", Fingerprint64)
	long := Fingerprint(fingerprintFacts(), "s", Fingerprint256)

	assert.Equal(t, short, full[:32])
	assert.Equal(t, full, long[:64])
}

func TestFingerprintEmpty(t *testing.T) {
	assert.Len(t, Fingerprint(nil, "", Fingerprint64), 64)
	assert.NotEqual(t, Fingerprint(nil, "", Fingerprint64), Fingerprint(fingerprintFacts(), "", Fingerprint64))
}
