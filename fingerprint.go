package cpuinfo

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/zeebo/blake3"
)

// FingerprintLength is the length of a fingerprint in hex characters.
type FingerprintLength int

const (
	Fingerprint32  FingerprintLength = 32
	Fingerprint64  FingerprintLength = 64
	Fingerprint128 FingerprintLength = 128
	Fingerprint256 FingerprintLength = 256
)

// ParseFingerprintLength accepts the power-of-two lengths 32, 64, 128 and
// 256.
func ParseFingerprintLength(n int) (FingerprintLength, error) {
	switch l := FingerprintLength(n); l {
	case Fingerprint32, Fingerprint64, Fingerprint128, Fingerprint256:
		return l, nil
	default:
		return 0, fmt.Errorf("fingerprint length %d: %w", n, ErrUnknownFormat)
	}
}

// fingerprintKey is the BLAKE3 key for fact fingerprints, the ASCII domain
// name zero-padded to 32 bytes. Changing it changes every fingerprint.
var fingerprintKey = [32]byte{
	'c', 'p', 'u', 'i', 'n', 'f', 'o', '.', 'f', 'a', 'c', 't', 's', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't',
}

// Fingerprint hashes a fact list into a stable identifier of the CPU
// configuration. Facts are deduplicated by name (last wins) and fed to a
// keyed BLAKE3 hash in name order, so input order does not matter. Each
// record carries the value kind, so a flag, an integer and a string with
// the same printed form differ. Longer lengths extend the same output
// stream, so a shorter fingerprint is a prefix of a longer one.
func Fingerprint(facts []Fact[Value], salt string, length FingerprintLength) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("cpuinfo: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	record := appendBytes(nil, salt)
	_, _ = hasher.Write(record)

	set := NewFactSet(facts)
	for _, name := range slices.Sorted(maps.Keys(set.backing)) {
		record = appendFactRecord(record[:0], set.backing[name])
		_, _ = hasher.Write(record)
	}

	out := make([]byte, (max(int(length), 0)+1)/2)
	_, _ = hasher.Digest().Read(out)

	return hex.EncodeToString(out)[:max(int(length), 0)]
}

// appendFactRecord appends the length-prefixed name, the kind byte and
// the payload of f.
func appendFactRecord(b []byte, f Fact[Value]) []byte {
	b = appendBytes(b, f.Name)
	b = append(b, byte(f.Value.Kind()))
	switch f.Value.Kind() {
	case KindBool:
		if f.Value.b {
			return append(b, 1)
		}
		return append(b, 0)
	case KindUint:
		return binary.BigEndian.AppendUint64(b, f.Value.u)
	case KindString:
		return appendBytes(b, f.Value.s)
	default:
		return b
	}
}

func appendBytes(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}
