package cpuinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/slashdevops/cpuinfo/internal/codec"
)

// ValueKind identifies which variant a [Value] holds.
type ValueKind uint8

const (
	// KindInvalid is the kind of the zero Value.
	KindInvalid ValueKind = iota
	// KindBool is a decoded flag.
	KindBool
	// KindUint is a decoded integer field, leaf count or MSR value.
	KindUint
	// KindString is a decoded identification string.
	KindString
)

// String returns the lower-case kind name.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is the concrete value carried by collected facts. It holds exactly
// one of a bool, an unsigned integer or a string and is comparable, so two
// Values are equal iff they have the same kind and the same payload.
//
// Value marshals to YAML, JSON and CBOR as the bare scalar. Integers stay
// integers in every encoding, which keeps a YAML snapshot comparable with
// a JSON or CBOR snapshot of the same machine.
type Value struct {
	kind ValueKind
	b    bool
	u    uint64
	s    string
}

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// UintValue returns a Value holding u.
func UintValue(u uint64) Value { return Value{kind: KindUint, u: u} }

// StringValue returns a Value holding s.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the boolean payload and whether v holds a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Uint returns the integer payload and whether v holds an integer.
func (v Value) Uint() (uint64, bool) { return v.u, v.kind == KindUint }

// Text returns the string payload and whether v holds a string.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }

// Interface returns the payload as a plain Go value (bool, uint64, string
// or nil for the zero Value).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindUint:
		return v.u
	case KindString:
		return v.s
	default:
		return nil
	}
}

// String formats the payload for display.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindString:
		return v.s
	default:
		return "<invalid>"
	}
}

// MarshalJSON implements [json.Marshaler].
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements [json.Unmarshaler]. Negative and fractional
// numbers are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty fact value")
	}
	switch c := data[0]; {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case c >= '0' && c <= '9':
		u, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("fact value %s is not an unsigned integer: %w", data, err)
		}
		*v = UintValue(u)
	default:
		return fmt.Errorf("unsupported fact value %s", data)
	}
	return nil
}

// MarshalYAML implements [yaml.Marshaler].
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// UnmarshalYAML implements [yaml.Unmarshaler]. Only scalar nodes tagged
// !!bool, !!int, !!str or !!null are accepted.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: fact value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*v = Value{}
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case "!!int":
		var u uint64
		if err := node.Decode(&u); err != nil {
			return fmt.Errorf("line %d: fact value %q is not an unsigned integer: %w", node.Line, node.Value, err)
		}
		*v = UintValue(u)
	case "!!str":
		*v = StringValue(node.Value)
	default:
		return fmt.Errorf("line %d: unsupported fact value %q (%s)", node.Line, node.Value, node.ShortTag())
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(v.Interface())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Value{}
	case bool:
		*v = BoolValue(x)
	case uint64:
		*v = UintValue(x)
	case string:
		*v = StringValue(x)
	default:
		return fmt.Errorf("unsupported fact value of type %T", raw)
	}
	return nil
}
