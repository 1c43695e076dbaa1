package coffer

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/arminfriedl/coffer/internal/coffererr"
)

// Kind tags which variant a Value holds.
type Kind uint8

const (
	// KindString holds a UTF-8 string.
	KindString Kind = iota
	// KindInteger holds a 32-bit signed integer.
	KindInteger
	// KindFloat holds a 32-bit float.
	KindFloat
	// KindBoolean holds a bool.
	KindBoolean
)

// Value is a tagged value: exactly one of String, Integer, Float or Boolean
// is meaningful, selected by Kind. Integers and floats are narrowed to
// 32 bits for bootstrap-format parity with the original TOML source.
type Value struct {
	Kind    Kind
	Str     string
	Int     int32
	Flt     float32
	Boolean bool
}

// String builds a String-kinded value.
func String(v string) Value { return Value{Kind: KindString, Str: v} }

// Integer builds an Integer-kinded value.
func Integer(v int32) Value { return Value{Kind: KindInteger, Int: v} }

// Float builds a Float-kinded value.
func Float(v float32) Value { return Value{Kind: KindFloat, Flt: v} }

// Boolean builds a Boolean-kinded value.
func Boolean(v bool) Value { return Value{Kind: KindBoolean, Boolean: v} }

// FromTOMLScalar converts a value decoded from TOML (string, int64, float64
// or bool, per BurntSushi/toml's decoding of scalars) into a Value,
// narrowing integers and floats to 32 bits. Out-of-range integers are a
// Parse error rather than a silent truncation.
func FromTOMLScalar(v interface{}) (Value, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case int64:
		if t > math.MaxInt32 || t < math.MinInt32 {
			return Value{}, coffererr.New(coffererr.Parse,
				fmt.Sprintf("coffer: integer %d out of int32 range", t))
		}
		return Integer(int32(t)), nil
	case float64:
		return Float(float32(t)), nil
	case bool:
		return Boolean(t), nil
	default:
		return Value{}, coffererr.New(coffererr.Parse, fmt.Sprintf("coffer: unsupported toml value type %T", v))
	}
}

// cborValue is the wire shape for a Value: a two-element array of
// [kind, payload]. Keeping this distinct from Value lets Value expose plain
// Go fields for callers while the CBOR codec only ever sees the compact
// tagged-array form the sealed CofferShard is transmitted as.
type cborValue struct {
	_       struct{} `cbor:",toarray"`
	Kind    Kind
	Payload cbor.RawMessage
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	var payload interface{}
	switch v.Kind {
	case KindString:
		payload = v.Str
	case KindInteger:
		payload = v.Int
	case KindFloat:
		payload = v.Flt
	case KindBoolean:
		payload = v.Boolean
	default:
		return nil, fmt.Errorf("coffer: unknown value kind %d", v.Kind)
	}

	raw, err := cbor.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(cborValue{Kind: v.Kind, Payload: raw})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var cv cborValue
	if err := cbor.Unmarshal(data, &cv); err != nil {
		return err
	}

	v.Kind = cv.Kind
	switch cv.Kind {
	case KindString:
		return cbor.Unmarshal(cv.Payload, &v.Str)
	case KindInteger:
		return cbor.Unmarshal(cv.Payload, &v.Int)
	case KindFloat:
		return cbor.Unmarshal(cv.Payload, &v.Flt)
	case KindBoolean:
		return cbor.Unmarshal(cv.Payload, &v.Boolean)
	default:
		return fmt.Errorf("coffer: unknown value kind %d", cv.Kind)
	}
}
