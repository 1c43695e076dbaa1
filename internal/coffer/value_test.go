package coffer

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTOMLScalar(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want Value
	}{
		{"string", "admin", String("admin")},
		{"int64", int64(42), Integer(42)},
		{"float64", float64(3.5), Float(3.5)},
		{"bool", true, Boolean(true)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromTOMLScalar(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromTOMLScalarRejectsOutOfRangeInt(t *testing.T) {
	_, err := FromTOMLScalar(int64(1) << 40)
	assert.Error(t, err)
}

func TestFromTOMLScalarRejectsUnsupportedType(t *testing.T) {
	_, err := FromTOMLScalar([]interface{}{"nope"})
	assert.Error(t, err)
}

func TestValueCBORRoundTrip(t *testing.T) {
	values := []Value{
		String("hello"),
		Integer(-7),
		Float(1.25),
		Boolean(false),
	}

	for _, v := range values {
		data, err := cbor.Marshal(v)
		require.NoError(t, err)

		var out Value
		require.NoError(t, cbor.Unmarshal(data, &out))
		assert.Equal(t, v, out)
	}
}
