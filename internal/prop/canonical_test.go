package prop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	m := Map{
		"zulu":  Int(1),
		"alpha": Int(2),
		"mike":  Int(3),
	}

	data, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mike":3,"zulu":1}`, string(data))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(Map{"cmp": String("a<b && b>c")})
	require.NoError(t, err)
	assert.Equal(t, `{"cmp":"a<b && b>c"}`, string(data))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// e + combining acute (NFD) must normalize to precomposed é (NFC)
	decomposed := "é"
	composed := "é"

	d1, err := MarshalCanonical(String(decomposed))
	require.NoError(t, err)
	d2, err := MarshalCanonical(String(composed))
	require.NoError(t, err)
	assert.Equal(t, d2, d1)
}

func TestMarshalCanonicalFloats(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"integral float matches int", Float(100), "100"},
		{"negative integral", Float(-3), "-3"},
		{"fraction", Float(12.5), "12.5"},
		{"shortest round trip", Float(0.1), "0.1"},
		{"int", Int(100), "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	require.Error(t, err)

	_, err = MarshalCanonical(Float(math.Inf(1)))
	require.Error(t, err)
}

func TestMarshalCanonicalDeterminism(t *testing.T) {
	m := Map{
		"entities":  List{Map{"id": String("region.a"), "x": Float(0)}},
		"relations": List{},
		"tick":      Int(7),
	}

	d1, err := MarshalCanonical(m)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		d2, err := MarshalCanonical(m)
		require.NoError(t, err)
		assert.Equal(t, d1, d2)
	}
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	// U+2028 must stay literal, a textual backslash-u sequence must stay escaped
	data, err := MarshalCanonical(String("a b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a b\"", string(data))

	data, err = MarshalCanonical(String(`literal\u2028text`))
	require.NoError(t, err)
	assert.Equal(t, `"literal\\u2028text"`, string(data))
}

func TestHashCanonicalDeterminism(t *testing.T) {
	m := Map{"id": String("region.a"), "tick": Int(3)}

	h1, err := HashCanonical(DomainGraph, m)
	require.NoError(t, err)
	h2, err := HashCanonical(DomainGraph, m)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashDomainSeparation(t *testing.T) {
	m := Map{"id": String("region.a")}

	h1 := MustHashCanonical(DomainGraph, m)
	h2 := MustHashCanonical(DomainEntry, m)

	assert.NotEqual(t, h1, h2, "same payload under different domains must differ")
}
