package textcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCaseInsensitiveOrderingWithTiebreak(t *testing.T) {
	lower, err := Encode("cafe", SortGeneral, true)
	require.NoError(t, err)
	upper, err := Encode("CAFE", SortGeneral, true)
	require.NoError(t, err)

	assert.NotEqual(t, lower, upper, "case must still be a tiebreaker")

	// primary (inline) weight is identical; only the extra-code tail differs
	lowerPrimary := lower[:bytes.IndexByte(lower, endOfText)]
	upperPrimary := upper[:bytes.IndexByte(upper, endOfText)]
	assert.Equal(t, lowerPrimary, upperPrimary)
}

func TestEncodeAccentedAndPlainShareInlinePrefix(t *testing.T) {
	plain, err := Encode("cafe", SortGeneral, true)
	require.NoError(t, err)
	accented, err := Encode("café", SortGeneral, true)
	require.NoError(t, err)

	assert.NotEqual(t, plain, accented)
	assert.True(t, bytes.HasPrefix(accented, plain[:bytes.IndexByte(plain, endOfText)]))
}

func TestEncodeDescendingIsComplementOfAscending(t *testing.T) {
	asc, err := Encode("hello", SortGeneral, true)
	require.NoError(t, err)
	desc, err := Encode("hello", SortGeneral, false)
	require.NoError(t, err)

	require.Len(t, desc, len(asc)+2)
	for i, b := range asc {
		assert.Equal(t, ^b, desc[i+1])
	}
	assert.Equal(t, byte(0x00), desc[0])
	assert.Equal(t, byte(0x00), desc[len(desc)-1])
}

func TestEncodeTruncatesToMaxChars(t *testing.T) {
	long := make([]rune, MaxIndexChars+50)
	for i := range long {
		long[i] = 'A'
	}
	short := make([]rune, MaxIndexChars)
	for i := range short {
		short[i] = 'A'
	}

	longEnc, err := Encode(string(long), SortGeneral, true)
	require.NoError(t, err)
	shortEnc, err := Encode(string(short), SortGeneral, true)
	require.NoError(t, err)
	assert.Equal(t, shortEnc, longEnc)
}

func TestEncodeEmbeddedControlCharDistinguishesOtherwiseEqualStrings(t *testing.T) {
	a, err := Encode("ab", SortGeneral, true)
	require.NoError(t, err)
	b, err := Encode("a\x01b", SortGeneral, true)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncodeRejectsSurrogate(t *testing.T) {
	_, err := Encode(string(rune(0xD800)), SortGeneral, true)
	assert.Error(t, err)
}

func TestEncodeExtendedRangeUsesCrazyCodes(t *testing.T) {
	enc, err := Encode("Āā", SortGeneral, true)
	require.NoError(t, err)
	assert.Contains(t, string(enc), "")
	found := false
	for _, b := range enc {
		if b&crazyPrefix != 0 {
			found = true
		}
	}
	assert.True(t, found, "expected a crazy-code byte in the encoding")
}
