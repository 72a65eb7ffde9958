package textcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySimpleDigitsAndPunctuation(t *testing.T) {
	h, err := Classify('5', SortGeneral)
	require.NoError(t, err)
	assert.Equal(t, ClassSimple, h.Class)
	assert.Equal(t, []byte{'5'}, h.Inline)
}

func TestClassifyLetterCaseFolds(t *testing.T) {
	upper, err := Classify('A', SortGeneral)
	require.NoError(t, err)
	lower, err := Classify('a', SortGeneral)
	require.NoError(t, err)

	assert.Equal(t, upper.Inline, lower.Inline, "primary weight must fold case")
	assert.NotEqual(t, upper.Extra, lower.Extra, "case must still be distinguishable")
}

func TestClassifyAccentedLetterSharesBaseWithPlain(t *testing.T) {
	plain, err := Classify('e', SortGeneral)
	require.NoError(t, err)
	accented, err := Classify('é', SortGeneral)
	require.NoError(t, err)

	assert.Equal(t, plain.Inline, accented.Inline, "accented letters sort near their base letter")
	assert.NotEqual(t, plain.Extra, accented.Extra)
}

func TestClassifyControlCharIsUnprintable(t *testing.T) {
	h, err := Classify(0x01, SortGeneral)
	require.NoError(t, err)
	assert.Equal(t, ClassUnprintable, h.Class)
	assert.Empty(t, h.Inline)
}

func TestClassifySurrogateRejected(t *testing.T) {
	_, err := Classify(0xD800, SortGeneral)
	assert.Error(t, err)
}

func TestClassifySoftHyphenIgnored(t *testing.T) {
	h, err := Classify(0x00AD, SortGeneral)
	require.NoError(t, err)
	assert.Equal(t, ClassIgnored, h.Class)
}

func TestClassifyExtendedRangeDiffersBySortOrder(t *testing.T) {
	legacy, err := Classify('Ā', SortGeneralLegacy)
	require.NoError(t, err)
	general, err := Classify('Ā', SortGeneral)
	require.NoError(t, err)

	assert.Equal(t, ClassInternational, legacy.Class)
	assert.Equal(t, ClassInternationalExt, general.Class)
}
