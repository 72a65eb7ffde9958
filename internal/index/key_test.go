package index

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjhughes/jetdb/internal/row"
	"github.com/kjhughes/jetdb/internal/textcodec"
)

func longCol() KeyColumn {
	return KeyColumn{Column: row.Column{Name: "N", Type: row.TypeLong, Flags: row.FlagFixedLen}}
}

func TestEncodeSignedIntegerOrdersNumerically(t *testing.T) {
	values := []int64{-1000, -1, 0, 1, 1000}
	var encs [][]byte
	for _, v := range values {
		b, err := EncodeKey([]KeyColumn{longCol()}, []interface{}{int32(v)})
		require.NoError(t, err)
		encs = append(encs, b)
	}
	for i := 1; i < len(encs); i++ {
		assert.True(t, bytes.Compare(encs[i-1], encs[i]) < 0, "expected ascending byte order for %v", values)
	}
}

func TestEncodeNullSortsBeforeNonNull(t *testing.T) {
	nullEnc, err := EncodeKey([]KeyColumn{longCol()}, []interface{}{nil})
	require.NoError(t, err)
	valEnc, err := EncodeKey([]KeyColumn{longCol()}, []interface{}{int32(-1000000)})
	require.NoError(t, err)
	assert.True(t, bytes.Compare(nullEnc, valEnc) < 0)
}

func TestEncodeDescendingReversesOrder(t *testing.T) {
	kc := longCol()
	kc.Descending = true
	a, err := EncodeKey([]KeyColumn{kc}, []interface{}{int32(1)})
	require.NoError(t, err)
	b, err := EncodeKey([]KeyColumn{kc}, []interface{}{int32(2)})
	require.NoError(t, err)
	assert.True(t, bytes.Compare(a, b) > 0, "descending index: larger value sorts first complemented")
}

func TestEncodeFloatOrdersAcrossSignBoundary(t *testing.T) {
	col := KeyColumn{Column: row.Column{Name: "F", Type: row.TypeDouble, Flags: row.FlagFixedLen}}
	values := []float64{-2.5, -0.5, 0, 0.5, 2.5}
	var encs [][]byte
	for _, v := range values {
		b, err := EncodeKey([]KeyColumn{col}, []interface{}{v})
		require.NoError(t, err)
		encs = append(encs, b)
	}
	for i := 1; i < len(encs); i++ {
		assert.True(t, bytes.Compare(encs[i-1], encs[i]) < 0)
	}
}

func TestEncodeGUIDIsVerbatim(t *testing.T) {
	col := KeyColumn{Column: row.Column{Name: "G", Type: row.TypeGUID, Flags: row.FlagFixedLen}}
	g := uuid.New()
	b, err := EncodeKey([]KeyColumn{col}, []interface{}{g})
	require.NoError(t, err)
	assert.Equal(t, g[:], b[1:])
}

func TestEncodeTextUsesCollationOrder(t *testing.T) {
	col := KeyColumn{Column: row.Column{Name: "S", Type: row.TypeText}, SortOrder: textcodec.SortGeneral}
	a, err := EncodeKey([]KeyColumn{col}, []interface{}{"apple"})
	require.NoError(t, err)
	b, err := EncodeKey([]KeyColumn{col}, []interface{}{"banana"})
	require.NoError(t, err)
	assert.True(t, bytes.Compare(a, b) < 0)
}

func TestEncodeNumericMagnitudeOrdering(t *testing.T) {
	col := KeyColumn{Column: row.Column{Name: "D", Type: row.TypeNumeric, Flags: row.FlagFixedLen}}
	neg, err := EncodeKey([]KeyColumn{col}, []interface{}{row.Decimal{Magnitude: big.NewInt(-500)}})
	require.NoError(t, err)
	pos, err := EncodeKey([]KeyColumn{col}, []interface{}{row.Decimal{Magnitude: big.NewInt(500)}})
	require.NoError(t, err)
	assert.True(t, bytes.Compare(neg, pos) < 0)
}
