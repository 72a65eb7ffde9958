package row

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleColumns() []Column {
	return []Column{
		{Name: "Id", Number: 0, Type: TypeLong, Flags: FlagFixedLen | FlagAutoNumber, FixedOffset: 0},
		{Name: "Active", Number: 1, Type: TypeBoolean, Flags: FlagFixedLen},
		{Name: "Score", Number: 2, Type: TypeDouble, Flags: FlagFixedLen, FixedOffset: 4},
		{Name: "Name", Number: 3, Type: TypeText, Flags: FlagCompressedUnicode, VariableIndex: 0},
		{Name: "Notes", Number: 4, Type: TypeMemo, VariableIndex: 1},
	}
}

func TestRowRoundTripAllPresent(t *testing.T) {
	c := &Codec{Columns: sampleColumns(), RowCountSize: 2, LongValueIO: NewChainIO()}
	in := Values{
		"Id":     int32(7),
		"Active": true,
		"Score":  3.25,
		"Name":   "café", // non-ASCII forces uncompressed path even though flagged
		"Notes":  []byte("a short memo"),
	}

	enc, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(enc)
	require.NoError(t, err)

	assert.Equal(t, int32(7), out["Id"])
	assert.Equal(t, true, out["Active"])
	assert.Equal(t, 3.25, out["Score"])
	assert.Equal(t, "café", out["Name"])
	assert.Equal(t, []byte("a short memo"), out["Notes"])
}

func TestRowRoundTripNulls(t *testing.T) {
	c := &Codec{Columns: sampleColumns(), RowCountSize: 2}
	in := Values{
		"Id":     int32(1),
		"Active": false,
		"Score":  nil,
		"Name":   nil,
		"Notes":  nil,
	}
	enc, err := c.Encode(in)
	require.NoError(t, err)
	out, err := c.Decode(enc)
	require.NoError(t, err)

	assert.Equal(t, int32(1), out["Id"])
	assert.Equal(t, false, out["Active"])
	assert.Nil(t, out["Score"])
	assert.Nil(t, out["Name"])
	assert.Nil(t, out["Notes"])
}

func TestRowCompressedUnicodeASCII(t *testing.T) {
	c := &Codec{Columns: sampleColumns(), RowCountSize: 2}
	enc, err := c.Encode(Values{"Id": int32(1), "Name": "hello"})
	require.NoError(t, err)
	out, err := c.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, "hello", out["Name"])
}

func TestRowMissingTrailingColumnDecodesNull(t *testing.T) {
	// Simulate a row written before a column (Notes) was added to the
	// schema: encode with a shorter column list, decode with the full one.
	oldCols := sampleColumns()[:4]
	c := &Codec{Columns: oldCols, RowCountSize: 2}
	enc, err := c.Encode(Values{"Id": int32(3), "Name": "old"})
	require.NoError(t, err)

	newCodec := &Codec{Columns: sampleColumns(), RowCountSize: 2}
	out, err := newCodec.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, int32(3), out["Id"])
	assert.Nil(t, out["Notes"])
}

func TestLongValueInlineAndChain(t *testing.T) {
	io := NewChainIO()
	small := []byte("short")
	enc, err := EncodeLongValue(io, small)
	require.NoError(t, err)
	dec, err := DecodeLongValue(io, enc)
	require.NoError(t, err)
	assert.Equal(t, small, dec)

	big := make([]byte, 200)
	for i := range big {
		big[i] = byte(i)
	}
	enc, err = EncodeLongValue(io, big)
	require.NoError(t, err)
	dec, err = DecodeLongValue(io, enc)
	require.NoError(t, err)
	assert.Equal(t, big, dec)
}

func TestDecimalRoundTripSignedMagnitude(t *testing.T) {
	col := Column{Name: "Amt", Number: 0, Type: TypeNumeric, Flags: FlagFixedLen, FixedOffset: 0}
	for _, n := range []int64{0, 1, -1, 123456789, -123456789} {
		enc, err := encodeFixed(col, Decimal{Magnitude: big.NewInt(n)})
		require.NoError(t, err)
		v, err := decodeFixed(col, enc)
		require.NoError(t, err)
		d := v.(Decimal)
		assert.Equal(t, n, d.Magnitude.Int64(), "n=%d", n)
	}
}

func TestGUIDRoundTrip(t *testing.T) {
	col := Column{Name: "G", Number: 0, Type: TypeGUID, Flags: FlagFixedLen, FixedOffset: 0}
	g := uuid.New()
	enc, err := encodeFixed(col, g)
	require.NoError(t, err)
	v, err := decodeFixed(col, enc)
	require.NoError(t, err)
	assert.Equal(t, g, v)
}
