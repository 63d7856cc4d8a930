package values

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip encodes v through EncodeInline and decodes it back, asserting
// the decoded Value's Raw() matches v's: decode(encode(v)) == v.
func roundTrip(t *testing.T, v Value, p Params) Value {
	t.Helper()
	buf, err := EncodeInline(v, p)
	require.NoError(t, err)
	got, err := DecodeInline(v.Type(), buf, p)
	require.NoError(t, err)
	return got
}

func TestValueRoundTrip_FixedNumeric(t *testing.T) {
	cases := []Value{
		NewInt(TypeByte, 200),
		NewInt(TypeInt16, -1234),
		NewInt(TypeInt32, -70000),
		NewInt(TypeInt64, 1<<40),
		NewFloat(TypeFloat32, 3.5),
		NewFloat(TypeDouble, -2.718281828),
	}
	for _, v := range cases {
		got := roundTrip(t, v, Params{})
		assert.Equal(t, v.Raw(), got.Raw(), "type %v", v.Type())
	}
}

func TestValueRoundTrip_Currency(t *testing.T) {
	v := NewDecimal(TypeCurrency, decimal.NewFromFloat(1234.5678))
	got := roundTrip(t, v, Params{})
	assert.True(t, v.Decimal().Equal(got.Decimal()))
}

func TestValueRoundTrip_Numeric(t *testing.T) {
	p := Params{Precision: 18, Scale: 4}
	for _, s := range []string{"0", "-1", "123456789012.3456", "-999999999999.9999"} {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		v := NewDecimal(TypeNumeric, d)
		got := roundTrip(t, v, p)
		assert.True(t, d.Equal(got.Decimal()), "numeric %s round-tripped to %s", s, got.Decimal())
	}
}

func TestNumericOverflow(t *testing.T) {
	p := Params{Precision: 2, Scale: 0}
	d, _ := decimal.NewFromString("1000")
	_, err := encodeNumeric(d, p)
	require.Error(t, err)
}

func TestValueRoundTrip_Text(t *testing.T) {
	p := Params{CompressedUnicode: true}
	for _, s := range []string{"", "hello", "aéè mixed"} {
		v := NewText(TypeText, s)
		got := roundTrip(t, v, p)
		assert.Equal(t, s, got.String())
	}

	// Non-Latin1 text forces raw UCS-2 even when compression is enabled.
	v := NewText(TypeText, "日本語")
	got := roundTrip(t, v, p)
	assert.Equal(t, v.String(), got.String())
}

func TestValueRoundTrip_FixedLengthPadding(t *testing.T) {
	p := Params{Length: 5, FixedLengthPadded: true, CompressedUnicode: true}
	buf, err := EncodeText("ab", p)
	require.NoError(t, err)
	got, err := DecodeText(buf)
	require.NoError(t, err)
	assert.Equal(t, "ab   ", got)
}

func TestValueRoundTrip_GUID(t *testing.T) {
	g := uuid.New()
	v := NewGUID(g)
	got := roundTrip(t, v, Params{})
	assert.Equal(t, g, got.GUID())
}

func TestParseCanonicalGUID(t *testing.T) {
	g := uuid.New()
	s := CanonicalGUID(g)
	parsed, err := ParseGUID(s)
	require.NoError(t, err)
	assert.Equal(t, g, parsed)

	// Accepts stray leading and trailing whitespace.
	parsed2, err := ParseGUID("  " + s + "  ")
	require.NoError(t, err)
	assert.Equal(t, g, parsed2)
}

func TestValueRoundTrip_DateTime(t *testing.T) {
	// R4: date round-trip is millisecond-exact across a wide range
	// straddling the Jet epoch, stepping by a non-round increment.
	base := jetEpoch.Add(-100_000_000 * time.Millisecond)
	for i := 0; i < 200; i++ {
		want := base.Add(time.Duration(i) * 37 * time.Millisecond)
		v := NewDateTime(want)
		got := roundTrip(t, v, Params{})
		assert.True(t, want.Equal(got.Time()), "iteration %d: want %v got %v", i, want, got.Time())
	}
}

func TestValueRoundTrip_Bool(t *testing.T) {
	assert.Equal(t, true, NewBool(true).Raw())
	assert.Equal(t, false, NewBool(false).Raw())
}

func TestKeepAndAutoNumberSentinels(t *testing.T) {
	assert.True(t, Keep().IsKeep())
	assert.False(t, Keep().IsAutoNumberRequest())
	assert.True(t, AutoNumberRequested().IsAutoNumberRequest())
	assert.False(t, AutoNumberRequested().IsKeep())

	n := Null(TypeInt32)
	assert.True(t, n.IsNull())
	assert.Nil(t, n.Raw())
}

func TestValueRoundTrip_ComplexType(t *testing.T) {
	// A complex-type cell is a 4-byte foreign key into the hidden
	// complex-value table.
	v := NewInt(TypeComplexType, 42)
	got := roundTrip(t, v, Params{})
	assert.Equal(t, int64(42), got.Int())
	assert.Equal(t, 4, TypeComplexType.FixedWidth())
}
