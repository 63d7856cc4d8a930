package index

import (
	"math"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jahlborn/jackcess-sub007/internal/values"
)

// assertOrderPreserving checks order preservation: for every ordered
// pair (a, b) with a < b in logical order, encode(a) < encode(b) under
// unsigned-byte lexicographic comparison.
func assertOrderPreserving(t *testing.T, vals []values.Value, less func(i, j int) bool) {
	t.Helper()
	encoded := make([][]byte, len(vals))
	for i, v := range vals {
		enc, err := EncodeKeyComponent(v, true)
		require.NoError(t, err)
		encoded[i] = enc
	}
	for i := range vals {
		for j := range vals {
			if !less(i, j) {
				continue
			}
			assert.True(t, CompareKeys(encoded[i], encoded[j]) < 0,
				"expected encode(%v) < encode(%v)", vals[i].Raw(), vals[j].Raw())
		}
	}
}

func TestKeyOrder_Int32(t *testing.T) {
	nums := []int64{0, -10, 3844, -2147483647, 65000, -6489273}
	vals := make([]values.Value, len(nums))
	for i, n := range nums {
		vals[i] = values.NewInt(values.TypeInt32, n)
	}
	assertOrderPreserving(t, vals, func(i, j int) bool { return nums[i] < nums[j] })
}

func TestKeyOrder_Int64BigInt(t *testing.T) {
	nums := []int64{0, -10, 3844, -45309590834, 50392084913, 65000, -6489273}
	vals := make([]values.Value, len(nums))
	for i, n := range nums {
		vals[i] = values.NewInt(values.TypeInt64, n)
	}
	assertOrderPreserving(t, vals, func(i, j int) bool { return nums[i] < nums[j] })
}

func TestKeyOrder_Float(t *testing.T) {
	floats := []float64{-100.5, -0.0, 0.0, 0.1, 3.14159, 1e10, -1e10}
	vals := make([]values.Value, len(floats))
	for i, f := range floats {
		vals[i] = values.NewFloat(values.TypeDouble, f)
	}
	assertOrderPreserving(t, vals, func(i, j int) bool { return floats[i] < floats[j] })

	// -0.0 and +0.0 must compare equal.
	negZero, _ := EncodeKeyComponent(values.NewFloat(values.TypeDouble, math.Copysign(0, -1)), true)
	posZero, _ := EncodeKeyComponent(values.NewFloat(values.TypeDouble, 0.0), true)
	assert.Equal(t, 0, CompareKeys(negZero, posZero))
}

func TestKeyOrder_Numeric(t *testing.T) {
	strs := []string{"-999999999999.9999", "-1", "0", "0.0001", "123456789012.3456"}
	vals := make([]values.Value, len(strs))
	for i, s := range strs {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		vals[i] = values.NewDecimal(values.TypeNumeric, d)
	}
	assertOrderPreserving(t, vals, func(i, j int) bool {
		di, _ := decimal.NewFromString(strs[i])
		dj, _ := decimal.NewFromString(strs[j])
		return di.LessThan(dj)
	})
}

func TestKeyOrder_Text(t *testing.T) {
	words := []string{"", "A", "AA", "AB", "B", "a", "z"}
	vals := make([]values.Value, len(words))
	for i, w := range words {
		vals[i] = values.NewText(values.TypeText, w)
	}
	assertOrderPreserving(t, vals, func(i, j int) bool { return words[i] < words[j] })
}

func TestKeyOrder_NullSortsFirst(t *testing.T) {
	n := values.Null(values.TypeInt32)
	v := values.NewInt(values.TypeInt32, -1<<31+1)
	ne, err := EncodeKeyComponent(n, true)
	require.NoError(t, err)
	ve, err := EncodeKeyComponent(v, true)
	require.NoError(t, err)
	assert.True(t, CompareKeys(ne, ve) < 0)
}

func TestKeyOrder_DescendingInvertsOrder(t *testing.T) {
	a := values.NewInt(values.TypeInt32, 1)
	b := values.NewInt(values.TypeInt32, 2)
	ascA, _ := EncodeKeyComponent(a, true)
	ascB, _ := EncodeKeyComponent(b, true)
	descA, _ := EncodeKeyComponent(a, false)
	descB, _ := EncodeKeyComponent(b, false)
	assert.True(t, CompareKeys(ascA, ascB) < 0)
	assert.True(t, CompareKeys(descA, descB) > 0)
}

func TestCompositeKeyConcatenation(t *testing.T) {
	vals := []values.Value{
		values.NewInt(values.TypeInt32, 7),
		values.NewText(values.TypeText, "foo"),
	}
	asc := []bool{true, true}
	k1, err := EncodeCompositeKey(vals, asc)
	require.NoError(t, err)

	vals2 := []values.Value{
		values.NewInt(values.TypeInt32, 7),
		values.NewText(values.TypeText, "fop"),
	}
	k2, err := EncodeCompositeKey(vals2, asc)
	require.NoError(t, err)
	assert.True(t, CompareKeys(k1, k2) < 0)
}

func TestCompareKeysIsUnsignedByteOrder(t *testing.T) {
	// 0x7F < 0x80 as unsigned bytes; a naive signed-byte comparator would
	// get this backward.
	a := []byte{0x7F}
	b := []byte{0x80}
	assert.True(t, CompareKeys(a, b) < 0)

	pairs := [][2]byte{{0x00, 0xFF}, {0x01, 0x02}, {0x7E, 0x81}}
	for _, p := range pairs {
		assert.True(t, CompareKeys([]byte{p[0]}, []byte{p[1]}) < 0)
	}

	keys := [][]byte{{0x80}, {0x01}, {0xFF}, {0x00}, {0x7F}}
	sorted := append([][]byte(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return CompareKeys(sorted[i], sorted[j]) < 0 })
	assert.Equal(t, []byte{0x00}, sorted[0])
	assert.Equal(t, []byte{0xFF}, sorted[len(sorted)-1])
}
