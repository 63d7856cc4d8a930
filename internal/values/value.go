package values

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LongValueRef points at an overflow payload stored outside the row
// itself: a long-value cell is inline, single-page, or multi-page.
type LongValueRef struct {
	Inline    []byte // non-nil when the payload fit inline
	Length    uint32
	PageNo    uint32 // single/multi-page: pointer to the long-value page
	RowNo     byte   // row-in-page for the long-value pointer
	MultiPage bool   // true when PageNo points at an indirection page
}

func (r LongValueRef) IsInline() bool { return r.Inline != nil }

// Value is a single column value, tagged by DataType, holding exactly the
// Go-native representation that type's codec round-trips to bytes.
type Value struct {
	typ  DataType
	null bool

	i    int64
	f    float64
	b    bool
	s    string
	bs   []byte
	dec  decimal.Decimal
	t    time.Time
	guid uuid.UUID
	long LongValueRef
}

func (v Value) Type() DataType { return v.typ }
func (v Value) IsNull() bool   { return v.null }

// Raw returns the Go-native value backing v (nil for NULL), suitable for
// passing back to callers through the API surface.
func (v Value) Raw() interface{} {
	if v.null {
		return nil
	}
	switch v.typ {
	case TypeBoolean:
		return v.b
	case TypeByte, TypeInt16, TypeInt32, TypeInt64, TypeComplexType:
		return v.i
	case TypeFloat32, TypeDouble:
		return v.f
	case TypeNumeric, TypeCurrency:
		return v.dec
	case TypeText, TypeMemo:
		return v.s
	case TypeOLE, TypeUnsupported:
		return v.bs
	case TypeDateTime:
		return v.t
	case TypeGUID:
		return v.guid
	default:
		return v.bs
	}
}

func (v Value) Int() int64               { return v.i }
func (v Value) Float64() float64         { return v.f }
func (v Value) Bool() bool               { return v.b }
func (v Value) String() string           { return v.s }
func (v Value) Bytes() []byte            { return v.bs }
func (v Value) Decimal() decimal.Decimal { return v.dec }
func (v Value) Time() time.Time          { return v.t }
func (v Value) GUID() uuid.UUID          { return v.guid }
func (v Value) LongRef() LongValueRef    { return v.long }

func Null(t DataType) Value { return Value{typ: t, null: true} }

// Keep is the row.KeepValue sentinel's backing constructor: a Value no
// real column ever holds, letting UpdateRow test v.IsKeep() instead of
// comparing full Value structs (Value embeds a []byte field, so Go's ==
// cannot compare two Values directly).
func Keep() Value { return Value{typ: typeKeepSentinel} }

// IsKeep reports whether v is the UpdateRow "leave this column alone"
// sentinel.
func (v Value) IsKeep() bool { return v.typ == typeKeepSentinel }

// AutoNumberRequested is the AddRow "engine-generated value" sentinel.
// A caller passes this for an auto-number column
// to ask the engine to allocate the value instead of supplying one.
func AutoNumberRequested() Value { return Value{typ: typeAutoNumberSentinel} }

// IsAutoNumberRequest reports whether v is the AUTO_NUMBER sentinel.
func (v Value) IsAutoNumberRequest() bool { return v.typ == typeAutoNumberSentinel }

func NewBool(b bool) Value { return Value{typ: TypeBoolean, b: b} }

func NewInt(t DataType, i int64) Value { return Value{typ: t, i: i} }

func NewFloat(t DataType, f float64) Value { return Value{typ: t, f: f} }

func NewDecimal(t DataType, d decimal.Decimal) Value { return Value{typ: t, dec: d} }

func NewText(t DataType, s string) Value { return Value{typ: t, s: s} }

func NewBytes(t DataType, b []byte) Value { return Value{typ: t, bs: b} }

func NewDateTime(t time.Time) Value { return Value{typ: TypeDateTime, t: t} }

func NewGUID(g uuid.UUID) Value { return Value{typ: TypeGUID, guid: g} }

func NewLongValue(t DataType, ref LongValueRef) Value {
	v := Value{typ: t, long: ref}
	if ref.IsInline() {
		if t == TypeMemo {
			v.s = string(ref.Inline)
		} else {
			v.bs = ref.Inline
		}
	}
	return v
}

func (v Value) GoString() string { return fmt.Sprintf("%v(%v)", v.typ, v.Raw()) }
