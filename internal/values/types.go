// Package values implements the per-datatype value codecs: the physical
// byte form of every supported Jet column type, fixed so that files stay
// readable by the original product.
package values

import "fmt"

// DataType enumerates every supported column type.
type DataType byte

const (
	TypeBoolean DataType = iota
	TypeByte             // 8-bit unsigned
	TypeInt16
	TypeInt32
	TypeInt64 // "BigInt"
	TypeFloat32
	TypeDouble
	TypeNumeric // fixed-point decimal(precision, scale)
	TypeCurrency
	TypeText // compressed-ASCII-or-raw-UCS2
	TypeMemo // long text, inline or overflow
	TypeOLE  // long binary, inline or overflow
	TypeDateTime
	TypeGUID
	TypeComplexType // foreign key into a hidden multi-value/attachment table
	TypeUnsupported // opaque bytes, preserved verbatim

	// typeKeepSentinel is never a real column type; it tags the UpdateRow
	// "leave this column alone" sentinel value. Kept last and
	// unexported so it can never collide with a schema.Column's Type.
	typeKeepSentinel

	// typeAutoNumberSentinel tags the AddRow "engine-generated value"
	// sentinel.
	typeAutoNumberSentinel
)

func (t DataType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeByte:
		return "BYTE"
	case TypeInt16:
		return "INT"
	case TypeInt32:
		return "LONG"
	case TypeInt64:
		return "BIGINT"
	case TypeFloat32:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeNumeric:
		return "NUMERIC"
	case TypeCurrency:
		return "CURRENCY"
	case TypeText:
		return "TEXT"
	case TypeMemo:
		return "MEMO"
	case TypeOLE:
		return "OLE"
	case TypeDateTime:
		return "DATETIME"
	case TypeGUID:
		return "GUID"
	case TypeComplexType:
		return "COMPLEX_TYPE"
	default:
		return fmt.Sprintf("UNSUPPORTED(%d)", byte(t))
	}
}

// FixedWidth returns the on-disk size for types with a fixed width, or -1
// for variable-length types (text/memo/OLE/unsupported).
func (t DataType) FixedWidth() int {
	switch t {
	case TypeBoolean:
		return 0 // stored as a NULL-bitmap bit, not a byte
	case TypeByte:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32:
		return 4
	case TypeInt64:
		return 8
	case TypeFloat32:
		return 4
	case TypeDouble:
		return 8
	case TypeCurrency:
		return 8
	case TypeNumeric:
		return 17
	case TypeDateTime:
		return 8
	case TypeGUID:
		return 16
	case TypeComplexType:
		return 4 // a foreign key into the hidden complex-value table
	default:
		return -1
	}
}

// IsLongValue reports whether this type's payload may overflow to a
// long-value page chain.
func (t DataType) IsLongValue() bool {
	return t == TypeMemo || t == TypeOLE
}

// Params carries the column-specific parameters the codec needs beyond the
// bare DataType: declared length, numeric precision/scale, and the text
// flags.
type Params struct {
	Length            int  // declared max length, for TEXT/MEMO/OLE/fixed-text padding
	Precision         int  // NUMERIC precision
	Scale             int  // NUMERIC scale
	CompressedUnicode bool // TEXT may use the 1-byte-per-char compressed form
	FixedLengthPadded bool // fixed-width TEXT columns are space-padded
}
