package values

import "github.com/jahlborn/jackcess-sub007/jeterr"

// EncodeInline encodes v's row-physical bytes for any type whose payload
// lives directly in the row (i.e. everything except MEMO/OLE long values,
// which RowStorage handles separately via LongValueRef). Boolean is
// handled by the row packer directly (it lives in the NULL bitmap), not
// here.
func EncodeInline(v Value, p Params) ([]byte, error) {
	switch v.typ {
	case TypeByte, TypeInt16, TypeInt32, TypeInt64, TypeComplexType, TypeFloat32, TypeDouble, TypeCurrency, TypeNumeric, TypeDateTime:
		return EncodeFixed(v, p)
	case TypeGUID:
		return EncodeGUID(v.guid), nil
	case TypeText:
		return EncodeText(v.s, p)
	case TypeOLE, TypeUnsupported:
		return v.bs, nil
	default:
		return nil, jeterr.New(jeterr.InvalidArgument, "EncodeInline: unsupported type %v", v.typ)
	}
}

// DecodeInline is the inverse of EncodeInline.
func DecodeInline(t DataType, buf []byte, p Params) (Value, error) {
	switch t {
	case TypeByte, TypeInt16, TypeInt32, TypeInt64, TypeComplexType, TypeFloat32, TypeDouble, TypeCurrency, TypeNumeric, TypeDateTime:
		return DecodeFixed(t, buf, p)
	case TypeGUID:
		g, err := DecodeGUID(buf)
		if err != nil {
			return Value{}, err
		}
		return NewGUID(g), nil
	case TypeText:
		s, err := DecodeText(buf)
		if err != nil {
			return Value{}, err
		}
		return NewText(t, s), nil
	case TypeOLE, TypeUnsupported:
		cp := append([]byte(nil), buf...)
		return NewBytes(t, cp), nil
	default:
		return Value{}, jeterr.New(jeterr.InvalidArgument, "DecodeInline: unsupported type %v", t)
	}
}
