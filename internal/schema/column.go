// Package schema holds table/column/index/relationship metadata: the
// description of a table's shape, independent of both the physical
// row/page encoding (internal/row) and the B-tree key encoding
// (internal/index).
package schema

import "github.com/jahlborn/jackcess-sub007/internal/values"

// AutoNumberKind distinguishes the three auto-number flavors.
type AutoNumberKind byte

const (
	AutoNumberNone AutoNumberKind = iota
	AutoNumberLong
	AutoNumberGUID
	AutoNumberComplexType
)

// ColumnFlags is the per-column flag set the format stores.
type ColumnFlags struct {
	AutoNumber          AutoNumberKind
	Hyperlink           bool
	Calculated          bool
	AppendOnly          bool
	CompressedUnicodeOK bool
	PartOfPrimaryKey    bool
}

// ComplexType describes a multi-value/attachment/version-history column,
// modeled as a foreign key into a hidden secondary table.
type ComplexType struct {
	Kind            string // "multi-value", "attachment", "version-history"
	SecondaryTable  string
	AutoNumberShare bool // shares the table's single complex-type auto-number counter
}

// Column is one column definition within a Table.
type Column struct {
	Name     string
	Ordinal  int
	Type     values.DataType
	Params   values.Params
	Nullable bool
	Flags    ColumnFlags
	Complex  *ComplexType
}

// NameEqualFold supports case-insensitive column lookup.
func NameEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
