package jetdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/table"
	"github.com/jahlborn/jackcess-sub007/internal/values"
)

// The types below re-export the internal/{schema,table,row,values} surface
// a caller needs to describe a table and work with Table/Cursor, so that
// nothing outside this module ever needs to import an internal path
// directly.

type (
	// Table is one open table: metadata, row CRUD, index lookup.
	Table = table.Table
	// TableScanCursor walks a table's rows in physical page/row order.
	TableScanCursor = table.TableScanCursor
	// IndexCursor walks an index's B-tree leaves in key order.
	IndexCursor = table.IndexCursor
	// Savepoint captures a cursor's position for later Restore.
	Savepoint = table.Savepoint
	// Pattern is an equality predicate for FindFirstRow.
	Pattern = table.Pattern

	// TableDef is a table's static shape.
	TableDef = schema.TableDef
	// Column is one column definition.
	Column = schema.Column
	// ColumnFlags mirrors the per-column flag set.
	ColumnFlags = schema.ColumnFlags
	// ComplexType describes a multi-value/attachment/version-history column.
	ComplexType = schema.ComplexType
	// AutoNumberKind distinguishes the auto-number flavors.
	AutoNumberKind = schema.AutoNumberKind
	// Index is one logical index definition.
	Index = schema.Index
	// IndexColumn is one (column, ascending?) tuple within an index.
	IndexColumn = schema.IndexColumn
	// ForeignKeyRef names an index's foreign-key target.
	ForeignKeyRef = schema.ForeignKeyRef
	// Relationship describes one foreign-key relationship.
	Relationship = schema.Relationship

	// DataType enumerates every supported column type.
	DataType = values.DataType
	// Params carries column-specific codec parameters.
	Params = values.Params
	// Value is one column value.
	Value = values.Value
	// RowId addresses one physical row.
	RowId = row.Id
)

const (
	AutoNumberNone        = schema.AutoNumberNone
	AutoNumberLong        = schema.AutoNumberLong
	AutoNumberGUID        = schema.AutoNumberGUID
	AutoNumberComplexType = schema.AutoNumberComplexType
)

const (
	TypeBoolean     = values.TypeBoolean
	TypeByte        = values.TypeByte
	TypeInt16       = values.TypeInt16
	TypeInt32       = values.TypeInt32
	TypeInt64       = values.TypeInt64
	TypeFloat32     = values.TypeFloat32
	TypeDouble      = values.TypeDouble
	TypeNumeric     = values.TypeNumeric
	TypeCurrency    = values.TypeCurrency
	TypeText        = values.TypeText
	TypeMemo        = values.TypeMemo
	TypeOLE         = values.TypeOLE
	TypeDateTime    = values.TypeDateTime
	TypeGUID        = values.TypeGUID
	TypeComplexType = values.TypeComplexType
	TypeUnsupported = values.TypeUnsupported
)

// Forward and Backward select a cursor's traversal direction.
var (
	Forward  = table.Forward
	Backward = table.Backward
)

// KeepValue is the update-row "leave this column alone" sentinel.
var KeepValue = row.KeepValue

// AutoNumberRequested is the add-row "engine-generated value" sentinel.
func AutoNumberRequested() Value { return values.AutoNumberRequested() }

// Null returns the SQL NULL value for the given column type.
func Null(t DataType) Value { return values.Null(t) }

// The constructors below build Value literals for every supported column
// type, re-exported so callers never construct internal/values
// types directly.
func NewBool(b bool) Value                           { return values.NewBool(b) }
func NewInt(t DataType, i int64) Value               { return values.NewInt(t, i) }
func NewFloat(t DataType, f float64) Value           { return values.NewFloat(t, f) }
func NewText(t DataType, s string) Value             { return values.NewText(t, s) }
func NewBytes(t DataType, b []byte) Value            { return values.NewBytes(t, b) }
func NewDecimal(t DataType, d decimal.Decimal) Value { return values.NewDecimal(t, d) }
func NewDateTime(t time.Time) Value                  { return values.NewDateTime(t) }
func NewGUID(g uuid.UUID) Value                      { return values.NewGUID(g) }
