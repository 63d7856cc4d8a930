package schema

// IndexColumn is one (column, ascending?) tuple within an index's column
// tuple.
type IndexColumn struct {
	ColumnOrdinal int
	Ascending     bool
}

// ForeignKeyRef names the target of a foreign-key index and its cascade
// behavior.
type ForeignKeyRef struct {
	TargetTable   string
	TargetIndex   string
	CascadeUpdate bool
	CascadeDelete bool
}

// Index is one logical index definition on a Table. A logical
// index may share its physical IndexData with a sibling index that is its
// foreign-key companion in another table; IndexDataID identifies which
// physical B-tree backs it.
type Index struct {
	Name        string
	Columns     []IndexColumn
	Primary     bool
	Unique      bool
	IgnoreNulls bool
	ForeignKey  bool
	Reference   *ForeignKeyRef
	IndexDataID uint32 // root page number of the physical IndexData
}

// Relationship describes one foreign-key relationship a table participates
// in, independent of which index enforces it.
type Relationship struct {
	Name          string
	FromTable     string
	FromColumns   []string
	ToTable       string
	ToColumns     []string
	CascadeUpdate bool
	CascadeDelete bool
}
