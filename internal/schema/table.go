package schema

// TableDef is a table's static shape: its name and column/index/
// relationship lists, independent of any page or row state.
type TableDef struct {
	Name          string
	Columns       []*Column
	Indexes       []*Index
	Relationships []*Relationship
}

// ColumnByName performs a case-insensitive lookup.
func (t *TableDef) ColumnByName(name string) (*Column, int) {
	for i, c := range t.Columns {
		if NameEqualFold(c.Name, name) {
			return c, i
		}
	}
	return nil, -1
}

// PrimaryIndex returns the table's primary-key index, if any.
func (t *TableDef) PrimaryIndex() *Index {
	for _, idx := range t.Indexes {
		if idx.Primary {
			return idx
		}
	}
	return nil
}
