package jetdb

import (
	"bytes"
	"encoding/gob"

	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/values"
)

// msysObjectsName is the well-known system catalog table's name, modeled on Access's own MSysObjects table.
const msysObjectsName = "MSysObjects"

// catalogTableDef is the fixed two-column shape of the system catalog
// table: one row per user table, its name plus a gob-encoded snapshot of
// everything Database needs to rebuild that table on reopen.
func catalogTableDef() *schema.TableDef {
	return &schema.TableDef{
		Name: msysObjectsName,
		Columns: []*schema.Column{
			{
				Name:     "Name",
				Ordinal:  0,
				Type:     values.TypeText,
				Nullable: false,
				Params:   values.Params{Length: 128, CompressedUnicode: true},
			},
			{
				Name:     "Definition",
				Ordinal:  1,
				Type:     values.TypeOLE,
				Nullable: false,
			},
		},
	}
}

// catalogRecord is the gob-encoded payload of one catalog row's Definition
// column. A table's owned-pages UsageMap and auto-number counters live
// only in memory while the file is open, so the
// catalog persists everything needed to reconstruct them on reopen.
type catalogRecord struct {
	Def            *schema.TableDef
	DataPages      []uint32
	LongValuePages []uint32
	AutoLong       map[int]int64
	ComplexSeq     int64

	// Linked tables: when LinkedPath is set the record is a
	// pointer into another database file and every other field but
	// Def.Name is unused.
	LinkedPath   string
	LinkedRemote string
}

func encodeCatalogRecord(r catalogRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCatalogRecord(b []byte) (catalogRecord, error) {
	var r catalogRecord
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return catalogRecord{}, err
	}
	return r, nil
}

// catalogMeta is the catalog table's own owned-pages membership, persisted
// directly in the file header (catalogMetaOffset) since the catalog can't
// record its own bookkeeping in itself without becoming circular.
type catalogMeta struct {
	DataPages      []uint32
	LongValuePages []uint32
}

func encodeCatalogMeta(m catalogMeta) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCatalogMeta(b []byte) (catalogMeta, error) {
	var m catalogMeta
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&m); err != nil {
		return catalogMeta{}, err
	}
	return m, nil
}
