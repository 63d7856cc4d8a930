// Package format describes the static, per-version layout of a Jet database
// file: page size, size limits, byte order,
// charset, header mask, and the offsets of well-known catalog fields.
package format

import "fmt"

// Version identifies one on-disk Jet format revision.
type Version int

const (
	VersionJet3 Version = iota // legacy.mdb, read-only in this engine
	VersionJet4                //.mdb, Access 2000-2003
	VersionJet5                //.accdb, Access 2007+
)

func (v Version) String() string {
	switch v {
	case VersionJet3:
		return "Jet3"
	case VersionJet4:
		return "Jet4"
	case VersionJet5:
		return "Jet5 (ACE)"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// Descriptor is the static description of one format version.
type Descriptor struct {
	Version      Version
	PageSize     int
	MaxRowSize   int
	MaxDBSizeMB  int64
	ReadOnly     bool
	Charset      string
	HeaderMask   []byte // XOR mask applied to page 0, starting at MaskOffset
	MaskOffset   int
	SignatureOff int    // offset of the format signature within page 0 (post-mask)
	Signature    []byte // expected bytes at SignatureOff

	// Catalog row field offsets (into the system catalog's definition page).
	CatalogRootPageOffset int // offset of the catalog table's root page number in the header
	PasswordOffset        int
	PasswordLength        int
}

// Supports reports whether this format version can represent the named
// logical column type. Jet3 (the oldest supported format) lacks a few
// newer scalar types that later formats added.
func (d *Descriptor) Supports(dataType string) bool {
	if d.Version > VersionJet3 {
		return true
	}
	switch dataType {
	case "COMPLEX_TYPE", "BIGINT", "GUID_AUTO":
		return false
	default:
		return true
	}
}

// descriptors holds the canonical, hand-verified descriptor for every
// supported format version. These byte offsets and the mask bytes are
// format-critical: an implementation that gets them wrong produces files
// the original product cannot open, so they must never be inferred.
var descriptors = map[Version]*Descriptor{
	VersionJet3: {
		Version:               VersionJet3,
		PageSize:              2048,
		MaxRowSize:            2012,
		MaxDBSizeMB:           1024,
		ReadOnly:              true,
		Charset:               "windows-1252",
		HeaderMask:            []byte{0xB5, 0xC6, 0x37, 0x30, 0x2D, 0x30, 0x82, 0x67, 0xB8, 0xF4, 0x2B, 0x13, 0x6C, 0x78},
		MaskOffset:            0x18,
		SignatureOff:          0x14,
		Signature:             []byte{0x00, 0x01, 0x00, 0x00},
		CatalogRootPageOffset: 0x04,
		PasswordOffset:        0x42,
		PasswordLength:        20,
	},
	VersionJet4: {
		Version:               VersionJet4,
		PageSize:              4096,
		MaxRowSize:            4060,
		MaxDBSizeMB:           2048,
		ReadOnly:              false,
		Charset:               "UTF-16LE",
		HeaderMask:            []byte{0x6B, 0x62, 0x03, 0x00, 0x6B, 0x79, 0x91, 0x19, 0x63, 0xF0, 0x6B, 0x63, 0x49, 0x6A},
		MaskOffset:            0x18,
		SignatureOff:          0x14,
		Signature:             []byte{0x00, 0x01, 0x00, 0x00},
		CatalogRootPageOffset: 0x04,
		PasswordOffset:        0x42,
		PasswordLength:        40,
	},
	VersionJet5: {
		Version:               VersionJet5,
		PageSize:              4096,
		MaxRowSize:            4060,
		MaxDBSizeMB:           2097152,
		ReadOnly:              false,
		Charset:               "UTF-16LE",
		HeaderMask:            []byte{0x6B, 0x62, 0x03, 0x00, 0x6B, 0x79, 0x91, 0x19, 0x63, 0xF0, 0x6B, 0x63, 0x49, 0x6A},
		MaskOffset:            0x18,
		SignatureOff:          0x14,
		Signature:             []byte{0x00, 0x05, 0x01, 0x00},
		CatalogRootPageOffset: 0x04,
		PasswordOffset:        0x42,
		PasswordLength:        40,
	},
}

// For returns the descriptor for a known version.
func For(v Version) (*Descriptor, bool) {
	d, ok := descriptors[v]
	return d, ok
}

// DetectFromPageZero matches the given (already mask-reversed) page-0 bytes
// against every known format's signature, returning the matching version.
// Formats are tried newest first, so where two versions share a signature
// (Jet3 and Jet4) the newer one is returned.
func DetectFromPageZero(unmasked []byte) (Version, bool) {
	for _, v := range []Version{VersionJet5, VersionJet4, VersionJet3} {
		d := descriptors[v]
		if d.SignatureOff+len(d.Signature) > len(unmasked) {
			continue
		}
		match := true
		for i, b := range d.Signature {
			if unmasked[d.SignatureOff+i] != b {
				match = false
				break
			}
		}
		if match {
			return v, true
		}
	}
	return 0, false
}

// Default returns the format new databases are created with unless a
// caller specifies otherwise.
func Default() *Descriptor {
	d, _ := For(VersionJet5)
	return d
}
