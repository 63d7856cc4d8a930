// Package page implements the page channel and its codec hook:
// fixed-size paged I/O over a seekable file, header obfuscation on page
// 0, and a pluggable per-page encode/decode hook for encrypted format
// variants.
package page

import "github.com/jahlborn/jackcess-sub007/internal/format"

// Type enumerates the kinds of page this engine recognizes.
type Type byte

const (
	TypeHeader Type = iota
	TypeTableDefinition
	TypeData
	TypeIndexNode
	TypeIndexLeaf
	TypeUsageMap
	TypeLongValue
	TypeFree
)

// Number identifies a page by its 0-based position in the file.
type Number uint32

// InvalidPageMarker is written over a deallocated page's first four bytes.
var InvalidPageMarker = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

// Descriptor is re-exported for callers that only need page.Descriptor.
type Descriptor = format.Descriptor
