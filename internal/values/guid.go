package values

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// ParseGUID accepts "{XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX}" with
// leading/trailing whitespace and arbitrary inner case.
func ParseGUID(s string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	g, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.UUID{}, jeterr.Wrap(err, jeterr.ValueOutOfRange, "parse GUID %q", s)
	}
	return g, nil
}

// CanonicalGUID renders g in the canonical upper-case braced form the
// original product emits.
func CanonicalGUID(g uuid.UUID) string {
	return fmt.Sprintf("{%s}", strings.ToUpper(g.String()))
}

// EncodeGUID returns the 16 raw bytes as stored by the original product:
// the same byte order uuid.UUID already uses (big-endian fields).
func EncodeGUID(g uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, g[:])
	return b
}

// DecodeGUID is the inverse of EncodeGUID.
func DecodeGUID(buf []byte) (uuid.UUID, error) {
	if len(buf) < 16 {
		return uuid.UUID{}, jeterr.New(jeterr.CorruptedFormat, "short GUID field")
	}
	var g uuid.UUID
	copy(g[:], buf[:16])
	return g, nil
}

// NewAutoGUID produces a fresh random (v4) GUID for GUID auto-number
// columns.
func NewAutoGUID() uuid.UUID {
	return uuid.New()
}
