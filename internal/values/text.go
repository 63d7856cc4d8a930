package values

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// compressionHeader marks a TEXT field as one-byte-per-character
// compressed-unicode rather than raw UCS-2.
var compressionHeader = [2]byte{0xFF, 0xFE}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func padRunes(runes []rune, p Params) []rune {
	if !p.FixedLengthPadded || p.Length <= len(runes) {
		return runes
	}
	padded := make([]rune, p.Length)
	copy(padded, runes)
	for i := len(runes); i < p.Length; i++ {
		padded[i] = ' '
	}
	return padded
}

// EncodeText implements the format's TEXT rule: if compressed-unicode is
// enabled and every code unit fits in one byte, emit a 2-byte compression
// header plus 1 byte per character; otherwise emit raw 16-bit code units.
// Fixed-length text columns are space-padded to their declared length.
func EncodeText(s string, p Params) ([]byte, error) {
	runes := padRunes([]rune(s), p)

	compressible := p.CompressedUnicode
	for _, r := range runes {
		if r > 0xFF {
			compressible = false
			break
		}
	}

	if compressible {
		out := make([]byte, 2+len(runes))
		out[0], out[1] = compressionHeader[0], compressionHeader[1]
		for i, r := range runes {
			out[2+i] = byte(r)
		}
		return out, nil
	}

	raw, err := utf16LE.NewEncoder().Bytes([]byte(string(runes)))
	if err != nil {
		return nil, jeterr.Wrap(err, jeterr.ValueOutOfRange, "encode TEXT to UCS-2")
	}
	return raw, nil
}

// DecodeText is the inverse of EncodeText.
func DecodeText(buf []byte) (string, error) {
	if len(buf) >= 2 && buf[0] == compressionHeader[0] && buf[1] == compressionHeader[1] {
		runes := make([]rune, len(buf)-2)
		for i, b := range buf[2:] {
			runes[i] = rune(b)
		}
		return string(runes), nil
	}
	out, err := utf16LE.NewDecoder().Bytes(buf)
	if err != nil {
		return "", jeterr.Wrap(err, jeterr.CorruptedFormat, "decode UCS-2 TEXT")
	}
	return string(out), nil
}
