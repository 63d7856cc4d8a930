package page

// CodecHandler is the pluggable per-page encrypt/decrypt contract. The channel guarantees pageNo != 0 is passed to both methods
// (page 0 only ever goes through the header mask), and honors the two
// capability bits when deciding how to perform partial writes and reads.
type CodecHandler interface {
	DecodePage(buf []byte, pageNo uint32) error
	EncodePage(page []byte, pageNo uint32, pageOffset int) ([]byte, error)
	CanEncodePartialPage() bool
	CanDecodeInline() bool
}

// identityCodec is the default pass-through handler: unencrypted files.
type identityCodec struct{}

func (identityCodec) DecodePage(buf []byte, pageNo uint32) error { return nil }

func (identityCodec) EncodePage(p []byte, pageNo uint32, pageOffset int) ([]byte, error) {
	return p, nil
}

func (identityCodec) CanEncodePartialPage() bool { return true }

func (identityCodec) CanDecodeInline() bool { return true }

// Identity returns the default, pass-through CodecHandler.
func Identity() CodecHandler { return identityCodec{} }
