package iobuf

// Translator is a stage in the buffer pipeline: a pluggable byte-in/
// byte-out converter, per spec.md's Translator data model entry. The
// two concrete variants spec.md names are CharsetRecoder (charset.go)
// and Compressor/Decompressor (compress.go).
type Translator interface {
	// Convert transforms one chunk of input, returning the bytes to
	// append to the buffer's backing store.
	Convert(in []byte) (out []byte, err error)

	// Flush is called once, from PutEOF, to drain any internal state
	// (e.g. a multi-byte charset sequence, or a compressor's trailer).
	Flush() (out []byte, err error)
}
