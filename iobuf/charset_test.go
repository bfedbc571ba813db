package iobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharsetRecoderPassesThroughUTF8(t *testing.T) {
	r, err := NewCharsetRecoder("utf-8", "utf-8")
	require.NoError(t, err)
	out, err := r.Convert([]byte("héllo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("héllo"), out)
}

func TestCharsetRecoderTranscodesLatin1ToUTF8(t *testing.T) {
	r, err := NewCharsetRecoder("iso-8859-1", "utf-8")
	require.NoError(t, err)
	// 0xE9 is 'é' in ISO-8859-1.
	out, err := r.Convert([]byte{0xE9})
	require.NoError(t, err)
	assert.Equal(t, "é", string(out))
}

func TestCharsetRecoderUnknownSourceFallsBackRatherThanErroring(t *testing.T) {
	_, err := NewCharsetRecoder("not-a-real-charset", "utf-8")
	assert.NoError(t, err)
}

func TestCharsetRecoderFlushEmptyWhenNothingPending(t *testing.T) {
	r, err := NewCharsetRecoder("utf-8", "utf-8")
	require.NoError(t, err)
	_, err = r.Convert([]byte("complete"))
	require.NoError(t, err)
	tail, err := r.Flush()
	require.NoError(t, err)
	assert.Empty(t, tail)
}
