package buffer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndBytesInMemory(t *testing.T) {
	b := New(1024)
	defer b.Close()

	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), b.Bytes())
	assert.Equal(t, int64(5), b.Size())
	assert.False(t, b.IsSpilled())
}

func TestWriteSpillsToDiskPastLimit(t *testing.T) {
	b := New(4)
	defer b.Close()

	_, err := b.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.True(t, b.IsSpilled())
	assert.Nil(t, b.Bytes())
	assert.Equal(t, int64(11), b.Size())

	path := b.Path()
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)

	r, err := b.Reader()
	require.NoError(t, err)
	defer r.Close()
	data := make([]byte, 11)
	n, _ := r.Read(data)
	assert.Equal(t, "hello world", string(data[:n]))
}

func TestCloseRemovesTempFileAndIsIdempotent(t *testing.T) {
	b := New(2)
	_, err := b.Write([]byte("spill me"))
	require.NoError(t, err)
	path := b.Path()

	require.NoError(t, b.Close())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	assert.NoError(t, b.Close())
}

func TestWriteAfterCloseFails(t *testing.T) {
	b := New(1024)
	require.NoError(t, b.Close())
	_, err := b.Write([]byte("x"))
	assert.Error(t, err)
}

func TestResetAllowsReuse(t *testing.T) {
	b := New(1024)
	_, err := b.Write([]byte("first"))
	require.NoError(t, err)

	require.NoError(t, b.Reset())
	assert.Equal(t, int64(0), b.Size())

	_, err = b.Write([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), b.Bytes())
}
