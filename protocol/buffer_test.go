package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferExtendAndCompact(t *testing.T) {
	buf := NewFrameBuffer(32)
	assert.Equal(t, 32, buf.Cap())
	assert.Zero(t, buf.Ready())
	assert.Len(t, buf.Writable(), 32)

	n := copy(buf.Writable(), []byte("0123456789"))
	buf.Extend(n)
	assert.Equal(t, 10, buf.Ready())
	assert.Equal(t, []byte("0123456789"), buf.ReadySlice())
	assert.Len(t, buf.Writable(), 22)

	// Consume the first 6 bytes; the tail moves to the front.
	buf.compact(6)
	assert.Equal(t, 4, buf.Ready())
	assert.Equal(t, []byte("6789"), buf.ReadySlice())

	buf.compact(4)
	assert.Zero(t, buf.Ready())
}

func TestFrameBufferExtendPastCapacityPanics(t *testing.T) {
	buf := NewFrameBuffer(8)
	buf.Extend(8)
	assert.Panics(t, func() { buf.Extend(1) })
}

func TestFrameBufferResize(t *testing.T) {
	buf := NewFrameBuffer(16)
	buf.Extend(5)

	// Same capacity keeps the backing array, state resets regardless.
	old := &buf.data[0]
	buf.Resize(16)
	assert.Zero(t, buf.Ready())
	assert.Same(t, old, &buf.data[0])

	buf.Resize(64)
	assert.Equal(t, 64, buf.Cap())
	assert.Zero(t, buf.Ready())
}

func TestFrameBufferCompleteFlushWithoutOpenMessage(t *testing.T) {
	buf := NewFrameBuffer(16)
	buf.Extend(10)
	buf.completeFlush()
	assert.Zero(t, buf.Ready())
	assert.False(t, buf.Open())
}

func TestFrameBufferResetDropsOpenMessage(t *testing.T) {
	w, _ := newWriter(64)
	require.NoError(t, w.Begin(1))
	require.NoError(t, w.Append([]byte("partial")))
	require.True(t, w.Buf.Open())

	w.Buf.Reset()
	assert.False(t, w.Buf.Open())
	assert.Zero(t, w.Buf.Ready())

	// The slot is fully reusable afterwards.
	require.NoError(t, w.Begin(2))
	require.NoError(t, w.Finish())
	assert.Equal(t, HeaderSize, w.Buf.Ready())
}
