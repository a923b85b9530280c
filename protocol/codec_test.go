package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFlusher records the committed bytes of every flush, standing in for
// the socket write path.
type fakeFlusher struct {
	buf     *FrameBuffer
	flushes [][]byte
	fail    error
}

func (f *fakeFlusher) Flush() error {
	if f.fail != nil {
		return f.fail
	}
	if f.buf.Ready() > 0 {
		f.flushes = append(f.flushes, append([]byte(nil), f.buf.ReadySlice()...))
	}
	FlushDone(f.buf)
	return nil
}

func newWriter(capacity int) (*Writer, *fakeFlusher) {
	buf := NewFrameBuffer(capacity)
	fl := &fakeFlusher{buf: buf}
	return &Writer{Buf: buf, Fl: fl}, fl
}

func drainAll(t *testing.T, buf *FrameBuffer) []Header {
	t.Helper()
	var out []Header
	require.NoError(t, Drain(buf, func(h Header, payload []byte) error {
		require.Equal(t, int(h.Size), len(payload))
		out = append(out, h)
		return nil
	}))
	return out
}

func TestWriterRoundTrip(t *testing.T) {
	w, fl := newWriter(256)

	require.NoError(t, w.Begin(3))
	require.NoError(t, w.Append([]byte("hello ")))
	require.NoError(t, w.Append([]byte("world")))
	require.NoError(t, w.Finish())
	assert.Empty(t, fl.flushes, "nothing should flush while everything fits")

	var got []byte
	var gotHdr Header
	require.NoError(t, Drain(w.Buf, func(h Header, payload []byte) error {
		gotHdr = h
		got = append([]byte(nil), payload...)
		return nil
	}))
	assert.Equal(t, uint32(3), gotHdr.Chan)
	assert.Equal(t, CodeData, gotHdr.Code)
	assert.Equal(t, []byte("hello world"), got)
	assert.Zero(t, w.Buf.Ready(), "drain must consume the complete message")
}

func TestWriterSequenceErrors(t *testing.T) {
	w, _ := newWriter(128)

	assert.ErrorIs(t, w.Append([]byte("x")), ErrNoMessage)
	assert.ErrorIs(t, w.Finish(), ErrNoMessage)
	assert.Zero(t, w.Buf.Ready(), "failed calls must not corrupt the buffer")

	require.NoError(t, w.Begin(1))
	assert.ErrorIs(t, w.Begin(1), ErrMessageOpen)
}

func TestOpenMessageInvisibleUntilFinish(t *testing.T) {
	w, _ := newWriter(128)

	require.NoError(t, w.Begin(5))
	require.NoError(t, w.Append([]byte("abcd")))
	assert.Zero(t, w.Buf.Ready(), "open message bytes are not committed")
	assert.Empty(t, drainAll(t, w.Buf))

	require.NoError(t, w.Finish())
	assert.Equal(t, HeaderSize+4, w.Buf.Ready())
	hdrs := drainAll(t, w.Buf)
	require.Len(t, hdrs, 1)
	assert.Equal(t, uint32(5), hdrs[0].Chan)
}

func TestAppendOversizeFailsPermanently(t *testing.T) {
	const capacity = 64
	for _, size := range []int{capacity - HeaderSize + 1, capacity, 4 * capacity} {
		w, fl := newWriter(capacity)
		require.NoError(t, w.Begin(0))
		err := w.Append(make([]byte, size))
		assert.ErrorIs(t, err, ErrMessageTooLarge, "payload of %d bytes", size)
		assert.Empty(t, fl.flushes, "flushing cannot help a capacity violation")
	}
}

func TestAppendLargestFittingPayload(t *testing.T) {
	const capacity = 64
	w, _ := newWriter(capacity)
	require.NoError(t, w.Begin(0))
	require.NoError(t, w.Append(make([]byte, capacity-HeaderSize)))
	require.NoError(t, w.Finish())
	assert.Equal(t, capacity, w.Buf.Ready())
}

func TestImplicitFlushBeforeSecondChannel(t *testing.T) {
	const capacity = 64
	w, fl := newWriter(capacity)

	// Channel A fills the buffer to the brim.
	payloadA := make([]byte, capacity-HeaderSize)
	for i := range payloadA {
		payloadA[i] = 'a'
	}
	require.NoError(t, w.Begin(1))
	require.NoError(t, w.Append(payloadA))
	require.NoError(t, w.Finish())

	// Channel B cannot even fit a header: A's bytes must go out first.
	require.NoError(t, w.Begin(2))
	require.NoError(t, w.Append([]byte("bb")))
	require.NoError(t, w.Finish())

	require.Len(t, fl.flushes, 1)
	first := fl.flushes[0]
	require.GreaterOrEqual(t, len(first), HeaderSize)
	assert.Equal(t, uint32(1), ParseHeader(first).Chan,
		"channel A's message was sent before B's entered the buffer")

	hdrs := drainAll(t, w.Buf)
	require.Len(t, hdrs, 1)
	assert.Equal(t, uint32(2), hdrs[0].Chan, "only B's message remains buffered")
}

func TestFlushRelocatesOpenMessage(t *testing.T) {
	const capacity = 64
	w, fl := newWriter(capacity)

	require.NoError(t, w.Begin(1))
	require.NoError(t, w.Append(make([]byte, 20)))
	require.NoError(t, w.Finish())

	// Leave a message open, then force the implicit flush by appending
	// more than the remaining room.
	require.NoError(t, w.Begin(2))
	require.NoError(t, w.Append([]byte{9, 9}))
	require.NoError(t, w.Append(make([]byte, capacity-HeaderSize-10)))
	require.NoError(t, w.Finish())

	require.Len(t, fl.flushes, 1)
	assert.Equal(t, uint32(1), ParseHeader(fl.flushes[0]).Chan)

	var got []byte
	require.NoError(t, Drain(w.Buf, func(h Header, payload []byte) error {
		require.Equal(t, uint32(2), h.Chan)
		got = append([]byte(nil), payload...)
		return nil
	}))
	require.Len(t, got, 2+capacity-HeaderSize-10)
	assert.Equal(t, byte(9), got[0], "relocated bytes survive the flush intact")
	assert.Equal(t, byte(9), got[1])
}

func TestWriterPropagatesFlushFailure(t *testing.T) {
	w, fl := newWriter(32)
	fl.fail = errors.New("broken pipe")

	require.NoError(t, w.Begin(0))
	require.NoError(t, w.Append(make([]byte, 32-HeaderSize)))
	require.NoError(t, w.Finish())

	err := w.Begin(1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken pipe")
}

func TestDrainRejectsImpossibleSize(t *testing.T) {
	buf := NewFrameBuffer(64)
	wire := AppendMessage(nil, Header{Code: CodeData, Chan: 0}, make([]byte, 200))
	n := copy(buf.Writable(), wire)
	buf.Extend(n)

	err := Drain(buf, func(Header, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestDrainRoundTripAcrossArbitrarySplits(t *testing.T) {
	type msg struct {
		ch      uint32
		payload string
	}
	sent := []msg{
		{1, "alpha"}, {2, "b"}, {1, ""}, {7, "a longer payload crossing chunk boundaries"},
		{3, "tail"}, {2, "x"},
	}
	var wire []byte
	for _, m := range sent {
		wire = AppendMessage(wire, Header{Code: CodeData, Chan: m.ch}, []byte(m.payload))
	}

	for _, chunk := range []int{1, 2, 3, 5, 7, 11, len(wire)} {
		buf := NewFrameBuffer(256)
		var got []msg
		for off := 0; off < len(wire); off += chunk {
			end := off + chunk
			if end > len(wire) {
				end = len(wire)
			}
			n := copy(buf.Writable(), wire[off:end])
			require.Equal(t, end-off, n, "chunk %d: inbound buffer ran out of room", chunk)
			buf.Extend(n)
			require.NoError(t, Drain(buf, func(h Header, payload []byte) error {
				got = append(got, msg{h.Chan, string(payload)})
				return nil
			}))
		}
		require.Equal(t, sent, got, "chunk size %d", chunk)
		assert.Zero(t, buf.Ready(), "chunk size %d: no tail may remain", chunk)
	}
}

func TestDisconnectCodeSurvivesTransit(t *testing.T) {
	buf := NewFrameBuffer(64)
	wire := AppendMessage(nil, Header{Code: CodeDisconnect, Chan: 4}, nil)
	n := copy(buf.Writable(), wire)
	buf.Extend(n)

	hdrs := drainAll(t, buf)
	require.Len(t, hdrs, 1)
	assert.Equal(t, CodeDisconnect, hdrs[0].Code)
	assert.Equal(t, uint32(4), hdrs[0].Chan)
}
