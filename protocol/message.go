package protocol

import "encoding/binary"

// HeaderSize is the fixed length of the wire header in bytes.
const HeaderSize = 12

// Message codes carried in the header's code field.
const (
	// CodeData marks a regular payload-bearing message.
	CodeData uint32 = 1
	// CodeDisconnect signals that the sender is done with the channel.
	// The payload, if any, is ignored.
	CodeDisconnect uint32 = 2
)

// Header is the wire header preceding every payload. All fields are
// little-endian uint32 on the wire.
type Header struct {
	Size uint32 // payload length in bytes
	Code uint32 // CodeData or CodeDisconnect
	Chan uint32 // channel id, bounded by the configured channel budget
}

// ParseHeader decodes a header from b. b must hold at least HeaderSize
// bytes; Drain and client-side readers validate length before calling.
func ParseHeader(b []byte) Header {
	return Header{
		Size: binary.LittleEndian.Uint32(b[0:4]),
		Code: binary.LittleEndian.Uint32(b[4:8]),
		Chan: binary.LittleEndian.Uint32(b[8:12]),
	}
}

// putHeader encodes h into b. b must hold at least HeaderSize bytes.
func putHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Size)
	binary.LittleEndian.PutUint32(b[4:8], h.Code)
	binary.LittleEndian.PutUint32(b[8:12], h.Chan)
}

// AppendMessage encodes a complete message into dst and returns the extended
// slice. It is the one-shot form of the incremental writer, used by clients
// and tests that talk to a sockmux server.
func AppendMessage(dst []byte, h Header, payload []byte) []byte {
	h.Size = uint32(len(payload))
	var hdr [HeaderSize]byte
	putHeader(hdr[:], h)
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
