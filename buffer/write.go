package buffer

// WriteSize is the size of the scratch buffer a peer session's
// outbound task encodes a single Message into before writing it to
// the socket.
const WriteSize = 16 * 1024

// Write is a static byte array used as a pooled encode-scratch buffer
// for a peer session's socket-write path.
type Write [WriteSize]byte

// Recycle zeroes the Write, making it fresh for another use.
func (b *Write) Recycle() {
	RecycleSlice(b[:])
}
