package buffer

// ReadSize is the size of the scratch buffer a peer session's inbound
// task reads socket bytes into before handing them to the framer. It
// is independent of the framer's configured maximum payload length;
// a session never needs to hold a whole oversized message in one
// buffer, only enough to keep the read syscalls off the hot path.
const ReadSize = 16 * 1024

// Read is a static byte array used as a pooled read-chunk buffer for
// a peer session's socket-read loop.
type Read [ReadSize]byte

// Recycle zeroes the Read, making it fresh for another use.
func (b *Read) Recycle() {
	RecycleSlice(b[:])
}
