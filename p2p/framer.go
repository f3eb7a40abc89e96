package p2p

import (
	"github.com/btcsuite/btcd/wire"
)

// Framer turns a byte stream into a sequence of framed Messages. It
// is a pull decoder: the caller hands it bytes as they arrive over
// the wire via Feed, then drains as many complete messages as are
// buffered via repeated Next calls. Next never blocks on I/O; it only
// reports what Feed has already made available, so a caller fully
// controls backpressure by choosing when to read off the socket.
type Framer struct {
	magic      wire.BitcoinNet
	maxPayload uint32

	buf []byte
}

// NewFramer constructs a Framer that only accepts messages carrying
// magic, and rejects any payload longer than maxPayload.
func NewFramer(magic wire.BitcoinNet, maxPayload uint32) *Framer {
	return &Framer{magic: magic, maxPayload: maxPayload}
}

// Feed appends newly read bytes to the framer's internal buffer.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Next attempts to pull one complete message out of the buffered
// bytes. It returns (nil, nil, false) when fewer than a full message
// is currently buffered; that's not an error, just "come back after the
// next Feed". A non-nil error is terminal: the stream is desynchronized
// and the caller should close the connection.
func (f *Framer) Next() (Message, bool, error) {
	if len(f.buf) < HeaderSize {
		return nil, false, nil
	}

	header, err := decodeHeader(f.buf[:HeaderSize], f.magic, f.maxPayload)
	if err != nil {
		return nil, false, err
	}

	total := HeaderSize + int(header.Length)
	if len(f.buf) < total {
		return nil, false, nil
	}

	body := f.buf[HeaderSize:total]
	msg, err := decodePayload(header.Command, body, header.Checksum)
	if err != nil {
		return nil, false, err
	}

	// Advance past the consumed frame. Copy the remainder down so the
	// backing array doesn't grow unbounded across a long-lived
	// connection.
	remaining := len(f.buf) - total
	copy(f.buf, f.buf[total:])
	f.buf = f.buf[:remaining]

	return msg, true, nil
}

// Buffered reports how many bytes are currently held but not yet
// resolved into a complete message.
func (f *Framer) Buffered() int {
	return len(f.buf)
}
