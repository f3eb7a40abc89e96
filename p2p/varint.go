package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Bitcoin's CompactSize / varint encoding. btcd/wire applies the same
// rules internally inside the wire.Message implementations we delegate
// body decoding to; this copy exists because the non-minimal-encoding
// rule is a directly testable contract of this package on its own. The
// framer does not use it.
const (
	varInt16 = 0xfd
	varInt32 = 0xfe
	varInt64 = 0xff
)

// WriteVarInt writes val using the shortest possible encoding.
func WriteVarInt(w io.Writer, val uint64) error {
	var buf [9]byte
	switch {
	case val < varInt16:
		buf[0] = byte(val)
		_, err := w.Write(buf[:1])
		return err
	case val <= 0xffff:
		buf[0] = varInt16
		binary.LittleEndian.PutUint16(buf[1:3], uint16(val))
		_, err := w.Write(buf[:3])
		return err
	case val <= 0xffffffff:
		buf[0] = varInt32
		binary.LittleEndian.PutUint32(buf[1:5], uint32(val))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = varInt64
		binary.LittleEndian.PutUint64(buf[1:9], val)
		_, err := w.Write(buf[:9])
		return err
	}
}

// ReadVarInt reads a varint and rejects any encoding that is not the
// minimal representation of its value (a discriminator byte followed
// by a value that could have fit in a shorter form).
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	switch prefix[0] {
	case varInt16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		val := uint64(binary.LittleEndian.Uint16(b[:]))
		if val < varInt16 {
			return 0, fmt.Errorf("non-minimal varint16 encoding of %d", val)
		}
		return val, nil
	case varInt32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		val := uint64(binary.LittleEndian.Uint32(b[:]))
		if val <= 0xffff {
			return 0, fmt.Errorf("non-minimal varint32 encoding of %d", val)
		}
		return val, nil
	case varInt64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		val := binary.LittleEndian.Uint64(b[:])
		if val <= 0xffffffff {
			return 0, fmt.Errorf("non-minimal varint64 encoding of %d", val)
		}
		return val, nil
	default:
		return uint64(prefix[0]), nil
	}
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would
// emit for val.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < varInt16:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
