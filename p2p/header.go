package p2p

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/wire"
)

// HeaderSize is the fixed on-wire size of a message header: 4 byte
// magic, 12 byte command, 4 byte length, 4 byte checksum.
const HeaderSize = 24

const commandSize = 12

// DefaultMaxPayloadLength bounds a single message body. MerkleBlock
// and Tx payloads for pruned SPV use are small; this is generous
// enough for any block-relay-adjacent message an SPV peer will see
// while still rejecting a peer that lies about a multi-gigabyte body.
const DefaultMaxPayloadLength = 32 * 1024 * 1024

// MessageHeader is the 24 byte framing header preceding every message
// body on the wire.
type MessageHeader struct {
	Magic    wire.BitcoinNet
	Command  string
	Length   uint32
	Checksum [4]byte
}

// encodeHeader serializes a header to its 24 byte wire form.
func encodeHeader(magic wire.BitcoinNet, command string, length uint32, checksum [4]byte) []byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(magic))
	cmdBytes := commandBytes(command)
	copy(buf[4:4+commandSize], cmdBytes[:])
	binary.LittleEndian.PutUint32(buf[16:20], length)
	copy(buf[20:24], checksum[:])
	return buf[:]
}

// commandBytes encodes command as a 12 byte null-padded ASCII field.
func commandBytes(command string) [commandSize]byte {
	var out [commandSize]byte
	copy(out[:], command)
	return out
}

// decodeHeader parses a 24 byte header. It rejects a magic that
// doesn't match wantMagic, a length exceeding maxPayload, and a
// command field that is not canonical null-padded ASCII (a non-zero
// byte following a zero byte, or a byte outside printable ASCII).
func decodeHeader(buf []byte, wantMagic wire.BitcoinNet, maxPayload uint32) (MessageHeader, error) {
	if len(buf) != HeaderSize {
		return MessageHeader{}, &FramingError{Reason: "short header buffer"}
	}

	magic := wire.BitcoinNet(binary.LittleEndian.Uint32(buf[0:4]))
	if magic != wantMagic {
		return MessageHeader{}, &FramingError{
			Reason: "magic mismatch: got " + magic.String() + ", want " + wantMagic.String(),
		}
	}

	command, err := decodeCommand(buf[4 : 4+commandSize])
	if err != nil {
		return MessageHeader{}, err
	}

	length := binary.LittleEndian.Uint32(buf[16:20])
	if length > maxPayload {
		return MessageHeader{}, &FramingError{Reason: "payload length exceeds configured maximum"}
	}

	var checksum [4]byte
	copy(checksum[:], buf[20:24])

	return MessageHeader{
		Magic:    magic,
		Command:  command,
		Length:   length,
		Checksum: checksum,
	}, nil
}

// decodeCommand validates and trims a 12 byte command field.
func decodeCommand(field []byte) (string, error) {
	nul := -1
	for i, b := range field {
		if b == 0 {
			nul = i
			break
		}
		if b < 0x20 || b > 0x7e {
			return "", &FramingError{Reason: "command field contains non-printable byte"}
		}
	}
	if nul == -1 {
		return string(field), nil
	}
	for _, b := range field[nul:] {
		if b != 0 {
			return "", &FramingError{Reason: "command field has non-zero byte after padding starts"}
		}
	}
	return string(field[:nul]), nil
}
