package p2p

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// protocolVersion and encoding are pinned rather than negotiated per
// peer; an SPV client's wire.Message bodies don't change shape across
// the protocol versions this package targets.
const (
	protocolVersion = wire.ProtocolVersion
	wireEncoding    = wire.BaseEncoding
)

// Message is anything with a command name. Both the known, specially
// decoded kinds (which are wire.Message values: wire.MsgVersion,
// wire.MsgVerAck, wire.MsgPing, wire.MsgPong, wire.MsgReject,
// wire.MsgMerkleBlock, wire.MsgTx) and *Other satisfy it.
type Message interface {
	Command() string
}

// Other is the catchall for any command this package does not give a
// dedicated wire.Message type to. Its payload is kept exactly as
// received so a caller can inspect or re-frame it without this
// package needing to understand every message kind in the protocol.
type Other struct {
	Kind    string
	Payload []byte
}

// Command implements Message.
func (o *Other) Command() string { return o.Kind }

// knownKinds maps a command string to a constructor for the
// wire.Message type this package decodes it into. Every other command
// decodes to *Other.
var knownKinds = map[string]func() wire.Message{
	wire.CmdVersion:     func() wire.Message { return &wire.MsgVersion{} },
	wire.CmdVerAck:      func() wire.Message { return &wire.MsgVerAck{} },
	wire.CmdPing:        func() wire.Message { return &wire.MsgPing{} },
	wire.CmdPong:        func() wire.Message { return &wire.MsgPong{} },
	wire.CmdReject:      func() wire.Message { return &wire.MsgReject{} },
	wire.CmdMerkleBlock: func() wire.Message { return &wire.MsgMerkleBlock{} },
	wire.CmdTx:          func() wire.Message { return &wire.MsgTx{} },
}

// checksum computes the 4 byte header checksum: the first 4 bytes of
// the double-SHA256 digest of payload.
func checksum(payload []byte) [4]byte {
	h := chainhash.DoubleHashB(payload)
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// encodePayload serializes msg's body. Known kinds delegate to the
// wrapped wire.Message's own BtcEncode; *Other re-emits its stored
// bytes verbatim.
func encodePayload(msg Message) ([]byte, error) {
	if o, ok := msg.(*Other); ok {
		return o.Payload, nil
	}
	wm, ok := msg.(wire.Message)
	if !ok {
		return nil, &DecodeError{Command: msg.Command(), Reason: "message does not implement wire.Message or *Other"}
	}
	var buf bytes.Buffer
	if err := wm.BtcEncode(&buf, protocolVersion, wireEncoding); err != nil {
		return nil, &DecodeError{Command: msg.Command(), Reason: "encode failed", Err: err}
	}
	return buf.Bytes(), nil
}

// Encode serializes msg into a full framed message: header followed
// by body.
func Encode(magic wire.BitcoinNet, msg Message) ([]byte, error) {
	return EncodeInto(nil, magic, msg)
}

// EncodeInto serializes msg the same way Encode does, but appends into
// dst[:0] instead of always allocating: a caller holding a pooled
// scratch buffer passes it here to avoid an allocation whenever the
// framed message fits inside dst's capacity. When it doesn't (a tx or
// merkleblock payload can exceed any fixed pool slot), EncodeInto
// falls back to growing a fresh buffer the same way append would.
func EncodeInto(dst []byte, magic wire.BitcoinNet, msg Message) ([]byte, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}
	header := encodeHeader(magic, msg.Command(), uint32(len(payload)), checksum(payload))

	out := dst[:0]
	out = append(out, header...)
	out = append(out, payload...)
	return out, nil
}

// decodePayload turns a command name and raw body bytes into a
// Message. It verifies the body against wantChecksum before
// attempting to parse it, and decodes known commands into their
// wire.Message type, or falls back to *Other.
func decodePayload(command string, body []byte, wantChecksum [4]byte) (Message, error) {
	if got := checksum(body); got != wantChecksum {
		return nil, &FramingError{Reason: fmt.Sprintf("checksum mismatch on %q", command)}
	}

	ctor, ok := knownKinds[command]
	if !ok {
		return &Other{Kind: command, Payload: body}, nil
	}

	msg := ctor()
	if err := msg.BtcDecode(bytes.NewReader(body), protocolVersion, wireEncoding); err != nil {
		return nil, &DecodeError{Command: command, Reason: "body decode failed", Err: err}
	}
	return msg, nil
}
