package p2p

import "fmt"

// FramingError is returned by Framer when the byte stream cannot be
// split into a well-formed message boundary: bad magic, an oversized
// length field, a header that fails structural validation, or a
// payload whose checksum does not match the header.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("p2p: framing error: %s", e.Reason)
}

// DecodeError is returned when a header and its checksum are valid but
// the wrapped wire.Message rejects its own body, or when a message
// cannot be encoded.
type DecodeError struct {
	Command string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("p2p: decode error on %q: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("p2p: decode error on %q: %s", e.Command, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MerkleError is returned by ExtractMatches when a partial merkle tree
// fails to reconstruct to the block header's advertised root.
type MerkleError struct {
	Reason string
}

func (e *MerkleError) Error() string {
	return fmt.Sprintf("p2p: merkle error: %s", e.Reason)
}
