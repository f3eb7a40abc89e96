package p2p

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// DecodedMerkleBlock is the result of reconstructing a partial merkle
// tree: the subset of transaction hashes the remote peer's bloom
// filter matched, in tree order.
type DecodedMerkleBlock struct {
	Header       wire.BlockHeader
	MatchedHashes []chainhash.Hash
}

// merkleNode is a stack slot: its position in the conceptual binary
// tree (root is (nextPow2(n)<<1)-2, leaves are 0..n-1) and its hash,
// nil until computed or consumed from the message.
type merkleNode struct {
	pos  uint32
	hash *chainhash.Hash
}

// combineMerkleNodes computes the parent of left and right exactly as
// Bitcoin's merkle tree does: double-SHA256 of the 64 byte
// concatenation, duplicating left when right is absent for an
// odd-sized row. It is an error, not a silent duplicate, for left and
// right to be equal and both non-nil; that shape should never be
// producible from a validly constructed partial tree and is the
// signature of CVE-2012-2459's duplicate-transaction attack.
func combineMerkleNodes(left, right *chainhash.Hash) (*chainhash.Hash, error) {
	if left == nil {
		return nil, nil
	}
	if right != nil && left.IsEqual(right) {
		return nil, &MerkleError{Reason: "duplicate sibling hashes in partial tree (CVE-2012-2459)"}
	}
	if right == nil {
		right = left
	}

	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	sum := chainhash.DoubleHashH(buf[:])
	return &sum, nil
}

// treeDepth returns the smallest e such that 1<<e >= n.
func treeDepth(n uint32) (e uint8) {
	for (uint32(1) << e) < n {
		e++
	}
	return e
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n uint32) uint32 {
	return 1 << treeDepth(n)
}

// inDeadZone reports whether pos falls in the padding region of a
// non-power-of-two-sized tree: a slot that exists in the conceptual
// full binary tree but has no corresponding leaf because size isn't a
// power of two.
func inDeadZone(pos, size uint32) bool {
	msb := nextPowerOfTwo(size)
	last := size - 1
	if pos > (msb<<1)-2 {
		return true
	}
	h := msb
	for pos >= h {
		h = h>>1 | msb
		last = last>>1 | msb
	}
	return pos > last
}

// ExtractMatches reconstructs a partial merkle tree, verifying it
// against the block header's advertised root, and returns the
// transaction hashes the tree marks as matched. It is a stack-based
// pre-order walk: flag bits (one per internal-or-leaf node visited)
// say whether a node's hash was included verbatim or must be computed
// from its children, and matched leaves are collected as they're
// consumed.
func ExtractMatches(m *wire.MsgMerkleBlock) (*DecodedMerkleBlock, error) {
	if m.Transactions == 0 {
		return nil, &MerkleError{Reason: "merkle block declares zero transactions"}
	}
	if len(m.Flags) == 0 {
		return nil, &MerkleError{Reason: "merkle block carries no flag bits"}
	}

	hashes := make([]*chainhash.Hash, len(m.Hashes))
	for i := range m.Hashes {
		hashes[i] = m.Hashes[i]
	}
	flags := append([]byte(nil), m.Flags...)

	var stack []merkleNode
	var matched []chainhash.Hash

	msb := nextPowerOfTwo(m.Transactions)
	pos := (msb << 1) - 2

	var bitIdx uint8
	for {
		tip := len(stack) - 1

		if tip == 0 && stack[0].hash != nil {
			if !stack[0].hash.IsEqual(&m.Header.MerkleRoot) {
				return nil, &MerkleError{Reason: "computed root does not match block header"}
			}
			if len(hashes) != 0 {
				return nil, &MerkleError{Reason: "unused hashes remain after merkle root reconstructed"}
			}
			if len(flags) > 1 {
				return nil, &MerkleError{Reason: "unused flag bytes remain after merkle root reconstructed"}
			}
			if len(flags) == 1 {
				if padding := flags[0] & byte(0xFF<<bitIdx); padding != 0 {
					return nil, &MerkleError{Reason: "non-zero padding bits in trailing flag byte"}
				}
			}
			return &DecodedMerkleBlock{Header: m.Header, MatchedHashes: matched}, nil
		}

		if inDeadZone(pos, m.Transactions) {
			parent, err := combineMerkleNodes(stack[tip].hash, nil)
			if err != nil {
				return nil, err
			}
			stack[tip-1].hash = parent
			stack = stack[:tip]
			pos = stack[tip-1].pos | 1
			continue
		}

		if tip > 1 && stack[tip-1].hash != nil && stack[tip].hash != nil {
			parent, err := combineMerkleNodes(stack[tip-1].hash, stack[tip].hash)
			if err != nil {
				return nil, err
			}
			stack[tip-2].hash = parent
			stack = stack[:tip-1]
			pos = stack[tip-2].pos | 1
			continue
		}

		if len(flags) == 0 {
			return nil, &MerkleError{Reason: "ran out of flag bytes"}
		}

		var n merkleNode
		n.pos = pos

		if pos&msb != 0 { // internal node above the leaf row
			if len(hashes) == 0 {
				return nil, &MerkleError{Reason: "ran out of hashes reconstructing internal node"}
			}
			if flags[0]&(1<<bitIdx) == 0 {
				n.hash = hashes[0]
				hashes = hashes[1:]
				if pos&1 != 0 {
					pos = pos>>1 | msb
				} else {
					pos |= 1
				}
			} else {
				pos = (pos ^ msb) << 1
			}
			stack = append(stack, n)
		} else { // leaf row: a transaction id
			if pos >= m.Transactions {
				return nil, &MerkleError{Reason: "leaf position exceeds transaction count"}
			}
			if len(hashes) == 0 {
				return nil, &MerkleError{Reason: "ran out of hashes reconstructing leaf"}
			}
			n.hash = hashes[0]
			hashes = hashes[1:]
			if flags[0]&(1<<bitIdx) != 0 {
				matched = append(matched, *n.hash)
			}
			if pos&1 == 0 {
				pos |= 1
			}
			stack = append(stack, n)
		}

		bitIdx++
		if bitIdx == 8 {
			bitIdx = 0
			flags = flags[1:]
		}
	}
}
