package peer

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
	"github.com/coinkeep/walletd/p2p"
)

// MinProtocolVersion is the lowest peer protocol version this session
// accepts during handshake. Peers advertising less are disconnected
// without ever receiving a VerAck.
const MinProtocolVersion = 60001

// inflightMerkle tracks a MerkleBlock that has arrived but whose
// expected transactions haven't all been seen yet: the decoded block
// (carrying the expected hash order) plus whichever of those hashes
// have actually shown up as Tx messages so far.
type inflightMerkle struct {
	block    *p2p.DecodedMerkleBlock
	received map[chainhash.Hash]*wire.MsgTx
}

// Session is the per-connection state machine described by the
// core: handshake status and any in-progress merkle-block
// reassembly, owned exclusively by the session's inbound task. Wiring
// the socket itself lives in loop.go; this file is the pure dispatch
// logic so it can be driven directly in tests without a real
// connection.
type Session struct {
	remote RemoteHost
	log    btclog.Logger

	outbound  chan<- p2p.Message
	managerCh chan<- ManagerRequest

	peerVersion *wire.MsgVersion
	inflight    *inflightMerkle
}

// NewSession constructs a Session for one connection. outbound is the
// channel the session's writer task drains to produce socket bytes;
// managerCh is the channel the session reports events on. Both are
// supplied by the embedder per the session construction interface.
func NewSession(remote RemoteHost, outbound chan<- p2p.Message, managerCh chan<- ManagerRequest, log btclog.Logger) *Session {
	return &Session{
		remote:    remote,
		log:       log,
		outbound:  outbound,
		managerCh: managerCh,
	}
}

// Remote returns the session's remote endpoint descriptor.
func (s *Session) Remote() RemoteHost { return s.remote }

// HandshakeComplete reports whether peer_version has been set.
func (s *Session) HandshakeComplete() bool { return s.peerVersion != nil }

// HasInflightMerkle reports whether a merkle block reassembly is in
// progress, used by the manager to avoid replacing a peer's loaded
// bloom filter mid-reassembly.
func (s *Session) HasInflightMerkle() bool { return s.inflight != nil }

func (s *Session) sendOutbound(msg p2p.Message) {
	s.outbound <- msg
}

func (s *Session) sendManager(req ManagerRequest) {
	s.managerCh <- req
}

// flush implements the merkle-flush rule: reorder the accumulated
// transactions to match the block's expected hash order, dropping any
// hash with no matching tx, emit MerkleBlockReady, and clear
// inflight.
func (s *Session) flush() {
	inflight := s.inflight
	s.inflight = nil

	ordered := make([]*wire.MsgTx, 0, len(inflight.block.MatchedHashes))
	for _, h := range inflight.block.MatchedHashes {
		if tx, ok := inflight.received[h]; ok {
			ordered = append(ordered, tx)
		}
	}

	s.sendManager(&MerkleBlockReady{
		Remote: s.remote,
		Block:  inflight.block,
		Txs:    ordered,
	})
}

func expects(hashes []chainhash.Hash, h chainhash.Hash) bool {
	for _, want := range hashes {
		if want.IsEqual(&h) {
			return true
		}
	}
	return false
}

// Dispatch processes one inbound message per the core's state
// machine (rules 1-2 of the peer session loop). It returns terminate
// = true when the connection must be closed by the caller (a fatal
// protocol or merkle error, or a version below MinProtocolVersion);
// err is non-nil only for errors worth logging beyond the Reject
// already sent, if any.
func (s *Session) Dispatch(msg p2p.Message) (terminate bool, err error) {
	if _, isVersion := msg.(*wire.MsgVersion); !isVersion && !s.HandshakeComplete() {
		s.log.Warnf("peer %s sent %T before completing the version handshake",
			s.remote, msg)
		return true, nil
	}

	if s.inflight != nil {
		if _, isTx := msg.(*wire.MsgTx); !isTx {
			s.flush()
		}
	}

	switch m := msg.(type) {
	case *wire.MsgVersion:
		return s.dispatchVersion(m)

	case *wire.MsgVerAck:
		s.log.Debugf("received verack from %s", s.remote)
		return false, nil

	case *wire.MsgPing:
		s.sendOutbound(wire.NewMsgPong(m.Nonce))
		return false, nil

	case *wire.MsgMerkleBlock:
		return s.dispatchMerkleBlock(m)

	case *wire.MsgTx:
		s.dispatchTx(m)
		return false, nil

	default:
		s.sendManager(&PassThrough{Remote: s.remote, Msg: msg})
		return false, nil
	}
}

func (s *Session) dispatchVersion(v *wire.MsgVersion) (terminate bool, err error) {
	if s.peerVersion != nil {
		s.sendOutbound(wire.NewMsgReject(
			wire.CmdVersion, wire.RejectDuplicate, "Duplicate version message",
		))
		return true, nil
	}
	if v.ProtocolVersion < MinProtocolVersion {
		s.log.Warnf("peer %s advertised protocol version %d below minimum %d",
			s.remote, v.ProtocolVersion, MinProtocolVersion)
		return true, nil
	}

	s.peerVersion = v
	s.sendOutbound(&wire.MsgVerAck{})
	s.sendManager(&Handshake{Remote: s.remote, Version: v})
	return false, nil
}

func (s *Session) dispatchMerkleBlock(m *wire.MsgMerkleBlock) (terminate bool, err error) {
	decoded, err := p2p.ExtractMatches(m)
	if err != nil {
		s.log.Errorf("merkle block from %s failed extraction: %v", s.remote, err)
		return true, err
	}

	s.inflight = &inflightMerkle{
		block:    decoded,
		received: make(map[chainhash.Hash]*wire.MsgTx),
	}
	if len(decoded.MatchedHashes) == 0 {
		s.flush()
	}
	return false, nil
}

func (s *Session) dispatchTx(tx *wire.MsgTx) {
	hash := tx.TxHash()

	if s.inflight != nil {
		if expects(s.inflight.block.MatchedHashes, hash) {
			s.inflight.received[hash] = tx
			return
		}
		// A Tx arrived that isn't part of the reassembly in progress:
		// the top-level flush rule only fires for non-Tx messages, so
		// this is the one place a Tx message itself triggers a flush.
		s.flush()
	}

	s.sendManager(&PassThrough{Remote: s.remote, Msg: tx})
}
