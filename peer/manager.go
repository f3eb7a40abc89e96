package peer

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/coinkeep/walletd/p2p"
)

// RemoteHost is an immutable descriptor of a peer connection's remote
// endpoint, supplied by whatever embedder accepted or dialed the
// connection.
type RemoteHost struct {
	Addr string
}

func (r RemoteHost) String() string { return r.Addr }

// ManagerRequest is the tagged union of events a Session reports to
// its owning manager: a completed handshake, a reassembled merkle
// block bundle, or any message the session doesn't interpret itself.
type ManagerRequest interface {
	isManagerRequest()
}

// Handshake reports that the version/verack exchange with remote
// completed successfully.
type Handshake struct {
	Remote  RemoteHost
	Version *wire.MsgVersion
}

func (*Handshake) isManagerRequest() {}

// MerkleBlockReady reports a fully reassembled (or flushed-incomplete,
// per I3) merkle block bundle: the decoded block plus the
// transactions that arrived matching its expected hash list, in
// expected order with any missing entries dropped.
type MerkleBlockReady struct {
	Remote RemoteHost
	Block  *p2p.DecodedMerkleBlock
	Txs    []*wire.MsgTx
}

func (*MerkleBlockReady) isManagerRequest() {}

// PassThrough reports any inbound message the session's dispatch rules
// don't specially interpret: an unexpected Tx, or any message kind
// beyond Version/VerAck/Ping/MerkleBlock/Tx.
type PassThrough struct {
	Remote RemoteHost
	Msg    p2p.Message
}

func (*PassThrough) isManagerRequest() {}
