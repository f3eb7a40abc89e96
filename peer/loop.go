package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
	"github.com/coinkeep/walletd/buffer"
	"github.com/coinkeep/walletd/p2p"
	"github.com/coinkeep/walletd/ticker"
	"golang.org/x/sync/errgroup"
)

// PingInterval is how often the outbound task originates a keepalive
// Ping while idle. Grounded on the teacher's ping_manager.go config
// closure, simplified to a single fixed interval since this core has
// no analogue of the teacher's per-peer negotiated ping/pong timeout.
const PingInterval = 2 * time.Minute

var readBufPool = sync.Pool{New: func() any { return new(buffer.Read) }}

var writeBufPool = sync.Pool{New: func() any { return new(buffer.Write) }}

// Loop owns one peer connection end to end: the socket, the framer,
// and the two cooperative tasks described by the core (an inbound
// reader dispatching through Session, and an outbound writer draining
// the Session's outbound channel). Loop.Run blocks until either task
// exits, then tears both down.
type Loop struct {
	conn    net.Conn
	magic   wire.BitcoinNet
	session *Session
	framer  *p2p.Framer

	outbound  chan p2p.Message
	managerCh chan ManagerRequest

	pingTicker ticker.Ticker

	log btclog.Logger
}

// NewLoop wires a Session to conn. outboundBuf/managerBuf set the
// bound on each channel, per the backpressure contract: a full
// managerCh blocks the inbound task (and thus exerts TCP backpressure
// on the peer); a full outbound channel blocks the manager's senders.
func NewLoop(conn net.Conn, remote RemoteHost, magic wire.BitcoinNet, maxPayload uint32, outboundBuf, managerBuf int, log btclog.Logger) *Loop {
	outbound := make(chan p2p.Message, outboundBuf)
	managerCh := make(chan ManagerRequest, managerBuf)

	return &Loop{
		conn:       conn,
		magic:      magic,
		session:    NewSession(remote, outbound, managerCh, log),
		framer:     p2p.NewFramer(magic, maxPayload),
		outbound:   outbound,
		managerCh:  managerCh,
		pingTicker: ticker.New(PingInterval),
		log:        log,
	}
}

// Outbound returns the channel a manager sends Messages on for
// transmission to this peer.
func (l *Loop) Outbound() chan<- p2p.Message { return l.outbound }

// ManagerEvents returns the channel this peer's Session reports
// ManagerRequests on.
func (l *Loop) ManagerEvents() <-chan ManagerRequest { return l.managerCh }

// Session returns the loop's underlying session state.
func (l *Loop) Session() *Session { return l.session }

// Run drives the connection until ctx is cancelled, the socket
// errors, or a fatal protocol/framing/merkle error occurs. It always
// closes conn and the manager-event channel before returning; the
// outbound channel is not closed or drained once Run has returned.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unlike errgroup.WithContext, cancellation here doesn't wait for
	// a non-nil error: either task returning at all (clean shutdown
	// included) must stop the other, since a Session that decides to
	// terminate the connection doesn't return an error to do it.
	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		return l.writeLoop(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return l.readLoop(ctx)
	})

	// conn.Read/Write don't themselves observe ctx, so unblock
	// whichever task is still parked in a syscall by closing the
	// socket out from under it once either task above has exited.
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	err := g.Wait()

	l.conn.Close()
	l.pingTicker.Stop()
	close(l.managerCh)

	// context.Canceled here only ever means "the other task already
	// shut down", including on a clean Dispatch-driven termination;
	// it is not a failure the caller needs to see.
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// writeLoop is the outbound task: it reads Messages from outbound,
// encodes each, and writes to the socket until the channel closes,
// the context is cancelled, or the socket errors. It also originates
// keepalive pings on pingTicker, grounded on the teacher's
// outHandler select loop over sendQueue and pingTicker.
func (l *Loop) writeLoop(ctx context.Context) error {
	l.pingTicker.Resume()

	var pingNonce uint64
	for {
		select {
		case <-ctx.Done():
			// A Dispatch-driven termination (e.g. a Reject sent
			// right before Dispatch returns terminate=true) enqueues
			// its message on l.outbound strictly before readLoop
			// returns and cancels ctx, so by the time this case
			// fires the message is already sitting in the channel
			// buffer. select gives ctx.Done() and that buffered
			// message no priority over each other, so without
			// draining here the message is dropped about as often
			// as it's delivered.
			l.drainOutbound()
			return ctx.Err()

		case <-l.pingTicker.Ticks():
			pingNonce++
			if err := l.writeMessage(wire.NewMsgPing(pingNonce)); err != nil {
				return err
			}

		case msg, ok := <-l.outbound:
			if !ok {
				return nil
			}
			if err := l.writeMessage(msg); err != nil {
				return err
			}
		}
	}
}

// drainOutbound flushes any messages already sitting in l.outbound's
// buffer without blocking. Called when writeLoop is about to return
// on ctx.Done() so a message enqueued just before cancellation isn't
// silently lost.
func (l *Loop) drainOutbound() {
	for {
		select {
		case msg, ok := <-l.outbound:
			if !ok {
				return
			}
			if err := l.writeMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// writeMessage encodes msg into a pooled buffer.Write scratch array
// when it fits (the common case: version/verack/ping/pong/reject are
// all well under buffer.WriteSize) and falls back to p2p.EncodeInto's
// own growth for the rare oversized tx or merkleblock body.
func (l *Loop) writeMessage(msg p2p.Message) error {
	wbuf := writeBufPool.Get().(*buffer.Write)
	defer func() {
		wbuf.Recycle()
		writeBufPool.Put(wbuf)
	}()

	raw, err := p2p.EncodeInto(wbuf[:0], l.magic, msg)
	if err != nil {
		return fmt.Errorf("encoding %s to %s: %w", msg.Command(), l.session.Remote(), err)
	}
	if _, err := l.conn.Write(raw); err != nil {
		return fmt.Errorf("writing %s to %s: %w", msg.Command(), l.session.Remote(), err)
	}
	return nil
}

// readLoop is the inbound task: it reads off the socket, feeds the
// framer, and dispatches each decoded message through the Session
// state machine until EOF (clean shutdown), a codec error (fatal), or
// Dispatch signals termination.
func (l *Loop) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := readBufPool.Get().(*buffer.Read)
		n, err := l.conn.Read(buf[:])
		if err != nil {
			readBufPool.Put(buf)
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading from %s: %w", l.session.Remote(), err)
		}

		l.framer.Feed(buf[:n])
		buf.Recycle()
		readBufPool.Put(buf)

		for {
			msg, ok, err := l.framer.Next()
			if err != nil {
				return fmt.Errorf("decoding message from %s: %w", l.session.Remote(), err)
			}
			if !ok {
				break
			}

			terminate, err := l.session.Dispatch(msg)
			if err != nil {
				return fmt.Errorf("dispatching %s from %s: %w", msg.Command(), l.session.Remote(), err)
			}
			if terminate {
				return nil
			}
		}
	}
}
