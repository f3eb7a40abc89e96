package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/coinkeep/walletd/filter"
	"github.com/coinkeep/walletd/manager"
	"github.com/coinkeep/walletd/p2p"
	"github.com/coinkeep/walletd/peer"
	"github.com/coinkeep/walletd/signal"
)

// ownVersionMsg builds the wire.MsgVersion this node announces to every
// peer it dials. It carries no per-connection information because
// manager.Config.OwnVersionMsg is called fresh for each AddPeer and
// has no access to the remote's address; the protocol tolerates a
// generic NetAddress pair here, the same way uspv/eight333.go only
// bothered filling in the fields the handshake actually checks.
func ownVersionMsg(userAgent string) func() *wire.MsgVersion {
	return func() *wire.MsgVersion {
		me := &wire.NetAddress{Timestamp: time.Now()}
		you := &wire.NetAddress{Timestamp: time.Now()}

		var nonceBytes [8]byte
		rand.Read(nonceBytes[:])
		nonce := binary.LittleEndian.Uint64(nonceBytes[:])

		msg := wire.NewMsgVersion(me, you, nonce, 0)
		msg.AddUserAgent(userAgent, "0.1.0")
		msg.Services = 0
		msg.DisableRelayTx = true
		return msg
	}
}

func walletdMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Println("walletd version 0.1.0")
		os.Exit(0)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
	initLogRotator(logFile, cfg.MaxLogFileSize, cfg.MaxLogFiles)
	setLogLevels(cfg.DebugLevel)

	watchList := filter.New(wire.BloomUpdateAll)

	mgr := manager.New(manager.Config{
		Magic:         cfg.NetParams().Net,
		MaxPayload:    p2p.DefaultMaxPayloadLength,
		BanThreshold:  cfg.BanThreshold,
		DedupCapacity: cfg.DedupCapacity,
		Filter:        watchList,
		Log:           mgrLog,
		OwnVersionMsg: ownVersionMsg("/walletd:0.1.0/"),
	})

	ctx, cancel := context.WithCancel(context.Background())

	for _, addr := range cfg.ConnectPeers {
		addr := addr
		go dialPeer(ctx, mgr, addr)
	}

	wltdLog.Infof("walletd started, network %s", cfg.NetParams().Name)

	<-signal.ShutdownChannel()

	wltdLog.Infof("received shutdown request")
	cancel()

	if logRotator != nil {
		logRotator.Close()
	}

	return nil
}

// dialPeer connects to addr and hands the connection to the manager.
// It does not retry; a peer that's unreachable at startup is simply
// absent from the session pool until the operator restarts walletd
// or a future reconnect policy is added.
func dialPeer(ctx context.Context, mgr *manager.Manager, addr string) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		p2pLog.Warnf("failed to connect to %s: %v", addr, err)
		return
	}
	mgr.AddPeer(ctx, conn, peer.RemoteHost{Addr: addr})
}

func main() {
	if err := walletdMain(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
