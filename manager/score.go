package manager

import "sync"

// defaultBanThreshold is the number of protocol/framing faults a peer
// may accumulate before the manager disconnects it. Grounded on the
// teacher's accessman.go ban-score bookkeeping, simplified from its
// channel-aware restricted-slot accounting (which has no analogue for
// an SPV wallet with no channels) down to a flat fault counter.
const defaultBanThreshold = 3

// scoreboard tracks a fault count per remote address, guarded by its
// own lock the same way accessman.go's banScoreMtx is kept separate
// from the server's own peer-table lock.
type scoreboard struct {
	mu        sync.RWMutex
	scores    map[string]int
	threshold int
}

func newScoreboard(threshold int) *scoreboard {
	if threshold <= 0 {
		threshold = defaultBanThreshold
	}
	return &scoreboard{
		scores:    make(map[string]int),
		threshold: threshold,
	}
}

// fault records a protocol/framing fault for addr and reports whether
// the peer has now crossed the disconnect threshold.
func (s *scoreboard) fault(addr string) (shouldDisconnect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores[addr]++
	return s.scores[addr] >= s.threshold
}

// forget drops addr's score, used once a peer has been removed so a
// future reconnect from the same address starts clean.
func (s *scoreboard) forget(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, addr)
}
