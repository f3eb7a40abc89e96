package manager

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/coinkeep/walletd/queue"
)

// txDedup suppresses handing the same transaction to the wallet's
// relevance check twice: a tx can legitimately reach the manager both
// as part of a merkle bundle from one peer and as an unsolicited
// PassThrough from another. It pairs the teacher's CircularBuffer
// (which decides eviction order) with a set for O(1) membership,
// since CircularBuffer itself offers no Contains.
type txDedup struct {
	mu       sync.Mutex
	capacity int
	ring     *queue.CircularBuffer
	seen     map[chainhash.Hash]struct{}
}

func newTxDedup(capacity int) *txDedup {
	ring, err := queue.NewCircularBuffer(capacity)
	if err != nil {
		// capacity comes from Config.DedupCapacity, which New
		// replaces with 256 when it is zero, so only a negative
		// configured value reaches this panic.
		panic(err)
	}
	return &txDedup{
		capacity: capacity,
		ring:     ring,
		seen:     make(map[chainhash.Hash]struct{}),
	}
}

// seenBefore reports whether hash has already been recorded, and
// records it if not. A true result means the caller should skip
// re-processing this transaction.
func (d *txDedup) seenBefore(hash chainhash.Hash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[hash]; ok {
		return true
	}

	if d.ring.Total() >= d.capacity {
		if oldest, ok := d.ring.List()[0].(chainhash.Hash); ok {
			delete(d.seen, oldest)
		}
	}

	d.seen[hash] = struct{}{}
	d.ring.Add(hash)
	return false
}
