package manager

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func hashOfLabel(label string) chainhash.Hash {
	return chainhash.HashH([]byte(label))
}

func TestTxDedupSuppressesRepeat(t *testing.T) {
	d := newTxDedup(4)
	h := hashOfLabel("tx1")

	if d.seenBefore(h) {
		t.Fatalf("first sighting should not be reported as seen")
	}
	if !d.seenBefore(h) {
		t.Fatalf("second sighting of the same hash should be reported as seen")
	}
}

func TestTxDedupDistinctHashesIndependent(t *testing.T) {
	d := newTxDedup(4)

	if d.seenBefore(hashOfLabel("tx1")) {
		t.Fatalf("tx1 should not be seen yet")
	}
	if d.seenBefore(hashOfLabel("tx2")) {
		t.Fatalf("tx2 is distinct from tx1 and should not be seen yet")
	}
}

func TestTxDedupEvictsOldestPastCapacity(t *testing.T) {
	d := newTxDedup(2)

	first := hashOfLabel("tx1")
	d.seenBefore(first)
	d.seenBefore(hashOfLabel("tx2"))
	d.seenBefore(hashOfLabel("tx3"))

	if d.seenBefore(first) {
		t.Fatalf("tx1 should have been evicted once capacity was exceeded, " +
			"so this sighting should be treated as new")
	}
}
