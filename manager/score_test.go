package manager

import "testing"

func TestScoreboardDisconnectsAtThreshold(t *testing.T) {
	s := newScoreboard(3)

	if s.fault("1.2.3.4:8333") {
		t.Fatalf("expected no disconnect after 1 fault")
	}
	if s.fault("1.2.3.4:8333") {
		t.Fatalf("expected no disconnect after 2 faults")
	}
	if !s.fault("1.2.3.4:8333") {
		t.Fatalf("expected disconnect after 3 faults")
	}
}

func TestScoreboardTracksAddressesIndependently(t *testing.T) {
	s := newScoreboard(2)

	s.fault("peerA:8333")
	if s.fault("peerB:8333") {
		t.Fatalf("peerB should not be penalized for peerA's faults")
	}
}

func TestScoreboardForgetResetsCount(t *testing.T) {
	s := newScoreboard(2)

	s.fault("peer:8333")
	s.forget("peer:8333")

	if s.fault("peer:8333") {
		t.Fatalf("expected a fresh count after forget, got immediate disconnect")
	}
}

func TestScoreboardDefaultThreshold(t *testing.T) {
	s := newScoreboard(0)
	if s.threshold != defaultBanThreshold {
		t.Fatalf("expected default threshold %d, got %d", defaultBanThreshold, s.threshold)
	}
}
