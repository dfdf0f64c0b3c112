package mock

import "testing"

func TestCrashPointRange(t *testing.T) {
	tests := []struct {
		name       string
		serverSeed string
		clientSeed string
		nonce      int
	}{
		{"basic", "test_server_seed_123", "test_client_seed_456", 1},
		{"different nonce", "test_server_seed_123", "test_client_seed_456", 2},
		{"different seeds", "another_server_seed", "another_client_seed", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CrashPoint(tt.serverSeed, tt.clientSeed, tt.nonce)
			if got < MIN_MULTIPLIER {
				t.Errorf("CrashPoint() = %v, want >= %v", got, MIN_MULTIPLIER)
			}
			if got > MAX_MULTIPLIER {
				t.Errorf("CrashPoint() = %v, want <= %v", got, MAX_MULTIPLIER)
			}
		})
	}
}

func TestCrashPointDeterministic(t *testing.T) {
	first := CrashPoint("server_seed", "client_seed", 42)
	second := CrashPoint("server_seed", "client_seed", 42)
	if first != second {
		t.Errorf("CrashPoint() not deterministic: %v vs %v", first, second)
	}
	other := CrashPoint("server_seed", "client_seed", 43)
	if first == other {
		t.Errorf("nonce change produced identical point %v", first)
	}
}

func TestVerifyCrashPoint(t *testing.T) {
	point := CrashPoint("seed_a", "seed_b", 5)
	if !VerifyCrashPoint("seed_a", "seed_b", 5, point) {
		t.Error("verification failed for true multiplier")
	}
	if VerifyCrashPoint("seed_a", "seed_b", 5, point+1.5) {
		t.Error("verification passed for a wrong multiplier")
	}
}

func TestDiceRollRange(t *testing.T) {
	for nonce := 1; nonce <= 200; nonce++ {
		roll := DiceRoll("server", "client", nonce)
		if roll < 0 || roll >= 100 {
			t.Fatalf("DiceRoll(nonce=%d) = %v, want [0,100)", nonce, roll)
		}
	}
}

func TestFairHashCommitsSeed(t *testing.T) {
	seed := GenerateSeed()
	if len(seed) != 64 {
		t.Fatalf("seed length = %d, want 64 hex chars", len(seed))
	}
	if FairHash(seed) != FairHash(seed) {
		t.Error("FairHash() not deterministic")
	}
	if FairHash(seed) == FairHash(GenerateSeed()) {
		t.Error("distinct seeds hash identically")
	}
}
