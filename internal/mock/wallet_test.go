package mock

import "testing"

func TestWalletDebitCredit(t *testing.T) {
	w := NewWallets()

	bal, sv := w.Balance("u1")
	if bal.Main != "100.00" || sv != 0 {
		t.Fatalf("fresh account = %s v%d, want 100.00 v0", bal.Main, sv)
	}

	bal, sv, err := w.Debit("u1", 2550)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if bal.Main != "74.50" || sv != 1 {
		t.Fatalf("after debit = %s v%d, want 74.50 v1", bal.Main, sv)
	}

	bal, sv = w.Credit("u1", 50)
	if bal.Main != "75.00" || sv != 2 {
		t.Fatalf("after credit = %s v%d, want 75.00 v2", bal.Main, sv)
	}
}

func TestWalletDebitInsufficient(t *testing.T) {
	w := NewWallets()
	_, _, err := w.Debit("u1", STARTING_BALANCE_CENTS+1)
	if err == nil {
		t.Fatal("overdraft allowed")
	}
	bal, sv := w.Balance("u1")
	if bal.Main != "100.00" || sv != 0 {
		t.Fatalf("failed debit mutated account: %s v%d", bal.Main, sv)
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{12345, "123.45"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		if got := formatCents(tt.cents); got != tt.want {
			t.Errorf("formatCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestParseCents(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{"1.00", 100, false},
		{"0.10", 10, false},
		{"123.45", 12345, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCents(tt.amount)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCents(%q) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseCents(%q) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}
