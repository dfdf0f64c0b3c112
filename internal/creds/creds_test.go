package creds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemory_RoundTrip(t *testing.T) {
	s := NewMemory()

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("fresh store Load() = %+v, want empty", got)
	}

	want := Tokens{Access: "acc-1", Refresh: "ref-1"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, _ = s.Load()
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	got, _ = s.Load()
	if !got.Empty() {
		t.Errorf("Load() after Clear() = %+v, want empty", got)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(dir)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("missing file Load() = %+v, want empty", got)
	}

	want := Tokens{Access: "acc-2", Refresh: "ref-2"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// A second store over the same directory sees the saved pair.
	got, _ = NewFile(dir).Load()
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
}

func TestFile_CorruptFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, tokenFileName), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewFile(dir).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("Load() = %+v, want empty for corrupt file", got)
	}
}

func TestTokens_Empty(t *testing.T) {
	tests := []struct {
		name string
		t    Tokens
		want bool
	}{
		{name: "both empty", t: Tokens{}, want: true},
		{name: "access only", t: Tokens{Access: "a"}, want: false},
		{name: "refresh only", t: Tokens{Refresh: "r"}, want: false},
		{name: "both set", t: Tokens{Access: "a", Refresh: "r"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}
