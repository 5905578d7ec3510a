package store

import (
	"path/filepath"
	"testing"

	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fillora", "credentials.json")
	s := New(path)

	creds, err := s.Load()
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if creds.Active() {
		t.Fatal("empty store must not report an active session")
	}

	want := Credentials{
		AuthToken: "jwt-abc",
		User:      backend.User{ID: 7, Email: "j@example.com", Name: "J Doe"},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Active() || got.AuthToken != want.AuthToken || got.User.ID != want.User.ID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s := New(path)

	// Clearing an empty store is fine.
	if err := s.Clear(); err != nil {
		t.Fatalf("clear empty: %v", err)
	}

	if err := s.Save(Credentials{AuthToken: "tok", User: backend.User{Email: "a@a.com"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	creds, err := s.Load()
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if creds.Active() {
		t.Fatalf("credentials survived clear: %+v", creds)
	}
}
