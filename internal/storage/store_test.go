package storage

import (
	"path/filepath"
	"testing"
)

const testPassphrase = "correct horse battery staple"

// setupStore opens a fresh encrypted store in a temp directory.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, testPassphrase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPassphrase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if _, err := Open(dbPath, ""); err == nil {
		t.Fatal("Expected error for empty passphrase")
	}
}

func TestOpenIsSingletonPerPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s1, err := Open(dbPath, testPassphrase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s1.Close()

	s2, err := Open(dbPath, "a different passphrase entirely")
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if s1 != s2 {
		t.Error("Second Open in the same process should return the existing handle")
	}
}

func TestWrongPassphraseFailsAfterClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, testPassphrase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Entities().FindOrCreate("seed", ""); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	s.Close()

	if _, err := Open(dbPath, "not the passphrase"); err == nil {
		t.Fatal("Expected open to fail with a wrong passphrase")
	}

	// The right passphrase still works and the data survived.
	s, err = Open(dbPath, testPassphrase)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	e, err := s.Entities().FindByName("seed")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if e == nil {
		t.Error("Entity written before close should survive reopen")
	}
}

func TestDataFileHasNoPlaintextHeader(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, testPassphrase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Entities().FindOrCreate("seed", ""); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	s.Close()

	data, err := readFilePrefix(dbPath, 16)
	if err != nil {
		t.Fatalf("read db file: %v", err)
	}
	if string(data) == "SQLite format 3\x00" {
		t.Error("Database file begins with the plaintext SQLite magic; encryption is not active")
	}
}
