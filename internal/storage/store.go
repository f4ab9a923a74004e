package storage

import (
	"crypto/rand"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/ncruces/go-sqlite3/vfs/adiantum"
	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 256_000
	kdfKeyLen     = 32
	saltLen       = 16
)

// Store is the encrypted memory database. All repositories hang off it.
type Store struct {
	db   *sql.DB
	path string
}

var (
	openMu sync.Mutex
	opened = map[string]*Store{}
)

// Open opens (or creates) the encrypted database at path, keyed by the
// passphrase, and brings the schema up to date. A second Open in the same
// process returns the existing handle; the passphrase never leaves memory.
//
// A wrong passphrase or a corrupted file surfaces as an error from the first
// statement against the file ("file is not a database"); callers should
// treat that as fatal.
func Open(path, passphrase string) (*Store, error) {
	openMu.Lock()
	defer openMu.Unlock()

	if s, ok := opened[path]; ok {
		return s, nil
	}
	if passphrase == "" {
		return nil, fmt.Errorf("storage: passphrase is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	salt, err := loadOrCreateSalt(path + ".salt")
	if err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, kdfKeyLen, sha512.New)

	dsn := "file:" + path +
		"?vfs=adiantum" +
		"&_pragma=hexkey('" + hex.EncodeToString(key) + "')" +
		"&_pragma=page_size(4096)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=secure_delete(ON)"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	s := &Store{db: db, path: path}
	opened[path] = s
	return s, nil
}

// Close closes the database and clears the process-wide handle.
func (s *Store) Close() error {
	openMu.Lock()
	defer openMu.Unlock()
	if opened[s.path] == s {
		delete(opened, s.path)
	}
	return s.db.Close()
}

// Entities returns the entity repository.
func (s *Store) Entities() *EntityRepo { return &EntityRepo{db: s.db} }

// Observations returns the observation repository.
func (s *Store) Observations() *ObservationRepo { return &ObservationRepo{db: s.db} }

// Relationships returns the relationship repository.
func (s *Store) Relationships() *RelationshipRepo { return &RelationshipRepo{db: s.db} }

// Vectors returns the semantic index.
func (s *Store) Vectors() *VectorIndex { return &VectorIndex{db: s.db} }

// migrate creates the schema on a fresh file, refuses files newer than this
// build, and runs forward migrations on older ones. The first statement here
// is also where a wrong passphrase shows up.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	for v := version; v < currentSchemaVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration from schema version %d", v)
		}
		if _, err := db.Exec(step); err != nil {
			return fmt.Errorf("migrate schema %d -> %d: %w", v, v+1, err)
		}
		if _, err := db.Exec(`UPDATE schema_version SET version = ?`, v+1); err != nil {
			return fmt.Errorf("bump schema version: %w", err)
		}
	}
	return nil
}

// loadOrCreateSalt reads the KDF salt sidecar, creating it with random bytes
// on first open. The database file itself carries no plaintext header.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltLen {
			return nil, fmt.Errorf("salt file %s is malformed", filepath.Base(path))
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	salt = make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}
