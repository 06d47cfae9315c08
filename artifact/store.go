package artifact

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotCached indicates no artifact is stored under the requested key.
var ErrNotCached = errors.New("artifact not cached")

// Entry is one cached build.
type Entry struct {
	Key       string
	BuildID   string
	Data      []byte
	CreatedAt time.Time
}

// Store is a compile cache backed by sqlite. Keys hash the full compilation
// input, so a hit is always a valid build of the same inputs.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// CacheKey hashes a compilation's inputs into a cache key. Parts are length
// delimited so adjacent parts cannot run together.
func CacheKey(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, part := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// OpenStore opens or creates the cache database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		key TEXT PRIMARY KEY,
		build_id TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an artifact under key, replacing any previous build.
func (s *Store) Put(key string, data []byte) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		Key:       key,
		BuildID:   uuid.NewString(),
		Data:      data,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO artifacts (key, build_id, data, created_at) VALUES (?, ?, ?, ?)",
		entry.Key, entry.BuildID, entry.Data, entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}
	return entry, nil
}

// Get retrieves the artifact stored under key.
func (s *Store) Get(key string) (*Entry, error) {
	var (
		entry   = &Entry{Key: key}
		created string
	)
	err := s.db.QueryRow(
		"SELECT build_id, data, created_at FROM artifacts WHERE key = ?", key,
	).Scan(&entry.BuildID, &entry.Data, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	entry.CreatedAt, err = time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact timestamp: %w", err)
	}
	return entry, nil
}

// Delete removes the artifact stored under key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM artifacts WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}
