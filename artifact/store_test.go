package artifact

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	s := openTestStore(t)

	put, err := s.Put("k1", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if put.BuildID == "" {
		t.Error("Put should assign a build id")
	}

	got, err := s.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BuildID != put.BuildID {
		t.Errorf("build id = %q, want %q", got.BuildID, put.BuildID)
	}
	if !bytes.Equal(got.Data, []byte{1, 2, 3}) {
		t.Errorf("data = %v, want [1 2 3]", got.Data)
	}
	if !got.CreatedAt.Equal(put.CreatedAt) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, put.CreatedAt)
	}
}

func TestStoreMiss(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get("absent")
	if !errors.Is(err, ErrNotCached) {
		t.Errorf("Get on empty store = %v, want ErrNotCached", err)
	}
}

func TestStoreReplace(t *testing.T) {
	s := openTestStore(t)

	first, err := s.Put("k", []byte("old"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := s.Put("k", []byte("new"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if second.BuildID == first.BuildID {
		t.Error("replacing a key should mint a new build id")
	}

	got, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != "new" {
		t.Errorf("data = %q, want %q", got.Data, "new")
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Put("k", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("k"); !errors.Is(err, ErrNotCached) {
		t.Errorf("Get after delete = %v, want ErrNotCached", err)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	put, err := s.Put("k", []byte("kept"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore (reopen): %v", err)
	}
	defer s.Close()

	got, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got.Data) != "kept" || got.BuildID != put.BuildID {
		t.Errorf("entry after reopen = %+v, want data %q build %q", got, "kept", put.BuildID)
	}
}

func TestCacheKey(t *testing.T) {
	k1 := CacheKey([]byte("source"), []byte("schema"))
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex digits", len(k1))
	}
	if k1 != CacheKey([]byte("source"), []byte("schema")) {
		t.Error("same inputs should produce the same key")
	}
	if k1 == CacheKey([]byte("source"), []byte("other")) {
		t.Error("different inputs should produce different keys")
	}
	// Length delimiting keeps part boundaries out of play.
	if CacheKey([]byte("ab"), []byte("c")) == CacheKey([]byte("a"), []byte("bc")) {
		t.Error("shifting a part boundary should change the key")
	}
}
