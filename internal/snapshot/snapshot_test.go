package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestKeyName(t *testing.T) {
	k := Key{TestID: "greeting", Ordinal: 3}
	if got := k.Name(); got != "greeting_case3.snap" {
		t.Fatalf("Name: got %q", got)
	}
}

func TestDirStore_GetPutUpdate(t *testing.T) {
	dir := t.TempDir()
	s := NewDirStore(dir)
	k := Key{TestID: "t", Ordinal: 0}

	if _, ok, err := s.Get(k); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := s.Put(k, "first"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := s.Get(k)
	if err != nil || !ok || v != "first" {
		t.Fatalf("Get: %q ok=%v err=%v", v, ok, err)
	}

	// Put never overwrites an existing golden value.
	if err := s.Put(k, "second"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v, _, _ := s.Get(k); v != "first" {
		t.Fatalf("Put overwrote: %q", v)
	}

	// Update does.
	if err := s.Update(k, "second"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v, _, _ := s.Get(k); v != "second" {
		t.Fatalf("after Update: %q", v)
	}

	// One flat file per key, reviewable in git.
	if _, err := os.Stat(filepath.Join(dir, "t_case0.snap")); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
}

func TestDirStore_ConcurrentFirstWrites(t *testing.T) {
	s := NewDirStore(t.TempDir())
	k := Key{TestID: "race", Ordinal: 0}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(k, fmt.Sprintf("writer-%d", i))
		}(i)
	}
	wg.Wait()

	v, ok, err := s.Get(k)
	if err != nil || !ok {
		t.Fatalf("Get after race: ok=%v err=%v", ok, err)
	}
	// Exactly one writer won; the value is intact, not interleaved.
	if len(v) == 0 || v[:7] != "writer-" {
		t.Fatalf("corrupted value: %q", v)
	}
}

func TestDirStore_LazyDirCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".snapshots")
	s := NewDirStore(dir)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("dir should not exist before first write")
	}
	if err := s.Put(Key{TestID: "t"}, "v"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("dir after write: %v", err)
	}
}

func TestMemStore_ConcurrentReadsAndWrites(t *testing.T) {
	s := NewMemStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := Key{TestID: "t", Ordinal: i % 4}
			_ = s.Put(k, "v")
			_, _, _ = s.Get(k)
		}(i)
	}
	wg.Wait()

	if s.Len() != 4 {
		t.Fatalf("entries: got %d, want 4", s.Len())
	}
}
