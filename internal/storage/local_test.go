package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSaveIsContentAddressed(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "files/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC) }

	first, err := store.Save(context.Background(), "Photo.JPG", []byte("abc"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.Save(context.Background(), "other.jpg", []byte("abc"))
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if !first.Created || second.Created {
		t.Fatalf("only the first save should write the file")
	}
	if first.Path != second.Path {
		t.Fatalf("identical content should share a path: %s vs %s", first.Path, second.Path)
	}
	if !strings.HasPrefix(first.Path, "2026/05/") || !strings.HasSuffix(first.Path, ".jpg") {
		t.Fatalf("unexpected path %s", first.Path)
	}
	if first.URL != "/files/"+first.Path {
		t.Fatalf("unexpected url %s", first.URL)
	}
	if len(first.Digest) != 64 || first.Size != 3 {
		t.Fatalf("unexpected digest/size %s %d", first.Digest, first.Size)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(first.Path)))
	if err != nil || string(data) != "abc" {
		t.Fatalf("stored content mismatch: %q %v", data, err)
	}

	unreferenced := func() (bool, error) { return false, nil }
	removed, err := store.Discard(first.Path, unreferenced)
	if err != nil || removed {
		t.Fatalf("a path still claimed by the second save must be kept: removed=%v err=%v", removed, err)
	}
	removed, err = store.Discard(second.Path, unreferenced)
	if err != nil || !removed {
		t.Fatalf("last claim should remove the file: removed=%v err=%v", removed, err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(first.Path))); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func TestDiscardKeepsReferencedFile(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	stored, err := store.Save(context.Background(), "a.jpg", []byte("shared"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	removed, err := store.Discard(stored.Path, func() (bool, error) { return true, nil })
	if err != nil || removed {
		t.Fatalf("referenced file must be kept: removed=%v err=%v", removed, err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(stored.Path))); err != nil {
		t.Fatalf("file should still exist: %v", err)
	}

	again, err := store.Save(context.Background(), "b.jpg", []byte("shared"))
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	store.Release(again.Path)
	if len(store.claims) != 0 {
		t.Fatalf("settled saves should leave no claims, got %v", store.claims)
	}
}

func TestConcurrentSavesCreateOnce(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	const writers = 16
	data := []byte(strings.Repeat("same content ", 1024))

	var wg sync.WaitGroup
	results := make([]*Stored, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Save(context.Background(), "photo.jpg", data)
		}(i)
	}
	wg.Wait()

	created := 0
	for i, r := range results {
		if errs[i] != nil {
			t.Fatalf("save %d: %v", i, errs[i])
		}
		if r.Created {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("exactly one save should create the file, got %d", created)
	}
	if store.claims[results[0].Path] != writers {
		t.Fatalf("expected %d claims, got %d", writers, store.claims[results[0].Path])
	}

	got, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(results[0].Path)))
	if err != nil || string(got) != string(data) {
		t.Fatalf("stored content mismatch: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(filepath.Join(store.Root(), filepath.FromSlash(results[0].Path))))
	if err != nil || len(entries) != 1 {
		t.Fatalf("temp files should not linger, got %d entries (%v)", len(entries), err)
	}
}

func TestDigestDiffersForDifferentContent(t *testing.T) {
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Fatalf("digests collide")
	}
}
