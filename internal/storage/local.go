package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

type Stored struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	// Created is set when this call wrote the file rather than finding it.
	Created bool `json:"-"`
}

// LocalStore keeps attachments on disk, content-addressed by blake3 digest
// and grouped by upload month. Files are served statically under URLPrefix.
//
// Every Save claims its path until the caller settles it with Release
// (kept) or Discard (rolled back). A claimed path is never removed.
type LocalStore struct {
	root      string
	urlPrefix string
	now       func() time.Time

	mu     sync.Mutex
	claims map[string]int
}

func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/storage"
	}
	return &LocalStore{
		root:      root,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
		claims:    map[string]int{},
	}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) URLPrefix() string {
	return s.urlPrefix
}

func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes data once per digest; saving identical content twice yields
// the same path. Exactly one of any set of concurrent saves reports Created.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := Digest(data)
	ext := strings.ToLower(filepath.Ext(name))
	rel := path.Join(s.now().UTC().Format("2006/01"), digest+ext)
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	dir := filepath.Dir(full)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	tmp, err := writeTemp(dir, data)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	s.mu.Lock()
	defer s.mu.Unlock()
	created := true
	if err := os.Link(tmp, full); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("commit attachment: %w", err)
		}
		created = false
	}
	s.claims[rel]++

	return &Stored{
		Path:    rel,
		URL:     s.urlPrefix + "/" + rel,
		Digest:  digest,
		Size:    int64(len(data)),
		Created: created,
	}, nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return name, nil
}

// Release settles a claim whose attachment was committed.
func (s *LocalStore) Release(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(rel)
}

func (s *LocalStore) release(rel string) int {
	n := s.claims[rel] - 1
	if n <= 0 {
		delete(s.claims, rel)
		return 0
	}
	s.claims[rel] = n
	return n
}

// Discard settles a claim whose attachment was rolled back. The file is
// removed only when no other save still claims it and referenced reports
// that no committed record points at it.
func (s *LocalStore) Discard(rel string, referenced func() (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release(rel) > 0 {
		return false, nil
	}
	inUse, err := referenced()
	if err != nil {
		return false, fmt.Errorf("check attachment references: %w", err)
	}
	if inUse {
		return false, nil
	}
	return true, s.remove(rel)
}

// remove deletes a stored file; a missing file is not an error.
func (s *LocalStore) remove(rel string) error {
	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+rel)))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
