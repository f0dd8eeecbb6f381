package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrReleased = errors.New("preview already released")

// Preview is the staged copy of an accepted file and the only copy the
// commit reads from. The owning pending entry releases it exactly once,
// however many times Release is called.
type Preview struct {
	Key string

	mu       sync.Mutex
	read     func() ([]byte, error)
	release  func() error
	released bool
	err      error
}

func NewPreview(key string, read func() ([]byte, error), release func() error) *Preview {
	return &Preview{Key: key, read: read, release: release}
}

// Bytes returns the staged content. It fails once the preview is released.
func (p *Preview) Bytes() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrReleased
	}
	return p.read()
}

func (p *Preview) Release() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return p.err
	}
	p.released = true
	if p.release != nil {
		p.err = p.release()
	}
	return p.err
}

type Stager interface {
	Stage(name string, data []byte) (*Preview, error)
}

// TempStager spools converted files into Dir; commit reads them back from there.
type TempStager struct {
	Dir string
}

func (s TempStager) Stage(name string, data []byte) (*Preview, error) {
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "preview-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create preview: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write preview: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close preview: %w", err)
	}
	return NewPreview(path, func() ([]byte, error) {
		return os.ReadFile(path)
	}, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}), nil
}
