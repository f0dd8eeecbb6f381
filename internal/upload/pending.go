package upload

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

type Original struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Pending struct {
	ID          uuid.UUID `json:"id"`
	Original    Original  `json:"original"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	// Staged identifies the staged copy, e.g. its temp file path.
	Staged string `json:"-"`

	preview *Preview
}

// Data reads the converted file back from its staged copy.
func (p *Pending) Data() ([]byte, error) {
	return p.preview.Bytes()
}

// PendingSet is the ordered list of accepted files awaiting commit.
type PendingSet struct {
	mu    sync.Mutex
	items []*Pending
}

func (s *PendingSet) add(p *Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, p)
}

// Items returns a snapshot in insertion order.
func (s *PendingSet) Items() []*Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Pending, len(s.items))
	copy(out, s.items)
	return out
}

func (s *PendingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Remove drops exactly the entry with id and releases its preview.
func (s *PendingSet) Remove(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	var removed *Pending
	for i, p := range s.items {
		if p.ID == id {
			removed = p
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if removed == nil {
		return false, nil
	}
	return true, removed.preview.Release()
}

// Close releases every remaining preview and empties the set.
func (s *PendingSet) Close() error {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range items {
		if err := p.preview.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
