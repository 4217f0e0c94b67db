package markerstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core/event"
)

// fileStore persists announcement "sent" markers as a flat
// {"<phase>:<eventDate>": true} JSON file.
type fileStore struct {
	mu   sync.Mutex
	path string
}

var _ event.MarkerStore = (*fileStore)(nil) // interface compliance check

func NewFileStore(path string) event.MarkerStore {
	return &fileStore{path: path}
}

func (s *fileStore) Sent(eventDate string, phase event.Phase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers, err := s.load()
	if err != nil {
		return false, err
	}
	return markers[event.AnnouncementKey(phase, eventDate)], nil
}

func (s *fileStore) MarkSent(eventDate string, phase event.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers, err := s.load()
	if err != nil {
		return err
	}
	markers[event.AnnouncementKey(phase, eventDate)] = true

	data, err := json.MarshalIndent(markers, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling markers")
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(s.path))
	}
	return errors.Wrapf(os.WriteFile(s.path, data, 0644), "writing %s", s.path)
}

func (s *fileStore) load() (map[string]bool, error) {
	markers := make(map[string]bool)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return markers, nil
		}
		return nil, errors.Wrapf(err, "reading %s", s.path)
	}
	// a corrupt marker file degrades to "nothing sent"; the server-side
	// idempotency check still prevents duplicate announcements
	_ = json.Unmarshal(data, &markers)
	return markers, nil
}

// DummyStore is an in-memory event.MarkerStore for tests.
type DummyStore struct {
	mu      sync.Mutex
	markers map[string]bool

	SentErr error
	MarkErr error
}

var _ event.MarkerStore = (*DummyStore)(nil)

func NewDummyStore() *DummyStore {
	return &DummyStore{markers: make(map[string]bool)}
}

func (s *DummyStore) Sent(eventDate string, phase event.Phase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SentErr != nil {
		return false, s.SentErr
	}
	return s.markers[event.AnnouncementKey(phase, eventDate)], nil
}

func (s *DummyStore) MarkSent(eventDate string, phase event.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	s.markers[event.AnnouncementKey(phase, eventDate)] = true
	return nil
}
