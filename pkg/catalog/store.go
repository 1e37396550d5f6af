package catalog

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is the immutable-at-runtime descriptor catalog. Lookups are
// lock-free on a snapshot map; Reload swaps the snapshot atomically so
// in-flight requests keep the descriptor set they started with.
type Store struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewStore builds a store from the given descriptors. Duplicate ids are
// rejected; a store is normally seeded from BuiltinDescriptors.
func NewStore(descriptors []*Descriptor) (*Store, error) {
	byID := make(map[string]*Descriptor, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("descriptor with empty id")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate descriptor id %q", d.ID)
		}
		if err := d.compilePatterns(); err != nil {
			return nil, err
		}
		byID[d.ID] = d
	}
	return &Store{descriptors: byID}, nil
}

// Get returns the descriptor with the given id, or false if unknown.
func (s *Store) Get(id string) (*Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[id]
	return d, ok
}

// IDs returns the ids of all registered descriptors.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.descriptors))
	for id := range s.descriptors {
		ids = append(ids, id)
	}
	return ids
}

// Reload replaces the catalog with descriptors loaded from a YAML file.
// This is an administrative operation; it validates the full file before
// swapping, so a malformed file never leaves a half-updated catalog.
func (s *Store) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read descriptor file: %w", err)
	}

	var file struct {
		Descriptors []*Descriptor `yaml:"descriptors"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse descriptor file: %w", err)
	}
	if len(file.Descriptors) == 0 {
		return fmt.Errorf("descriptor file %q contains no descriptors", path)
	}

	replacement, err := NewStore(file.Descriptors)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.descriptors = replacement.descriptors
	s.mu.Unlock()
	return nil
}
