package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wdicli/internal/dataset"
	"wdicli/internal/detection"
)

// Profile captures what detection learned about a dataset at ingest time:
// per-role column candidates and the best template match with its
// suggested role mapping.
type Profile struct {
	Candidates detection.Candidates `json:"candidates"`
	Match      detection.Match      `json:"match"`
}

// StoredDataset is a dataset held in the store together with its profile.
type StoredDataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
	Profile   Profile   `json:"profile"`

	Dataset *dataset.Dataset `json:"-"`
}

// DatasetStore is an in-memory, bounded dataset store keyed by UUID.
type DatasetStore struct {
	mu       sync.RWMutex
	items    map[string]*StoredDataset
	capacity int
}

// NewDatasetStore creates a store holding at most capacity datasets.
// A capacity of zero or less means unbounded.
func NewDatasetStore(capacity int) *DatasetStore {
	return &DatasetStore{
		items:    make(map[string]*StoredDataset),
		capacity: capacity,
	}
}

// Put stores a dataset and returns its assigned ID. Returns ErrStoreFull
// when the store is at capacity.
func (s *DatasetStore) Put(entry *StoredDataset) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(s.items) >= s.capacity {
		return "", ErrStoreFull
	}

	id := uuid.New().String()
	entry.ID = id
	entry.CreatedAt = time.Now().UTC()
	s.items[id] = entry
	return id, nil
}

// Get returns the dataset with the given ID or ErrDatasetNotFound.
func (s *DatasetStore) Get(id string) (*StoredDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.items[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return entry, nil
}

// List returns all stored datasets ordered by creation time, newest first.
func (s *DatasetStore) List() []*StoredDataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*StoredDataset, 0, len(s.items))
	for _, entry := range s.items {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes the dataset with the given ID or returns
// ErrDatasetNotFound.
func (s *DatasetStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrDatasetNotFound
	}
	delete(s.items, id)
	return nil
}

// Len returns the number of stored datasets.
func (s *DatasetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
