package clients

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound indicates the client does not exist in the store.
var ErrNotFound = errors.New("clients: not found")

// TxFunc computes the next client collection from the previous one. It must
// not retain or mutate prev; the returned slice replaces the store contents.
type TxFunc func(prev []Client) ([]Client, error)

// Store is the single shared client collection.
type Store interface {
	Snapshot(ctx context.Context) ([]Client, error)
	Update(ctx context.Context, fn TxFunc) error
}

// Find returns the client with the given id from a snapshot.
func Find(list []Client, id string) (Client, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return Client{}, false
}

// MemoryStore keeps the portfolio in process memory. Update holds one lock
// across snapshot, compute and replace.
type MemoryStore struct {
	mu      sync.Mutex
	clients []Client
}

// NewMemoryStore builds a store seeded with a copy of initial.
func NewMemoryStore(initial []Client) *MemoryStore {
	return &MemoryStore{clients: CloneAll(initial)}
}

// Snapshot returns a deep copy of the current collection.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneAll(s.clients), nil
}

// Update applies fn and swaps the collection in one assignment.
func (s *MemoryStore) Update(ctx context.Context, fn TxFunc) error {
	if fn == nil {
		return errors.New("clients: update func required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(CloneAll(s.clients))
	if err != nil {
		return err
	}
	s.clients = next
	return nil
}

type seedFile struct {
	Clients []Client `yaml:"clients"`
}

// LoadSeed reads a YAML portfolio file.
func LoadSeed(path string) ([]Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clients: read seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("clients: parse seed: %w", err)
	}
	for _, c := range seed.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("clients: seed entry %q missing id", c.Name)
		}
	}
	return seed.Clients, nil
}
