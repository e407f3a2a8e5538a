package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
)

// InMemorySnapshotStore is a snapshot.Repository backed by a map. Writes to
// a document name can be made to fail for persistence tests.
type InMemorySnapshotStore struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	failPuts map[string]error
	puts     map[string]int
}

var _ snapshot.Repository = (*InMemorySnapshotStore)(nil)

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		docs:     make(map[string][]byte),
		failPuts: make(map[string]error),
		puts:     make(map[string]int),
	}
}

func key(tenantID, name string) string {
	return fmt.Sprintf("%s/%s", strings.ToLower(tenantID), name)
}

func (s *InMemorySnapshotStore) Get(_ context.Context, tenantID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key(tenantID, name)]
	if !ok {
		return nil, ierr.NewErrorf("snapshot %s not found", name).
			Mark(ierr.ErrNotFound)
	}
	return append([]byte{}, data...), nil
}

func (s *InMemorySnapshotStore) Put(_ context.Context, tenantID, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failPuts[name]; ok {
		return err
	}
	s.docs[key(tenantID, name)] = append([]byte{}, data...)
	s.puts[key(tenantID, name)]++
	return nil
}

func (s *InMemorySnapshotStore) Delete(_ context.Context, tenantID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, key(tenantID, name))
	return nil
}

func (s *InMemorySnapshotStore) Close() error {
	return nil
}

// FailPuts makes every Put of the named document return err until
// RestorePuts is called
func (s *InMemorySnapshotStore) FailPuts(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ierr.NewErrorf("injected write failure for %s", name).Mark(ierr.ErrDatabase)
	}
	s.failPuts[name] = err
}

func (s *InMemorySnapshotStore) RestorePuts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts = make(map[string]error)
}

// Raw returns the stored bytes of a document, or nil
func (s *InMemorySnapshotStore) Raw(tenantID, name string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.docs[key(tenantID, name)]; ok {
		return append([]byte{}, data...)
	}
	return nil
}

// PutCount returns how many successful writes a document has seen
func (s *InMemorySnapshotStore) PutCount(tenantID, name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts[key(tenantID, name)]
}

func (s *InMemorySnapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string][]byte)
	s.failPuts = make(map[string]error)
	s.puts = make(map[string]int)
}
