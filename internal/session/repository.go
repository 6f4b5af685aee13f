package session

import (
	"errors"
	"sort"
	"sync"
)

// Repository defines the concurrency-safe contract for tracking mounted
// sessions.
type Repository interface {
	// Add registers a mounted session. It fails with ErrSessionExists if a
	// session for the same media is already mounted.
	Add(s *Session) error

	// Get returns the session mounted for id.
	Get(id MediaID) (*Session, bool)

	// Remove unregisters and returns the session mounted for id.
	Remove(id MediaID) (*Session, bool)

	// List returns the mounted media ids in lexical order.
	List() []MediaID

	// ActiveCount returns the number of mounted sessions.
	// Used for metrics.
	ActiveCount() int
}

var (
	// ErrSessionExists is returned when mounting media that is already mounted.
	ErrSessionExists = errors.New("session already mounted")

	// ErrSessionNotFound is returned when addressing media that is not mounted.
	ErrSessionNotFound = errors.New("session not found")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for lookup; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Add implements Repository.Add.
func (r *InMemoryRepository) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID()); exists {
		return ErrSessionExists
	}
	r.store.SetSession(s)
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id MediaID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetSession(id)
}

// Remove implements Repository.Remove.
func (r *InMemoryRepository) Remove(id MediaID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return nil, false
	}
	r.store.DeleteSession(id)
	return s, true
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []MediaID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListMediaIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ActiveCount implements Repository.ActiveCount.
func (r *InMemoryRepository) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListMediaIDs())
}
