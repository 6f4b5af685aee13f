package session

// Store is the lookup abstraction for mounted sessions.
// The Repository uses Store for all reads and writes; callers of Repository
// do not need to know which Store is used.
type Store interface {
	GetSession(id MediaID) (*Session, bool)
	SetSession(s *Session)
	DeleteSession(id MediaID)
	ListMediaIDs() []MediaID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	sessions map[MediaID]*Session
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[MediaID]*Session),
	}
}

// GetSession implements Store.GetSession.
func (s *InMemoryStore) GetSession(id MediaID) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// SetSession implements Store.SetSession.
func (s *InMemoryStore) SetSession(sess *Session) {
	s.sessions[sess.ID()] = sess
}

// DeleteSession implements Store.DeleteSession.
func (s *InMemoryStore) DeleteSession(id MediaID) {
	delete(s.sessions, id)
}

// ListMediaIDs implements Store.ListMediaIDs.
func (s *InMemoryStore) ListMediaIDs() []MediaID {
	ids := make([]MediaID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
