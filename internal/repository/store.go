package repository

import (
	"context"
	"sync"

	"team-chat/internal/domain"
)

// Store persists session transcripts.
type Store interface {
	Append(ctx context.Context, sessionID string, entry domain.Entry) error
	Load(ctx context.Context, sessionID string) (domain.Transcript, error)
}

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Transcript
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Transcript)}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, entry domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], entry)
	return nil
}

// Load returns a copy of the session transcript; unknown sessions are empty.
func (m *MemoryStore) Load(_ context.Context, sessionID string) (domain.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(domain.Transcript(nil), m.sessions[sessionID]...), nil
}
