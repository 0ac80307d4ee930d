package workflow

import (
	"context"
	"sync"
	"time"
)

// Store is the persistence collaborator. Save returning nil is the save
// acknowledgment that clears dirty state.
type Store interface {
	Save(ctx context.Context, wf *Workflow) error
	Load(ctx context.Context, id string) (*Workflow, error)
}

// MemoryStore keeps workflows in process memory. It is used when no database
// is configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*Workflow),
		now:       time.Now,
	}
}

// Save stores a deep copy of wf and stamps its timestamps.
func (s *MemoryStore) Save(_ context.Context, wf *Workflow) error {
	if err := Validate(wf); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.workflows[wf.ID]; ok {
		wf.CreatedAt = existing.CreatedAt
	} else if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now
	s.workflows[wf.ID] = wf.Definition()
	return nil
}

// Load returns a deep copy of the stored workflow.
func (s *MemoryStore) Load(_ context.Context, id string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return wf.Clone(), nil
}
