package editor

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"workflow-builder/api/services/workflow"
)

// Sessions keeps one editor per open workflow. Editors are opened lazily from
// the store on first use.
type Sessions struct {
	deps Deps

	mu      sync.Mutex
	editors map[string]*Editor
}

func NewSessions(deps Deps) *Sessions {
	return &Sessions{deps: deps, editors: make(map[string]*Editor)}
}

// Get returns the editor for id, loading the workflow if it is not open. The
// store is read without holding the lock; when two callers race to open the
// same workflow the first editor registered wins.
func (s *Sessions) Get(ctx context.Context, id string) (*Editor, error) {
	s.mu.Lock()
	ed, ok := s.editors[id]
	s.mu.Unlock()
	if ok {
		return ed, nil
	}

	wf, err := s.deps.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	opened, err := Open(wf, s.deps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ed, ok := s.editors[id]; ok {
		return ed, nil
	}
	s.editors[id] = opened
	slog.Debug("Opened workflow editor", "id", id, "nodes", len(wf.Nodes))
	return opened, nil
}

// Create persists a new empty workflow and opens it.
func (s *Sessions) Create(ctx context.Context, name string) (*Editor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "My workflow"
	}
	wf := &workflow.Workflow{ID: uuid.NewString(), Name: name}
	if err := s.deps.Store.Save(ctx, wf); err != nil {
		return nil, err
	}
	ed, err := Open(wf, s.deps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.editors[wf.ID] = ed
	s.mu.Unlock()
	return ed, nil
}
