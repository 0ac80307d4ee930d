package workflow

import (
	"slices"
	"sort"
	"sync"
)

// Tracker records which nodes and edges are selected and whether the graph
// has changed since the last acknowledged save. It is fed by a Graph through
// the Observer interface.
//
// Dirty state only ever clears through Acknowledge; every structural mutation
// bumps the revision and sets it again.
type Tracker struct {
	mu             sync.RWMutex
	selectedNodeID string
	selectedNodes  map[string]struct{}
	selectedEdges  map[string]struct{}
	dirty          bool
	revision       uint64
}

// Selection is a point-in-time view of the tracker.
type Selection struct {
	SelectedNodeID string   `json:"selectedNodeId,omitempty"`
	SelectedNodes  []string `json:"selectedNodes"`
	SelectedEdges  []string `json:"selectedEdges"`
	IsDirty        bool     `json:"isDirty"`
	Revision       uint64   `json:"revision"`
}

func NewTracker() *Tracker {
	return &Tracker{
		selectedNodes: make(map[string]struct{}),
		selectedEdges: make(map[string]struct{}),
	}
}

// GraphChanged implements Observer.
func (t *Tracker) GraphChanged(m Mutation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m.Reset {
		t.selectedNodeID = ""
		clear(t.selectedNodes)
		clear(t.selectedEdges)
		t.dirty = false
		t.revision++
		return
	}

	for id, selected := range m.NodeSelection {
		if selected {
			t.selectedNodes[id] = struct{}{}
		} else {
			delete(t.selectedNodes, id)
		}
	}
	for id, selected := range m.EdgeSelection {
		if selected {
			t.selectedEdges[id] = struct{}{}
		} else {
			delete(t.selectedEdges, id)
		}
	}
	for _, id := range m.RemovedNodes {
		delete(t.selectedNodes, id)
		if t.selectedNodeID == id {
			t.selectedNodeID = ""
		}
	}
	for _, id := range m.RemovedEdges {
		delete(t.selectedEdges, id)
	}
	if m.Focus != nil {
		t.selectedNodeID = *m.Focus
	}

	if m.Dirty {
		t.dirty = true
		t.revision++
	}
}

// IsDirty reports whether the graph differs from the last acknowledged save.
func (t *Tracker) IsDirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty
}

// Revision returns the current mutation counter. Capture it before taking the
// snapshot that gets saved.
func (t *Tracker) Revision() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// Acknowledge clears the dirty flag if no mutation happened after revision.
// It reports whether the workflow is now clean.
func (t *Tracker) Acknowledge(revision uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if revision == t.revision {
		t.dirty = false
	}
	return !t.dirty
}

// SelectedNodeID returns the focused node, or "".
func (t *Tracker) SelectedNodeID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selectedNodeID
}

// SelectedNodes returns the multi-selection, sorted.
func (t *Tracker) SelectedNodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.selectedNodes)
}

// SelectedEdges returns the selected edge ids, sorted.
func (t *Tracker) SelectedEdges() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.selectedEdges)
}

// Snapshot returns the full selection and dirty state.
func (t *Tracker) Snapshot() Selection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Selection{
		SelectedNodeID: t.selectedNodeID,
		SelectedNodes:  sortedKeys(t.selectedNodes),
		SelectedEdges:  sortedKeys(t.selectedEdges),
		IsDirty:        t.dirty,
		Revision:       t.revision,
	}
}

// DeletionSet returns the nodes a "delete selected" action should remove: the
// multi-selection plus the focused node.
func (t *Tracker) DeletionSet() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := sortedKeys(t.selectedNodes)
	if t.selectedNodeID != "" && !slices.Contains(ids, t.selectedNodeID) {
		ids = append(ids, t.selectedNodeID)
	}
	return ids
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
