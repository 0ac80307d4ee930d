package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"workflow-builder/api/services/catalog"
	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/properties"
	"workflow-builder/api/services/workflow"
)

var (
	ErrUnknownTemplate = errors.New("unknown node template")
	ErrNoSelection     = errors.New("no node selected")
)

// Deps are the collaborators shared by every open editor.
type Deps struct {
	Store    workflow.Store
	Engine   *execution.Engine
	Resolver *properties.Resolver
	Catalog  *catalog.Catalog
}

// Editor composes the graph, tracker, engine and resolver of one open
// workflow. It holds no state of its own beyond workflow metadata.
type Editor struct {
	deps    Deps
	graph   *workflow.Graph
	tracker *workflow.Tracker

	mu   sync.RWMutex
	meta workflow.Workflow
}

// Open builds an editor over wf. The graph starts clean.
func Open(wf *workflow.Workflow, deps Deps) (*Editor, error) {
	tracker := workflow.NewTracker()
	graph := workflow.NewGraph(workflow.WithObserver(tracker))
	if err := graph.Load(wf); err != nil {
		return nil, err
	}
	meta := *wf
	meta.Nodes, meta.Edges = nil, nil
	return &Editor{deps: deps, graph: graph, tracker: tracker, meta: meta}, nil
}

func (e *Editor) ID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta.ID
}

// Workflow returns a snapshot of the workflow as it would be saved now.
func (e *Editor) Workflow() *workflow.Workflow {
	e.mu.RLock()
	wf := e.meta
	e.mu.RUnlock()
	wf.Nodes, wf.Edges = e.graph.Snapshot()
	return &wf
}

// Selection returns the selection and dirty state.
func (e *Editor) Selection() workflow.Selection {
	return e.tracker.Snapshot()
}

// SetMeta updates the workflow name and active flag. Metadata is persisted
// with the next save but does not mark the graph dirty.
func (e *Editor) SetMeta(name *string, active *bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name != nil {
		e.meta.Name = *name
	}
	if active != nil {
		e.meta.Active = *active
	}
}

// Save persists the current snapshot and clears dirty state unless the graph
// changed while the save was in flight.
func (e *Editor) Save(ctx context.Context) (*workflow.Workflow, error) {
	rev := e.tracker.Revision()
	wf := e.Workflow()
	if err := e.deps.Store.Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	e.tracker.Acknowledge(rev)

	e.mu.Lock()
	e.meta.CreatedAt, e.meta.UpdatedAt = wf.CreatedAt, wf.UpdatedAt
	e.mu.Unlock()
	return wf, nil
}

// AddNode instantiates a catalog template.
func (e *Editor) AddNode(templateID string, pos workflow.Position) (workflow.Node, error) {
	tmpl, ok := e.deps.Catalog.Get(templateID)
	if !ok {
		return workflow.Node{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}
	return e.graph.AddNode(tmpl, pos)
}

func (e *Editor) ApplyNodeChanges(changes []workflow.NodeChange) ([]workflow.Node, error) {
	return e.graph.ApplyNodeChanges(changes)
}

func (e *Editor) ApplyEdgeChanges(changes []workflow.EdgeChange) ([]workflow.Edge, error) {
	return e.graph.ApplyEdgeChanges(changes)
}

func (e *Editor) Connect(c workflow.Connection) (workflow.Edge, error) {
	return e.graph.Connect(c)
}

// Select focuses a node; "" clears the focus.
func (e *Editor) Select(nodeID string) error {
	return e.graph.SelectNode(nodeID)
}

// DeleteSelected removes the selected and focused nodes. It returns the ids
// that were removed.
func (e *Editor) DeleteSelected() ([]string, error) {
	ids := e.tracker.DeletionSet()
	if err := e.graph.DeleteNodes(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateConfig decodes raw as the configuration of the node's type.
func (e *Editor) UpdateConfig(nodeID string, raw json.RawMessage) (workflow.Node, error) {
	node, ok := e.graph.Node(nodeID)
	if !ok {
		return workflow.Node{}, workflow.ErrUnknownNode
	}
	cfg, err := workflow.DecodeConfigJSON(node.Type, raw)
	if err != nil {
		return workflow.Node{}, &workflow.GraphError{Code: workflow.CodeConfigMismatch, ID: nodeID, Message: err.Error()}
	}
	if err := e.graph.UpdateNodeConfig(nodeID, cfg); err != nil {
		return workflow.Node{}, err
	}
	node, _ = e.graph.Node(nodeID)
	return node, nil
}

// SetCredential binds ref to a node; nil unbinds.
func (e *Editor) SetCredential(nodeID string, ref *workflow.CredentialRef) (workflow.Node, error) {
	if err := e.graph.SetNodeCredential(nodeID, ref); err != nil {
		return workflow.Node{}, err
	}
	node, _ := e.graph.Node(nodeID)
	return node, nil
}

// SetContinueOnFail toggles the per-node failure policy.
func (e *Editor) SetContinueOnFail(nodeID string, enabled bool) (workflow.Node, error) {
	if err := e.graph.SetContinueOnFail(nodeID, enabled); err != nil {
		return workflow.Node{}, err
	}
	node, _ := e.graph.Node(nodeID)
	return node, nil
}

// Properties resolves the properties panel of a node.
func (e *Editor) Properties(ctx context.Context, nodeID string) (*properties.Properties, error) {
	node, ok := e.graph.Node(nodeID)
	if !ok {
		return nil, workflow.ErrUnknownNode
	}
	return e.deps.Resolver.Resolve(ctx, node)
}

// ResolveSelected resolves the focused node.
func (e *Editor) ResolveSelected(ctx context.Context) (*properties.Properties, error) {
	id := e.tracker.SelectedNodeID()
	if id == "" {
		return nil, ErrNoSelection
	}
	return e.Properties(ctx, id)
}

// Execute starts a run of the current graph. Node statuses are written back
// to the graph as the run progresses.
func (e *Editor) Execute(ctx context.Context) (*execution.Execution, error) {
	return e.deps.Engine.Start(ctx, e.Workflow(), e.graph)
}

func (e *Editor) Stop() (*execution.Execution, error) {
	return e.deps.Engine.Stop(e.ID())
}

func (e *Editor) CurrentExecution() (*execution.Execution, error) {
	return e.deps.Engine.Current(e.ID())
}

func (e *Editor) Executions() []*execution.Execution {
	return e.deps.Engine.History(e.ID())
}

// Execution finds a run of this workflow by id.
func (e *Editor) Execution(execID string) (*execution.Execution, error) {
	for _, x := range e.deps.Engine.History(e.ID()) {
		if x.ID() == execID {
			return x, nil
		}
	}
	return nil, execution.ErrNoExecution
}

func (e *Editor) ClearLogs(execID string) error {
	return e.deps.Engine.ClearLogs(e.ID(), execID)
}
