package workflow

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// maxIDAttempts bounds id regeneration when a generator keeps colliding.
const maxIDAttempts = 32

// Mutation describes one change applied by the Graph. Observers use it to keep
// selection and dirty state in step with the graph.
type Mutation struct {
	// Dirty is set for every change that alters what would be persisted.
	Dirty bool
	// Reset is set when the whole graph was replaced by Load.
	Reset bool

	RemovedNodes  []string
	RemovedEdges  []string
	NodeSelection map[string]bool
	EdgeSelection map[string]bool

	// Focus is non-nil when SelectNode was called; "" clears the focus.
	Focus *string
}

// Observer receives every applied Mutation, after the graph lock is released.
type Observer interface {
	GraphChanged(Mutation)
}

// Graph owns the node and edge collections of a single workflow. Every
// structural change goes through it so that edges never reference missing
// nodes and ids stay unique.
type Graph struct {
	mu       sync.RWMutex
	nodes    []Node
	edges    []Edge
	observer Observer
	newID    func(prefix string) string
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithObserver registers the observer notified of every mutation.
func WithObserver(o Observer) GraphOption {
	return func(g *Graph) { g.observer = o }
}

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func(prefix string) string) GraphOption {
	return func(g *Graph) { g.newID = fn }
}

// NewGraph creates an empty Graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		newID: func(prefix string) string { return prefix + "_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load replaces the graph with the nodes and edges of wf. The workflow is
// validated first; an invalid workflow leaves the graph untouched. Every
// node starts in StatusInitial whatever status wf carries.
func (g *Graph) Load(wf *Workflow) error {
	if err := Validate(wf); err != nil {
		return err
	}
	nodes := cloneNodes(wf.Nodes)
	for i := range nodes {
		nodes[i].Status = StatusInitial
	}

	g.mu.Lock()
	g.nodes = nodes
	g.edges = append([]Edge(nil), wf.Edges...)
	g.mu.Unlock()

	g.notify(Mutation{Reset: true})
	return nil
}

// Nodes returns a copy of the nodes in declaration order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneNodes(g.nodes)
}

// Edges returns a copy of the edges in declaration order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

// Snapshot returns consistent copies of nodes and edges taken under one lock.
func (g *Graph) Snapshot() ([]Node, []Edge) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneNodes(g.nodes), slices.Clone(g.edges)
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i := indexOfNode(g.nodes, id); i >= 0 {
		return g.nodes[i].Clone(), true
	}
	return Node{}, false
}

// Connection is a request to link two nodes, as produced by the canvas.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Connect creates an edge between two existing nodes. Connecting the same
// endpoints and handles twice returns the existing edge.
func (g *Graph) Connect(c Connection) (Edge, error) {
	g.mu.Lock()
	if indexOfNode(g.nodes, c.Source) < 0 {
		g.mu.Unlock()
		return Edge{}, graphErr(CodeInvalidConnection, c.Source, "source node does not exist")
	}
	if indexOfNode(g.nodes, c.Target) < 0 {
		g.mu.Unlock()
		return Edge{}, graphErr(CodeInvalidConnection, c.Target, "target node does not exist")
	}
	for _, e := range g.edges {
		if e.Source == c.Source && e.Target == c.Target &&
			e.SourceHandle == c.SourceHandle && e.TargetHandle == c.TargetHandle {
			g.mu.Unlock()
			return e, nil
		}
	}

	id, err := g.freshID("edge", func(id string) bool { return indexOfEdge(g.edges, id) >= 0 })
	if err != nil {
		g.mu.Unlock()
		return Edge{}, err
	}
	edge := Edge{
		ID:           id,
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
	}
	g.edges = append(g.edges, edge)
	g.mu.Unlock()

	g.notify(Mutation{Dirty: true})
	return edge, nil
}

// AddNode instantiates a node from a catalog template at the given position.
func (g *Graph) AddNode(tmpl NodeTemplate, pos Position) (Node, error) {
	if !tmpl.Type.Valid() {
		return Node{}, graphErr(CodeInvalidNode, tmpl.ID, "unknown node type %q", tmpl.Type)
	}
	cfg := tmpl.DefaultConfig
	if cfg == nil {
		cfg = NewConfig(tmpl.Type)
	} else if cfg.NodeType() != tmpl.Type {
		return Node{}, graphErr(CodeConfigMismatch, tmpl.ID, "template config is for %s", cfg.NodeType())
	}

	g.mu.Lock()
	id, err := g.freshID("node", func(id string) bool { return indexOfNode(g.nodes, id) >= 0 })
	if err != nil {
		g.mu.Unlock()
		return Node{}, err
	}
	node := Node{
		ID:         id,
		Type:       tmpl.Type,
		TemplateID: tmpl.ID,
		Label:      tmpl.Label,
		Position:   pos,
		Config:     cfg.Clone(),
		Status:     StatusInitial,
	}
	g.nodes = append(g.nodes, node)
	g.mu.Unlock()

	g.notify(Mutation{Dirty: true})
	return node.Clone(), nil
}

// DeleteNodes removes the given nodes and every edge touching them. Unknown
// ids reject the whole call. An empty set is a no-op.
func (g *Graph) DeleteNodes(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	g.mu.Lock()
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if indexOfNode(g.nodes, id) < 0 {
			g.mu.Unlock()
			return graphErr(CodeUnknownNode, id, "cannot delete")
		}
		doomed[id] = true
	}
	nodes, edges, removedNodes, removedEdges := removeNodes(g.nodes, g.edges, doomed)
	g.nodes, g.edges = nodes, edges
	g.mu.Unlock()

	g.notify(Mutation{Dirty: true, RemovedNodes: removedNodes, RemovedEdges: removedEdges})
	return nil
}

// SelectNode sets the single focused node used by the properties panel. An
// empty id clears it. Focus is not persisted, so this does not mark dirty.
func (g *Graph) SelectNode(id string) error {
	if id != "" {
		g.mu.RLock()
		known := indexOfNode(g.nodes, id) >= 0
		g.mu.RUnlock()
		if !known {
			return graphErr(CodeUnknownNode, id, "cannot select")
		}
	}
	g.notify(Mutation{Focus: &id})
	return nil
}

// UpdateNodeConfig replaces a node's configuration. The config must belong to
// the node's type.
func (g *Graph) UpdateNodeConfig(id string, cfg NodeConfig) error {
	if cfg == nil {
		return graphErr(CodeConfigMismatch, id, "config is required")
	}
	g.mu.Lock()
	i := indexOfNode(g.nodes, id)
	if i < 0 {
		g.mu.Unlock()
		return graphErr(CodeUnknownNode, id, "cannot configure")
	}
	if cfg.NodeType() != g.nodes[i].Type {
		g.mu.Unlock()
		return graphErr(CodeConfigMismatch, id, "node is %s, config is for %s", g.nodes[i].Type, cfg.NodeType())
	}
	g.nodes[i].Config = cfg.Clone()
	g.mu.Unlock()

	g.notify(Mutation{Dirty: true})
	return nil
}

// SetNodeCredential binds (or with nil, unbinds) a vault credential.
func (g *Graph) SetNodeCredential(id string, ref *CredentialRef) error {
	g.mu.Lock()
	i := indexOfNode(g.nodes, id)
	if i < 0 {
		g.mu.Unlock()
		return graphErr(CodeUnknownNode, id, "cannot bind credential")
	}
	if ref != nil {
		copied := *ref
		ref = &copied
	}
	g.nodes[i].CredentialRef = ref
	g.mu.Unlock()

	g.notify(Mutation{Dirty: true})
	return nil
}

// SetContinueOnFail toggles whether a failure of this node halts the run.
func (g *Graph) SetContinueOnFail(id string, enabled bool) error {
	g.mu.Lock()
	i := indexOfNode(g.nodes, id)
	if i < 0 {
		g.mu.Unlock()
		return graphErr(CodeUnknownNode, id, "cannot update settings")
	}
	g.nodes[i].ContinueOnFail = enabled
	g.mu.Unlock()

	g.notify(Mutation{Dirty: true})
	return nil
}

// SetNodeStatus records execution progress. Status is runtime state and
// does not mark the workflow dirty. Unknown ids are ignored because the node
// may have been deleted while a run was in flight.
func (g *Graph) SetNodeStatus(id string, status NodeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := indexOfNode(g.nodes, id); i >= 0 {
		g.nodes[i].Status = status
	}
}

// ResetStatuses puts every node back to StatusInitial.
func (g *Graph) ResetStatuses() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.nodes {
		g.nodes[i].Status = StatusInitial
	}
}

func (g *Graph) notify(m Mutation) {
	if g.observer != nil {
		g.observer.GraphChanged(m)
	}
}

// freshID must be called with g.mu held.
func (g *Graph) freshID(prefix string, taken func(string) bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		if id := g.newID(prefix); id != "" && !taken(id) {
			return id, nil
		}
	}
	return "", graphErr(CodeDuplicateID, "", "could not generate a unique %s id", prefix)
}

func indexOfNode(nodes []Node, id string) int {
	return slices.IndexFunc(nodes, func(n Node) bool { return n.ID == id })
}

func indexOfEdge(edges []Edge, id string) int {
	return slices.IndexFunc(edges, func(e Edge) bool { return e.ID == id })
}

// removeNodes drops doomed nodes and cascades to their edges. The inputs are
// not modified.
func removeNodes(nodes []Node, edges []Edge, doomed map[string]bool) ([]Node, []Edge, []string, []string) {
	var removedNodes, removedEdges []string
	keptNodes := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if doomed[n.ID] {
			removedNodes = append(removedNodes, n.ID)
			continue
		}
		keptNodes = append(keptNodes, n)
	}
	keptEdges := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if doomed[e.Source] || doomed[e.Target] {
			removedEdges = append(removedEdges, e.ID)
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	return keptNodes, keptEdges, removedNodes, removedEdges
}
