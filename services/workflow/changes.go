package workflow

import (
	"slices"
)

// ChangeType is the kind of a canvas delta.
type ChangeType string

const (
	ChangePosition ChangeType = "position"
	ChangeRemove   ChangeType = "remove"
	ChangeSelect   ChangeType = "select"
	ChangeAdd      ChangeType = "add"
)

// NodeChange is one node delta as emitted by the canvas.
type NodeChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id,omitempty"`
	Position *Position  `json:"position,omitempty"`
	Selected bool       `json:"selected,omitempty"`
	Item     *Node      `json:"item,omitempty"`
}

// EdgeChange is one edge delta as emitted by the canvas.
type EdgeChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id,omitempty"`
	Selected bool       `json:"selected,omitempty"`
	Item     *Edge      `json:"item,omitempty"`
}

// ApplyNodeChanges applies a batch of node deltas atomically: either every
// change is valid and applied, or the graph is unchanged and the first
// violation is returned. Removing a node removes the edges that touch it.
func (g *Graph) ApplyNodeChanges(changes []NodeChange) ([]Node, error) {
	if len(changes) == 0 {
		return g.Nodes(), nil
	}

	g.mu.Lock()
	nodes := cloneNodes(g.nodes)
	edges := slices.Clone(g.edges)
	m := Mutation{Dirty: true}

	for _, ch := range changes {
		switch ch.Type {
		case ChangePosition:
			i := indexOfNode(nodes, ch.ID)
			if i < 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeUnknownNode, ch.ID, "cannot move")
			}
			if ch.Position != nil {
				nodes[i].Position = *ch.Position
			}
		case ChangeRemove:
			if indexOfNode(nodes, ch.ID) < 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeUnknownNode, ch.ID, "cannot remove")
			}
			var rn, re []string
			nodes, edges, rn, re = removeNodes(nodes, edges, map[string]bool{ch.ID: true})
			m.RemovedNodes = append(m.RemovedNodes, rn...)
			m.RemovedEdges = append(m.RemovedEdges, re...)
		case ChangeSelect:
			if indexOfNode(nodes, ch.ID) < 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeUnknownNode, ch.ID, "cannot select")
			}
			if m.NodeSelection == nil {
				m.NodeSelection = make(map[string]bool)
			}
			m.NodeSelection[ch.ID] = ch.Selected
		case ChangeAdd:
			node, err := validateNewNode(nodes, ch.Item)
			if err != nil {
				g.mu.Unlock()
				return nil, err
			}
			nodes = append(nodes, node)
		default:
			g.mu.Unlock()
			return nil, graphErr(CodeInvalidNode, ch.ID, "unsupported change type %q", ch.Type)
		}
	}

	g.nodes, g.edges = nodes, edges
	out := cloneNodes(nodes)
	g.mu.Unlock()

	g.notify(m)
	return out, nil
}

// ApplyEdgeChanges applies a batch of edge deltas atomically.
func (g *Graph) ApplyEdgeChanges(changes []EdgeChange) ([]Edge, error) {
	if len(changes) == 0 {
		return g.Edges(), nil
	}

	g.mu.Lock()
	edges := slices.Clone(g.edges)
	m := Mutation{Dirty: true}

	for _, ch := range changes {
		switch ch.Type {
		case ChangeRemove:
			i := indexOfEdge(edges, ch.ID)
			if i < 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeUnknownEdge, ch.ID, "cannot remove")
			}
			edges = slices.Delete(edges, i, i+1)
			m.RemovedEdges = append(m.RemovedEdges, ch.ID)
		case ChangeSelect:
			if indexOfEdge(edges, ch.ID) < 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeUnknownEdge, ch.ID, "cannot select")
			}
			if m.EdgeSelection == nil {
				m.EdgeSelection = make(map[string]bool)
			}
			m.EdgeSelection[ch.ID] = ch.Selected
		case ChangeAdd:
			if ch.Item == nil || ch.Item.ID == "" {
				g.mu.Unlock()
				return nil, graphErr(CodeInvalidConnection, "", "edge id is required")
			}
			if indexOfEdge(edges, ch.Item.ID) >= 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeDuplicateID, ch.Item.ID, "edge already exists")
			}
			if indexOfNode(g.nodes, ch.Item.Source) < 0 || indexOfNode(g.nodes, ch.Item.Target) < 0 {
				g.mu.Unlock()
				return nil, graphErr(CodeInvalidConnection, ch.Item.ID, "endpoint does not exist")
			}
			edges = append(edges, *ch.Item)
		default:
			g.mu.Unlock()
			return nil, graphErr(CodeInvalidConnection, ch.ID, "unsupported change type %q", ch.Type)
		}
	}

	g.edges = edges
	out := slices.Clone(edges)
	g.mu.Unlock()

	g.notify(m)
	return out, nil
}

func validateNewNode(nodes []Node, item *Node) (Node, error) {
	if item == nil || item.ID == "" {
		return Node{}, graphErr(CodeInvalidNode, "", "node id is required")
	}
	if indexOfNode(nodes, item.ID) >= 0 {
		return Node{}, graphErr(CodeDuplicateID, item.ID, "node already exists")
	}
	if !item.Type.Valid() {
		return Node{}, graphErr(CodeInvalidNode, item.ID, "unknown node type %q", item.Type)
	}
	node := item.Clone()
	if node.Config == nil {
		node.Config = NewConfig(node.Type)
	} else if node.Config.NodeType() != node.Type {
		return Node{}, graphErr(CodeConfigMismatch, node.ID, "config is for %s", node.Config.NodeType())
	}
	node.Status = StatusInitial
	return node, nil
}
