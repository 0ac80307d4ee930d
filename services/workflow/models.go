package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeType identifies the kind of work a node performs.
type NodeType string

const (
	ManualTrigger      NodeType = "manualTrigger"
	TelegramGetChat    NodeType = "telegramGetChat"
	EmailSend          NodeType = "emailSend"
	Webhook            NodeType = "webhook"
	Schedule           NodeType = "schedule"
	AppEvent           NodeType = "appEvent"
	FormSubmission     NodeType = "formSubmission"
	ExecutedByWorkflow NodeType = "executedByWorkflow"
	ChatMessage        NodeType = "chatMessage"
	Evaluation         NodeType = "evaluation"
	Other              NodeType = "other"
)

// NodeTypes lists every known node type in declaration order.
var NodeTypes = []NodeType{
	ManualTrigger, TelegramGetChat, EmailSend, Webhook, Schedule, AppEvent,
	FormSubmission, ExecutedByWorkflow, ChatMessage, Evaluation, Other,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NodeStatus is the per-node execution state shown on the canvas.
type NodeStatus string

const (
	StatusInitial NodeStatus = "initial"
	StatusRunning NodeStatus = "running"
	StatusSuccess NodeStatus = "success"
	StatusFailed  NodeStatus = "failed"
)

func (s NodeStatus) Valid() bool {
	switch s {
	case StatusInitial, StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Workflow is a persisted workflow definition. It owns its nodes and edges.
type Workflow struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Nodes = cloneNodes(w.Nodes)
	out.Edges = append([]Edge(nil), w.Edges...)
	return &out
}

// Definition returns a deep copy with every node status reset to initial.
// Statuses belong to a run and are never persisted.
func (w *Workflow) Definition() *Workflow {
	out := w.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Nodes {
		out.Nodes[i].Status = StatusInitial
	}
	return out
}

// Position holds x/y coordinates for rendering the node on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// CredentialRef points at a credential held by the external vault. It never
// carries secret material.
type CredentialRef struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
}

// Node is a single step in a workflow graph.
type Node struct {
	ID             string         `json:"id"`
	Type           NodeType       `json:"type"`
	TemplateID     string         `json:"templateId,omitempty"`
	Label          string         `json:"label"`
	Position       Position       `json:"position"`
	Config         NodeConfig     `json:"config"`
	CredentialRef  *CredentialRef `json:"credentialRef,omitempty"`
	ContinueOnFail bool           `json:"continueOnFail,omitempty"`
	Status         NodeStatus     `json:"status"`
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	if n.Config != nil {
		n.Config = n.Config.Clone()
	}
	if n.CredentialRef != nil {
		ref := *n.CredentialRef
		n.CredentialRef = &ref
	}
	return n
}

// DisplayName returns the label, falling back to the id.
func (n Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

type nodeJSON struct {
	ID             string          `json:"id"`
	Type           NodeType        `json:"type"`
	TemplateID     string          `json:"templateId,omitempty"`
	Label          string          `json:"label"`
	Position       Position        `json:"position"`
	Config         json.RawMessage `json:"config,omitempty"`
	CredentialRef  *CredentialRef  `json:"credentialRef,omitempty"`
	ContinueOnFail bool            `json:"continueOnFail,omitempty"`
	Status         NodeStatus      `json:"status,omitempty"`
}

// MarshalJSON encodes the typed config as a plain object under "config".
func (n Node) MarshalJSON() ([]byte, error) {
	cfg := n.Config
	if cfg == nil && n.Type.Valid() {
		cfg = NewConfig(n.Type)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config of node %q: %w", n.ID, err)
	}
	return json.Marshal(nodeJSON{
		ID:             n.ID,
		Type:           n.Type,
		TemplateID:     n.TemplateID,
		Label:          n.Label,
		Position:       n.Position,
		Config:         raw,
		CredentialRef:  n.CredentialRef,
		ContinueOnFail: n.ContinueOnFail,
		Status:         n.Status,
	})
}

// UnmarshalJSON decodes "config" into the struct matching "type".
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Status != "" && !raw.Status.Valid() {
		return fmt.Errorf("node %q: unknown status %q", raw.ID, raw.Status)
	}
	cfg, err := DecodeConfigJSON(raw.Type, raw.Config)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}
	*n = Node{
		ID:             raw.ID,
		Type:           raw.Type,
		TemplateID:     raw.TemplateID,
		Label:          raw.Label,
		Position:       raw.Position,
		Config:         cfg,
		CredentialRef:  raw.CredentialRef,
		ContinueOnFail: raw.ContinueOnFail,
		Status:         raw.Status,
	}
	if n.Status == "" {
		n.Status = StatusInitial
	}
	return nil
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Touches reports whether the edge starts or ends at nodeID.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// NodeTemplate describes an instantiable node in the catalog.
type NodeTemplate struct {
	ID                      string     `json:"id"`
	Type                    NodeType   `json:"type"`
	Label                   string     `json:"label"`
	Description             string     `json:"description"`
	Icon                    string     `json:"icon,omitempty"`
	Category                string     `json:"category"`
	DefaultConfig           NodeConfig `json:"defaultConfig"`
	RequiredCredentialKinds []string   `json:"requiredCredentialKinds,omitempty"`
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
