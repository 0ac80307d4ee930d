package workflow

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// nodeYAML mirrors Node for YAML documents, keeping the config undecoded until
// the node type is known.
type nodeYAML struct {
	ID             string         `yaml:"id"`
	Type           NodeType       `yaml:"type"`
	TemplateID     string         `yaml:"templateId,omitempty"`
	Label          string         `yaml:"label,omitempty"`
	Position       Position       `yaml:"position,omitempty"`
	Config         yaml.Node      `yaml:"config,omitempty"`
	CredentialRef  *CredentialRef `yaml:"credentialRef,omitempty"`
	ContinueOnFail bool           `yaml:"continueOnFail,omitempty"`
}

// UnmarshalYAML decodes "config" into the struct matching "type".
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw nodeYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	cfg, err := DecodeConfigYAML(raw.Type, &raw.Config)
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
		Status:         StatusInitial,
	}
	return nil
}

// MarshalYAML encodes the node without runtime status.
func (n Node) MarshalYAML() (any, error) {
	cfg := n.Config
	if cfg == nil {
		cfg = NewConfig(n.Type)
	}
	return struct {
		ID             string         `yaml:"id"`
		Type           NodeType       `yaml:"type"`
		TemplateID     string         `yaml:"templateId,omitempty"`
		Label          string         `yaml:"label,omitempty"`
		Position       Position       `yaml:"position"`
		Config         NodeConfig     `yaml:"config"`
		CredentialRef  *CredentialRef `yaml:"credentialRef,omitempty"`
		ContinueOnFail bool           `yaml:"continueOnFail,omitempty"`
	}{n.ID, n.Type, n.TemplateID, n.Label, n.Position, cfg, n.CredentialRef, n.ContinueOnFail}, nil
}

// DecodeYAML reads a workflow document and validates it.
func DecodeYAML(r io.Reader) (*Workflow, error) {
	var wf Workflow
	if err := yaml.NewDecoder(r).Decode(&wf); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	if err := Validate(&wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// EncodeYAML writes wf as a workflow document.
func EncodeYAML(w io.Writer, wf *Workflow) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(wf); err != nil {
		return fmt.Errorf("encode workflow document: %w", err)
	}
	return enc.Close()
}
