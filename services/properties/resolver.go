package properties

import (
	"context"
	"fmt"

	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/workflow"
)

// KindSource reports the credential kinds a node requires. The node catalog
// implements it.
type KindSource interface {
	RequiredKinds(node workflow.Node) []string
}

// Properties is everything the properties panel needs for one node.
type Properties struct {
	NodeID        string                              `json:"nodeId"`
	Type          workflow.NodeType                   `json:"type"`
	Label         string                              `json:"label"`
	Fields        []Field                             `json:"fields"`
	Config        workflow.NodeConfig                 `json:"config"`
	RequiredKinds []string                            `json:"requiredKinds"`
	Candidates    map[string][]workflow.CredentialRef `json:"candidates"`
	// Missing lists required kinds with no candidate in the vault. It is a
	// guided state, not an error.
	Missing    []string                `json:"missing"`
	Notices    []string                `json:"notices,omitempty"`
	Credential *workflow.CredentialRef `json:"credential,omitempty"`
	Issues     []Issue                 `json:"issues"`
}

// Complete reports whether the node can run as configured: no validation
// issues and every required kind satisfied by the bound or a candidate
// credential.
func (p *Properties) Complete() bool {
	return len(p.Issues) == 0 && len(p.Missing) == 0
}

// Resolver maps nodes to their editable schema and credential state.
type Resolver struct {
	kinds KindSource
	vault credential.Vault
}

func NewResolver(kinds KindSource, vault credential.Vault) *Resolver {
	return &Resolver{kinds: kinds, vault: vault}
}

// Resolve builds the properties of node. Vault failures are returned as
// errors; an empty vault result is reported through Missing.
func (r *Resolver) Resolve(ctx context.Context, node workflow.Node) (*Properties, error) {
	cfg := node.Config
	if cfg == nil {
		cfg = workflow.NewConfig(node.Type)
	}
	props := &Properties{
		NodeID:        node.ID,
		Type:          node.Type,
		Label:         node.DisplayName(),
		Fields:        Schema(node.Type),
		Config:        cfg,
		RequiredKinds: r.kinds.RequiredKinds(node),
		Candidates:    make(map[string][]workflow.CredentialRef),
		Missing:       []string{},
		Credential:    node.CredentialRef,
		Issues:        Check(cfg),
	}
	if props.RequiredKinds == nil {
		props.RequiredKinds = []string{}
	}
	if props.Issues == nil {
		props.Issues = []Issue{}
	}

	for _, kind := range props.RequiredKinds {
		candidates, err := r.vault.Lookup(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("lookup %s credentials: %w", kind, err)
		}
		if candidates == nil {
			candidates = []workflow.CredentialRef{}
		}
		props.Candidates[kind] = candidates
		if len(candidates) == 0 && !boundSatisfies(node.CredentialRef, kind) {
			props.Missing = append(props.Missing, kind)
			props.Notices = append(props.Notices, fmt.Sprintf("No %s credentials found", kind))
		}
	}

	if ref := node.CredentialRef; ref != nil && len(props.RequiredKinds) > 0 && !satisfiesAny(ref, props.RequiredKinds) {
		props.Issues = append(props.Issues, Issue{
			Field:   "credential",
			Message: fmt.Sprintf("%s credential cannot be used here", ref.Provider),
		})
	}
	return props, nil
}

func boundSatisfies(ref *workflow.CredentialRef, kind string) bool {
	return ref != nil && credential.Satisfies(ref.Provider, kind)
}

func satisfiesAny(ref *workflow.CredentialRef, kinds []string) bool {
	for _, k := range kinds {
		if credential.Satisfies(ref.Provider, k) {
			return true
		}
	}
	return false
}
