package catalog

import (
	"fmt"
	"slices"
	"strings"

	"workflow-builder/api/services/workflow"
)

// Catalog is a read-only registry of node templates. It is safe for
// concurrent use because nothing mutates it after New returns.
type Catalog struct {
	templates []workflow.NodeTemplate
	byID      map[string]int
	byType    map[workflow.NodeType]int
}

// New builds a catalog from templates, keeping their order. Template ids must
// be unique and every default config must belong to its template's type.
func New(templates ...workflow.NodeTemplate) (*Catalog, error) {
	c := &Catalog{
		templates: make([]workflow.NodeTemplate, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
		byType:    make(map[workflow.NodeType]int),
	}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template id is required")
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		if !t.Type.Valid() {
			return nil, fmt.Errorf("template %q: unknown node type %q", t.ID, t.Type)
		}
		if t.DefaultConfig == nil {
			t.DefaultConfig = workflow.NewConfig(t.Type)
		} else if t.DefaultConfig.NodeType() != t.Type {
			return nil, fmt.Errorf("template %q: default config is for %s", t.ID, t.DefaultConfig.NodeType())
		}
		c.byID[t.ID] = len(c.templates)
		if _, seen := c.byType[t.Type]; !seen {
			c.byType[t.Type] = len(c.templates)
		}
		c.templates = append(c.templates, cloneTemplate(t))
	}
	return c, nil
}

// Default returns the catalog of built-in templates.
func Default() *Catalog {
	c, err := New(builtins()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (workflow.NodeTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return workflow.NodeTemplate{}, false
	}
	return cloneTemplate(c.templates[i]), true
}

// All returns every template in registration order.
func (c *Catalog) All() []workflow.NodeTemplate {
	out := make([]workflow.NodeTemplate, len(c.templates))
	for i, t := range c.templates {
		out[i] = cloneTemplate(t)
	}
	return out
}

// Search returns the templates whose label or description contains query,
// ignoring case. An empty query matches everything.
func (c *Catalog) Search(query string) []workflow.NodeTemplate {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.All()
	}
	out := []workflow.NodeTemplate{}
	for _, t := range c.templates {
		if strings.Contains(strings.ToLower(t.Label), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, cloneTemplate(t))
		}
	}
	return out
}

// RequiredKinds returns the credential kinds a node needs. The node's own
// template wins; nodes without one fall back to the first template of their
// type.
func (c *Catalog) RequiredKinds(node workflow.Node) []string {
	if i, ok := c.byID[node.TemplateID]; ok {
		return slices.Clone(c.templates[i].RequiredCredentialKinds)
	}
	if i, ok := c.byType[node.Type]; ok {
		return slices.Clone(c.templates[i].RequiredCredentialKinds)
	}
	return nil
}

func cloneTemplate(t workflow.NodeTemplate) workflow.NodeTemplate {
	if t.DefaultConfig != nil {
		t.DefaultConfig = t.DefaultConfig.Clone()
	}
	t.RequiredCredentialKinds = slices.Clone(t.RequiredCredentialKinds)
	return t
}
