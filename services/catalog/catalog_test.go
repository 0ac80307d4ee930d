package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-builder/api/services/workflow"
)

func templateIDs(ts []workflow.NodeTemplate) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func TestDefault_CoversEveryNodeType(t *testing.T) {
	c := Default()

	types := make(map[workflow.NodeType]bool)
	for _, tmpl := range c.All() {
		types[tmpl.Type] = true
		require.NotNil(t, tmpl.DefaultConfig, tmpl.ID)
		assert.Equal(t, tmpl.Type, tmpl.DefaultConfig.NodeType(), tmpl.ID)
	}
	for _, typ := range workflow.NodeTypes {
		assert.True(t, types[typ], "no template for %s", typ)
	}
}

func TestGet(t *testing.T) {
	c := Default()

	tmpl, ok := c.Get("telegram-get-chat")
	require.True(t, ok)
	assert.Equal(t, workflow.TelegramGetChat, tmpl.Type)
	assert.Equal(t, []string{"telegram"}, tmpl.RequiredCredentialKinds)

	_, ok = c.Get("nope")
	assert.False(t, ok)
}

func TestGet_ReturnsCopies(t *testing.T) {
	c := Default()

	tmpl, _ := c.Get("form-submission-trigger")
	tmpl.DefaultConfig.(workflow.FormSubmissionConfig).Fields[0] = "mutated"
	tmpl.RequiredCredentialKinds = append(tmpl.RequiredCredentialKinds, "x")

	again, _ := c.Get("form-submission-trigger")
	assert.Equal(t, []string{"name", "email"}, again.DefaultConfig.(workflow.FormSubmissionConfig).Fields)
	assert.Empty(t, again.RequiredCredentialKinds)
}

func TestSearch(t *testing.T) {
	c := Default()

	tests := []struct {
		query string
		want  []string
	}{
		{"TELEGRAM", []string{"app-event-trigger", "telegram-get-chat"}},
		{"get a CHAT", []string{"telegram-get-chat"}},
		{"send an email", []string{"email-send"}},
		{"  schedule ", []string{"schedule-trigger"}},
		{"no such thing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := c.Search(tt.query)
			if tt.want == nil {
				assert.NotNil(t, got)
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, templateIDs(got))
		})
	}

	assert.Len(t, c.Search(""), len(c.All()))
}

func TestRequiredKinds(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"email"}, c.RequiredKinds(workflow.Node{TemplateID: "email-send", Type: workflow.EmailSend}))
	// Nodes without a template fall back to their type.
	assert.Equal(t, []string{"telegram"}, c.RequiredKinds(workflow.Node{Type: workflow.TelegramGetChat}))
	assert.Empty(t, c.RequiredKinds(workflow.Node{Type: workflow.ManualTrigger}))
}

func TestNew_Rejections(t *testing.T) {
	tests := map[string][]workflow.NodeTemplate{
		"missing id":   {{Type: workflow.Other}},
		"duplicate id": {{ID: "a", Type: workflow.Other}, {ID: "a", Type: workflow.Other}},
		"unknown type": {{ID: "a", Type: "ftp"}},
		"config mismatch": {{
			ID: "a", Type: workflow.EmailSend, DefaultConfig: workflow.WebhookConfig{},
		}},
	}
	for name, templates := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(templates...)
			assert.Error(t, err)
		})
	}
}

func TestNew_FillsZeroConfig(t *testing.T) {
	c, err := New(workflow.NodeTemplate{ID: "hook", Type: workflow.Webhook})
	require.NoError(t, err)

	tmpl, _ := c.Get("hook")
	assert.Equal(t, workflow.WebhookConfig{Method: "POST"}, tmpl.DefaultConfig)
}
