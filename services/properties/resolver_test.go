package properties

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"workflow-builder/api/services/catalog"
	"workflow-builder/api/services/workflow"
)

type mockVault struct {
	mock.Mock
}

func (m *mockVault) Lookup(ctx context.Context, kind string) ([]workflow.CredentialRef, error) {
	args := m.Called(ctx, kind)
	refs, _ := args.Get(0).([]workflow.CredentialRef)
	return refs, args.Error(1)
}

var opsBot = workflow.CredentialRef{ID: "c1", Name: "Ops bot", Provider: "Telegram"}

func telegramNode(chatID string) workflow.Node {
	return workflow.Node{
		ID:         "n1",
		Type:       workflow.TelegramGetChat,
		TemplateID: "telegram-get-chat",
		Label:      "Get a chat",
		Config:     workflow.TelegramGetChatConfig{ChatID: chatID},
	}
}

func TestResolve_TelegramWithCandidates(t *testing.T) {
	vault := new(mockVault)
	vault.On("Lookup", mock.Anything, "telegram").Return([]workflow.CredentialRef{opsBot}, nil).Once()
	r := NewResolver(catalog.Default(), vault)

	props, err := r.Resolve(context.Background(), telegramNode("-1001234567890"))

	require.NoError(t, err)
	assert.Equal(t, "Get a chat", props.Label)
	assert.Equal(t, []string{"telegram"}, props.RequiredKinds)
	assert.Equal(t, []workflow.CredentialRef{opsBot}, props.Candidates["telegram"])
	assert.Empty(t, props.Missing)
	assert.Empty(t, props.Issues)
	require.Len(t, props.Fields, 1)
	assert.Equal(t, "chatId", props.Fields[0].Key)
	assert.True(t, props.Complete())
	vault.AssertExpectations(t)
}

func TestResolve_MissingCredentialIsGuidedState(t *testing.T) {
	vault := new(mockVault)
	vault.On("Lookup", mock.Anything, "telegram").Return(nil, nil)
	r := NewResolver(catalog.Default(), vault)

	props, err := r.Resolve(context.Background(), telegramNode("-42"))

	require.NoError(t, err)
	assert.Equal(t, []string{"telegram"}, props.Missing)
	assert.Equal(t, []string{"No telegram credentials found"}, props.Notices)
	assert.False(t, props.Complete())

	data, err := json.Marshal(props)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"candidates":{"telegram":[]}`)
}

func TestResolve_BoundCredentialSatisfiesKind(t *testing.T) {
	vault := new(mockVault)
	vault.On("Lookup", mock.Anything, "telegram").Return(nil, nil)
	r := NewResolver(catalog.Default(), vault)

	node := telegramNode("-42")
	node.CredentialRef = &opsBot
	props, err := r.Resolve(context.Background(), node)

	require.NoError(t, err)
	assert.Empty(t, props.Missing)
	assert.Equal(t, &opsBot, props.Credential)
}

func TestResolve_WrongProviderBound(t *testing.T) {
	vault := new(mockVault)
	vault.On("Lookup", mock.Anything, "email").Return(nil, nil)
	r := NewResolver(catalog.Default(), vault)

	node := workflow.Node{
		ID: "n2", Type: workflow.EmailSend, TemplateID: "email-send",
		Config:        workflow.EmailSendConfig{To: "ops@example.com", Subject: "hi"},
		CredentialRef: &opsBot,
	}
	props, err := r.Resolve(context.Background(), node)

	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, props.Missing)
	require.Len(t, props.Issues, 1)
	assert.Equal(t, "credential", props.Issues[0].Field)
}

func TestResolve_NoCredentialsRequired(t *testing.T) {
	vault := new(mockVault)
	r := NewResolver(catalog.Default(), vault)

	props, err := r.Resolve(context.Background(), workflow.Node{ID: "t", Type: workflow.ManualTrigger})

	require.NoError(t, err)
	assert.Empty(t, props.RequiredKinds)
	assert.Empty(t, props.Fields)
	assert.Equal(t, workflow.ManualTriggerConfig{}, props.Config)
	vault.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestResolve_VaultError(t *testing.T) {
	vault := new(mockVault)
	vault.On("Lookup", mock.Anything, "telegram").Return(nil, errors.New("vault unreachable"))
	r := NewResolver(catalog.Default(), vault)

	_, err := r.Resolve(context.Background(), telegramNode("-42"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault unreachable")
}

func TestSchema_EveryTypeHasOne(t *testing.T) {
	for _, typ := range workflow.NodeTypes {
		assert.NotNil(t, Schema(typ), typ)
	}
	assert.Nil(t, Schema("ftp"))
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		cfg    workflow.NodeConfig
		fields []string
	}{
		{"telegram ok", workflow.TelegramGetChatConfig{ChatID: "-1001"}, nil},
		{"telegram empty", workflow.TelegramGetChatConfig{}, []string{"chatId"}},
		{"telegram handle", workflow.TelegramGetChatConfig{ChatID: "@ops"}, []string{"chatId"}},
		{"email ok", workflow.EmailSendConfig{To: "A <a@example.com>, b@example.com", Subject: "s"}, nil},
		{"email bad", workflow.EmailSendConfig{To: "not an address", Subject: "s"}, []string{"to"}},
		{"email empty", workflow.EmailSendConfig{}, []string{"to", "subject"}},
		{"webhook ok", workflow.WebhookConfig{Path: "/hook", Method: "post", URL: "https://example.com/x"}, nil},
		{"webhook bad", workflow.WebhookConfig{Path: "hook", Method: "TRACE", URL: "ftp://x"}, []string{"path", "method", "url"}},
		{"schedule bad", workflow.ScheduleConfig{Interval: "-5m"}, []string{"interval"}},
		{"form duplicate field", workflow.FormSubmissionConfig{Title: "t", Fields: []string{"a", "a"}}, []string{"fields"}},
		{"app event", workflow.AppEventConfig{App: "notion"}, []string{"event"}},
		{"other", workflow.OtherConfig{}, nil},
		{"nil", nil, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			for _, issue := range Check(tt.cfg) {
				fields = append(fields, issue.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
