package execution

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-builder/api/services/workflow"
)

var gmail = &workflow.CredentialRef{ID: "c1", Name: "alerts@example.com", Provider: "Gmail"}

func TestTriggerExecutor(t *testing.T) {
	exec := &TriggerExecutor{Message: "Workflow execution started"}

	out, err := exec.Run(context.Background(), workflow.Node{ID: "t", Type: workflow.ManualTrigger}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Workflow execution started", out["message"])
}

func TestTriggerExecutor_HonoursCancellation(t *testing.T) {
	exec := &TriggerExecutor{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, workflow.Node{ID: "t", Type: workflow.Schedule}, nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestTelegramExecutor(t *testing.T) {
	exec := &TelegramExecutor{}
	bot := &workflow.CredentialRef{ID: "c2", Name: "Ops bot", Provider: "Telegram"}
	node := func(chatID string) workflow.Node {
		return workflow.Node{ID: "chat", Type: workflow.TelegramGetChat, Config: workflow.TelegramGetChatConfig{ChatID: chatID}}
	}

	out, err := exec.Run(context.Background(), node("-1001234567890"), bot)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "-1001234567890", "type": "supergroup"}, out["chat"])

	out, err = exec.Run(context.Background(), node("42"), bot)
	require.NoError(t, err)
	assert.Equal(t, "private", out["chat"].(map[string]any)["type"])

	_, err = exec.Run(context.Background(), node("@ops"), bot)
	assert.ErrorContains(t, err, "invalid chat id")

	_, err = exec.Run(context.Background(), node("42"), nil)
	assert.ErrorContains(t, err, "credential is required")
}

func TestEmailExecutor(t *testing.T) {
	exec := &EmailExecutor{}
	node := workflow.Node{
		ID: "mail", Type: workflow.EmailSend, Label: "Send digest",
		Config: workflow.EmailSendConfig{
			To:      "Team <team@example.com>, ops@example.com",
			Subject: "Digest from {{label}}",
			Body:    "Sent by {{nodeId}}",
		},
	}

	out, err := exec.Run(context.Background(), node, gmail)

	require.NoError(t, err)
	assert.Equal(t, "Email drafted for team@example.com, ops@example.com", out["message"])
	draft := out["emailDraft"].(map[string]any)
	assert.Equal(t, []string{"team@example.com", "ops@example.com"}, draft["to"])
	assert.Equal(t, "alerts@example.com", draft["from"])
	assert.Equal(t, "Digest from Send digest", draft["subject"])
	assert.Equal(t, "Sent by mail", draft["body"])
}

func TestEmailExecutor_SampleDraftHasNoPlaceholders(t *testing.T) {
	sample := workflow.SampleWorkflow()
	node := sample.Nodes[len(sample.Nodes)-1]
	require.Equal(t, workflow.EmailSend, node.Type)

	out, err := (&EmailExecutor{}).Run(context.Background(), node, gmail)

	require.NoError(t, err)
	draft := out["emailDraft"].(map[string]any)
	assert.Equal(t, "Digest prepared by Send email (send-digest)", draft["body"])
	assert.NotContains(t, draft["subject"], "{{")
}

func TestEmailExecutor_InvalidRecipient(t *testing.T) {
	exec := &EmailExecutor{}
	node := workflow.Node{ID: "mail", Type: workflow.EmailSend, Config: workflow.EmailSendConfig{To: "nobody"}}

	_, err := exec.Run(context.Background(), node, gmail)

	assert.ErrorContains(t, err, "invalid recipient")
}

func TestWebhookExecutor(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	exec := &WebhookExecutor{Client: srv.Client()}
	node := func(url string) workflow.Node {
		return workflow.Node{ID: "hook", Type: workflow.Webhook, Config: workflow.WebhookConfig{Path: "/in", Method: "put", URL: url}}
	}

	out, err := exec.Run(context.Background(), node(srv.URL+"/ok"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, http.StatusAccepted, out["statusCode"])

	_, err = exec.Run(context.Background(), node(srv.URL+"/fail"), nil)
	assert.ErrorContains(t, err, "status 502")

	out, err = exec.Run(context.Background(), node(""), nil)
	require.NoError(t, err)
	assert.Equal(t, "Webhook put /in received", out["message"])
}

func TestWithTimeout(t *testing.T) {
	slow := &TriggerExecutor{Delay: time.Hour}

	_, err := WithTimeout(slow, 10*time.Millisecond).Run(context.Background(), workflow.Node{ID: "t"}, nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "timed out after 10ms")
}

func TestNewBuiltinRegistry_CoversEveryType(t *testing.T) {
	r := NewBuiltinRegistry(BuiltinOptions{Timeout: time.Second})
	for _, typ := range workflow.NodeTypes {
		_, err := r.Lookup(typ)
		assert.NoError(t, err, typ)
	}
	_, err := r.Lookup("ftp")
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	nodes := []workflow.Node{{ID: "b"}, {ID: "a"}, {ID: "c"}}
	edges := []workflow.Edge{
		{ID: "e1", Source: "a", Target: "b", SourceHandle: "true"},
		{ID: "e2", Source: "a", Target: "b", SourceHandle: "false"},
		{ID: "e3", Source: "b", Target: "c"},
	}

	ordered, err := Plan(nodes, edges)
	require.NoError(t, err)

	ids := make([]string, len(ordered))
	for i, n := range ordered {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	_, err = Plan(nodes, []workflow.Edge{{ID: "x", Source: "a", Target: "zz"}})
	assert.Error(t, err)
}
