package editor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-builder/api/services/catalog"
	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/identity"
	"workflow-builder/api/services/properties"
	"workflow-builder/api/services/workflow"
)

func testDeps(t *testing.T, opts execution.BuiltinOptions) (Deps, *workflow.MemoryStore) {
	t.Helper()
	store := workflow.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), workflow.SampleWorkflow()))

	cat := catalog.Default()
	vault := credential.NewStaticVault(
		credential.Entry{Ref: workflow.CredentialRef{ID: "tg", Name: "Ops bot", Provider: "Telegram"}},
		credential.Entry{Ref: workflow.CredentialRef{ID: "gm", Name: "alerts@example.com", Provider: "Gmail"}},
	)
	engine := execution.NewEngine(execution.NewBuiltinRegistry(opts), execution.WithCredentials(vault, cat))
	return Deps{
		Store:    store,
		Engine:   engine,
		Resolver: properties.NewResolver(cat, vault),
		Catalog:  cat,
	}, store
}

func openSample(t *testing.T) (*Editor, *workflow.MemoryStore) {
	t.Helper()
	deps, store := testDeps(t, execution.BuiltinOptions{})
	ed, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)
	return ed, store
}

func principalCtx() context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{UserID: "u1"})
}

func TestEditor_OpensClean(t *testing.T) {
	ed, _ := openSample(t)

	sel := ed.Selection()
	assert.False(t, sel.IsDirty)
	assert.Empty(t, sel.SelectedNodeID)
	assert.Len(t, ed.Workflow().Nodes, 3)
	assert.Equal(t, "Telegram Chat Digest", ed.Workflow().Name)
}

func TestEditor_SaveClearsDirty(t *testing.T) {
	ed, store := openSample(t)

	node, err := ed.AddNode("webhook-trigger", workflow.Position{X: 10, Y: 20})
	require.NoError(t, err)
	assert.True(t, ed.Selection().IsDirty)

	saved, err := ed.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, ed.Selection().IsDirty)
	assert.False(t, saved.UpdatedAt.IsZero())

	stored, err := store.Load(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)
	require.Len(t, stored.Nodes, 4)
	assert.Equal(t, node.ID, stored.Nodes[3].ID)
	assert.Equal(t, workflow.WebhookConfig{Path: "/hooks/new", Method: "POST"}, stored.Nodes[3].Config)
}

func TestEditor_SaveAndReopenRoundTrip(t *testing.T) {
	deps, _ := testDeps(t, execution.BuiltinOptions{})
	ed, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)

	_, err = ed.UpdateConfig("get-chat", json.RawMessage(`{"chatId":"42"}`))
	require.NoError(t, err)
	name := "Renamed"
	ed.SetMeta(&name, nil)
	_, err = ed.Save(context.Background())
	require.NoError(t, err)

	reopened, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reopened.Workflow().Name)
	node, ok := reopened.graph.Node("get-chat")
	require.True(t, ok)
	assert.Equal(t, workflow.TelegramGetChatConfig{ChatID: "42"}, node.Config)
	assert.False(t, reopened.Selection().IsDirty)
}

func TestEditor_AddNodeUnknownTemplate(t *testing.T) {
	ed, _ := openSample(t)

	_, err := ed.AddNode("ftp-upload", workflow.Position{})

	require.ErrorIs(t, err, ErrUnknownTemplate)
	assert.False(t, ed.Selection().IsDirty)
}

func TestEditor_DeleteSelected(t *testing.T) {
	ed, _ := openSample(t)
	require.NoError(t, ed.Select("get-chat"))

	deleted, err := ed.DeleteSelected()

	require.NoError(t, err)
	assert.Equal(t, []string{"get-chat"}, deleted)
	wf := ed.Workflow()
	assert.Len(t, wf.Nodes, 2)
	assert.Empty(t, wf.Edges)
	assert.Empty(t, ed.Selection().SelectedNodeID)
	assert.True(t, ed.Selection().IsDirty)
}

func TestEditor_UpdateConfigMismatch(t *testing.T) {
	ed, _ := openSample(t)

	_, err := ed.UpdateConfig("get-chat", json.RawMessage(`{"chatId":5}`))
	require.ErrorIs(t, err, workflow.ErrConfigMismatch)

	_, err = ed.UpdateConfig("missing", json.RawMessage(`{}`))
	require.ErrorIs(t, err, workflow.ErrUnknownNode)
	assert.False(t, ed.Selection().IsDirty)
}

func TestEditor_ResolveSelected(t *testing.T) {
	ed, _ := openSample(t)

	_, err := ed.ResolveSelected(principalCtx())
	require.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, ed.Select("send-digest"))
	props, err := ed.ResolveSelected(principalCtx())
	require.NoError(t, err)
	assert.Equal(t, "send-digest", props.NodeID)
	assert.Equal(t, []string{credential.KindEmail}, props.RequiredKinds)
	assert.True(t, props.Complete())
}

func TestEditor_ExecuteWritesStatusesBack(t *testing.T) {
	ed, _ := openSample(t)

	exec, err := ed.Execute(principalCtx())
	require.NoError(t, err)
	select {
	case <-exec.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not finish")
	}

	assert.Equal(t, execution.StatusSuccess, exec.Status())
	for _, n := range ed.Workflow().Nodes {
		assert.Equal(t, workflow.StatusSuccess, n.Status, n.ID)
	}
	assert.False(t, ed.Selection().IsDirty, "status updates are not edits")

	found, err := ed.Execution(exec.ID())
	require.NoError(t, err)
	assert.Same(t, exec, found)
	_, err = ed.Execution("nope")
	assert.ErrorIs(t, err, execution.ErrNoExecution)
}

func TestEditor_StopAndClearLogs(t *testing.T) {
	deps, _ := testDeps(t, execution.BuiltinOptions{Delay: time.Hour})
	ed, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)

	exec, err := ed.Execute(principalCtx())
	require.NoError(t, err)
	_, err = ed.Execute(principalCtx())
	require.ErrorIs(t, err, execution.ErrConcurrentExecution)

	stopped, err := ed.Stop()
	require.NoError(t, err)
	assert.Same(t, exec, stopped)
	assert.Equal(t, execution.StatusCancelled, exec.Status())

	require.NoError(t, ed.ClearLogs(exec.ID()))
	assert.Empty(t, exec.Logs())
	assert.ErrorIs(t, ed.ClearLogs("other"), execution.ErrNotCurrentExecution)
}

func TestEditor_SaveDuringRunReopensIdle(t *testing.T) {
	deps, store := testDeps(t, execution.BuiltinOptions{Delay: time.Hour})
	ed, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)

	_, err = ed.Execute(principalCtx())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return ed.Workflow().Nodes[0].Status == workflow.StatusRunning
	}, time.Second, 5*time.Millisecond)

	_, err = ed.Save(context.Background())
	require.NoError(t, err)
	_, err = ed.Stop()
	require.NoError(t, err)

	stored, err := store.Load(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)
	reopened, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)
	for i, n := range reopened.Workflow().Nodes {
		assert.Equal(t, workflow.StatusInitial, stored.Nodes[i].Status, n.ID)
		assert.Equal(t, workflow.StatusInitial, n.Status, n.ID)
	}
}

func TestSessions_Create(t *testing.T) {
	deps, store := testDeps(t, execution.BuiltinOptions{})
	sessions := NewSessions(deps)

	ed, err := sessions.Create(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "My workflow", ed.Workflow().Name)

	again, err := sessions.Get(context.Background(), ed.ID())
	require.NoError(t, err)
	assert.Same(t, ed, again)

	_, err = store.Load(context.Background(), ed.ID())
	require.NoError(t, err)

	_, err = ed.Execute(principalCtx())
	assert.ErrorIs(t, err, execution.ErrEmptyGraph)
}

// stallingStore blocks loads of one workflow until released.
type stallingStore struct {
	workflow.Store
	stallID string
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	if id == s.stallID {
		close(s.entered)
		<-s.release
	}
	return s.Store.Load(ctx, id)
}

func TestSessions_GetDoesNotBlockOtherWorkflows(t *testing.T) {
	deps, store := testDeps(t, execution.BuiltinOptions{})
	other := &workflow.Workflow{ID: "other", Name: "Other"}
	require.NoError(t, store.Save(context.Background(), other))
	stalling := &stallingStore{Store: store, stallID: "other", entered: make(chan struct{}), release: make(chan struct{})}
	deps.Store = stalling
	sessions := NewSessions(deps)

	slow := make(chan *Editor, 1)
	go func() {
		ed, err := sessions.Get(context.Background(), "other")
		assert.NoError(t, err)
		slow <- ed
	}()
	<-stalling.entered

	fast := make(chan error, 1)
	go func() {
		_, err := sessions.Get(context.Background(), workflow.SampleWorkflowID)
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Get was blocked by a load of another workflow")
	}

	close(stalling.release)
	ed := <-slow
	require.NotNil(t, ed)
	again, err := sessions.Get(context.Background(), "other")
	require.NoError(t, err)
	assert.Same(t, ed, again)
}

func TestSessions_ConcurrentGetSharesEditor(t *testing.T) {
	deps, _ := testDeps(t, execution.BuiltinOptions{})
	sessions := NewSessions(deps)

	editors := make(chan *Editor, 8)
	for i := 0; i < cap(editors); i++ {
		go func() {
			ed, err := sessions.Get(context.Background(), workflow.SampleWorkflowID)
			assert.NoError(t, err)
			editors <- ed
		}()
	}
	first := <-editors
	for i := 0; i < cap(editors)-1; i++ {
		assert.Same(t, first, <-editors)
	}
}

func TestSessions_GetUnknown(t *testing.T) {
	deps, _ := testDeps(t, execution.BuiltinOptions{})

	_, err := NewSessions(deps).Get(context.Background(), "missing")

	assert.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}
