package editor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/workflow"
)

func wideWorkflow(n int) *workflow.Workflow {
	wf := &workflow.Workflow{ID: "wide"}
	for i := 0; i < n; i++ {
		wf.Nodes = append(wf.Nodes, workflow.Node{ID: fmt.Sprintf("n%03d", i), Type: workflow.Other})
	}
	return wf
}

func logIDs(logs []execution.Log) []string {
	ids := make([]string, len(logs))
	for i, l := range logs {
		ids[i] = l.ID
	}
	return ids
}

func TestStreamLogs_ResumesAfterFallingBehind(t *testing.T) {
	engine := execution.NewEngine(execution.NewBuiltinRegistry(execution.BuiltinOptions{}))
	exec, err := engine.Start(context.Background(), wideWorkflow(150), nil)
	require.NoError(t, err)

	var sent []execution.Log
	// The first write stalls until the run is over, far past the
	// subscriber buffer.
	send := func(entry execution.Log) bool {
		if len(sent) == 0 {
			<-exec.Done()
		}
		sent = append(sent, entry)
		return true
	}

	finished := make(chan bool, 1)
	go func() { finished <- streamLogs(exec, make(chan struct{}), send) }()

	select {
	case ok := <-finished:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
	require.Equal(t, execution.StatusSuccess, exec.Status())
	assert.Greater(t, len(sent), 256)
	assert.Equal(t, logIDs(exec.Logs()), logIDs(sent))
}

func TestStreamLogs_StopsWhenClientGoes(t *testing.T) {
	deps, _ := testDeps(t, execution.BuiltinOptions{Delay: time.Hour})
	ed, err := NewSessions(deps).Get(context.Background(), workflow.SampleWorkflowID)
	require.NoError(t, err)
	exec, err := ed.Execute(principalCtx())
	require.NoError(t, err)
	defer ed.Stop()

	gone := make(chan struct{})
	finished := make(chan bool, 1)
	go func() {
		finished <- streamLogs(exec, gone, func(execution.Log) bool { return true })
	}()
	close(gone)

	select {
	case ok := <-finished:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream kept running after the client left")
	}
	assert.Equal(t, execution.StatusRunning, exec.Status())
}
