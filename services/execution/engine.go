package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"workflow-builder/api/pkg/logging"
	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/workflow"
)

const tracerName = "workflow-builder/api/services/execution"

// StatusSink receives node status transitions. The workflow Graph
// implements it.
type StatusSink interface {
	SetNodeStatus(id string, status workflow.NodeStatus)
}

// KindSource reports the credential kinds a node requires.
type KindSource interface {
	RequiredKinds(node workflow.Node) []string
}

// Engine runs workflow graphs. It allows at most one running execution per
// workflow and keeps a bounded history of finished ones.
type Engine struct {
	registry     Registry
	vault        credential.Vault
	kinds        KindSource
	concurrency  int
	historyLimit int
	tracer       trace.Tracer
	now          func() time.Time

	mu      sync.Mutex
	current map[string]*run
	history map[string][]*Execution
}

type run struct {
	exec   *Execution
	cancel context.CancelCauseFunc
}

// errStopped is the cancellation cause of a run stopped through Stop.
var errStopped = errors.New("execution stopped by user")

// Option configures an Engine.
type Option func(*Engine)

// WithCredentials enables credential resolution for nodes without an explicit
// credential reference.
func WithCredentials(vault credential.Vault, kinds KindSource) Option {
	return func(e *Engine) {
		e.vault = vault
		e.kinds = kinds
	}
}

// WithConcurrency sets how many ready nodes may run at once. Values below 1
// are treated as 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = max(n, 1) }
}

// WithHistoryLimit bounds the finished executions kept per workflow.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.historyLimit = n }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine dispatching nodes to registry.
func NewEngine(registry Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		concurrency:  1,
		historyLimit: 50,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
		current:      make(map[string]*run),
		history:      make(map[string][]*Execution),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates wf and begins executing it in the background. Validation
// failures (empty graph, cycle, a run already in progress) are returned
// synchronously and create no Execution. The run outlives ctx's
// cancellation but keeps its values; use Stop to cancel it.
func (e *Engine) Start(ctx context.Context, wf *workflow.Workflow, sink StatusSink) (*Execution, error) {
	if len(wf.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	p, err := newPlan(wf.Nodes, wf.Edges)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if r, ok := e.current[wf.ID]; ok && !r.exec.Status().Terminal() {
		e.mu.Unlock()
		return nil, ErrConcurrentExecution
	}
	exec := newExecution(wf.ID, wf.Nodes, e.now)
	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	r := &run{exec: exec, cancel: cancel}
	e.current[wf.ID] = r
	e.history[wf.ID] = append(e.history[wf.ID], exec)
	if over := len(e.history[wf.ID]) - e.historyLimit; e.historyLimit > 0 && over > 0 {
		e.history[wf.ID] = e.history[wf.ID][over:]
	}
	exec.start()
	e.mu.Unlock()

	for _, n := range wf.Nodes {
		exec.setNodeStatus(n.ID, workflow.StatusInitial, sink)
	}

	go func() {
		defer cancel(nil)
		e.execute(runCtx, exec, p, sink)
	}()
	return exec, nil
}

// Run starts wf and waits for it to finish. Cancelling ctx stops the run.
func (e *Engine) Run(ctx context.Context, wf *workflow.Workflow, sink StatusSink) (*Execution, error) {
	exec, err := e.Start(ctx, wf, sink)
	if err != nil {
		return nil, err
	}
	select {
	case <-exec.Done():
	case <-ctx.Done():
		e.Stop(wf.ID)
		<-exec.Done()
	}
	return exec, nil
}

// Stop cancels the running execution of a workflow. The execution becomes
// cancelled immediately; nodes in flight keep their last reported status and
// their results are discarded.
func (e *Engine) Stop(workflowID string) (*Execution, error) {
	e.mu.Lock()
	r, ok := e.current[workflowID]
	e.mu.Unlock()
	if !ok || r.exec.Status().Terminal() {
		return nil, ErrNoExecution
	}

	r.cancel(errStopped)
	r.exec.finish(StatusCancelled, "Execution stopped by user", &Log{
		Level:   LevelWarn,
		Message: "Execution stopped by user",
	})
	return r.exec, nil
}

// Current returns the most recent execution of a workflow.
func (e *Engine) Current(workflowID string) (*Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.current[workflowID]
	if !ok {
		return nil, ErrNoExecution
	}
	return r.exec, nil
}

// History returns the executions of a workflow, newest first.
func (e *Engine) History(workflowID string) []*Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.history[workflowID]
	out := make([]*Execution, len(h))
	for i, x := range h {
		out[len(h)-1-i] = x
	}
	return out
}

// ClearLogs empties the logs of the current execution. Clearing any other
// execution is rejected.
func (e *Engine) ClearLogs(workflowID, executionID string) error {
	exec, err := e.Current(workflowID)
	if err != nil {
		return err
	}
	if exec.ID() != executionID {
		return ErrNotCurrentExecution
	}
	exec.ClearLogs()
	return nil
}

type nodeResult struct {
	index int
	err   error
}

func (e *Engine) execute(ctx context.Context, exec *Execution, p *plan, sink StatusSink) {
	logger := logging.FromContext(ctx).With("workflow_id", exec.WorkflowID(), "execution_id", exec.ID())
	ctx = logging.WithLogger(ctx, logger)
	ctx, span := e.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("workflow.id", exec.WorkflowID()),
		attribute.String("execution.id", exec.ID()),
		attribute.Int("workflow.nodes", len(p.nodes)),
	))
	defer span.End()

	logger.Info("Execution started", "nodes", len(p.nodes), "concurrency", e.concurrency)
	exec.appendLog("", LevelInfo, fmt.Sprintf("Execution started with %d nodes", len(p.nodes)), nil)

	indegree := make([]int, len(p.indegree))
	copy(indegree, p.indegree)
	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	var (
		g        errgroup.Group
		results  = make(chan nodeResult)
		inflight int
		done     int
		failures int
		halt     *nodeResult
	)
	g.SetLimit(e.concurrency)

	for {
		for halt == nil && len(ready) > 0 && inflight < e.concurrency && ctx.Err() == nil && !exec.Status().Terminal() {
			idx := ready[0]
			ready = ready[1:]
			inflight++
			g.Go(func() error {
				results <- nodeResult{index: idx, err: e.runNode(ctx, exec, p.nodes[idx], sink)}
				return nil
			})
		}
		if inflight == 0 {
			break
		}

		res := <-results
		inflight--
		done++
		node := p.nodes[res.index]
		if res.err != nil {
			failures++
			if !node.ContinueOnFail {
				if halt == nil {
					halt = &res
				}
				continue
			}
		}
		for _, dep := range p.dependents[res.index] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}
	g.Wait()

	switch {
	case exec.Status().Terminal(), errors.Is(context.Cause(ctx), errStopped):
		// Stopped by the user; Stop finishes the execution itself.
		logger.Info("Execution stopped", "completed", done)
		span.SetStatus(codes.Error, "cancelled")
	case halt != nil:
		node := p.nodes[halt.index]
		summary := fmt.Sprintf("Execution failed at %s: %v", node.DisplayName(), halt.err)
		exec.finish(StatusFailed, summary, &Log{NodeID: node.ID, Level: LevelError, Message: summary})
		logger.Error("Execution failed", "node_id", node.ID, "error", halt.err)
		span.RecordError(halt.err)
		span.SetStatus(codes.Error, summary)
	case ctx.Err() != nil:
		exec.finish(StatusCancelled, "Execution cancelled", &Log{Level: LevelWarn, Message: "Execution cancelled"})
		logger.Info("Execution cancelled", "completed", done)
		span.SetStatus(codes.Error, "cancelled")
	default:
		summary := fmt.Sprintf("Executed %d nodes successfully", done)
		if failures > 0 {
			summary = fmt.Sprintf("Executed %d nodes, %d failed and were continued", done, failures)
		}
		exec.finish(StatusSuccess, summary, &Log{Level: LevelInfo, Message: summary})
		logger.Info("Execution completed", "nodes", done, "failures", failures)
		span.SetStatus(codes.Ok, "")
	}
}

// runNode executes one node and records its status and logs. The returned
// error is the node's failure, if any.
func (e *Engine) runNode(ctx context.Context, exec *Execution, node workflow.Node, sink StatusSink) error {
	logger := logging.FromContext(ctx).With("node_id", node.ID, "node_type", node.Type)
	ctx, span := e.tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", string(node.Type)),
	))
	defer span.End()

	label := node.DisplayName()
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if !exec.setNodeStatus(node.ID, workflow.StatusRunning, sink) {
		return errStopped
	}
	exec.appendLog(node.ID, LevelInfo, "Executing node: "+label, nil)
	logger.Debug("Node running")

	out, err := e.dispatch(ctx, node)
	if errors.Is(context.Cause(ctx), errStopped) {
		// Results of nodes in flight when Stop was called are discarded.
		return errStopped
	}
	if err != nil {
		exec.setNodeStatus(node.ID, workflow.StatusFailed, sink)
		exec.appendLog(node.ID, LevelError, fmt.Sprintf("Node failed: %s: %v", label, err), map[string]any{"error": err.Error()})
		if node.ContinueOnFail {
			exec.appendLog(node.ID, LevelWarn, fmt.Sprintf("Continuing after failure of %s", label), nil)
		}
		logger.Debug("Node failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if len(out) > 0 {
		exec.appendLog(node.ID, LevelDebug, outputMessage(out, label), map[string]any(out))
	}
	exec.appendLog(node.ID, LevelInfo, "Node completed: "+label, nil)
	exec.setNodeStatus(node.ID, workflow.StatusSuccess, sink)
	logger.Debug("Node succeeded")
	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Engine) dispatch(ctx context.Context, node workflow.Node) (Output, error) {
	executor, err := e.registry.Lookup(node.Type)
	if err != nil {
		return nil, err
	}
	cred, err := e.resolveCredential(ctx, node)
	if err != nil {
		return nil, err
	}
	return executor.Run(ctx, node, cred)
}

// resolveCredential prefers the node's bound credential and otherwise takes
// the first vault candidate of each required kind.
func (e *Engine) resolveCredential(ctx context.Context, node workflow.Node) (*workflow.CredentialRef, error) {
	if node.CredentialRef != nil {
		ref := *node.CredentialRef
		return &ref, nil
	}
	if e.kinds == nil {
		return nil, nil
	}
	kinds := e.kinds.RequiredKinds(node)
	if len(kinds) == 0 {
		return nil, nil
	}
	if e.vault == nil {
		return nil, fmt.Errorf("no credential vault configured for %s credentials", kinds[0])
	}
	for _, kind := range kinds {
		candidates, err := e.vault.Lookup(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("lookup %s credentials: %w", kind, err)
		}
		if len(candidates) > 0 {
			ref := candidates[0]
			return &ref, nil
		}
	}
	return nil, fmt.Errorf("no %s credentials found", kinds[0])
}

func outputMessage(out Output, label string) string {
	if msg, ok := out["message"].(string); ok && msg != "" {
		return msg
	}
	return "Output of " + label
}
