package execution

import (
	"context"
	"fmt"
	"time"

	"workflow-builder/api/services/workflow"
)

// Output is the result of running a single node. By convention it carries a
// human-readable "message".
type Output map[string]any

// NodeExecutor performs the side-effecting work of one node. Implementations
// must return promptly once ctx is done.
type NodeExecutor interface {
	Run(ctx context.Context, node workflow.Node, cred *workflow.CredentialRef) (Output, error)
}

// ExecutorFunc adapts a function to NodeExecutor.
type ExecutorFunc func(ctx context.Context, node workflow.Node, cred *workflow.CredentialRef) (Output, error)

func (f ExecutorFunc) Run(ctx context.Context, node workflow.Node, cred *workflow.CredentialRef) (Output, error) {
	return f(ctx, node, cred)
}

// Registry maps node types to their executor implementation.
type Registry map[workflow.NodeType]NodeExecutor

// Lookup returns the executor for t.
func (r Registry) Lookup(t workflow.NodeType) (NodeExecutor, error) {
	ex, ok := r[t]
	if !ok {
		return nil, fmt.Errorf("no executor registered for node type %q", t)
	}
	return ex, nil
}

// WithTimeout bounds every call to ex by d. A zero d disables the bound.
func WithTimeout(ex NodeExecutor, d time.Duration) NodeExecutor {
	if d <= 0 {
		return ex
	}
	return ExecutorFunc(func(ctx context.Context, node workflow.Node, cred *workflow.CredentialRef) (Output, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		out, err := ex.Run(ctx, node, cred)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("timed out after %s: %w", d, err)
		}
		return out, err
	})
}
