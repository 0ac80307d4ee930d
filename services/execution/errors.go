package execution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyGraph          = errors.New("workflow has no nodes")
	ErrConcurrentExecution = errors.New("an execution is already running for this workflow")
	ErrCyclicGraph         = errors.New("workflow graph contains a cycle")
	ErrNoExecution         = errors.New("no execution for this workflow")
	ErrNotCurrentExecution = errors.New("execution is not the current execution")
)

// CycleError names one cycle found in the graph. It matches ErrCyclicGraph.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicGraph, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicGraph }
