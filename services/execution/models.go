package execution

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"workflow-builder/api/services/workflow"
)

// Status is the lifecycle state of an Execution.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Level is the severity of an execution log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Log is one entry of an execution's log stream. Entries are ordered by
// append, which is execution order.
type Log struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"nodeId,omitempty"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
}

// Snapshot is an immutable copy of an Execution.
type Snapshot struct {
	ID           string                         `json:"id"`
	WorkflowID   string                         `json:"workflowId"`
	Status       Status                         `json:"status"`
	StartedAt    time.Time                      `json:"startedAt"`
	FinishedAt   *time.Time                     `json:"finishedAt,omitempty"`
	DurationMs   *int64                         `json:"durationMs,omitempty"`
	Summary      string                         `json:"summary"`
	Logs         []Log                          `json:"logs"`
	NodeStatuses map[string]workflow.NodeStatus `json:"nodeStatuses"`
	Order        []string                       `json:"order"`
}

// subscriberBuffer bounds how far a log subscriber may fall behind before it
// is dropped.
const subscriberBuffer = 256

// Execution is one run of a workflow graph. It is safe for concurrent use;
// once finished its status, timestamps and node statuses no longer change.
type Execution struct {
	mu           sync.RWMutex
	id           string
	workflowID   string
	status       Status
	startedAt    time.Time
	finishedAt   time.Time
	summary      string
	logs         []Log
	nodeStatuses map[string]workflow.NodeStatus
	order        []string

	subscribers map[int]chan Log
	nextSub     int
	done        chan struct{}
	now         func() time.Time
}

func newExecution(workflowID string, nodes []workflow.Node, now func() time.Time) *Execution {
	statuses := make(map[string]workflow.NodeStatus, len(nodes))
	for _, n := range nodes {
		statuses[n.ID] = workflow.StatusInitial
	}
	return &Execution{
		id:           "exec_" + uuid.NewString(),
		workflowID:   workflowID,
		status:       StatusQueued,
		nodeStatuses: statuses,
		subscribers:  make(map[int]chan Log),
		done:         make(chan struct{}),
		now:          now,
	}
}

func (x *Execution) ID() string { return x.id }

func (x *Execution) WorkflowID() string { return x.workflowID }

func (x *Execution) Status() Status {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.status
}

// Done is closed when the execution reaches a terminal state.
func (x *Execution) Done() <-chan struct{} { return x.done }

// Logs returns a copy of the log entries.
func (x *Execution) Logs() []Log {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.logs)
}

// NodeStatus returns the last status recorded for a node.
func (x *Execution) NodeStatus(nodeID string) workflow.NodeStatus {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nodeStatuses[nodeID]
}

// Snapshot returns a consistent copy of the execution.
func (x *Execution) Snapshot() Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := Snapshot{
		ID:           x.id,
		WorkflowID:   x.workflowID,
		Status:       x.status,
		StartedAt:    x.startedAt,
		Summary:      x.summary,
		Logs:         slices.Clone(x.logs),
		NodeStatuses: make(map[string]workflow.NodeStatus, len(x.nodeStatuses)),
		Order:        slices.Clone(x.order),
	}
	if s.Logs == nil {
		s.Logs = []Log{}
	}
	for id, st := range x.nodeStatuses {
		s.NodeStatuses[id] = st
	}
	if !x.finishedAt.IsZero() {
		finished := x.finishedAt
		duration := finished.Sub(x.startedAt).Milliseconds()
		s.FinishedAt = &finished
		s.DurationMs = &duration
	}
	return s
}

// Subscribe returns the logs appended so far and a channel of later appends.
// The channel is closed when the execution finishes, when cancel is called,
// or when the subscriber falls more than subscriberBuffer entries behind. A
// subscriber that sees the channel close before Done should resume with
// SubscribeAfter.
func (x *Execution) Subscribe() (replay []Log, live <-chan Log, cancel func()) {
	return x.SubscribeAfter("")
}

// SubscribeAfter is Subscribe with the replay starting after the entry
// lastID. When lastID is empty or no longer present, because the logs were
// cleared, every current entry is replayed.
func (x *Execution) SubscribeAfter(lastID string) (replay []Log, live <-chan Log, cancel func()) {
	x.mu.Lock()
	defer x.mu.Unlock()

	ch := make(chan Log, subscriberBuffer)
	from := 0
	if lastID != "" {
		if i := slices.IndexFunc(x.logs, func(l Log) bool { return l.ID == lastID }); i >= 0 {
			from = i + 1
		}
	}
	replay = slices.Clone(x.logs[from:])
	if x.status.Terminal() {
		close(ch)
		return replay, ch, func() {}
	}
	id := x.nextSub
	x.nextSub++
	x.subscribers[id] = ch

	var once sync.Once
	return replay, ch, func() {
		once.Do(func() {
			x.mu.Lock()
			defer x.mu.Unlock()
			if sub, ok := x.subscribers[id]; ok {
				delete(x.subscribers, id)
				close(sub)
			}
		})
	}
}

// ClearLogs empties the log list without touching status.
func (x *Execution) ClearLogs() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.logs = nil
}

func (x *Execution) start() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status != StatusQueued {
		return false
	}
	x.status = StatusRunning
	x.startedAt = x.now()
	return true
}

// appendLog records an entry and fans it out. Entries arriving after the
// execution finished are dropped.
func (x *Execution) appendLog(nodeID string, level Level, message string, data any) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status.Terminal() {
		return false
	}
	x.appendLocked(Log{
		ID:        "log_" + uuid.NewString(),
		Timestamp: x.now(),
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
		Data:      data,
	})
	return true
}

func (x *Execution) appendLocked(entry Log) {
	x.logs = append(x.logs, entry)
	for id, ch := range x.subscribers {
		select {
		case ch <- entry:
		default:
			delete(x.subscribers, id)
			close(ch)
		}
	}
}

// setNodeStatus records a node transition and forwards it to sink while
// holding the lock, so a finished execution can never overwrite statuses
// written by a newer one.
func (x *Execution) setNodeStatus(nodeID string, status workflow.NodeStatus, sink StatusSink) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status.Terminal() {
		return false
	}
	x.nodeStatuses[nodeID] = status
	if status == workflow.StatusRunning {
		x.order = append(x.order, nodeID)
	}
	if sink != nil {
		sink.SetNodeStatus(nodeID, status)
	}
	return true
}

// finish moves a running execution to a terminal state. A final log entry,
// if given, is appended before subscribers are closed. It reports false when
// the execution had already finished.
func (x *Execution) finish(status Status, summary string, final *Log) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status.Terminal() {
		return false
	}
	if final != nil {
		final.ID = "log_" + uuid.NewString()
		final.Timestamp = x.now()
		x.appendLocked(*final)
	}
	x.status = status
	x.summary = summary
	x.finishedAt = x.now()
	if x.startedAt.IsZero() {
		x.startedAt = x.finishedAt
	}
	for id, ch := range x.subscribers {
		delete(x.subscribers, id)
		close(ch)
	}
	close(x.done)
	return true
}
