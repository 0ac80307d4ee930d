package editor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"workflow-builder/api/services/execution"
)

const streamWriteTimeout = 10 * time.Second

// streamMessage is one frame of an execution log stream.
type streamMessage struct {
	Type      string              `json:"type"`
	Log       *execution.Log      `json:"log,omitempty"`
	Execution *execution.Snapshot `json:"execution,omitempty"`
}

// HandleStreamExecution upgrades to a websocket and sends the execution's
// logs: first those already recorded, then each new one as it is appended.
// A final "finished" frame carries the snapshot before the socket closes.
func (s *Service) HandleStreamExecution(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	exec, err := ed.Execution(mux.Vars(r)["execId"])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("Websocket upgrade failed", "execution", exec.ID(), "error", err)
		return
	}
	defer conn.Close()

	// Reader loop; it only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg streamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug("Stream write failed", "execution", exec.ID(), "error", err)
			return false
		}
		return true
	}

	logged := streamLogs(exec, gone, func(entry execution.Log) bool {
		return send(streamMessage{Type: "log", Log: &entry})
	})
	if !logged {
		return
	}
	snap := exec.Snapshot()
	send(streamMessage{Type: "finished", Execution: &snap})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)),
		time.Now().Add(time.Second))
}

// streamLogs passes every log entry of exec to send, in order, until the
// execution finishes. A subscription dropped for falling behind is resumed
// after the last entry sent. It reports false if gone closes or send fails.
func streamLogs(exec *execution.Execution, gone <-chan struct{}, send func(execution.Log) bool) bool {
	replay, live, cancel := exec.Subscribe()
	defer func() { cancel() }()

	var last string
	forward := func(entries []execution.Log) bool {
		for _, entry := range entries {
			if !send(entry) {
				return false
			}
			last = entry.ID
		}
		return true
	}

	if !forward(replay) {
		return false
	}
	for {
		select {
		case entry, open := <-live:
			if open {
				if !forward([]execution.Log{entry}) {
					return false
				}
				continue
			}
			// Closed either by finish or because this subscriber lagged.
			var finished bool
			select {
			case <-exec.Done():
				finished = true
			default:
			}
			cancel()
			replay, live, cancel = exec.SubscribeAfter(last)
			if !forward(replay) {
				return false
			}
			if finished {
				return true
			}
		case <-gone:
			return false
		}
	}
}
