package editor

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/workflow"
)

type editorView struct {
	Workflow  *workflow.Workflow `json:"workflow"`
	Selection workflow.Selection `json:"selection"`
}

func viewOf(ed *Editor) editorView {
	return editorView{Workflow: ed.Workflow(), Selection: ed.Selection()}
}

func (s *Service) HandleSearchCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Search(r.URL.Query().Get("q")))
}

type createWorkflowRequest struct {
	Name string `json:"name"`
}

func (s *Service) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ed, err := s.sessions.Create(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.Info("Created workflow", "id", ed.ID())
	writeJSON(w, http.StatusCreated, viewOf(ed))
}

// HandleGetWorkflow returns the open workflow with its selection and dirty state.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ed))
}

type saveWorkflowRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// HandleSaveWorkflow applies optional metadata and persists the graph. An
// empty body saves as-is.
func (s *Service) HandleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req saveWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ed.SetMeta(req.Name, req.Active)

	if _, err := ed.Save(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.Debug("Saved workflow", "id", ed.ID())
	writeJSON(w, http.StatusOK, viewOf(ed))
}

type addNodeRequest struct {
	TemplateID string            `json:"templateId"`
	Position   workflow.Position `json:"position"`
}

func (s *Service) HandleAddNode(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req addNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	node, err := ed.AddNode(req.TemplateID, req.Position)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Service) HandleNodeChanges(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var changes []workflow.NodeChange
	if !decodeBody(w, r, &changes) {
		return
	}
	nodes, err := ed.ApplyNodeChanges(changes)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "selection": ed.Selection()})
}

func (s *Service) HandleEdgeChanges(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var changes []workflow.EdgeChange
	if !decodeBody(w, r, &changes) {
		return
	}
	edges, err := ed.ApplyEdgeChanges(changes)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges, "selection": ed.Selection()})
}

func (s *Service) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var conn workflow.Connection
	if !decodeBody(w, r, &conn) {
		return
	}
	edge, err := ed.Connect(conn)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

type selectRequest struct {
	NodeID string `json:"nodeId"`
}

// HandleSelect focuses a node. An empty nodeId clears the focus.
func (s *Service) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ed.Select(req.NodeID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.Selection())
}

// HandleDeleteSelection removes every selected node and the edges touching them.
func (s *Service) HandleDeleteSelection(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	deleted, err := ed.DeleteSelected()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "selection": ed.Selection()})
}

func (s *Service) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}
	node, err := ed.UpdateConfig(mux.Vars(r)["nodeId"], raw)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type credentialRequest struct {
	CredentialRef *workflow.CredentialRef `json:"credentialRef"`
}

func (s *Service) HandleSetCredential(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req credentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	node, err := ed.SetCredential(mux.Vars(r)["nodeId"], req.CredentialRef)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type settingsRequest struct {
	ContinueOnFail bool `json:"continueOnFail"`
}

func (s *Service) HandleNodeSettings(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	node, err := ed.SetContinueOnFail(mux.Vars(r)["nodeId"], req.ContinueOnFail)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Service) HandleGetProperties(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	props, err := ed.Properties(r.Context(), mux.Vars(r)["nodeId"])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// HandleStartExecution starts a run and returns immediately. Progress is
// available from the current-execution and stream endpoints.
func (s *Service) HandleStartExecution(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	exec, err := ed.Execute(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.Info("Execution started", "workflow", ed.ID(), "execution", exec.ID())
	writeJSON(w, http.StatusAccepted, exec.Snapshot())
}

func (s *Service) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	execs := ed.Executions()
	out := make([]execution.Snapshot, len(execs))
	for i, x := range execs {
		out[i] = x.Snapshot()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) HandleCurrentExecution(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	exec, err := ed.CurrentExecution()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec.Snapshot())
}

func (s *Service) HandleStopExecution(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	exec, err := ed.Stop()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.Info("Execution stopped", "workflow", ed.ID(), "execution", exec.ID())
	writeJSON(w, http.StatusOK, exec.Snapshot())
}

func (s *Service) HandleClearLogs(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	if err := ed.ClearLogs(mux.Vars(r)["execId"]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
