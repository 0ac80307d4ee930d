package editor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"workflow-builder/api/services/catalog"
	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/identity"
	"workflow-builder/api/services/workflow"
)

// Service exposes open editors over HTTP.
type Service struct {
	sessions *Sessions
	catalog  *catalog.Catalog
	upgrader websocket.Upgrader
}

// NewService creates a Service. allowedOrigins restricts which browser
// origins may open an execution log stream; requests without an Origin
// header are always accepted.
func NewService(sessions *Sessions, cat *catalog.Catalog, allowedOrigins []string) *Service {
	return &Service{
		sessions: sessions,
		catalog:  cat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")
			},
		},
	}
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes registers the catalog and workflow editor handlers on the given
// router. Every route requires an authenticated principal.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	parentRouter.Handle("/catalog", identity.Middleware(jsonMiddleware(http.HandlerFunc(s.HandleSearchCatalog)))).Methods("GET")

	router := parentRouter.PathPrefix("/workflows").Subrouter()
	router.StrictSlash(false)
	router.Use(identity.Middleware, jsonMiddleware)

	router.HandleFunc("", s.HandleCreateWorkflow).Methods("POST")
	router.HandleFunc("/{id}", s.HandleGetWorkflow).Methods("GET")
	router.HandleFunc("/{id}", s.HandleSaveWorkflow).Methods("PUT")

	router.HandleFunc("/{id}/nodes", s.HandleAddNode).Methods("POST")
	router.HandleFunc("/{id}/nodes", s.HandleNodeChanges).Methods("PATCH")
	router.HandleFunc("/{id}/edges", s.HandleEdgeChanges).Methods("PATCH")
	router.HandleFunc("/{id}/connections", s.HandleConnect).Methods("POST")
	router.HandleFunc("/{id}/selection", s.HandleSelect).Methods("PUT")
	router.HandleFunc("/{id}/selection", s.HandleDeleteSelection).Methods("DELETE")
	router.HandleFunc("/{id}/nodes/{nodeId}/config", s.HandleUpdateConfig).Methods("PUT")
	router.HandleFunc("/{id}/nodes/{nodeId}/credential", s.HandleSetCredential).Methods("PUT")
	router.HandleFunc("/{id}/nodes/{nodeId}/settings", s.HandleNodeSettings).Methods("PUT")
	router.HandleFunc("/{id}/nodes/{nodeId}/properties", s.HandleGetProperties).Methods("GET")

	router.HandleFunc("/{id}/executions", s.HandleStartExecution).Methods("POST")
	router.HandleFunc("/{id}/executions", s.HandleListExecutions).Methods("GET")
	router.HandleFunc("/{id}/executions/current", s.HandleCurrentExecution).Methods("GET")
	router.HandleFunc("/{id}/executions/current", s.HandleStopExecution).Methods("DELETE")
	router.HandleFunc("/{id}/executions/{execId}/logs", s.HandleClearLogs).Methods("DELETE")
	router.HandleFunc("/{id}/executions/{execId}/stream", s.HandleStreamExecution).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// writeDomainError maps editor, graph and engine errors onto HTTP statuses.
// Anything unrecognised is logged and reported as a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var graphErr *workflow.GraphError
	switch {
	case errors.Is(err, identity.ErrNoPrincipal):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, workflow.ErrWorkflowNotFound),
		errors.Is(err, execution.ErrNoExecution),
		errors.Is(err, workflow.ErrUnknownNode),
		errors.Is(err, workflow.ErrUnknownEdge):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, execution.ErrConcurrentExecution),
		errors.Is(err, execution.ErrNotCurrentExecution):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &graphErr),
		errors.Is(err, execution.ErrCyclicGraph),
		errors.Is(err, execution.ErrEmptyGraph),
		errors.Is(err, ErrUnknownTemplate),
		errors.Is(err, ErrNoSelection):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// editorFor resolves the {id} route variable to an open editor, writing the
// error response itself when it cannot.
func (s *Service) editorFor(w http.ResponseWriter, r *http.Request) (*Editor, bool) {
	ed, err := s.sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	return ed, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
