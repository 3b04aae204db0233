// Package api exposes agents, sessions, tools and the knowledge base over a
// JSON REST interface.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/rag"
	"github.com/smallnest/agentscaffold/service"
	"github.com/smallnest/agentscaffold/tool"
)

const (
	codeRouteNotFound    = "ROUTE_NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// Options wires the server to the application layer.
type Options struct {
	Agents    *service.AgentService
	Sessions  *service.SessionService
	Tools     *tool.Registry
	Knowledge *rag.KnowledgeBase
	Metrics   *Metrics

	// LLMDefaults fills the provider, temperature and max tokens of agents
	// created without them.
	LLMDefaults domain.LLMConfig
	// Streaming enables SSE responses for invoke requests with stream=true.
	Streaming bool
	Logger    log.Logger
}

// Server is the REST front of the application.
type Server struct {
	agents    *service.AgentService
	sessions  *service.SessionService
	tools     *tool.Registry
	knowledge *rag.KnowledgeBase
	metrics   *Metrics
	defaults  domain.LLMConfig
	streaming bool
	validator *validator.Validate
	logger    log.Logger
	router    *mux.Router
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	s := &Server{
		agents:    opts.Agents,
		sessions:  opts.Sessions,
		tools:     opts.Tools,
		knowledge: opts.Knowledge,
		metrics:   opts.Metrics,
		defaults:  opts.LLMDefaults,
		streaming: opts.Streaming,
		validator: newValidator(),
		logger:    log.OrDefault(opts.Logger),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.accessLog, s.recoverer)

	// ping is registered before /agents/{id} so it is not taken for an ID
	r.HandleFunc("/agents/health/ping", s.handlePing).Methods(http.MethodGet)
	r.HandleFunc("/agents", s.handleCreateAgent).Methods(http.MethodPost)
	r.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	r.HandleFunc("/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	r.HandleFunc("/agents/{id}", s.handleUpdateAgent).Methods(http.MethodPatch)
	r.HandleFunc("/agents/{id}", s.handleDeleteAgent).Methods(http.MethodDelete)
	r.HandleFunc("/agents/{id}/invoke", s.handleInvoke).Methods(http.MethodPost)

	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/pause", s.sessionTransition(s.sessions.Pause)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/resume", s.sessionTransition(s.sessions.Resume)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/complete", s.sessionTransition(s.sessions.Complete)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/review", s.handleReview).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/history", s.handleHistory).Methods(http.MethodGet)

	r.HandleFunc("/tools", s.handleListTools).Methods(http.MethodGet)
	r.HandleFunc("/tools/{name}/execute", s.handleExecuteTool).Methods(http.MethodPost)

	r.HandleFunc("/knowledge", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/knowledge/search", s.handleSearch).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.New(codeRouteNotFound, "route not found", http.StatusNotFound, nil))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.New(codeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed, nil))
	})
	return r
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// pageParams reads skip and take from the query string.
func pageParams(r *http.Request) (domain.Page, error) {
	var page domain.Page
	fields := make(map[string]string)
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["skip"] = "skip must be a non-negative integer"
		}
		page.Skip = n
	}
	if v := q.Get("take"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["take"] = "take must be a non-negative integer"
		}
		page.Take = n
	}
	if len(fields) > 0 {
		return page, apperrors.Validation(fields)
	}
	return page, nil
}
