package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/smallnest/agentscaffold/service"
)

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	agent, err := s.agents.Create(r.Context(), req.toDomain(s.defaults))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.agents.List(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse(res))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.agents.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req UpdateAgentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.agents.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	agent, err := s.agents.Update(r.Context(), id, req.toPatch(current.LLM))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.agents.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvoke runs one turn. With stream=true and streaming enabled the
// answer is sent as SSE "chunk" events followed by a "done" event carrying
// the full result. Errors raised before the first chunk are plain JSON.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := service.InvokeInput{SessionID: req.SessionID, Message: req.Message}
	agentID := mux.Vars(r)["id"]

	if !req.Stream || !s.streaming {
		out, err := s.agents.Invoke(r.Context(), agentID, in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	s.streamInvoke(w, r, func(ctx context.Context, onChunk func(string) error) (*service.InvokeOutput, error) {
		in.OnChunk = onChunk
		return s.agents.Invoke(ctx, agentID, in)
	})
}

// streamInvoke runs fn, opening the event stream lazily on the first chunk.
func (s *Server) streamInvoke(w http.ResponseWriter, r *http.Request, fn func(context.Context, func(string) error) (*service.InvokeOutput, error)) {
	var sse *sseWriter
	start := func() error {
		if sse != nil {
			return nil
		}
		var ok bool
		if sse, ok = newSSEWriter(w); !ok {
			return errStreamingUnsupported
		}
		return nil
	}

	out, err := fn(r.Context(), func(chunk string) error {
		if err := start(); err != nil {
			return err
		}
		return sse.event("chunk", map[string]string{"content": chunk})
	})

	if err != nil {
		if sse == nil {
			s.writeError(w, r, err)
			return
		}
		_ = sse.event("error", httpErrorBody(r, err))
		return
	}
	if err := start(); err != nil {
		writeJSON(w, http.StatusOK, out)
		return
	}
	_ = sse.event("done", out)
}
