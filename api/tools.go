package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	defs := s.tools.List()
	out := make([]ToolResponse, len(defs))
	for i, d := range defs {
		out[i] = ToolResponse{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExecuteTool runs a tool directly. The body is optional.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req ExecuteToolRequest
	if r.ContentLength != 0 {
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	result, err := s.tools.Execute(r.Context(), name, req.Args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":   name,
		"result": result,
	})
}
