package api

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/rag"
)

var errNoKnowledgeBase = apperrors.InvalidRequest("knowledge base is not configured", nil)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.writeError(w, r, errNoKnowledgeBase)
		return
	}
	var req IngestRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := rag.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, r, apperrors.Validation(map[string]string{"format": err.Error()}))
		return
	}
	n, err := s.knowledge.Ingest(r.Context(), req.documents(), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{
		"documents": len(req.Documents),
		"chunks":    n,
		"total":     s.knowledge.Count(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.writeError(w, r, errNoKnowledgeBase)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, r, apperrors.Validation(map[string]string{"q": "q is required"}))
		return
	}
	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, apperrors.Validation(map[string]string{"k": "k must be a positive integer"}))
			return
		}
		k = n
	}
	results, err := s.knowledge.Search(r.Context(), q, k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": results,
	})
}
