package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/smallnest/agentscaffold/errors"
)

const maxBodyBytes = 1 << 20

var errStreamingUnsupported = errors.New("response writer does not support streaming")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	StatusCode int            `json:"statusCode"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  string         `json:"timestamp"`
	Path       string         `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err to an ErrorResponse. Errors that are not domain errors
// become INTERNAL_ERROR and their text is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		s.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
		appErr = apperrors.Internal(err)
	} else if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}

	body := errorBody(r, appErr)
	writeJSON(w, body.StatusCode, body)
}

// httpErrorBody builds the ErrorResponse for err without logging it.
func httpErrorBody(r *http.Request, err error) ErrorResponse {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	return errorBody(r, appErr)
}

func errorBody(r *http.Request, appErr *apperrors.Error) ErrorResponse {
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return ErrorResponse{
		StatusCode: status,
		Code:       appErr.Code,
		Message:    appErr.Message,
		Details:    appErr.Details,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
	}
}

// decodeJSON reads the request body into dst and validates it.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidRequest("request body is required", err)
		}
		return apperrors.InvalidRequest(fmt.Sprintf("malformed JSON body: %v", err), err)
	}
	return s.validate(dst)
}

// sseWriter emits Server-Sent Events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) event(name string, data any) error {
	payload := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = b
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
