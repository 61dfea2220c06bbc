package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/internal/logging"
	"github.com/FocuswithJustin/docrevise/internal/revision"
	"github.com/FocuswithJustin/docrevise/internal/validation"
)

// Version is reported by / and /health.
var Version = "dev"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Document   string `json:"document"`
	Modified   bool   `json:"modified"`
	Paragraphs int    `json:"paragraphs"`
	Clients    int    `json:"clients"`
}

// FullReplaceRequest is the body of POST /replace/full. At most one of
// Text and TextArray may be set; with neither, the live text is replaced.
type FullReplaceRequest struct {
	ParaID      string   `json:"paraID"`
	Text        *string  `json:"text,omitempty"`
	TextArray   []string `json:"textArray,omitempty"`
	Replacement string   `json:"replacement"`
}

// SpanReplaceRequest is the body of POST /replace/span.
type SpanReplaceRequest struct {
	ParaID      string `json:"paraID"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// SaveRequest is the body of POST /save. An empty Path saves in place.
type SaveRequest struct {
	Path string `json:"path,omitempty"`
}

// SaveResult reports where the document was written.
type SaveResult struct {
	Path string `json:"path"`
}

// RevisionsRequest is the body of POST /revisions.
type RevisionsRequest struct {
	Mode  string             `json:"mode"`
	Items []revision.Revised `json:"items"`
}

// RevisionOutcome is one applied revision in a RevisionsResult.
type RevisionOutcome struct {
	revision.Outcome
	Error string `json:"error,omitempty"`
}

// RevisionsResult is the response to POST /revisions.
type RevisionsResult struct {
	Outcomes []RevisionOutcome `json:"outcomes"`
	Summary  revision.Summary  `json:"summary"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "docrevise",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /paragraphs",
			"GET /paragraphs/{id}",
			"GET /batches",
			"POST /replace/full",
			"POST /replace/span",
			"POST /undo",
			"POST /save",
			"POST /revisions",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respond(w, http.StatusOK, HealthInfo{
		Status:     "healthy",
		Version:    Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Document:   s.session.Path(),
		Modified:   s.session.Modified(),
		Paragraphs: len(s.session.Paragraphs()),
		Clients:    s.hub.ClientCount(),
	})
}

func (s *Server) handleParagraphs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	paras := s.session.Paragraphs()
	respondList(w, paras, len(paras))
}

// handleParagraphByID locates a paragraph. ?runs=1 adds its text.
func (s *Server) handleParagraphByID(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id := r.PathValue("id")
	loc := s.session.Locate(id)
	if !loc.Found {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "paragraph not found: "+id)
		return
	}
	if r.URL.Query().Get("runs") == "" {
		respond(w, http.StatusOK, loc)
		return
	}
	for _, p := range s.session.Paragraphs() {
		if p.ParaID == id {
			respond(w, http.StatusOK, p)
			return
		}
	}
	respondError(w, http.StatusNotFound, "NOT_FOUND", "paragraph not readable: "+id)
}

// handleBatches groups the paragraphs worth revising into batches of at
// most ChunkSize characters.
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	batches := revision.ChunkItems(s.session.Items(), s.cfg.ChunkSize)
	if batches == nil {
		batches = [][]revision.Item{}
	}
	respondList(w, batches, len(batches))
}

func (s *Server) handleReplaceFull(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req FullReplaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text != nil && req.TextArray != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "text and textArray are mutually exclusive")
		return
	}
	if !requireParaID(w, req.ParaID) || !validText(w, "replacement", req.Replacement) {
		return
	}

	var original *patch.Original
	switch {
	case req.Text != nil:
		o := patch.FullText(*req.Text)
		original = &o
	case req.TextArray != nil:
		o := patch.RunTexts(req.TextArray)
		original = &o
	}
	res, err := s.session.ReplaceFull(r.Context(), req.ParaID, original, req.Replacement)
	s.finishPatch(w, r, "full", req.ParaID, res, err)
}

func (s *Server) handleReplaceSpan(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req SpanReplaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireParaID(w, req.ParaID) || !validText(w, "replacement", req.Replacement) {
		return
	}
	res, err := s.session.ReplaceSpan(r.Context(), req.ParaID, req.Original, req.Replacement)
	s.finishPatch(w, r, "span", req.ParaID, res, err)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	res, err := s.session.Undo(r.Context())
	s.finishPatch(w, r, "undo", "", res, err)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req SaveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	path, err := s.session.Save(req.Path)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logging.InfoContext(r.Context(), "document_saved", "path", path)
	respond(w, http.StatusOK, SaveResult{Path: path})
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req RevisionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = string(revision.ModeRewrite)
	}
	mode, err := revision.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	for _, item := range req.Items {
		if !requireParaID(w, item.ParaID) || !validText(w, "text", item.Text) {
			return
		}
		for _, c := range item.Corrections {
			if !validText(w, "replacedText", c.ReplacedText) {
				return
			}
		}
	}

	outcomes, err := s.session.ApplyRevisions(r.Context(), req.Items, mode)
	result := RevisionsResult{Outcomes: make([]RevisionOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		ro := RevisionOutcome{Outcome: o}
		if o.Err != nil {
			ro.Error = o.Err.Error()
		}
		result.Outcomes = append(result.Outcomes, ro)
		s.hub.Broadcast(eventFor("revisions", o.ParaID, o.Result, o.Err))
	}
	result.Summary = revision.Summarize(outcomes)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, result)
}

// finishPatch broadcasts the outcome and writes the response.
func (s *Server) finishPatch(w http.ResponseWriter, r *http.Request, operation, paraID string, res patch.Result, err error) {
	s.hub.Broadcast(eventFor(operation, paraID, res, err))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only "+method+" is allowed")
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body: "+err.Error())
		return false
	}
	if _, err := dec.Token(); err != io.EOF {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be a single JSON object")
		return false
	}
	return true
}

func requireParaID(w http.ResponseWriter, id string) bool {
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "paraID is required")
		return false
	}
	return true
}

func validText(w http.ResponseWriter, field, text string) bool {
	if err := validation.ValidateText(text); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_TEXT", field+": "+err.Error())
		return false
	}
	return true
}

// respondErr maps an error to a status code and error code.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errors.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, errors.ErrSerialization):
		logging.ErrorContext(r.Context(), "request_failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "SERIALIZATION_FAULT", err.Error())
	default:
		logging.ErrorContext(r.Context(), "request_failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	writeResponse(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	writeResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeResponse(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}
