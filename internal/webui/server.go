// Package webui exposes the revision engine over HTTP: a JSON API, a
// websocket that relays live model output, and a small embedded builder
// page.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kayz/formforge/internal/engine"
	"github.com/kayz/formforge/internal/form"
	"github.com/kayz/formforge/internal/history"
	"github.com/kayz/formforge/internal/logger"
	"github.com/shirou/gopsutil/v4/process"
)

// Server serves the form revision API.
type Server struct {
	sessions  *engine.SessionStore
	store     *history.Store // optional
	provider  string
	startedAt time.Time
}

// NewServer creates a server over the given session store. store may be nil
// when the audit log is disabled; providerName is reported by /api/status.
func NewServer(sessions *engine.SessionStore, store *history.Store, providerName string) *Server {
	return &Server{
		sessions:  sessions,
		store:     store,
		provider:  providerName,
		startedAt: time.Now().UTC(),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/session", s.handleNewSession)
	mux.HandleFunc("GET /api/form", s.handleGetForm)
	mux.HandleFunc("PUT /api/form", s.handleSetForm)
	mux.HandleFunc("POST /api/revise", s.handleRevise)
	mux.HandleFunc("GET /api/revise/ws", s.handleReviseWS)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("PUT /api/form/fields/{name}", s.handlePutField)
	mux.HandleFunc("DELETE /api/form/fields/{name}", s.handleDeleteField)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	return mux
}

// sessionID resolves the caller's session from header or query, defaulting
// to a shared session so the single-form flow needs no setup.
func sessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	if id := r.URL.Query().Get("session"); id != "" {
		return id
	}
	return "default"
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"ok":         true,
		"provider":   s.provider,
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
		"sessions":   s.sessions.Count(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			payload["rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			payload["cpu_percent"] = cpu
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleNewSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"session_id": uuid.NewString()})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"form_data": s.sessions.Form(sessionID(r))})
}

type reviseRequest struct {
	Instruction string `json:"instruction"`
	// FormData optionally overrides the base form for this revision. The
	// override is committed only when the revision succeeds; on failure the
	// session keeps its previous form.
	FormData *form.Form `json:"form_data,omitempty"`
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if req.Instruction == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "instruction is required"})
		return
	}

	id := sessionID(r)
	var rev form.Revision
	var err error
	if req.FormData != nil {
		if err := form.Check(*req.FormData); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		rev, err = s.sessions.ReviseFrom(r.Context(), id, req.Instruction, *req.FormData, nil)
	} else {
		rev, err = s.sessions.Revise(r.Context(), id, req.Instruction)
	}
	if err != nil {
		writeRevisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleSetForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FormData form.Form `json:"form_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	id := sessionID(r)
	if err := s.sessions.SetForm(id, req.FormData); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"form_data": s.sessions.Form(id)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	s.sessions.Reset(id)
	writeJSON(w, http.StatusOK, map[string]any{"form_data": s.sessions.Form(id)})
}

func (s *Server) handlePutField(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	// "required" defaults to true when the definition omits it.
	var def struct {
		form.Field
		Required *bool `json:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	field := def.Field
	field.Required = def.Required == nil || *def.Required

	updated, err := s.sessions.PutField(sessionID(r), name, field)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"form_data": updated})
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	updated, err := s.sessions.DeleteField(sessionID(r), r.PathValue("name"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, form.ErrFieldNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"form_data": updated})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.Recent(sessionID(r), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The page is served from the same origin; no cross-site callers.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsEvent struct {
	Type    string     `json:"type"` // "delta" | "result" | "error"
	Text    string     `json:"text,omitempty"`
	Message string     `json:"message,omitempty"`
	Form    *form.Form `json:"form_data,omitempty"`
	Stage   string     `json:"stage,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// handleReviseWS runs one revision per incoming message and relays the raw
// model output as it streams, followed by the validated result.
func (s *Server) handleReviseWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := sessionID(r)
	for {
		var req reviseRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Instruction == "" {
			_ = conn.WriteJSON(wsEvent{Type: "error", Error: "instruction is required"})
			continue
		}

		rev, err := s.sessions.ReviseObserved(r.Context(), id, req.Instruction, func(fragment string) {
			_ = conn.WriteJSON(wsEvent{Type: "delta", Text: fragment})
		})
		if err != nil {
			stage := ""
			var revErr *engine.RevisionError
			if errors.As(err, &revErr) {
				stage = string(revErr.Stage)
			}
			_ = conn.WriteJSON(wsEvent{Type: "error", Stage: stage, Error: err.Error()})
			continue
		}
		_ = conn.WriteJSON(wsEvent{Type: "result", Message: rev.Message, Form: &rev.Form})
	}
}

// writeRevisionError maps engine failures to transport-appropriate statuses:
// 409 for overlapping revisions, 504 when the upstream call timed out, 502
// for everything the model side got wrong.
func writeRevisionError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrRevisionInFlight) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusBadGateway
	stage := ""
	var revErr *engine.RevisionError
	if errors.As(err, &revErr) {
		stage = string(revErr.Stage)
		if revErr.Stage == engine.StageTransport && errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
	}
	logger.Warn("[WEB] revision failed (%s): %v", stage, err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "stage": stage})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
