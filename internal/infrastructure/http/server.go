// Package http exposes the query, history and source APIs over HTTP with
// server-sent events for streamed answers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/adapters/loader"
	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/usecases"
	"github.com/0xcro3dile/workspace-rag/internal/export"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

const maxBodyBytes = 10 << 20

var exportContentTypes = map[string]string{
	"json":  "application/json",
	"jsonl": "application/x-ndjson",
	"yaml":  "application/yaml",
	"md":    "text/markdown; charset=utf-8",
}

// Server is the HTTP server for the workspace API.
type Server struct {
	queries    *usecases.QueryUseCase
	ingest     *usecases.IngestUseCase
	workspaces *usecases.WorkspaceUseCase
	web        loader.Loader
	addr       string
}

// NewServer creates a new HTTP server. web loads URL sources; nil disables
// them.
func NewServer(
	queries *usecases.QueryUseCase,
	ingest *usecases.IngestUseCase,
	workspaces *usecases.WorkspaceUseCase,
	web loader.Loader,
	addr string,
) *Server {
	return &Server{
		queries:    queries,
		ingest:     ingest,
		workspaces: workspaces,
		web:        web,
		addr:       addr,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/query/stream", s.handleQueryStream)
	mux.HandleFunc("GET /api/query/stream", s.handleQueryStream)
	mux.HandleFunc("GET /api/workspaces/default", s.handleDefaultWorkspace)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/sources", s.handleListSources)
	mux.HandleFunc("POST /api/sources", s.handleAddSource)
	mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return corsMiddleware(loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // Longer for streaming
	}

	logging.Info("Server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleQuery answers a question in one response.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req, err = s.resolve(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.queries.Query(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQueryStream answers a question as a stream of server-sent events
// named after the event type, each carrying the event as JSON. Requests rejected before the stream starts get a
// plain JSON error instead.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	req, err := decodeQuery(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req, err = s.resolve(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}

	events, err := s.queries.QueryStream(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := sendSSE(w, flusher, ev); err != nil {
			logging.Debug("Client went away: %v", err)
			// drain so the producer can finish
			for range events {
			}
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, ev entities.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) handleDefaultWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaces.Default(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaces.Resolve(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	turns, err := s.workspaces.History(r.Context(), ws.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if format := r.URL.Query().Get("format"); format != "" {
		exporter, err := export.NewExporter(format)
		if err != nil {
			writeError(w, &entities.ValidationError{Field: "format", Reason: err.Error()})
			return
		}
		w.Header().Set("Content-Type", exportContentTypes[exporter.Extension()])
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "history."+exporter.Extension()))
		if err := exporter.Export(export.NewTranscript(*ws, turns), w); err != nil {
			logging.Error("Exporting history: %v", err)
		}
		return
	}
	if turns == nil {
		turns = []entities.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workspace_id": ws.ID, "turns": turns})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaces.Resolve(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sources, err := s.workspaces.Sources(r.Context(), ws.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sources == nil {
		sources = []entities.EvidenceSource{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workspace_id": ws.ID, "sources": sources})
}

// addSourceRequest adds either a URL or inline content.
type addSourceRequest struct {
	WorkspaceID string `json:"workspace_id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Content     string `json:"content"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, &entities.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	ws, err := s.workspaces.Resolve(r.Context(), req.WorkspaceID)
	if err != nil {
		writeError(w, err)
		return
	}

	var doc *entities.Document
	switch {
	case req.URL != "":
		if !loader.IsURL(req.URL) {
			writeError(w, &entities.ValidationError{Field: "url", Reason: "must be an http(s) URL"})
			return
		}
		if s.web == nil {
			writeError(w, &entities.ValidationError{Field: "url", Reason: "web sources are disabled"})
			return
		}
		doc, err = s.web.Load(r.Context(), req.URL)
		if err != nil {
			logging.Warn("Loading %s failed: %v", req.URL, err)
			writeError(w, &entities.ValidationError{Field: "url", Reason: "could not be loaded"})
			return
		}
	default:
		kind := entities.SourceKind(req.Kind)
		if kind == "" {
			kind = entities.SourceTXT
		}
		doc = &entities.Document{
			Name:     req.Name,
			Kind:     kind,
			Segments: []entities.Segment{{Text: req.Content}},
		}
	}

	src, err := s.ingest.Ingest(r.Context(), ws.ID, doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeQuery reads a query from a JSON body, or from the q, workspace_id
// and source parameters of a GET.
func decodeQuery(w http.ResponseWriter, r *http.Request) (*entities.QueryRequest, error) {
	if r.Method == http.MethodGet {
		params := r.URL.Query()
		return &entities.QueryRequest{
			WorkspaceID: params.Get("workspace_id"),
			Query:       params.Get("q"),
			SourceIDs:   params["source"],
		}, nil
	}

	var req entities.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, &entities.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return &req, nil
}

// resolve fills in the default workspace when none was given.
func (s *Server) resolve(ctx context.Context, req *entities.QueryRequest) (*entities.QueryRequest, error) {
	ws, err := s.workspaces.Resolve(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	req.WorkspaceID = ws.ID
	return req, nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var ve *entities.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, entities.ErrGenerationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := usecases.UserMessage(err)
	if status == http.StatusNotFound {
		msg = "not found"
	}
	if status >= 500 {
		logging.Error("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Info("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
