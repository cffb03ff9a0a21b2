package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"healix/internal/config"
	"healix/internal/ingest"
	"healix/internal/models"
	"healix/internal/transcript"
	"healix/internal/util"
	"healix/internal/workflows"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

const maxQuestionLen = 4000

// ErrIngestRunning is returned when an ingestion is triggered while another is in flight.
var ErrIngestRunning = errors.New("ingestion already running")

// Conversation is the chat session the server fronts.
type Conversation interface {
	Ask(ctx context.Context, q string) string
	Reset()
	Turns() []models.Turn
}

type Ingester interface {
	Ingest(ctx context.Context, dir string) (ingest.Report, error)
}

// WorkflowStarter is the subset of the Temporal client used to start ingestion.
type WorkflowStarter = workflows.Starter

type Server struct {
	cfg      config.Config
	ingester Ingester
	temporal WorkflowStarter
	validate *validator.Validate
	logger   arbor.ILogger

	// mu serialises access to the single conversation.
	mu           sync.Mutex
	conversation Conversation

	ingestMu sync.Mutex
}

// IngestResult describes a triggered ingestion: a started workflow, or a finished in-process report.
type IngestResult struct {
	WorkflowID string
	RunID      string
	Report     ingest.Report
}

type chatRequest struct {
	Question string `json:"question" validate:"max=4000"`
}

// NewServer wires the HTTP surface. temporal may be nil, in which case /ingest runs in-process.
func NewServer(cfg config.Config, conversation Conversation, ingester Ingester, temporal WorkflowStarter, logger arbor.ILogger) *Server {
	return &Server{
		cfg:          cfg,
		conversation: conversation,
		ingester:     ingester,
		temporal:     temporal,
		validate:     validator.New(),
		logger:       logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/clear", s.handleClear)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/transcript", s.handleTranscript)
	mux.HandleFunc("/ws", s.handleWS)
	return withCORS(s.withRequestLog(mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "HealixAI backend is running"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question too long: %w", err))
		return
	}

	s.mu.Lock()
	answer := s.conversation.Ask(r.Context(), req.Question)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	s.mu.Lock()
	s.conversation.Reset()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "history cleared"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Clear bool `json:"clear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	res, err := s.TriggerIngest(r.Context(), req.Clear)
	switch {
	case errors.Is(err, ErrIngestRunning):
		writeErr(w, http.StatusConflict, err)
	case errors.Is(err, util.ErrNoDocuments), errors.Is(err, util.ErrAllFailed):
		writeErr(w, http.StatusUnprocessableEntity, err)
	case err != nil:
		writeErr(w, http.StatusInternalServerError, err)
	case res.WorkflowID != "":
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": res.WorkflowID, "run_id": res.RunID})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"chunks_indexed": res.Report.Indexed, "files": res.Report.Files, "failures": res.Report.Failures})
	}
}

// TriggerIngest starts the ingestion workflow when Temporal is configured and
// otherwise runs the pipeline in-process, one run at a time.
func (s *Server) TriggerIngest(ctx context.Context, clearFirst bool) (IngestResult, error) {
	if s.temporal != nil {
		we, err := workflows.StartCorpusIngest(ctx, s.temporal, s.cfg.Temporal.TaskQueue, workflows.InputFromConfig(s.cfg, clearFirst))
		if workflows.IsAlreadyRunning(err) {
			return IngestResult{}, ErrIngestRunning
		}
		if err != nil {
			return IngestResult{}, fmt.Errorf("start ingest workflow: %w", err)
		}
		s.logger.Info().Str("workflow_id", we.GetID()).Str("run_id", we.GetRunID()).Msg("Ingest workflow started")
		return IngestResult{WorkflowID: we.GetID(), RunID: we.GetRunID()}, nil
	}

	if !s.ingestMu.TryLock() {
		return IngestResult{}, ErrIngestRunning
	}
	defer s.ingestMu.Unlock()

	if clearFirst {
		if c, ok := s.ingester.(interface{ ClearIndex(context.Context) error }); ok {
			if err := c.ClearIndex(ctx); err != nil {
				return IngestResult{}, err
			}
		}
	}
	rep, err := s.ingester.Ingest(ctx, s.cfg.DataDir)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Report: rep}, nil
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	s.mu.Lock()
	turns := s.conversation.Turns()
	s.mu.Unlock()

	switch r.URL.Query().Get("format") {
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, transcript.Markdown(turns))
	case "", "pdf":
		doc, err := transcript.PDF(turns)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="healix-transcript.pdf"`)
		_, _ = w.Write(doc)
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unsupported transcript format"))
	}
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "HX-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "HX-SVC-5002",
				Message: "A backing service is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "HX-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "HX-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "HX-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "HX-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusConflict:
		code = "HX-ING-4009"
		msg = "Ingestion is already running. Retry after it finishes."
	case status == http.StatusUnprocessableEntity && errors.Is(err, util.ErrAllFailed):
		code = "HX-ING-4022"
		msg = "Documents were found but none could be loaded. Check the ingest failures in the logs."
	case status == http.StatusUnprocessableEntity:
		code = "HX-ING-4041"
		msg = "No supported documents found in the data directory."
	}

	if status == http.StatusBadRequest && err != nil {
		switch {
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "question too long"):
			msg = fmt.Sprintf("Question must be at most %d characters.", maxQuestionLen)
		case strings.Contains(raw, "unsupported transcript format"):
			msg = "Transcript format must be pdf or md."
		}
	}
	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
