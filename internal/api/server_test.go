package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"

	"healix/internal/config"
	"healix/internal/ingest"
	"healix/internal/models"
	"healix/internal/util"
	"healix/internal/workflows"
)

type fakeConversation struct {
	asked  []string
	resets int
}

func (f *fakeConversation) Ask(_ context.Context, q string) string {
	f.asked = append(f.asked, q)
	if q == "" {
		return ""
	}
	return "answer to " + q
}

func (f *fakeConversation) Reset() { f.resets++ }

func (f *fakeConversation) Turns() []models.Turn {
	out := make([]models.Turn, 0, len(f.asked))
	for _, q := range f.asked {
		out = append(out, models.Turn{Question: q, Answer: "answer to " + q})
	}
	return out
}

type fakeIngester struct {
	rep     ingest.Report
	err     error
	dirs    []string
	cleared bool
}

func (f *fakeIngester) Ingest(_ context.Context, dir string) (ingest.Report, error) {
	f.dirs = append(f.dirs, dir)
	return f.rep, f.err
}

func (f *fakeIngester) ClearIndex(context.Context) error {
	f.cleared = true
	return nil
}

type fakeRun struct {
	tclient.WorkflowRun
	id, runID string
}

func (f fakeRun) GetID() string    { return f.id }
func (f fakeRun) GetRunID() string { return f.runID }

type fakeStarter struct {
	opts  tclient.StartWorkflowOptions
	input workflows.CorpusIngestInput
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	f.opts = opts
	f.input = args[0].(workflows.CorpusIngestInput)
	return fakeRun{id: opts.ID, runID: "run-1"}, nil
}

func newTestServer(conv Conversation, ing Ingester, starter WorkflowStarter) http.Handler {
	cfg := config.Default()
	cfg.DataDir = "corpus"
	return NewServer(cfg, conv, ing, starter, arbor.NewNoOpLogger()).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(&fakeConversation{}, &fakeIngester{}, nil)
	rec, out := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "HealixAI backend is running", out["message"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, out = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["ok"])

	rec, _ = do(t, h, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatAndClear(t *testing.T) {
	conv := &fakeConversation{}
	h := newTestServer(conv, &fakeIngester{}, nil)

	rec, out := do(t, h, http.MethodPost, "/chat", `{"question":"What is the target A1C?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "answer to What is the target A1C?", out["answer"])

	rec, out = do(t, h, http.MethodPost, "/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "history cleared", out["status"])
	require.Equal(t, 1, conv.resets)
}

func TestChatRejectsBadRequests(t *testing.T) {
	conv := &fakeConversation{}
	h := newTestServer(conv, &fakeIngester{}, nil)

	rec, out := do(t, h, http.MethodPost, "/chat", `{"question":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "HX-API-4001", out["error"].(map[string]any)["code"])

	rec, _ = do(t, h, http.MethodPost, "/chat", `{"question":"`+strings.Repeat("a", 4001)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/chat", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Empty(t, conv.asked)
}

func TestChatEmptyQuestion(t *testing.T) {
	h := newTestServer(&fakeConversation{}, &fakeIngester{}, nil)
	rec, out := do(t, h, http.MethodPost, "/chat", `{"question":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "", out["answer"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&fakeConversation{}, &fakeIngester{}, nil)
	rec, _ := do(t, h, http.MethodOptions, "/chat", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIngestInProcess(t *testing.T) {
	ing := &fakeIngester{rep: ingest.Report{Files: 2, Indexed: 12}}
	h := newTestServer(&fakeConversation{}, ing, nil)

	rec, out := do(t, h, http.MethodPost, "/ingest", `{"clear":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(12), out["chunks_indexed"])
	require.Equal(t, []string{"corpus"}, ing.dirs)
	require.True(t, ing.cleared)

	ing.err = fmt.Errorf("%w in corpus", util.ErrNoDocuments)
	rec, out = do(t, h, http.MethodPost, "/ingest", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "HX-ING-4041", out["error"].(map[string]any)["code"])

	ing.err = fmt.Errorf("%w: 2 files", util.ErrAllFailed)
	rec, out = do(t, h, http.MethodPost, "/ingest", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "HX-ING-4022", out["error"].(map[string]any)["code"])
	require.Contains(t, out["error"].(map[string]any)["message"], "none could be loaded")
}

func TestIngestStartsWorkflow(t *testing.T) {
	starter := &fakeStarter{}
	ing := &fakeIngester{}
	h := newTestServer(&fakeConversation{}, ing, starter)

	rec, out := do(t, h, http.MethodPost, "/ingest", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, workflows.CorpusIngestWorkflowID, out["workflow_id"])
	require.Equal(t, "run-1", out["run_id"])
	require.Equal(t, "healix", starter.opts.TaskQueue)
	require.Equal(t, "corpus", starter.input.Dir)
	require.Equal(t, 32, starter.input.BatchSize)
	require.Equal(t, 5, starter.input.RetryDelaySeconds)
	require.Empty(t, ing.dirs)
}

type busyStarter struct{}

func (busyStarter) ExecuteWorkflow(context.Context, tclient.StartWorkflowOptions, interface{}, ...interface{}) (tclient.WorkflowRun, error) {
	return nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "req", "run-0")
}

func TestIngestConflictWhenWorkflowRunning(t *testing.T) {
	h := newTestServer(&fakeConversation{}, &fakeIngester{}, busyStarter{})
	rec, out := do(t, h, http.MethodPost, "/ingest", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "HX-ING-4009", out["error"].(map[string]any)["code"])
}

type blockingIngester struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingIngester) Ingest(context.Context, string) (ingest.Report, error) {
	close(b.entered)
	<-b.release
	return ingest.Report{Indexed: 1}, nil
}

func TestTriggerIngestRunsOneAtATime(t *testing.T) {
	ing := &blockingIngester{entered: make(chan struct{}), release: make(chan struct{})}
	srv := NewServer(config.Default(), &fakeConversation{}, ing, nil, arbor.NewNoOpLogger())

	done := make(chan error, 1)
	go func() {
		_, err := srv.TriggerIngest(context.Background(), false)
		done <- err
	}()
	<-ing.entered

	_, err := srv.TriggerIngest(context.Background(), false)
	require.ErrorIs(t, err, ErrIngestRunning)

	close(ing.release)
	require.NoError(t, <-done)
}

func TestTranscriptFormats(t *testing.T) {
	conv := &fakeConversation{}
	h := newTestServer(conv, &fakeIngester{}, nil)
	do(t, h, http.MethodPost, "/chat", `{"question":"Is fever dangerous?"}`)

	req := httptest.NewRequest(http.MethodGet, "/transcript?format=md", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "**You:** Is fever dangerous?")

	req = httptest.NewRequest(http.MethodGet, "/transcript", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	rec, _ = do(t, h, http.MethodGet, "/transcript?format=docx", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketChat(t *testing.T) {
	conv := &fakeConversation{}
	srv := httptest.NewServer(newTestServer(conv, &fakeIngester{}, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var reply wsReply
	require.NoError(t, conn.WriteJSON(wsRequest{Question: "What is insulin?"}))
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "answer", reply.Type)
	require.Equal(t, "answer to What is insulin?", reply.Answer)

	reply = wsReply{}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "error", reply.Type)
	require.Equal(t, "HX-API-4001", reply.Error["code"])

	reply = wsReply{}
	require.NoError(t, conn.WriteJSON(wsRequest{Type: "clear"}))
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "cleared", reply.Type)
	require.Equal(t, 1, conv.resets)
}
