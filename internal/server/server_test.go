package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/websocket"

	"tasknerd/internal/config"
	"tasknerd/internal/interpreter"
	"tasknerd/internal/perception"
	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type testServer struct {
	srv    *Server
	stack  *interpreter.Stack
	store  *store.LocalStore
	client *perception.ScriptedClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "tasks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := perception.NewScriptedClient().Fallback(`{"intent":"Unknown","slots":{}}`)
	stack, err := interpreter.NewStack(config.DefaultConfig(), st, client)
	require.NoError(t, err)

	srv := New(stack, Options{Mode: "test", SweepInterval: time.Hour})
	return &testServer{srv: srv, stack: stack, store: st, client: client}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

type replyBody struct {
	Success   bool            `json:"success"`
	Response  string          `json:"response"`
	Data      json.RawMessage `json:"data"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) replyBody {
	t.Helper()
	var r replyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

func (ts *testServer) seed(t *testing.T, titles ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ts.store.WithTx(ctx, func(tx store.Tx) error {
		for _, title := range titles {
			if _, err := tx.CreateTask(ctx, types.NewTask{Title: title, Status: types.StatusPending, Priority: types.PriorityMedium}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (ts *testServer) taskCount(t *testing.T) int {
	t.Helper()
	tasks, err := ts.store.ListTasks(context.Background(), types.TaskFilter{})
	require.NoError(t, err)
	return len(tasks)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestQuery_CreateTask(t *testing.T) {
	ts := newTestServer(t)
	ts.client.Route("Message: create task 'Review code' with high priority",
		`{"intent":"CreateTask","slots":{"title":"Review code","priority":"high"}}`)

	w := ts.do(t, http.MethodPost, "/api/query", body{"message": "create task 'Review code' with high priority"})
	require.Equal(t, http.StatusOK, w.Code)

	r := decode(t, w)
	assert.True(t, r.Success)
	assert.Equal(t, "result", r.Type)
	assert.NotEmpty(t, r.SessionID)
	assert.True(t, strings.HasPrefix(r.Response, "Created task 'Review code'"))

	var task types.Task
	require.NoError(t, json.Unmarshal(r.Data, &task))
	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, types.PriorityHigh, task.Priority)
	assert.Equal(t, types.StatusPending, task.Status)
}

// body is shorthand for request bodies.
type body map[string]interface{}

func TestQuery_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/query", body{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/query", body{"message": strings.Repeat("a", maxMessageSize+1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery_ConfirmFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "Review code", "Write report")

	w := ts.do(t, http.MethodPost, "/api/query", body{"session_id": "abc", "message": "delete all tasks"})
	r := decode(t, w)
	assert.Equal(t, "confirmation_required", r.Type)
	assert.Equal(t, 2, ts.taskCount(t))

	w = ts.do(t, http.MethodPost, "/api/query", body{"session_id": "abc", "confirm": true})
	r = decode(t, w)
	assert.True(t, r.Success, r.Response)
	assert.Equal(t, "abc", r.SessionID)
	assert.Zero(t, ts.taskCount(t))
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/query", body{"session_id": "abc", "message": "show tasks"})
	require.Equal(t, 1, ts.stack.Tracker().Len())

	w := ts.do(t, http.MethodDelete, "/api/sessions/abc", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, ts.stack.Tracker().Len())
}

func TestCreateTaskEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/tasks", body{"title": "Ship v2", "description": "Tag and push"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	r := decode(t, w)
	assert.True(t, r.Success)

	task, err := ts.store.GetTask(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ship v2", task.Title)
	assert.Equal(t, "Tag and push", task.Description)
	assert.Zero(t, ts.stack.Tracker().Len())

	w = ts.do(t, http.MethodPost, "/tasks", body{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func dialWS(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	ws, err := websocket.Dial(url, "", hs.URL)
	require.NoError(t, err)
	return ws
}

func TestWebsocket_Conversation(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "Review code", "Write report")
	hs := httptest.NewServer(ts.srv.Handler())
	defer hs.Close()

	ws := dialWS(t, hs)

	require.NoError(t, websocket.Message.Send(ws, "show tasks"))
	var r replyBody
	require.NoError(t, websocket.JSON.Receive(ws, &r))
	assert.True(t, r.Success)
	assert.Contains(t, r.Response, "Review code")

	require.NoError(t, websocket.Message.Send(ws, "delete all tasks"))
	require.NoError(t, websocket.JSON.Receive(ws, &r))
	assert.Equal(t, "confirmation_required", r.Type)

	require.NoError(t, websocket.Message.Send(ws, `{"message":"","confirm":true}`))
	require.NoError(t, websocket.JSON.Receive(ws, &r))
	assert.True(t, r.Success, r.Response)
	assert.Zero(t, ts.taskCount(t))

	assert.Equal(t, 1, ts.stack.Tracker().Len())
	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return ts.stack.Tracker().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_ConnectionsAreSeparateSessions(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "Review code")
	hs := httptest.NewServer(ts.srv.Handler())
	defer hs.Close()

	a, b := dialWS(t, hs), dialWS(t, hs)
	defer a.Close()
	defer b.Close()

	var r replyBody
	require.NoError(t, websocket.Message.Send(a, "delete all tasks"))
	require.NoError(t, websocket.JSON.Receive(a, &r))
	require.Equal(t, "confirmation_required", r.Type)

	// b has nothing pending, so "yes" is just an unknown utterance there.
	require.NoError(t, websocket.Message.Send(b, "yes"))
	require.NoError(t, websocket.JSON.Receive(b, &r))
	assert.Equal(t, "unknown", r.Type)
	assert.Equal(t, 1, ts.taskCount(t))
}

func TestParseFrame(t *testing.T) {
	assert.Equal(t, wsFrame{Message: "show tasks"}, parseFrame("show tasks"))
	assert.Equal(t, wsFrame{Message: "yes", Confirm: true}, parseFrame(`{"message":"yes","confirm":true}`))
	assert.Equal(t, wsFrame{Message: "{broken"}, parseFrame("{broken"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	http.DefaultClient.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
