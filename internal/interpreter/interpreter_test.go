package interpreter

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tasknerd/internal/config"
	"tasknerd/internal/perception"
	"tasknerd/internal/session"
	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const unknownJSON = `{"intent":"Unknown","slots":{}}`

type harness struct {
	stack  *Stack
	store  *store.LocalStore
	client *perception.ScriptedClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "tasks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := perception.NewScriptedClient().Fallback(unknownJSON)
	cfg := config.DefaultConfig()
	stack, err := NewStack(cfg, st, client)
	require.NoError(t, err)
	return &harness{stack: stack, store: st, client: client}
}

func (h *harness) say(t *testing.T, session, text string) types.Reply {
	t.Helper()
	reply, err := h.stack.Handle(context.Background(), Request{SessionID: session, Text: text})
	require.NoError(t, err)
	return reply
}

func (h *harness) seedTasks(t *testing.T, titles ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.store.WithTx(ctx, func(tx store.Tx) error {
		for _, title := range titles {
			if _, err := tx.CreateTask(ctx, types.NewTask{Title: title, Status: types.StatusPending, Priority: types.PriorityMedium}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (h *harness) tasks(t *testing.T) []types.Task {
	t.Helper()
	ts, err := h.store.ListTasks(context.Background(), types.TaskFilter{})
	require.NoError(t, err)
	return ts
}

// route answers the extraction prompt of one message.
func (h *harness) route(message, reply string) {
	h.client.Route("Message: "+message, reply)
}

func TestHandle_CreateTaskWithPriority(t *testing.T) {
	h := newHarness(t)
	h.route("create task 'Review code' with high priority",
		`{"intent":"CreateTask","slots":{"title":"Review code","priority":"high"}}`)

	reply := h.say(t, "s1", "create task 'Review code' with high priority")

	require.True(t, reply.Success, reply.Response)
	assert.Equal(t, types.ReplyResult, reply.Type)
	assert.True(t, strings.HasPrefix(reply.Response, "Created task 'Review code'"), reply.Response)
	task, ok := reply.Data.(types.Task)
	require.True(t, ok, "data is %T", reply.Data)
	assert.NotZero(t, task.ID)
	assert.Equal(t, types.PriorityHigh, task.Priority)
	assert.Equal(t, types.StatusPending, task.Status)

	sctx := h.stack.Tracker().Get("s1")
	assert.Equal(t, []int64{task.ID}, sctx.LastResultIDs())
}

func TestHandle_UpdateMissingTaskAsksForTask(t *testing.T) {
	h := newHarness(t)
	h.route("mark task 'Review code' as completed",
		`{"intent":"UpdateTask","slots":{"task":"Review code","status":"completed"}}`)

	reply := h.say(t, "s1", "mark task 'Review code' as completed")

	assert.False(t, reply.Success)
	assert.Equal(t, types.ReplyClarification, reply.Type)
	c, ok := reply.Data.(*types.Clarification)
	require.True(t, ok, "data is %T", reply.Data)
	assert.Equal(t, types.SlotTask, c.Slot)
	assert.Equal(t, types.NotFound, c.Reason)
	assert.Empty(t, c.Candidates)
	assert.NotNil(t, h.stack.Tracker().Get("s1").PendingClarification)
}

func TestHandle_ShowThenMarkFirst(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code", "Write report")
	h.route("mark the first one completed",
		`{"intent":"UpdateTask","slots":{"task":"the first one","status":"completed"}}`)

	list := h.say(t, "s1", "show tasks")
	require.True(t, list.Success, list.Response)
	assert.Equal(t, []int64{1, 2}, h.stack.Tracker().Get("s1").LastResultIDs())

	reply := h.say(t, "s1", "mark the first one completed")
	require.True(t, reply.Success, reply.Response)

	first, err := h.store.GetTask(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, first.Status)
	second, err := h.store.GetTask(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, second.Status)
}

func TestHandle_UnknownChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")
	h.say(t, "s1", "show tasks")

	before := h.stack.Tracker().Get("s1")
	tasksBefore := h.tasks(t)

	reply := h.say(t, "s1", "what is the meaning of life")
	assert.Equal(t, types.ReplyUnknown, reply.Type)
	assert.False(t, reply.Success)

	after := h.stack.Tracker().Get("s1")
	ignore := cmpopts.IgnoreFields(session.Context{}, "Turns", "LastSeen")
	assert.Empty(t, cmp.Diff(before, after, ignore))
	assert.Equal(t, before.Turns+1, after.Turns)
	assert.Empty(t, cmp.Diff(tasksBefore, h.tasks(t)))
}

func TestHandle_ExtractionFailureLeavesContext(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")
	h.say(t, "s1", "show tasks")
	before := h.stack.Tracker().Get("s1")

	for i := 0; i < 3; i++ {
		h.client.Push("not json at all", "still not json")
		reply := h.say(t, "s1", "frobnicate the widgets")
		assert.Equal(t, types.ReplyUnknown, reply.Type)
	}
	after := h.stack.Tracker().Get("s1")
	assert.Equal(t, before.LastResults, after.LastResults)
}

func TestHandle_ClarificationCompletionMatchesOneTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.WithTx(ctx, func(tx store.Tx) error {
		for _, name := range []string{"Mobile App", "Mobile Web"} {
			if _, err := tx.CreateProject(ctx, types.NewProject{Name: name}); err != nil {
				return err
			}
		}
		return nil
	}))
	h.route("add task Design landing page to mobile",
		`{"intent":"CreateTask","slots":{"title":"Design landing page","project":"mobile"}}`)
	h.route("add task Design landing page to Mobile Web",
		`{"intent":"CreateTask","slots":{"title":"Design landing page","project":"Mobile Web"}}`)

	ask := h.say(t, "two-turn", "add task Design landing page to mobile")
	require.Equal(t, types.ReplyClarification, ask.Type, ask.Response)
	c := ask.Data.(*types.Clarification)
	require.Len(t, c.Candidates, 2)
	assert.Equal(t, types.SlotProject, c.Slot)

	answered := h.say(t, "two-turn", "the second one")
	require.True(t, answered.Success, answered.Response)
	assert.Nil(t, h.stack.Tracker().Get("two-turn").PendingClarification)

	direct := h.say(t, "one-turn", "add task Design landing page to Mobile Web")
	require.True(t, direct.Success, direct.Response)

	got, want := answered.Data.(types.Task), direct.Data.(types.Task)
	ignore := cmpopts.IgnoreFields(types.Task{}, "ID", "CreatedAt", "UpdatedAt")
	assert.Empty(t, cmp.Diff(want, got, ignore))
	require.NotNil(t, got.ProjectID)
	assert.Equal(t, int64(2), *got.ProjectID)
}

func TestHandle_NewRequestAbandonsClarification(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")
	h.route("add a task", `{"intent":"CreateTask","slots":{}}`)

	ask := h.say(t, "s1", "add a task")
	require.Equal(t, types.ReplyClarification, ask.Type)

	list := h.say(t, "s1", "show tasks")
	assert.True(t, list.Success)
	assert.Nil(t, h.stack.Tracker().Get("s1").PendingClarification)
	assert.Len(t, h.tasks(t), 1)
}

func TestHandle_BulkDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code", "Write report", "Fix login bug")

	held := h.say(t, "s1", "delete all tasks")
	assert.Equal(t, types.ReplyConfirmationRequired, held.Type)
	assert.False(t, held.Success)
	assert.Len(t, h.tasks(t), 3)

	cancelled := h.say(t, "s1", "no")
	assert.Contains(t, cancelled.Response, "cancelled")
	assert.Len(t, h.tasks(t), 3)
	assert.Nil(t, h.stack.Tracker().Get("s1").PendingConfirmation)

	h.say(t, "s1", "delete all tasks")
	done := h.say(t, "s1", "yes")
	require.True(t, done.Success, done.Response)
	assert.Empty(t, h.tasks(t))
	sctx := h.stack.Tracker().Get("s1")
	assert.Nil(t, sctx.PendingConfirmation)
	assert.Empty(t, sctx.LastResults)
}

func TestHandle_BulkNeverRunsUnconfirmed(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code", "Write report", "Fix login bug", "Write docs")
	h.route("complete every pending task",
		`{"intent":"BulkUpdate","slots":{"scope":"all","filter_status":"pending","status":"completed"}}`)
	h.route("mark tasks 2 to 3 done",
		`{"intent":"BulkUpdate","slots":{"ids":"2-3","status":"completed"}}`)

	before := h.tasks(t)
	for _, text := range []string{
		"complete every pending task",
		"mark tasks 2 to 3 done",
		"delete all tasks",
	} {
		reply := h.say(t, "s1", text)
		assert.Equal(t, types.ReplyConfirmationRequired, reply.Type, text)
		assert.Empty(t, cmp.Diff(before, h.tasks(t)), text)
	}
}

func TestHandle_ConfirmFlagWithoutPendingPlan(t *testing.T) {
	h := newHarness(t)
	reply, err := h.stack.Handle(context.Background(), Request{SessionID: "s1", Confirm: true})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "There is nothing waiting for confirmation.", reply.Response)
}

func TestHandle_ConfirmFlagExecutesHeldPlan(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code", "Write report")

	h.say(t, "s1", "delete all tasks")
	reply, err := h.stack.Handle(context.Background(), Request{SessionID: "s1", Confirm: true})
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Response)
	assert.Empty(t, h.tasks(t))
}

func TestHandle_ConfirmFlagWithOtherRequestDropsHeldPlan(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code", "Write report")

	held := h.say(t, "s1", "delete all tasks")
	require.Equal(t, types.ReplyConfirmationRequired, held.Type)

	reply, err := h.stack.Handle(context.Background(), Request{SessionID: "s1", Text: "list tasks", Confirm: true})
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Response)
	assert.Contains(t, reply.Response, "Found 2 tasks")
	assert.Len(t, h.tasks(t), 2)
	assert.Nil(t, h.stack.Tracker().Get("s1").PendingConfirmation)

	// A later "yes" has nothing left to run.
	h.say(t, "s1", "yes")
	assert.Len(t, h.tasks(t), 2)
}

func TestHandle_StoreFailureKeepsHeldPlan(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")
	h.route("add user default with email default@localhost",
		`{"intent":"CreateUser","slots":{"username":"default","email":"default@localhost"}}`)

	h.say(t, "s1", "delete all tasks")
	before := h.stack.Tracker().Get("s1")
	require.NotNil(t, before.PendingConfirmation)

	reply := h.say(t, "s1", "add user default with email default@localhost")
	require.Equal(t, types.ReplyError, reply.Type, reply.Response)
	assert.Contains(t, reply.Response, "already exists")

	after := h.stack.Tracker().Get("s1")
	assert.NotNil(t, after.PendingConfirmation)
	assert.Equal(t, before.LastOperation, after.LastOperation)
}

func TestHandle_GenerateThenImport(t *testing.T) {
	h := newHarness(t)
	h.client.Route("how to plan a launch party", `{"tasks":[
		{"title":"Book venue","description":"Find a room","priority":"high","estimated_duration":"120"},
		{"title":"Send invites","description":"Email the list","priority":"medium","estimated_duration":"30"},
		{"title":"Order cake","priority":"urgent"}
	]}`)

	gen := h.say(t, "s1", "how to plan a launch party")
	require.True(t, gen.Success, gen.Response)
	assert.Len(t, h.stack.Tracker().Get("s1").PendingGenerated, 3)
	assert.Empty(t, h.tasks(t))

	imp := h.say(t, "s1", "add these tasks to project Launch")
	require.True(t, imp.Success, imp.Response)
	assert.Contains(t, imp.Response, "Successfully imported 3 tasks to project 'Launch'")

	tasks := h.tasks(t)
	var titles []string
	for _, task := range tasks {
		titles = append(titles, task.Title)
		assert.Equal(t, "Launch", task.ProjectName)
		assert.Equal(t, types.StatusPending, task.Status)
	}
	assert.ElementsMatch(t, []string{"Book venue", "Send invites", "Order cake"}, titles)

	sctx := h.stack.Tracker().Get("s1")
	assert.Empty(t, sctx.PendingGenerated)
	assert.Len(t, sctx.LastResults, 3)

	again := h.say(t, "s1", "add these tasks to project Launch")
	assert.Equal(t, types.ReplyClarification, again.Type)
	assert.Len(t, h.tasks(t), 3)
}

// cancellingClient cancels the turn's context while answering.
type cancellingClient struct {
	cancel context.CancelFunc
	reply  string
}

func (c *cancellingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *cancellingClient) CompleteWithSystem(ctx context.Context, _, _ string) (string, error) {
	c.cancel()
	return c.reply, nil
}

func TestHandle_CancelledTurnDropsMutation(t *testing.T) {
	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "tasks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancellingClient{cancel: cancel, reply: `{"intent":"CreateTask","slots":{}}`}
	stack, err := NewStack(config.DefaultConfig(), st, client)
	require.NoError(t, err)

	reply, err := stack.Handle(ctx, Request{SessionID: "s1", Text: "add a task"})
	require.NoError(t, err)
	assert.Equal(t, types.ReplyClarification, reply.Type)

	sctx := stack.Tracker().Get("s1")
	assert.Nil(t, sctx.PendingClarification)
	assert.Zero(t, sctx.Turns)

	turns, err := st.GetSessionTurns(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestHandle_RecordsTurns(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")

	h.say(t, "s1", "show tasks")
	h.say(t, "s1", "gibberish")

	turns, err := h.store.GetSessionTurns(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].TurnNumber)
	assert.Equal(t, "show tasks", turns[0].Utterance)
	assert.Contains(t, turns[0].IntentJSON, "ListTasks")
	assert.Equal(t, 2, turns[1].TurnNumber)
	assert.Equal(t, "Sorry, I didn't understand that request. Could you rephrase it?", turns[1].Reply)
}

func TestHandle_EmptySessionID(t *testing.T) {
	h := newHarness(t)
	_, err := h.stack.Handle(context.Background(), Request{Text: "show tasks"})
	assert.Error(t, err)
}

func TestHandle_SessionsAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")

	h.say(t, "a", "show tasks")
	h.say(t, "b", "delete all tasks")

	assert.Len(t, h.stack.Tracker().Get("a").LastResults, 1)
	assert.Nil(t, h.stack.Tracker().Get("a").PendingConfirmation)
	assert.NotNil(t, h.stack.Tracker().Get("b").PendingConfirmation)

	// "yes" in a session without a held plan is just another utterance.
	reply := h.say(t, "a", "yes")
	assert.Equal(t, types.ReplyUnknown, reply.Type)
	assert.Len(t, h.tasks(t), 1)
}

func TestStack_ApplyTogglesFastPaths(t *testing.T) {
	h := newHarness(t)
	h.seedTasks(t, "Review code")

	cfg := config.DefaultConfig()
	cfg.Interpreter.FastPaths = false
	h.stack.Apply(cfg)

	calls := len(h.client.Calls())
	reply := h.say(t, "s1", "show tasks")
	assert.Equal(t, types.ReplyUnknown, reply.Type)
	assert.Greater(t, len(h.client.Calls()), calls)

	cfg.Interpreter.FastPaths = true
	h.stack.Apply(cfg)
	reply = h.say(t, "s1", "show tasks")
	assert.True(t, reply.Success)
}

func TestNewStack_BadTimezone(t *testing.T) {
	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "tasks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.Interpreter.Timezone = "Mars/Olympus_Mons"
	_, err = NewStack(cfg, st, nil)
	assert.Error(t, err)
}
