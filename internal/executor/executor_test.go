package executor

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// countingStore records how often a transaction was opened.
type countingStore struct {
	store.Store
	txs atomic.Int32
}

func (c *countingStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	c.txs.Add(1)
	return c.Store.WithTx(ctx, fn)
}

type fakeDrafter struct {
	drafts []types.TaskDraft
	err    error
	goals  []string
}

func (f *fakeDrafter) Draft(_ context.Context, goal string) ([]types.TaskDraft, error) {
	f.goals = append(f.goals, goal)
	return f.drafts, f.err
}

func newTestExecutor(t *testing.T, tasks int) (*Executor, *countingStore, *store.LocalStore) {
	t.Helper()
	s, err := store.Open(store.Options{
		Path: filepath.Join(t.TempDir(), "exec.db"),
		Now:  func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateProject(ctx, types.NewProject{Name: "Marketing"}); err != nil {
			return err
		}
		for i := 0; i < tasks; i++ {
			if _, err := tx.CreateTask(ctx, types.NewTask{Title: "task", Priority: types.PriorityLow}); err != nil {
				return err
			}
		}
		return nil
	}))

	cs := &countingStore{Store: s}
	return New(cs, &fakeDrafter{}, Options{SampleSize: 3}), cs, s
}

func countTasks(t *testing.T, s *store.LocalStore) int {
	t.Helper()
	n, err := s.CountTasks(context.Background(), types.TaskFilter{})
	require.NoError(t, err)
	return n
}

func TestExecute_RefusesUnconfirmedBulkWithoutStoreAccess(t *testing.T) {
	e, cs, s := newTestExecutor(t, 4)
	plan := &types.OperationPlan{
		Op:                   types.OpBulkDeleteTasks,
		Intent:               types.IntentDeleteTask,
		Filter:               &types.TaskFilter{All: true},
		Bulk:                 true,
		RequiresConfirmation: true,
	}

	res, err := e.Execute(context.Background(), plan, false)
	require.Error(t, err)
	assert.Nil(t, res)
	var cr *types.ConfirmationRequiredError
	require.True(t, errors.As(err, &cr))
	assert.Same(t, plan, cr.Plan)
	assert.Zero(t, cs.txs.Load())
	assert.Equal(t, 4, countTasks(t, s))

	res, err = e.Execute(context.Background(), plan, true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, []int64{1, 2, 3}, res.SampleIDs)
	assert.Equal(t, 0, countTasks(t, s))
}

func TestExecute_BulkUpdateByRange(t *testing.T) {
	e, _, s := newTestExecutor(t, 10)
	res, err := e.Execute(context.Background(), &types.OperationPlan{
		Op:                   types.OpBulkUpdateTasks,
		Filter:               &types.TaskFilter{MinID: ptr(int64(6))},
		Params:               types.PlanParams{Update: types.TaskUpdate{Status: ptr(types.StatusCompleted)}},
		Bulk:                 true,
		RequiresConfirmation: true,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
	assert.Equal(t, []int64{6, 7, 8}, res.SampleIDs)

	n, err := s.CountTasks(context.Background(), types.TaskFilter{Status: ptr(types.StatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestExecute_SingleRowOps(t *testing.T) {
	e, cs, _ := newTestExecutor(t, 1)
	ctx := context.Background()

	res, err := e.Execute(ctx, &types.OperationPlan{
		Op: types.OpCreateTask,
		Params: types.PlanParams{Task: &types.NewTask{
			Title: "Review code", Status: types.StatusPending, Priority: types.PriorityHigh, ProjectID: ptr(int64(1)),
		}},
	}, false)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	created := res.Tasks[0]
	assert.Equal(t, "Review code", created.Title)
	assert.Equal(t, "Marketing", created.ProjectName)

	res, err = e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpUpdateTask,
		Params: types.PlanParams{TaskID: created.ID, Update: types.TaskUpdate{Status: ptr(types.StatusInProgress)}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, res.Tasks[0].Status)

	res, err = e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpAddTag,
		Params: types.PlanParams{TaskID: created.ID, TagName: "backend"},
	}, false)
	require.NoError(t, err)
	require.NotNil(t, res.Tag)
	assert.Equal(t, "backend", res.Tag.Name)
	assert.Equal(t, []string{"backend"}, res.Tasks[0].Tags)

	res, err = e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpRemoveTag,
		Params: types.PlanParams{TaskID: created.ID, TagID: res.Tag.ID},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Empty(t, res.Tasks[0].Tags)

	res, err = e.Execute(ctx, &types.OperationPlan{Op: types.OpDeleteTask, Params: types.PlanParams{TaskID: created.ID}}, false)
	require.NoError(t, err)
	assert.Equal(t, "Review code", res.Tasks[0].Title)

	assert.Equal(t, int32(5), cs.txs.Load())
}

func TestExecute_StoreFailuresBecomeExecutionErrors(t *testing.T) {
	e, _, s := newTestExecutor(t, 1)
	ctx := context.Background()

	_, err := e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpCreateUser,
		Params: types.PlanParams{User: &types.NewUser{Username: "default", Email: "x@example.com"}},
	}, false)
	var ee *types.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, types.OpCreateUser, ee.Op)
	assert.Equal(t, store.ConstraintUnique, ee.Constraint)

	_, err = e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpCreateTask,
		Params: types.PlanParams{Task: &types.NewTask{Title: "x", Status: types.StatusPending, Priority: types.PriorityLow, ProjectID: ptr(int64(999))}},
	}, false)
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, store.ConstraintForeignKey, ee.Constraint)
	assert.Equal(t, 1, countTasks(t, s))

	_, err = e.Execute(ctx, &types.OperationPlan{Op: types.OpDeleteTask, Params: types.PlanParams{TaskID: 42}}, false)
	require.True(t, errors.As(err, &ee))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecute_InvalidPlanNeverReachesStore(t *testing.T) {
	e, cs, _ := newTestExecutor(t, 0)
	_, err := e.Execute(context.Background(), &types.OperationPlan{Op: types.OpUpdateTask, Params: types.PlanParams{TaskID: 1}}, false)
	var ee *types.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Zero(t, cs.txs.Load())

	_, err = e.Execute(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestExecute_GenerateAndImport(t *testing.T) {
	e, cs, s := newTestExecutor(t, 0)
	drafter := &fakeDrafter{drafts: []types.TaskDraft{
		{Title: "Pick a venue", Description: "book early", Priority: types.PriorityHigh},
		{Title: "Send invites", Priority: "whenever"},
	}}
	e.drafter = drafter
	ctx := context.Background()

	gen, err := e.Execute(ctx, &types.OperationPlan{Op: types.OpGenerateTasks, Params: types.PlanParams{Goal: "plan a party"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Count)
	assert.Equal(t, []string{"plan a party"}, drafter.goals)
	assert.Zero(t, cs.txs.Load())
	assert.Equal(t, 0, countTasks(t, s))

	res, err := e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpImportTasks,
		Params: types.PlanParams{Drafts: gen.Drafts, ImportProjectName: "Party"},
	}, false)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	require.Len(t, res.Projects, 1)
	assert.Equal(t, "Party", res.Projects[0].Name)
	assert.Equal(t, "Project created for tasks: Party", res.Projects[0].Description)
	assert.Equal(t, types.PriorityMedium, res.Tasks[1].Priority)
	for _, task := range res.Tasks {
		assert.Equal(t, ptr(res.Projects[0].ID), task.ProjectID)
		assert.Equal(t, types.StatusPending, task.Status)
	}

	// A second import into the same name reuses the project.
	res2, err := e.Execute(ctx, &types.OperationPlan{
		Op:     types.OpImportTasks,
		Params: types.PlanParams{Drafts: gen.Drafts[:1], ImportProjectName: "party"},
	}, false)
	require.NoError(t, err)
	require.Len(t, res2.Projects, 1)
	assert.Equal(t, res.Projects[0].ID, res2.Projects[0].ID)
	assert.Equal(t, 3, countTasks(t, s))
}

func TestExecute_GenerateWithoutModel(t *testing.T) {
	e, _, _ := newTestExecutor(t, 0)
	e.drafter = nil
	_, err := e.Execute(context.Background(), &types.OperationPlan{Op: types.OpGenerateTasks, Params: types.PlanParams{Goal: "x"}}, false)
	var ee *types.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.Error(), "no language model")
}

func TestExecute_DeleteProjects(t *testing.T) {
	e, _, s := newTestExecutor(t, 0)
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateProject(ctx, types.NewProject{Name: "Ops"})
		return err
	}))

	res, err := e.Execute(ctx, &types.OperationPlan{Op: types.OpDeleteProjects, Params: types.PlanParams{ProjectIDs: []int64{1}}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Marketing", res.Projects[0].Name)

	res, err = e.Execute(ctx, &types.OperationPlan{
		Op:                   types.OpDeleteProjects,
		Params:               types.PlanParams{AllProjects: true},
		Bulk:                 true,
		RequiresConfirmation: true,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	ps, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestExecute_ListsAndSchema(t *testing.T) {
	e, _, _ := newTestExecutor(t, 3)
	ctx := context.Background()

	res, err := e.Execute(ctx, &types.OperationPlan{Op: types.OpListTasks, Filter: &types.TaskFilter{Limit: 2}}, false)
	require.NoError(t, err)
	assert.Len(t, res.Tasks, 2)

	res, err = e.Execute(ctx, &types.OperationPlan{Op: types.OpListUsers}, false)
	require.NoError(t, err)
	assert.Equal(t, "default", res.Users[0].Username)

	res, err = e.Execute(ctx, &types.OperationPlan{Op: types.OpShowSchema}, false)
	require.NoError(t, err)
	require.NotEmpty(t, res.Schema)
	assert.Equal(t, "users", res.Schema[0].Name)
}
