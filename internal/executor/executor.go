// Package executor runs a fully resolved OperationPlan against the store.
// Each plan runs in exactly one transaction; nothing here retries.
package executor

import (
	"context"
	"errors"
	"fmt"

	"tasknerd/internal/logging"
	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

// Drafter produces task drafts for a goal.
type Drafter interface {
	Draft(ctx context.Context, goal string) ([]types.TaskDraft, error)
}

// Options configures an Executor.
type Options struct {
	// SampleSize bounds the affected ids reported for bulk operations.
	SampleSize int
}

// Executor implements the Operation Executor.
type Executor struct {
	store      store.Store
	drafter    Drafter
	sampleSize int
}

// New creates an Executor. drafter may be nil when no model is configured;
// generation plans then fail with an ExecutionError.
func New(st store.Store, drafter Drafter, opts Options) *Executor {
	if opts.SampleSize <= 0 {
		opts.SampleSize = 5
	}
	return &Executor{store: st, drafter: drafter, sampleSize: opts.SampleSize}
}

// Execute runs plan. A plan that requires confirmation is refused without
// touching the store unless confirmed is set.
func (e *Executor) Execute(ctx context.Context, plan *types.OperationPlan, confirmed bool) (*types.ExecutionResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("execute: nil plan")
	}
	timer := logging.StartTimer(logging.CategoryExecutor, "Execute "+string(plan.Op))
	defer timer.Stop()

	if plan.RequiresConfirmation && !confirmed {
		logging.Executor("%s held for confirmation", plan.Op)
		return nil, &types.ConfirmationRequiredError{Plan: plan}
	}
	if err := plan.Validate(); err != nil {
		return nil, &types.ExecutionError{Op: plan.Op, Err: err}
	}

	res := &types.ExecutionResult{Plan: plan}

	if plan.Op == types.OpGenerateTasks {
		if err := e.generate(ctx, plan, res); err != nil {
			return nil, e.wrap(plan.Op, err)
		}
		return res, nil
	}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		return e.run(ctx, tx, plan, res)
	})
	if err != nil {
		return nil, e.wrap(plan.Op, err)
	}
	logging.Executor("%s ok: count=%d", plan.Op, res.Count)
	return res, nil
}

func (e *Executor) wrap(op types.OpKind, err error) error {
	var ee *types.ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	out := &types.ExecutionError{Op: op, Err: err}
	var ce *store.ConstraintError
	if errors.As(err, &ce) {
		out.Constraint = ce.Constraint
	}
	logging.Get(logging.CategoryExecutor).Warn("%v", out)
	return out
}

func (e *Executor) generate(ctx context.Context, plan *types.OperationPlan, res *types.ExecutionResult) error {
	if e.drafter == nil {
		return errors.New("no language model is configured for task generation")
	}
	drafts, err := e.drafter.Draft(ctx, plan.Params.Goal)
	if err != nil {
		return err
	}
	res.Drafts = drafts
	res.Count = len(drafts)
	return nil
}

func (e *Executor) sample(ids []int64) []int64 {
	if len(ids) > e.sampleSize {
		ids = ids[:e.sampleSize]
	}
	return append([]int64(nil), ids...)
}

func (e *Executor) run(ctx context.Context, tx store.Tx, plan *types.OperationPlan, res *types.ExecutionResult) error {
	pp := plan.Params
	switch plan.Op {
	case types.OpCreateTask:
		t, err := tx.CreateTask(ctx, *pp.Task)
		if err != nil {
			return err
		}
		res.Tasks, res.Count = []types.Task{t}, 1

	case types.OpListTasks:
		var f types.TaskFilter
		if plan.Filter != nil {
			f = *plan.Filter
		}
		ts, err := tx.ListTasks(ctx, f)
		if err != nil {
			return err
		}
		res.Tasks, res.Count = ts, len(ts)

	case types.OpUpdateTask:
		t, err := tx.UpdateTask(ctx, pp.TaskID, pp.Update)
		if err != nil {
			return err
		}
		res.Tasks, res.Count = []types.Task{t}, 1

	case types.OpDeleteTask:
		t, err := tx.DeleteTask(ctx, pp.TaskID)
		if err != nil {
			return err
		}
		res.Tasks, res.Count = []types.Task{t}, 1

	case types.OpBulkUpdateTasks:
		ids, err := tx.UpdateTasks(ctx, *plan.Filter, pp.Update)
		if err != nil {
			return err
		}
		res.Count, res.SampleIDs = len(ids), e.sample(ids)

	case types.OpBulkDeleteTasks:
		ids, err := tx.DeleteTasks(ctx, *plan.Filter)
		if err != nil {
			return err
		}
		res.Count, res.SampleIDs = len(ids), e.sample(ids)

	case types.OpCreateProject:
		p, err := tx.CreateProject(ctx, *pp.Project)
		if err != nil {
			return err
		}
		res.Projects, res.Count = []types.Project{p}, 1

	case types.OpListProjects:
		ps, err := tx.ListProjects(ctx)
		if err != nil {
			return err
		}
		res.Projects, res.Count = ps, len(ps)

	case types.OpDeleteProjects:
		if !pp.AllProjects {
			for _, id := range pp.ProjectIDs {
				p, err := tx.GetProject(ctx, id)
				if err != nil {
					return err
				}
				res.Projects = append(res.Projects, p)
			}
		}
		ids, err := tx.DeleteProjects(ctx, pp.ProjectIDs, pp.AllProjects)
		if err != nil {
			return err
		}
		res.Count, res.SampleIDs = len(ids), e.sample(ids)

	case types.OpAddTag:
		tag, err := e.tagFor(ctx, tx, pp)
		if err != nil {
			return err
		}
		if err := tx.AttachTag(ctx, pp.TaskID, tag.ID); err != nil {
			return err
		}
		t, err := tx.GetTask(ctx, pp.TaskID)
		if err != nil {
			return err
		}
		res.Tag, res.Tasks, res.Count = &tag, []types.Task{t}, 1

	case types.OpRemoveTag:
		tag, err := tx.GetTag(ctx, pp.TagID)
		if err != nil {
			return err
		}
		existed, err := tx.DetachTag(ctx, pp.TaskID, pp.TagID)
		if err != nil {
			return err
		}
		t, err := tx.GetTask(ctx, pp.TaskID)
		if err != nil {
			return err
		}
		res.Tag, res.Tasks = &tag, []types.Task{t}
		if existed {
			res.Count = 1
		}

	case types.OpCreateUser:
		u, err := tx.CreateUser(ctx, *pp.User)
		if err != nil {
			return err
		}
		res.Users, res.Count = []types.User{u}, 1

	case types.OpListUsers:
		us, err := tx.ListUsers(ctx, pp.UserSearch)
		if err != nil {
			return err
		}
		res.Users, res.Count = us, len(us)

	case types.OpImportTasks:
		return e.importDrafts(ctx, tx, pp, res)

	case types.OpShowSchema:
		tables, err := tx.DescribeSchema(ctx)
		if err != nil {
			return err
		}
		res.Schema, res.Count = tables, len(tables)

	default:
		return fmt.Errorf("unsupported op %q", plan.Op)
	}
	return nil
}

// tagFor returns the planned tag, creating it when the plan only names it.
func (e *Executor) tagFor(ctx context.Context, tx store.Tx, pp types.PlanParams) (types.Tag, error) {
	if pp.TagID > 0 {
		return tx.GetTag(ctx, pp.TagID)
	}
	tag, err := tx.CreateTag(ctx, pp.TagName)
	if err != nil {
		return tag, err
	}
	logging.ExecutorDebug("created tag %d %q", tag.ID, tag.Name)
	return tag, nil
}

func (e *Executor) importDrafts(ctx context.Context, tx store.Tx, pp types.PlanParams, res *types.ExecutionResult) error {
	var projectID *int64
	switch {
	case pp.ImportProjectID != nil:
		p, err := tx.GetProject(ctx, *pp.ImportProjectID)
		if err != nil {
			return err
		}
		projectID = &p.ID
		res.Projects = []types.Project{p}
	case pp.ImportProjectName != "":
		p, created, err := tx.GetOrCreateProject(ctx, pp.ImportProjectName, "Project created for tasks: "+pp.ImportProjectName)
		if err != nil {
			return err
		}
		if created {
			logging.Executor("created project %d %q for import", p.ID, p.Name)
		}
		projectID = &p.ID
		res.Projects = []types.Project{p}
	}

	for _, d := range pp.Drafts {
		priority := d.Priority
		if !priority.Valid() {
			priority = types.PriorityMedium
		}
		t, err := tx.CreateTask(ctx, types.NewTask{
			Title:       d.Title,
			Description: d.Description,
			Status:      types.StatusPending,
			Priority:    priority,
			ProjectID:   projectID,
		})
		if err != nil {
			return err
		}
		res.Tasks = append(res.Tasks, t)
	}
	res.Count = len(res.Tasks)
	return nil
}
