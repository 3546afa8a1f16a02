package planner

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"tasknerd/internal/types"
)

// precheck handles intents whose required input is not a plain slot list.
// A nil result means planning continues with slot resolution.
func (b *build) precheck() types.PlanOutcome {
	switch b.intent.Kind {
	case types.IntentDeleteTask:
		switch b.scope() {
		case types.ScopeAll:
			b.skipSlot(types.SlotTask)
		case types.ScopeThese:
			b.skipSlot(types.SlotTask)
			if len(b.sctx.LastResultIDs()) == 0 {
				return &types.PlanningError{Intent: b.intent.Kind, Reason: "no tasks have been listed yet, so there is nothing to delete as 'these'"}
			}
		}

	case types.IntentDeleteProject:
		if b.scope() == types.ScopeAll || isIDList(b.slot(types.SlotProject)) {
			b.skipSlot(types.SlotProject)
		}

	case types.IntentBulkUpdate:
		if b.scope() == "" && !b.has(types.SlotIDs) && !b.has(types.SlotFilterStatus) &&
			!b.has(types.SlotFilterPriority) && !b.has(types.SlotFilterProject) {
			sp, _ := b.schema.Spec(types.SlotScope)
			return b.ask(sp)
		}
		if b.scope() == types.ScopeThese && len(b.sctx.LastResultIDs()) == 0 {
			return &types.PlanningError{Intent: b.intent.Kind, Reason: "no tasks have been listed yet, so there is nothing to update as 'these'"}
		}

	case types.IntentImportGeneratedTasks:
		if b.sctx == nil || len(b.sctx.PendingGenerated) == 0 {
			return &types.Clarification{
				Slot:     types.SlotGoal,
				Reason:   types.NotFound,
				Question: "There are no generated tasks to import yet. What would you like me to plan first?",
				Partial:  types.Intent{Kind: types.IntentGenerateTasks},
			}
		}
		b.allowNotFound(types.SlotProject)

	case types.IntentAddTag:
		b.allowNotFound(types.SlotTag)
	}
	return nil
}

// plan builds the OperationPlan once every slot has resolved.
func (b *build) plan(ctx context.Context) (types.PlanOutcome, error) {
	kind := b.intent.Kind
	switch kind {
	case types.IntentCreateTask:
		t := &types.NewTask{
			Title:       b.slot(types.SlotTitle),
			Description: b.slot(types.SlotDescription),
			Status:      types.StatusPending,
			Priority:    types.PriorityMedium,
			DueDate:     b.date(types.SlotDueDate),
			ProjectID:   b.id(types.SlotProject),
			AssigneeID:  b.id(types.SlotAssignee),
		}
		if p := b.priority(types.SlotPriority); p != nil {
			t.Priority = *p
		}
		if s := b.status(types.SlotStatus); s != nil {
			t.Status = *s
		}
		return b.op(types.OpCreateTask, types.PlanParams{Task: t}), nil

	case types.IntentListTasks:
		f := &types.TaskFilter{
			Status:     b.status(types.SlotStatus),
			Priority:   b.priority(types.SlotPriority),
			ProjectID:  b.id(types.SlotProject),
			AssigneeID: b.id(types.SlotAssignee),
			TagID:      b.id(types.SlotTag),
			Search:     b.slot(types.SlotSearch),
			Limit:      b.p.listLimit,
		}
		f.DueFrom, f.DueBefore = b.window(types.SlotDueDate)
		plan := b.op(types.OpListTasks, types.PlanParams{})
		plan.Filter = f
		return plan, nil

	case types.IntentUpdateTask:
		u := b.update()
		if t := b.slot(types.SlotTitle); t != "" {
			u.Title = &t
		}
		if d := b.slot(types.SlotDescription); d != "" {
			u.Description = &d
		}
		if u.IsEmpty() {
			return b.fail("no field to change was given"), nil
		}
		return b.op(types.OpUpdateTask, types.PlanParams{TaskID: b.resolved[types.SlotTask].ID, Update: u}), nil

	case types.IntentDeleteTask:
		switch b.scope() {
		case types.ScopeAll:
			return b.bulk(types.OpBulkDeleteTasks, &types.TaskFilter{All: true}, types.PlanParams{}), nil
		case types.ScopeThese:
			return b.bulk(types.OpBulkDeleteTasks, &types.TaskFilter{IDs: b.sctx.LastResultIDs()}, types.PlanParams{}), nil
		}
		return b.op(types.OpDeleteTask, types.PlanParams{TaskID: b.resolved[types.SlotTask].ID}), nil

	case types.IntentBulkUpdate:
		f := &types.TaskFilter{
			Status:    b.status(types.SlotFilterStatus),
			Priority:  b.priority(types.SlotFilterPriority),
			ProjectID: b.id(types.SlotFilterProject),
		}
		switch b.scope() {
		case types.ScopeAll:
			f.All = true
		case types.ScopeThese:
			f.IDs = b.sctx.LastResultIDs()
		}
		if ids := b.slot(types.SlotIDs); ids != "" {
			if err := applyIDFilter(f, ids); err != nil {
				return b.fail(err.Error()), nil
			}
			f.All = false
		}
		u := b.update()
		if u.IsEmpty() {
			return b.fail("no field to change was given"), nil
		}
		return b.bulk(types.OpBulkUpdateTasks, f, types.PlanParams{Update: u}), nil

	case types.IntentCreateProject:
		return b.op(types.OpCreateProject, types.PlanParams{Project: &types.NewProject{
			Name:        b.slot(types.SlotName_),
			Description: b.slot(types.SlotDescription),
		}}), nil

	case types.IntentListProjects:
		return b.op(types.OpListProjects, types.PlanParams{}), nil

	case types.IntentDeleteProject:
		if b.scope() == types.ScopeAll {
			return b.bulk(types.OpDeleteProjects, nil, types.PlanParams{AllProjects: true}), nil
		}
		if raw := b.slot(types.SlotProject); isIDList(raw) {
			return b.projectList(ctx, raw)
		}
		return b.op(types.OpDeleteProjects, types.PlanParams{ProjectIDs: []int64{b.resolved[types.SlotProject].ID}}), nil

	case types.IntentAddTag:
		params := types.PlanParams{TaskID: b.resolved[types.SlotTask].ID}
		if e := b.resolved[types.SlotTag]; e.OK() {
			params.TagID = e.ID
		} else {
			params.TagName = strings.TrimPrefix(strings.Trim(b.slot(types.SlotTag), `"'`), "#")
			if params.TagName == "" {
				return b.fail("the tag name is empty"), nil
			}
		}
		return b.op(types.OpAddTag, params), nil

	case types.IntentRemoveTag:
		return b.op(types.OpRemoveTag, types.PlanParams{
			TaskID: b.resolved[types.SlotTask].ID,
			TagID:  b.resolved[types.SlotTag].ID,
		}), nil

	case types.IntentCreateUser:
		username := b.slot(types.SlotUsername)
		if strings.ContainsAny(username, " \t") {
			return b.fail(fmt.Sprintf("the username '%s' must not contain spaces", username)), nil
		}
		email, err := validEmail(b.slot(types.SlotEmail))
		if err != nil {
			return b.fail(err.Error()), nil
		}
		return b.op(types.OpCreateUser, types.PlanParams{User: &types.NewUser{Username: username, Email: email}}), nil

	case types.IntentListUsers:
		return b.op(types.OpListUsers, types.PlanParams{UserSearch: b.slot(types.SlotUsername)}), nil

	case types.IntentGenerateTasks:
		return b.op(types.OpGenerateTasks, types.PlanParams{Goal: b.slot(types.SlotGoal)}), nil

	case types.IntentImportGeneratedTasks:
		params := types.PlanParams{Drafts: append([]types.TaskDraft(nil), b.sctx.PendingGenerated...)}
		if e, ok := b.resolved[types.SlotProject]; ok {
			if e.OK() {
				id := e.ID
				params.ImportProjectID = &id
				params.ImportProjectName = e.Name
			} else {
				params.ImportProjectName = b.slot(types.SlotProject)
			}
		}
		return b.op(types.OpImportTasks, params), nil

	case types.IntentShowSchema:
		return b.op(types.OpShowSchema, types.PlanParams{}), nil
	}
	return b.fail("the request was not understood"), nil
}

func (b *build) op(op types.OpKind, params types.PlanParams) *types.OperationPlan {
	return &types.OperationPlan{Op: op, Intent: b.intent.Kind, Params: params}
}

// bulk builds a plan that affects many rows; those always wait for the
// confirm signal.
func (b *build) bulk(op types.OpKind, f *types.TaskFilter, params types.PlanParams) *types.OperationPlan {
	p := b.op(op, params)
	p.Filter = f
	p.Bulk = true
	p.RequiresConfirmation = true
	return p
}

func (b *build) fail(reason string) *types.PlanningError {
	return &types.PlanningError{Intent: b.intent.Kind, Reason: reason}
}

// projectList resolves an explicit id list; every id must exist.
func (b *build) projectList(ctx context.Context, raw string) (types.PlanOutcome, error) {
	ids, err := parseIDList(raw)
	if err != nil {
		return b.fail(err.Error()), nil
	}
	for _, id := range ids {
		e, err := b.p.res.Resolve(ctx, types.EntityProject, fmt.Sprintf("#%d", id), b.sctx)
		if err != nil {
			return nil, fmt.Errorf("resolve project #%d: %w", id, err)
		}
		if !e.OK() {
			return b.fail(fmt.Sprintf("project #%d does not exist", id)), nil
		}
	}
	return b.op(types.OpDeleteProjects, types.PlanParams{ProjectIDs: ids}), nil
}

// update collects the typed fields shared by UpdateTask and BulkUpdate.
func (b *build) update() types.TaskUpdate {
	return types.TaskUpdate{
		Status:     b.status(types.SlotStatus),
		Priority:   b.priority(types.SlotPriority),
		DueDate:    b.date(types.SlotDueDate),
		ProjectID:  b.id(types.SlotProject),
		AssigneeID: b.id(types.SlotAssignee),
	}
}

func (b *build) id(name types.SlotName) *int64 {
	e, ok := b.resolved[name]
	if !ok || !e.OK() || e.ID == 0 {
		return nil
	}
	id := e.ID
	return &id
}

func (b *build) priority(name types.SlotName) *types.Priority {
	e, ok := b.resolved[name]
	if !ok || !e.OK() {
		return nil
	}
	p := types.Priority(e.Literal)
	return &p
}

func (b *build) status(name types.SlotName) *types.TaskStatus {
	e, ok := b.resolved[name]
	if !ok || !e.OK() {
		return nil
	}
	s := types.TaskStatus(e.Literal)
	return &s
}

// date returns a single instant; a period resolves to its first day.
func (b *build) date(name types.SlotName) *time.Time {
	e, ok := b.resolved[name]
	if !ok || !e.OK() {
		return nil
	}
	if e.Range != nil {
		t := e.Range.Start
		return &t
	}
	if e.Time == nil {
		return nil
	}
	t := *e.Time
	return &t
}

// window returns the half-open due-date interval for a list filter.
func (b *build) window(name types.SlotName) (*time.Time, *time.Time) {
	e, ok := b.resolved[name]
	if !ok || !e.OK() {
		return nil, nil
	}
	if e.Range != nil {
		from, before := e.Range.Start, e.Range.End
		return &from, &before
	}
	if e.Time == nil {
		return nil, nil
	}
	t := *e.Time
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	before := from.AddDate(0, 0, 1)
	return &from, &before
}

// validEmail accepts a bare address only.
func validEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".") {
		return "", fmt.Errorf("'%s' is not a valid email address", raw)
	}
	return strings.ToLower(addr.Address), nil
}
