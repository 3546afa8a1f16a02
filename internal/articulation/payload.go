package articulation

import "tasknerd/internal/types"

// payload mirrors the execution result: the row itself for single-row
// operations, a list for reads, and count plus sample ids for bulk ones.
func payload(res *types.ExecutionResult) interface{} {
	switch res.Plan.Op {
	case types.OpCreateTask, types.OpUpdateTask, types.OpDeleteTask:
		return res.Tasks[0]

	case types.OpAddTag, types.OpRemoveTag:
		return map[string]interface{}{
			"task":    res.Tasks[0],
			"tag":     res.Tag,
			"changed": res.Count > 0,
		}

	case types.OpListTasks:
		return map[string]interface{}{"tasks": nonNil(res.Tasks), "count": res.Count}

	case types.OpBulkUpdateTasks, types.OpBulkDeleteTasks:
		return map[string]interface{}{"count": res.Count, "sample_ids": nonNilIDs(res.SampleIDs)}

	case types.OpCreateProject:
		return res.Projects[0]

	case types.OpListProjects:
		projects := res.Projects
		if projects == nil {
			projects = []types.Project{}
		}
		return map[string]interface{}{"projects": projects, "count": res.Count}

	case types.OpDeleteProjects:
		return map[string]interface{}{
			"count":            res.Count,
			"sample_ids":       nonNilIDs(res.SampleIDs),
			"deleted_projects": res.Count,
		}

	case types.OpCreateUser:
		return res.Users[0]

	case types.OpListUsers:
		users := res.Users
		if users == nil {
			users = []types.User{}
		}
		return map[string]interface{}{"users": users, "count": res.Count}

	case types.OpGenerateTasks:
		return map[string]interface{}{"tasks": res.Drafts, "count": len(res.Drafts)}

	case types.OpImportTasks:
		data := map[string]interface{}{"tasks": nonNil(res.Tasks), "count": res.Count, "project": nil}
		if len(res.Projects) > 0 {
			data["project"] = map[string]interface{}{"id": res.Projects[0].ID, "name": res.Projects[0].Name}
		}
		return data

	case types.OpShowSchema:
		return map[string]interface{}{"tables": res.Schema}
	}
	return res
}

func nonNil(ts []types.Task) []types.Task {
	if ts == nil {
		return []types.Task{}
	}
	return ts
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
