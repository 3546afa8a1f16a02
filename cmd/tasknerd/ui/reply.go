package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	"tasknerd/internal/types"
)

// listData is the union of the list payloads a reply may carry. Replies
// arriving over the websocket are plain JSON, so everything is decoded
// from JSON rather than type-switched.
type listData struct {
	Tasks    []types.Task    `json:"tasks"`
	Projects []types.Project `json:"projects"`
	Users    []types.User    `json:"users"`
}

// RenderReply renders a reply: the response text styled by reply type,
// followed by a table when the payload lists tasks, projects or users.
func RenderReply(styles Styles, reply types.Reply) string {
	var sb strings.Builder

	text := reply.Response
	switch reply.Type {
	case types.ReplyError:
		sb.WriteString(styles.Error.Render("✗ "))
	case types.ReplyConfirmationRequired:
		sb.WriteString(styles.Warning.Render("! "))
	case types.ReplyClarification:
		sb.WriteString(styles.Info.Render("? "))
	case types.ReplyUnknown:
		sb.WriteString(styles.Muted.Render("· "))
	default:
		sb.WriteString(styles.Success.Render("✓ "))
	}

	tbl := tableFor(decodeLists(reply.Data))
	if tbl != nil {
		// The table replaces the numbered lines of the response.
		text = firstLine(text)
	}
	sb.WriteString(styles.AgentResponse.Render(text))
	sb.WriteString("\n")

	if tbl != nil {
		sb.WriteString(tbl.View(styles))
	}
	return sb.String()
}

func decodeLists(data interface{}) listData {
	var out listData
	if data == nil {
		return out
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return out
	}
	// Single-row payloads are objects without these keys; errors mean
	// the payload is not a list.
	_ = json.Unmarshal(raw, &out)
	return out
}

func tableFor(d listData) *SimpleTable {
	switch {
	// Drafts share the "tasks" key but have no ids yet.
	case len(d.Tasks) > 0 && d.Tasks[0].ID != 0:
		t := NewSimpleTable("", "ID", "Title", "Status", "Priority", "Due", "Project", "Assignee")
		for _, task := range d.Tasks {
			due := ""
			if task.DueDate != nil {
				due = task.DueDate.Format("2006-01-02")
			}
			t.AddRow(fmt.Sprint(task.ID), task.Title, string(task.Status), string(task.Priority),
				due, task.ProjectName, task.AssigneeName)
		}
		return t
	case len(d.Projects) > 0:
		t := NewSimpleTable("", "ID", "Name", "Tasks", "Description")
		for _, p := range d.Projects {
			t.AddRow(fmt.Sprint(p.ID), p.Name, fmt.Sprint(p.TaskCount), p.Description)
		}
		return t
	case len(d.Users) > 0:
		t := NewSimpleTable("", "ID", "Username", "Email")
		for _, u := range d.Users {
			t.AddRow(fmt.Sprint(u.ID), u.Username, u.Email)
		}
		return t
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
