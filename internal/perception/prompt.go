package perception

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

const strictFormatInstruction = `Your previous reply could not be used. Output ONLY JSON: exactly one object with the keys "intent" and "slots". "intent" must be one of the intent names listed above. Every slot value must be a plain string. No prose, no markdown.`

var (
	systemPromptOnce sync.Once
	systemPrompt     string
)

// extractionSystemPrompt lists the closed intent set with each intent's
// slots. It depends only on the schema table, so it is built once.
func extractionSystemPrompt() string {
	systemPromptOnce.Do(func() {
		var sb strings.Builder
		sb.WriteString("You translate one message sent to a task manager into a command.\n\n")
		sb.WriteString("INTENTS (slots marked * are required):\n")
		for _, s := range types.Schemas() {
			fmt.Fprintf(&sb, "- %s: %s", s.Kind, s.Description)
			if len(s.Slots) > 0 {
				sb.WriteString("\n    slots: ")
				for i, sp := range s.Slots {
					if i > 0 {
						sb.WriteString(", ")
					}
					sb.WriteString(string(sp.Name))
					if sp.Required {
						sb.WriteString("*")
					}
					if sp.Hint != "" {
						fmt.Fprintf(&sb, " (%s)", sp.Hint)
					}
				}
			}
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: anything that is none of the above\n\n", types.IntentUnknown)

		sb.WriteString(`RULES:
- Respond with a single JSON object: {"intent": "<intent name>", "slots": {"<slot>": "<value>"}}
- Slot values are strings copied from the message as written. Never turn names into ids and never invent values.
- Omit slots the message does not mention. Leave a required slot out rather than guessing it.
- Dates stay as the user wrote them ("next friday", "tomorrow", "2024-05-01").
- A task can be named by title, by "#id", or by position in the last list shown ("first", "the second one", "2", "last", "it").
- "mark X as done", "complete X", "set X to high priority" are UpdateTask.
- Use BulkUpdate or a DeleteTask scope only when the message clearly targets many tasks; scope "these" means the tasks last shown.
- "how to ...", "break down ...", "plan ..." requests are GenerateTasks with the whole request as goal.
- "add/import/save these tasks" after a generation is ImportGeneratedTasks.
`)
		systemPrompt = sb.String()
	})
	return systemPrompt
}

// maxContextTasks bounds how many last results are shown to the model.
const maxContextTasks = 10

// extractionUserPrompt renders the utterance with the session context the
// model needs: the last listed tasks and any open clarification.
func extractionUserPrompt(text string, sctx *session.Context) string {
	var sb strings.Builder
	if sctx != nil && len(sctx.LastResults) > 0 {
		sb.WriteString("Tasks last shown to the user, in order:\n")
		for i, ref := range sctx.LastResults {
			if i == maxContextTasks {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(sctx.LastResults)-maxContextTasks)
				break
			}
			fmt.Fprintf(&sb, "  %d. %s (#%d)\n", i+1, ref.Title, ref.ID)
		}
		sb.WriteString("\n")
	}
	if sctx != nil && sctx.PendingClarification != nil {
		pc := sctx.PendingClarification
		partial, _ := json.Marshal(pc.Partial)
		fmt.Fprintf(&sb, "Unfinished earlier request: %s\n", partial)
		fmt.Fprintf(&sb, "Question asked: %s\n", pc.Question)
		sb.WriteString("The message may answer that question (then repeat the earlier intent and add the answer as its slot) or start a new request.\n\n")
	}
	fmt.Fprintf(&sb, "Message: %s", text)
	return sb.String()
}
