package types

import "sort"

// IntentKind is the closed set of actions an utterance can map to.
type IntentKind string

const (
	IntentCreateTask           IntentKind = "CreateTask"
	IntentListTasks            IntentKind = "ListTasks"
	IntentUpdateTask           IntentKind = "UpdateTask"
	IntentDeleteTask           IntentKind = "DeleteTask"
	IntentBulkUpdate           IntentKind = "BulkUpdate"
	IntentCreateProject        IntentKind = "CreateProject"
	IntentListProjects         IntentKind = "ListProjects"
	IntentDeleteProject        IntentKind = "DeleteProject"
	IntentAddTag               IntentKind = "AddTag"
	IntentRemoveTag            IntentKind = "RemoveTag"
	IntentCreateUser           IntentKind = "CreateUser"
	IntentListUsers            IntentKind = "ListUsers"
	IntentGenerateTasks        IntentKind = "GenerateTasks"
	IntentImportGeneratedTasks IntentKind = "ImportGeneratedTasks"
	IntentShowSchema           IntentKind = "ShowSchema"
	IntentUnknown              IntentKind = "Unknown"
)

// SlotName is a named intent parameter.
type SlotName string

const (
	SlotTitle          SlotName = "title"
	SlotDescription    SlotName = "description"
	SlotPriority       SlotName = "priority"
	SlotStatus         SlotName = "status"
	SlotDueDate        SlotName = "due_date"
	SlotProject        SlotName = "project"
	SlotAssignee       SlotName = "assignee"
	SlotTag            SlotName = "tag"
	SlotSearch         SlotName = "search"
	SlotTask           SlotName = "task"
	SlotScope          SlotName = "scope"
	SlotIDs            SlotName = "ids"
	SlotFilterStatus   SlotName = "filter_status"
	SlotFilterPriority SlotName = "filter_priority"
	SlotFilterProject  SlotName = "filter_project"
	SlotName_          SlotName = "name"
	SlotUsername       SlotName = "username"
	SlotEmail          SlotName = "email"
	SlotGoal           SlotName = "goal"
)

// Scope values for the scope slot.
const (
	ScopeAll   = "all"
	ScopeThese = "these"
)

// SlotSpec declares one slot of an intent.
type SlotSpec struct {
	Name     SlotName
	Kind     EntityKind // EntityNone means free text
	Required bool
	Hint     string // shown to the model
}

// IntentSchema declares the slots of one intent, in tie-break order.
type IntentSchema struct {
	Kind        IntentKind
	Description string
	Slots       []SlotSpec
}

// Has reports whether the schema declares slot.
func (s IntentSchema) Has(slot SlotName) bool {
	_, ok := s.Spec(slot)
	return ok
}

// Spec returns the declaration of slot.
func (s IntentSchema) Spec(slot SlotName) (SlotSpec, bool) {
	for _, sp := range s.Slots {
		if sp.Name == slot {
			return sp, true
		}
	}
	return SlotSpec{}, false
}

// taskFields are the optional task attributes shared by create and update.
func taskFields(withTitle bool) []SlotSpec {
	var out []SlotSpec
	if withTitle {
		out = append(out, SlotSpec{Name: SlotTitle, Hint: "new title"})
	}
	return append(out,
		SlotSpec{Name: SlotDescription, Hint: "free text"},
		SlotSpec{Name: SlotStatus, Kind: EntityStatus, Hint: "pending|in_progress|completed"},
		SlotSpec{Name: SlotPriority, Kind: EntityPriority, Hint: "low|medium|high"},
		SlotSpec{Name: SlotDueDate, Kind: EntityDate, Hint: "date as the user said it"},
		SlotSpec{Name: SlotProject, Kind: EntityProject, Hint: "project name"},
		SlotSpec{Name: SlotAssignee, Kind: EntityUser, Hint: "username"},
	)
}

var schemas = []IntentSchema{
	{
		Kind:        IntentCreateTask,
		Description: "create one new task",
		Slots: append([]SlotSpec{
			{Name: SlotTitle, Required: true, Hint: "task title without quotes"},
			{Name: SlotDescription, Hint: "free text"},
			{Name: SlotPriority, Kind: EntityPriority, Hint: "low|medium|high"},
			{Name: SlotStatus, Kind: EntityStatus, Hint: "pending|in_progress|completed"},
		},
			SlotSpec{Name: SlotDueDate, Kind: EntityDate, Hint: "date as the user said it"},
			SlotSpec{Name: SlotProject, Kind: EntityProject, Hint: "project name"},
			SlotSpec{Name: SlotAssignee, Kind: EntityUser, Hint: "username"},
		),
	},
	{
		Kind:        IntentListTasks,
		Description: "show or search tasks",
		Slots: []SlotSpec{
			{Name: SlotStatus, Kind: EntityStatus, Hint: "pending|in_progress|completed"},
			{Name: SlotPriority, Kind: EntityPriority, Hint: "low|medium|high"},
			{Name: SlotProject, Kind: EntityProject, Hint: "project name"},
			{Name: SlotAssignee, Kind: EntityUser, Hint: "username"},
			{Name: SlotTag, Kind: EntityTag, Hint: "tag name"},
			{Name: SlotDueDate, Kind: EntityDate, Hint: "due date or period such as 'this week'"},
			{Name: SlotSearch, Hint: "words to match in title or description"},
		},
	},
	{
		Kind:        IntentUpdateTask,
		Description: "change fields of one existing task",
		Slots: append([]SlotSpec{
			{Name: SlotTask, Kind: EntityTask, Required: true, Hint: "existing task title, '#id', or 'first'/'last'/'2' for a listed task"},
		}, taskFields(true)...),
	},
	{
		Kind:        IntentDeleteTask,
		Description: "delete one task, or all/these tasks",
		Slots: []SlotSpec{
			{Name: SlotTask, Kind: EntityTask, Required: true, Hint: "existing task title, '#id', or position in the last list"},
			{Name: SlotScope, Hint: "'all' or 'these' when deleting many"},
		},
	},
	{
		Kind:        IntentBulkUpdate,
		Description: "change fields of many tasks at once",
		Slots: []SlotSpec{
			{Name: SlotScope, Hint: "'all' or 'these' (the last listed tasks)"},
			{Name: SlotIDs, Hint: "id filter: '>5', '<5', '3-8' or '1,2,3'"},
			{Name: SlotFilterStatus, Kind: EntityStatus, Hint: "only tasks with this status"},
			{Name: SlotFilterPriority, Kind: EntityPriority, Hint: "only tasks with this priority"},
			{Name: SlotFilterProject, Kind: EntityProject, Hint: "only tasks in this project"},
			{Name: SlotStatus, Kind: EntityStatus, Hint: "new status"},
			{Name: SlotPriority, Kind: EntityPriority, Hint: "new priority"},
			{Name: SlotProject, Kind: EntityProject, Hint: "move to this project"},
			{Name: SlotAssignee, Kind: EntityUser, Hint: "assign to this username"},
			{Name: SlotDueDate, Kind: EntityDate, Hint: "new due date"},
		},
	},
	{
		Kind:        IntentCreateProject,
		Description: "create a project",
		Slots: []SlotSpec{
			{Name: SlotName_, Required: true, Hint: "project name"},
			{Name: SlotDescription, Hint: "free text"},
		},
	},
	{
		Kind:        IntentListProjects,
		Description: "show projects",
	},
	{
		Kind:        IntentDeleteProject,
		Description: "delete one or several projects, or all projects",
		Slots: []SlotSpec{
			{Name: SlotProject, Kind: EntityProject, Required: true, Hint: "project name or '#id'; comma separated ids for several"},
			{Name: SlotScope, Hint: "'all' when deleting every project"},
		},
	},
	{
		Kind:        IntentAddTag,
		Description: "attach a tag to a task",
		Slots: []SlotSpec{
			{Name: SlotTask, Kind: EntityTask, Required: true, Hint: "existing task"},
			{Name: SlotTag, Kind: EntityTag, Required: true, Hint: "tag name"},
		},
	},
	{
		Kind:        IntentRemoveTag,
		Description: "detach a tag from a task",
		Slots: []SlotSpec{
			{Name: SlotTask, Kind: EntityTask, Required: true, Hint: "existing task"},
			{Name: SlotTag, Kind: EntityTag, Required: true, Hint: "tag name"},
		},
	},
	{
		Kind:        IntentCreateUser,
		Description: "create a user",
		Slots: []SlotSpec{
			{Name: SlotUsername, Required: true, Hint: "username"},
			{Name: SlotEmail, Required: true, Hint: "email address"},
		},
	},
	{
		Kind:        IntentListUsers,
		Description: "show or search users",
		Slots: []SlotSpec{
			{Name: SlotUsername, Hint: "part of a username to search for"},
		},
	},
	{
		Kind:        IntentGenerateTasks,
		Description: "draft a task list for a goal (how to..., break down..., plan...)",
		Slots: []SlotSpec{
			{Name: SlotGoal, Required: true, Hint: "the goal to break down"},
		},
	},
	{
		Kind:        IntentImportGeneratedTasks,
		Description: "save the previously drafted tasks",
		Slots: []SlotSpec{
			{Name: SlotProject, Kind: EntityProject, Hint: "project to put them in; created if missing"},
		},
	},
	{
		Kind:        IntentShowSchema,
		Description: "describe the database tables",
	},
}

var schemaByKind = func() map[IntentKind]IntentSchema {
	m := make(map[IntentKind]IntentSchema, len(schemas))
	for _, s := range schemas {
		m[s.Kind] = s
	}
	return m
}()

var kindByLabel = func() map[string]IntentKind {
	m := make(map[string]IntentKind, len(schemas)+1)
	for _, s := range schemas {
		m[normalizeLabel(string(s.Kind))] = s.Kind
	}
	m[normalizeLabel(string(IntentUnknown))] = IntentUnknown
	return m
}()

// Schemas returns every intent schema in declaration order.
func Schemas() []IntentSchema {
	out := make([]IntentSchema, len(schemas))
	copy(out, schemas)
	return out
}

// SchemaFor returns the schema of kind. Unknown has none.
func SchemaFor(kind IntentKind) (IntentSchema, bool) {
	s, ok := schemaByKind[kind]
	return s, ok
}

// ParseIntentKind matches a model label against the closed enum,
// case-insensitively and ignoring '_' / '-'.
func ParseIntentKind(label string) (IntentKind, bool) {
	k, ok := kindByLabel[normalizeLabel(label)]
	return k, ok
}

// Intent is the extractor's output: a kind plus raw, unresolved slots.
type Intent struct {
	Kind  IntentKind          `json:"intent"`
	Slots map[SlotName]string `json:"slots,omitempty"`
	Raw   string              `json:"raw,omitempty"`
}

// UnknownIntent returns the Unknown intent for raw.
func UnknownIntent(raw string) Intent {
	return Intent{Kind: IntentUnknown, Raw: raw}
}

// Slot returns the raw value of name, or "".
func (i Intent) Slot(name SlotName) string {
	if i.Slots == nil {
		return ""
	}
	return i.Slots[name]
}

// Clone returns a deep copy.
func (i Intent) Clone() Intent {
	out := Intent{Kind: i.Kind, Raw: i.Raw}
	if i.Slots != nil {
		out.Slots = make(map[SlotName]string, len(i.Slots))
		for k, v := range i.Slots {
			out.Slots[k] = v
		}
	}
	return out
}

// SlotNames returns the filled slot names sorted, for stable logging.
func (i Intent) SlotNames() []string {
	names := make([]string, 0, len(i.Slots))
	for k := range i.Slots {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
