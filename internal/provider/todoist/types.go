package todoist

// apiTask is the Todoist REST v2 task shape, reduced to the fields we read.
type apiTask struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	Description string  `json:"description"`
	IsCompleted bool    `json:"is_completed"`
	Priority    int     `json:"priority"`
	Due         *apiDue `json:"due"`
	ProjectID   string  `json:"project_id"`
	SectionID   string  `json:"section_id"`
	ParentID    string  `json:"parent_id"`
}

// apiDue carries either a whole-day date or a full datetime.
type apiDue struct {
	Date     string `json:"date"`
	Datetime string `json:"datetime"`
}

// apiProject is the Todoist REST v2 project shape.
type apiProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// createTaskRequest is the body for POST /tasks.
type createTaskRequest struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	DueDatetime string `json:"due_datetime,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}
