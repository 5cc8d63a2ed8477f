package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/dayplan/internal/calendar"
	"github.com/teemow/dayplan/internal/store"
)

// PromptOptions shape the schedule prompt.
type PromptOptions struct {
	// CustomInstructions are free-form scheduling preferences.
	CustomInstructions string

	// SlotMinutes is the requested slot duration (default 60).
	SlotMinutes int
}

type promptTask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	DueDate  string `json:"due_date,omitempty"`
	Project  string `json:"project,omitempty"`
}

type promptMeeting struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
}

// BuildSchedulePrompt renders the daily-schedule prompt from the user's
// prioritized tasks and their fixed meetings. Synced busy blocks count as
// fixed commitments like any other meeting.
func BuildSchedulePrompt(date time.Time, tasks []store.Task, meetings []calendar.Meeting, opts PromptOptions) string {
	if opts.SlotMinutes <= 0 {
		opts.SlotMinutes = 60
	}

	promptTasks := make([]promptTask, 0, len(tasks))
	for _, task := range tasks {
		entry := promptTask{
			ID:       task.ID,
			Title:    task.Title,
			Priority: task.Priority,
			Project:  task.ProjectName,
		}
		if task.DueDate != nil {
			entry.DueDate = task.DueDate.Format("2006-01-02")
		}
		promptTasks = append(promptTasks, entry)
	}

	promptMeetings := make([]promptMeeting, 0, len(meetings))
	for _, meeting := range meetings {
		title := meeting.Title
		if meeting.IsSyncedBusy {
			title = "Busy (synced)"
		}
		promptMeetings = append(promptMeetings, promptMeeting{
			Title:    title,
			Start:    meeting.Start.Format("15:04"),
			End:      meeting.End.Format("15:04"),
			Location: meeting.Location,
		})
	}

	tasksJSON, _ := json.MarshalIndent(promptTasks, "", "  ")
	meetingsJSON, _ := json.MarshalIndent(promptMeetings, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "I need to create a daily schedule for %s.\n\n", date.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Here are my prioritized tasks:\n%s\n\n", tasksJSON)
	if len(promptMeetings) > 0 {
		fmt.Fprintf(&b, "These meetings are fixed and cannot be moved:\n%s\n\n", meetingsJSON)
	}
	if opts.CustomInstructions != "" {
		fmt.Fprintf(&b, "Please consider these scheduling preferences:\n%s\n\n", opts.CustomInstructions)
	}
	fmt.Fprintf(&b, "Please create time slots with a duration of %d minutes each.\n\n", opts.SlotMinutes)
	b.WriteString(`Based on the tasks and preferences, please create a detailed hour-by-hour schedule for the day.
The schedule should:
1. Allocate appropriate time for each task based on its priority and due date
2. Schedule around the fixed meetings
3. Include breaks and lunch
4. Be realistic about what can be accomplished in a day
5. Start at 9:00 AM and end by 5:00 PM

Format your response as a JSON object with the following structure:
{
  "date": "YYYY-MM-DD",
  "schedule": [
    {
      "time": "HH:MM AM/PM - HH:MM AM/PM",
      "activity": "Task description or break",
      "task_id": "task_id or null for breaks"
    }
  ]
}`)
	return b.String()
}
