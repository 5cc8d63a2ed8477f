package outlook

import (
	"fmt"
	"time"

	"github.com/teemow/dayplan/internal/provider"
)

// listCollection is the Graph response for /me/todo/lists.
type listCollection struct {
	Value []todoList `json:"value"`
}

type todoList struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// taskCollection is the Graph response for /me/todo/lists/{id}/tasks.
type taskCollection struct {
	Value []graphTask `json:"value"`
}

// graphTask is the Graph todoTask shape, reduced to the fields we read.
type graphTask struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title"`
	Status      string            `json:"status,omitempty"`
	Importance  string            `json:"importance,omitempty"`
	Body        *itemBody         `json:"body,omitempty"`
	DueDateTime *dateTimeTimeZone `json:"dueDateTime,omitempty"`
	ParentID    string            `json:"parentTaskId,omitempty"`
}

type itemBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// graphTimeLayout is the fractional-seconds layout Graph uses for
// dateTimeTimeZone values.
const graphTimeLayout = "2006-01-02T15:04:05.0000000"

// toSnapshot normalizes a Graph task. Graph importance (low/normal/high)
// maps onto the 1..4 ordinal scale with urgent unused.
func toSnapshot(item graphTask, list todoList) (provider.TaskSnapshot, error) {
	snapshot := provider.TaskSnapshot{
		ID:          item.ID,
		Title:       item.Title,
		Status:      provider.StatusActive,
		Priority:    priorityFromImportance(item.Importance),
		ProjectID:   list.ID,
		ProjectName: list.DisplayName,
		ParentID:    item.ParentID,
	}
	if item.Body != nil {
		snapshot.Description = item.Body.Content
	}
	if item.Status == "completed" {
		snapshot.Status = provider.StatusCompleted
	}

	if item.DueDateTime != nil && item.DueDateTime.DateTime != "" {
		due, err := parseGraphTime(item.DueDateTime)
		if err != nil {
			return provider.TaskSnapshot{}, &provider.DataError{Op: "parse_due", Err: err}
		}
		snapshot.Due = &due
	}
	return snapshot, nil
}

func parseGraphTime(v *dateTimeTimeZone) (time.Time, error) {
	loc := time.UTC
	if v.TimeZone != "" && v.TimeZone != "UTC" {
		parsed, err := time.LoadLocation(v.TimeZone)
		if err == nil {
			loc = parsed
		}
	}
	for _, layout := range []string{graphTimeLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, v.DateTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("due datetime %q: unrecognized format", v.DateTime)
}

func priorityFromImportance(importance string) int {
	switch importance {
	case "low":
		return 1
	case "high":
		return 3
	default:
		return 2
	}
}

func importanceFromPriority(priority int) string {
	switch {
	case priority <= 1:
		return "low"
	case priority >= 3:
		return "high"
	default:
		return "normal"
	}
}
