package googletasks

import (
	"testing"
	"time"

	tasks "google.golang.org/api/tasks/v1"
	"google.golang.org/api/googleapi"

	"github.com/teemow/dayplan/internal/provider"
)

func TestToSnapshot(t *testing.T) {
	list := &tasks.TaskList{Id: "list-1", Title: "My Tasks"}
	item := &tasks.Task{
		Id:     "task-1",
		Title:  "Write report",
		Notes:  "quarterly numbers",
		Status: "needsAction",
		Due:    "2026-09-07T09:00:00Z",
		Parent: "parent-1",
	}

	snapshot, err := toSnapshot(item, list)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.ID != "task-1" {
		t.Errorf("ID = %q", snapshot.ID)
	}
	if snapshot.Status != provider.StatusActive {
		t.Errorf("Status = %q, want active", snapshot.Status)
	}
	if snapshot.ProjectID != "list-1" || snapshot.ProjectName != "My Tasks" {
		t.Errorf("project = %q/%q", snapshot.ProjectID, snapshot.ProjectName)
	}
	if snapshot.ParentID != "parent-1" {
		t.Errorf("ParentID = %q", snapshot.ParentID)
	}
	if snapshot.Due == nil || !snapshot.Due.Equal(time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Due = %v", snapshot.Due)
	}
}

func TestToSnapshotCompleted(t *testing.T) {
	snapshot, err := toSnapshot(&tasks.Task{Id: "t", Title: "done", Status: "completed"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Status != provider.StatusCompleted {
		t.Errorf("Status = %q, want completed", snapshot.Status)
	}
}

func TestToSnapshotBadDue(t *testing.T) {
	_, err := toSnapshot(&tasks.Task{Id: "t", Title: "x", Due: "yesterday"}, nil)
	if !provider.IsDataError(err) {
		t.Errorf("expected data error for bad due date, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	if !provider.IsFatalAuth(classify("op", &googleapi.Error{Code: 401})) {
		t.Error("401 must be fatal auth")
	}
	if !provider.IsTransient(classify("op", &googleapi.Error{Code: 503})) {
		t.Error("503 must be transient")
	}
	if !provider.IsTransient(classify("op", &googleapi.Error{Code: 429})) {
		t.Error("429 must be transient")
	}
}
