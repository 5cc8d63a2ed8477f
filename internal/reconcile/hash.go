package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// ContentHash fingerprints the change-relevant fields of a task. The fields
// are serialized as canonical JSON with sorted keys, so two snapshots with
// the same logical content always hash identically regardless of how they
// were assembled. Absent optional fields hash as null.
func ContentHash(snapshot provider.TaskSnapshot) string {
	return hashContent(snapshot.Title, snapshot.Status, snapshot.Due,
		snapshot.Priority, snapshot.ProjectID, snapshot.ParentID, snapshot.SectionID)
}

// storedHash fingerprints a stored task as if its status were the given
// value. The status fast path uses this to keep the persisted hash consistent
// with the persisted status.
func storedHash(task *store.Task, status string) string {
	return hashContent(task.Title, status, task.DueDate,
		task.Priority, task.ProjectID, task.ParentID, task.SectionID)
}

func hashContent(title, status string, due *time.Time, priority int, projectID, parentID, sectionID string) string {
	content := map[string]any{
		"title":      title,
		"status":     status,
		"due_date":   nil,
		"priority":   priority,
		"project_id": nullable(projectID),
		"parent_id":  nullable(parentID),
		"section_id": nullable(sectionID),
	}
	if due != nil {
		content["due_date"] = due.UTC().Format(time.RFC3339)
	}

	// Marshal on a map sorts keys; only basic types are involved
	encoded, _ := json.Marshal(content)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
