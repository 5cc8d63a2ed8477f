package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStore persists reconciled task records and maintains list ordering.
//
// Positions are dense zero-based integers within a (user, list_type)
// partition. Every operation that can disturb an ordering runs its multi-row
// shifts inside one transaction, so a failure mid-update rolls the whole
// partition back.
type TaskStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// GetByProviderID returns the task identified by (user, provider, provider
// task id), or ErrNotFound.
func (s *TaskStore) GetByProviderID(ctx context.Context, userID, providerName, providerTaskID string) (*Task, error) {
	var task Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND provider_task_id = ?", userID, providerName, providerTaskID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetByID returns the task with the given internal id, or ErrNotFound.
func (s *TaskStore) GetByID(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByList returns a user's tasks in one list partition, in position order.
func (s *TaskStore) ListByList(ctx context.Context, userID, listType string) ([]Task, error) {
	var tasks []Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND list_type = ?", userID, listType).
		Order("position").
		Find(&tasks).Error
	return tasks, err
}

// ListActiveByList returns a user's active tasks in one list partition, in
// position order. This is what list views and schedule generation consume.
func (s *TaskStore) ListActiveByList(ctx context.Context, userID, listType string) ([]Task, error) {
	var tasks []Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND list_type = ? AND status = ?", userID, listType, "active").
		Order("position").
		Find(&tasks).Error
	return tasks, err
}

// ListByUserProvider returns all of a user's tasks for one provider.
func (s *TaskStore) ListByUserProvider(ctx context.Context, userID, providerName string) ([]Task, error) {
	var tasks []Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, providerName).
		Find(&tasks).Error
	return tasks, err
}

// Create inserts a new task record at the end of the unprioritized list.
// The insert and the position assignment commit together.
func (s *TaskStore) Create(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.ListType == "" {
		task.ListType = ListUnprioritized
	}
	if task.LastSynced.IsZero() {
		task.LastSynced = time.Now().UTC()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Task{}).
			Where("user_id = ? AND list_type = ?", task.UserID, task.ListType).
			Count(&count).Error; err != nil {
			return err
		}
		task.Position = int(count)
		return tx.Create(task).Error
	})
}

// UpdateStatus applies the status fast path: status, content hash, and the
// last-synced timestamp change together in one write, so the persisted hash
// always reflects the persisted status.
func (s *TaskStore) UpdateStatus(ctx context.Context, task *Task, status, contentHash string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(task).Updates(map[string]any{
		"status":       status,
		"content_hash": contentHash,
		"last_synced":  now,
	}).Error
	if err != nil {
		return err
	}
	task.Status = status
	task.ContentHash = contentHash
	task.LastSynced = now
	return nil
}

// UpdateContent replaces all mutable fields of the stored task from the
// given record, along with its content hash and last-synced timestamp.
// List membership and position are untouched; ordering is local state the
// provider knows nothing about.
func (s *TaskStore) UpdateContent(ctx context.Context, task *Task) error {
	task.LastSynced = time.Now().UTC()
	return s.db.WithContext(ctx).Model(&Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"account_email": task.AccountEmail,
			"title":         task.Title,
			"description":   task.Description,
			"status":        task.Status,
			"due_date":      task.DueDate,
			"priority":      task.Priority,
			"project_id":    task.ProjectID,
			"project_name":  task.ProjectName,
			"parent_id":     task.ParentID,
			"section_id":    task.SectionID,
			"content_hash":  task.ContentHash,
			"last_synced":   task.LastSynced,
		}).Error
}

// DeleteMissing removes every task of one (user, provider) pair whose
// provider task id is not in the seen set, then renumbers the user's list
// partitions so positions stay dense. Records of other providers for the
// same user are never touched. Returns the number of deleted tasks.
func (s *TaskStore) DeleteMissing(ctx context.Context, userID, providerName string, seen []string) (int64, error) {
	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("user_id = ? AND provider = ?", userID, providerName)
		if len(seen) > 0 {
			q = q.Where("provider_task_id NOT IN ?", seen)
		}
		res := q.Delete(&Task{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected

		if deleted == 0 {
			return nil
		}
		for _, listType := range []string{ListPrioritized, ListUnprioritized} {
			if err := compactPositions(tx, userID, listType); err != nil {
				return err
			}
		}
		return nil
	})
	return deleted, err
}

// MoveTask moves a task to the given position in the destination list.
// Insert semantics apply: tasks at or after the target position shift up,
// except that moving later within the same list shifts the skipped-over
// tasks down instead. Position nil appends to the end. The net effect always
// leaves both affected partitions as contiguous 0..N-1 sequences.
func (s *TaskStore) MoveTask(ctx context.Context, taskID, destList string, position *int) error {
	if destList != ListPrioritized && destList != ListUnprioritized {
		return fmt.Errorf("unknown list type %q", destList)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := tx.Where("id = ?", taskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		sameList := task.ListType == destList

		var destCount int64
		q := tx.Model(&Task{}).Where("user_id = ? AND list_type = ?", task.UserID, destList)
		if sameList {
			q = q.Where("id <> ?", taskID)
		}
		if err := q.Count(&destCount).Error; err != nil {
			return err
		}

		newPos := int(destCount)
		if position != nil {
			newPos = *position
		}
		if newPos < 0 {
			newPos = 0
		}
		if newPos > int(destCount) {
			newPos = int(destCount)
		}

		switch {
		case sameList && newPos == task.Position:
			return nil

		case sameList && newPos < task.Position:
			// Moving earlier: everything in [newPos, oldPos) shifts up
			if err := tx.Model(&Task{}).
				Where("user_id = ? AND list_type = ? AND id <> ? AND position >= ? AND position < ?",
					task.UserID, destList, taskID, newPos, task.Position).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}

		case sameList:
			// Moving later: everything in (oldPos, newPos] shifts down
			if err := tx.Model(&Task{}).
				Where("user_id = ? AND list_type = ? AND id <> ? AND position > ? AND position <= ?",
					task.UserID, destList, taskID, task.Position, newPos).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}

		default:
			// Cross-list move: close the gap in the source partition, open
			// one in the destination
			if err := tx.Model(&Task{}).
				Where("user_id = ? AND list_type = ? AND position > ?",
					task.UserID, task.ListType, task.Position).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}
			if err := tx.Model(&Task{}).
				Where("user_id = ? AND list_type = ? AND position >= ?",
					task.UserID, destList, newPos).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		}

		return tx.Model(&Task{}).
			Where("id = ?", taskID).
			Updates(map[string]any{"list_type": destList, "position": newPos}).Error
	})
}

// ReorderList rewrites the order of a user's list partition to match the
// given task ids. Every task in the partition must appear exactly once; the
// whole reorder commits or none of it does.
func (s *TaskStore) ReorderList(ctx context.Context, userID, listType string, orderedIDs []string) error {
	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("task %s appears more than once in the reorder", id)
		}
		seen[id] = struct{}{}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Task{}).
			Where("user_id = ? AND list_type = ?", userID, listType).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(orderedIDs) {
			return fmt.Errorf("reorder of %s list needs all %d tasks, got %d", listType, count, len(orderedIDs))
		}

		for pos, id := range orderedIDs {
			res := tx.Model(&Task{}).
				Where("id = ? AND user_id = ? AND list_type = ?", id, userID, listType).
				Update("position", pos)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("task %s is not in the %s list: %w", id, listType, ErrNotFound)
			}
		}
		return nil
	})
}

// compactPositions renumbers one partition to 0..N-1, preserving order.
func compactPositions(tx *gorm.DB, userID, listType string) error {
	var tasks []Task
	if err := tx.Where("user_id = ? AND list_type = ?", userID, listType).
		Order("position").
		Find(&tasks).Error; err != nil {
		return err
	}
	for i, task := range tasks {
		if task.Position == i {
			continue
		}
		if err := tx.Model(&Task{}).
			Where("id = ?", task.ID).
			Update("position", i).Error; err != nil {
			return err
		}
	}
	return nil
}
