package a2a

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
)

// statusColumn stores a TaskStatus as a JSON column.
type statusColumn struct {
	TaskStatus
}

// Value implements driver.Valuer.
func (c statusColumn) Value() (driver.Value, error) {
	return sonic.ConfigDefault.Marshal(c.TaskStatus)
}

// Scan implements sql.Scanner.
func (c *statusColumn) Scan(value any) error {
	return scanJSON(value, &c.TaskStatus)
}

// artifactsColumn stores []Artifact as a JSON column.
type artifactsColumn struct {
	Artifacts []Artifact
}

// Value implements driver.Valuer.
func (c artifactsColumn) Value() (driver.Value, error) {
	if c.Artifacts == nil {
		return nil, nil
	}
	return sonic.ConfigDefault.Marshal(c.Artifacts)
}

// Scan implements sql.Scanner.
func (c *artifactsColumn) Scan(value any) error {
	if value == nil {
		c.Artifacts = nil
		return nil
	}
	return scanJSON(value, &c.Artifacts)
}

// historyColumn stores []Message as a JSON column.
type historyColumn struct {
	Messages []Message
}

// Value implements driver.Valuer.
func (c historyColumn) Value() (driver.Value, error) {
	if c.Messages == nil {
		return nil, nil
	}
	return sonic.ConfigDefault.Marshal(c.Messages)
}

// Scan implements sql.Scanner.
func (c *historyColumn) Scan(value any) error {
	if value == nil {
		c.Messages = nil
		return nil
	}
	return scanJSON(value, &c.Messages)
}

func scanJSON(value any, dst any) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T as JSON column", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return sonic.ConfigDefault.Unmarshal(raw, dst)
}

// taskRecord is the database row backing one Task.
type taskRecord struct {
	ID        string          `gorm:"primaryKey;size:64"`
	ContextID string          `gorm:"size:64;not null"`
	State     string          `gorm:"size:24;index"`
	Status    statusColumn    `gorm:"type:json"`
	History   historyColumn   `gorm:"type:json"`
	Artifacts artifactsColumn `gorm:"type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName sets the table name for taskRecord.
func (taskRecord) TableName() string { return "tasks" }

func recordFromTask(task Task) taskRecord {
	return taskRecord{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Status:    statusColumn{task.Status},
		History:   historyColumn{task.History},
		Artifacts: artifactsColumn{task.Artifacts},
	}
}

func (r taskRecord) toTask() Task {
	return Task{
		Kind:      KindTask,
		ID:        r.ID,
		ContextID: r.ContextID,
		Status:    r.Status.TaskStatus,
		History:   r.History.Messages,
		Artifacts: r.Artifacts.Artifacts,
	}
}

// GormTaskStore persists tasks through a gorm.DB (SQLite, Postgres, etc.).
type GormTaskStore struct {
	db *gorm.DB
}

var _ TaskStore = (*GormTaskStore)(nil)

// NewGormTaskStore migrates the task table and returns the store.
func NewGormTaskStore(db *gorm.DB) (*GormTaskStore, error) {
	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate task table: %w", err)
	}
	return &GormTaskStore{db: db}, nil
}

// Save implements TaskStore, upserting by task id.
func (s *GormTaskStore) Save(ctx context.Context, task Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	record := recordFromTask(task)
	err := s.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// Get implements TaskStore.
func (s *GormTaskStore) Get(ctx context.Context, id string) (Task, error) {
	var record taskRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return record.toTask(), nil
}

// List implements TaskStore, ordered by save time.
func (s *GormTaskStore) List(ctx context.Context) ([]Task, error) {
	var records []taskRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]Task, len(records))
	for i, r := range records {
		tasks[i] = r.toTask()
	}
	return tasks, nil
}

// Delete implements TaskStore. Deleting an unknown id is a no-op.
func (s *GormTaskStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
