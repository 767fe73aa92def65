package todo

import (
	"errors"
	"fmt"
	"strings"
)

type Todo struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	Status      Status     `json:"status" yaml:"status"`
	CreatedAt   Timestamp  `json:"created_at" yaml:"created_at"`
	CompletedAt *Timestamp `json:"completed_at" yaml:"completed_at"`
}

type Status string

const StatusPending Status = "pending"
const StatusDone Status = "done"

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone
}

var ErrInvalid = errors.New("invalid todo")

// New собирает новую задачу в статусе pending
func New(id, description string, createdAt Timestamp) *Todo {
	return &Todo{
		ID:          id,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   createdAt,
	}
}

// Clone возвращает глубокую копию, чтобы сервис не менял незакоммиченные записи
func (t *Todo) Clone() *Todo {
	c := *t
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}

func (t *Todo) IsDone() bool {
	return t.Status == StatusDone
}

// Complete переводит задачу в done. completed_at не может быть раньше created_at,
// поэтому при отстающих часах берётся created_at.
func (t *Todo) Complete(now Timestamp) {
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.Status = StatusDone
	t.CompletedAt = &now
}

func (t *Todo) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalid)
	}

	switch t.Status {
	case StatusPending:
		if t.CompletedAt != nil {
			return fmt.Errorf("%w: pending todo must not have completed_at", ErrInvalid)
		}
	case StatusDone:
		if t.CompletedAt == nil || t.CompletedAt.IsZero() {
			return fmt.Errorf("%w: done todo must have completed_at", ErrInvalid)
		}
		if t.CompletedAt.Before(t.CreatedAt) {
			return fmt.Errorf("%w: completed_at %s is before created_at %s", ErrInvalid, t.CompletedAt, t.CreatedAt)
		}
	}
	return nil
}

// ValidateCollection проверяет каждую запись и уникальность id
func ValidateCollection(todos []*Todo) error {
	seen := make(map[string]int, len(todos))
	for i, t := range todos {
		if t == nil {
			return fmt.Errorf("%w: record %d is empty", ErrInvalid, i)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("record %d (id %q): %w", i, t.ID, err)
		}
		if first, ok := seen[t.ID]; ok {
			return fmt.Errorf("%w: records %d and %d share id %q", ErrInvalid, first, i, t.ID)
		}
		seen[t.ID] = i
	}
	return nil
}

func CloneAll(todos []*Todo) []*Todo {
	res := make([]*Todo, 0, len(todos))
	for _, t := range todos {
		res = append(res, t.Clone())
	}
	return res
}
