package service

import (
	"context"

	"todoManager/internal/models/todo"
)

// TodoRepository - слой хранения: читает коллекцию и атомарно сохраняет её целиком
type TodoRepository interface {
	HealthCheck(context.Context) error
	Load(context.Context) ([]*todo.Todo, error)
	Save(context.Context, []*todo.Todo) error
}
