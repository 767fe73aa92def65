package handlers

import (
	"context"

	"todoManager/internal/models/todo"
)

type TodoService interface {
	ListTodos(context.Context) ([]*todo.Todo, error)
	AddTodo(context.Context, string) (*todo.Todo, error)
	CompleteTodo(context.Context, string) (*todo.Todo, error)
	DeleteTodo(context.Context, string) (bool, error)
	GetTimestamp() string
}
