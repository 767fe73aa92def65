package dto

import (
	"todoManager/internal/models/todo"
)

type AddTodoRequest struct {
	Description string `json:"description"`
}

type TodoIDRequest struct {
	ID string `json:"id"`
}

// TodoResponse - запись в том виде, в каком она лежит в файле
type TodoResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at"`
}

func FromTodo(t *todo.Todo) TodoResponse {
	res := TodoResponse{
		ID:          t.ID,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.String(),
	}
	if t.CompletedAt != nil {
		completedAt := t.CompletedAt.String()
		res.CompletedAt = &completedAt
	}
	return res
}

func FromTodoList(todos []*todo.Todo) []TodoResponse {
	result := make([]TodoResponse, len(todos))
	for i, t := range todos {
		result[i] = FromTodo(t)
	}
	return result
}
