package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"todoManager/internal/handlers/dto"
	"todoManager/internal/logger"
	"todoManager/internal/mcp"

	"go.uber.org/zap"
)

const (
	ToolListTodos    = "list_todos"
	ToolAddTodo      = "add_todo"
	ToolCompleteTodo = "complete_todo"
	ToolDeleteTodo   = "delete_todo"
	ToolGetTimestamp = "get_timestamp"
)

var todoTools = []mcp.Tool{
	{
		Name:        ToolListTodos,
		Description: "List all todo items stored in the YAML file",
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
	},
	{
		Name:        ToolAddTodo,
		Description: "Add a new todo item with system timestamp",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"description":{"type":"string","description":"Todo description"}},"required":["description"]}`),
	},
	{
		Name:        ToolCompleteTodo,
		Description: "Mark a todo as completed by ID",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","description":"Todo item ID"}},"required":["id"]}`),
	},
	{
		Name:        ToolDeleteTodo,
		Description: "Delete a todo item by ID",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","description":"Todo item ID"}},"required":["id"]}`),
	},
	{
		Name:        ToolGetTimestamp,
		Description: "Fetch current system timestamp in ISO 8601 format",
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
	},
}

// Tools возвращает описания инструментов в порядке регистрации
func Tools() []mcp.Tool {
	res := make([]mcp.Tool, len(todoTools))
	copy(res, todoTools)
	return res
}

type TodoHandler struct {
	TodoService TodoService
	validator   *SchemaValidator
}

func NewTodoHandler(todoService TodoService) (*TodoHandler, error) {
	validator, err := NewSchemaValidator(todoTools)
	if err != nil {
		return nil, fmt.Errorf("tool schemas: %w", err)
	}
	return &TodoHandler{
		TodoService: todoService,
		validator:   validator,
	}, nil
}

// Register подключает все инструменты к MCP серверу
func (h *TodoHandler) Register(server *mcp.Server) {
	handlers := map[string]mcp.ToolHandler{
		ToolListTodos:    h.ListTodos,
		ToolAddTodo:      h.AddTodo,
		ToolCompleteTodo: h.CompleteTodo,
		ToolDeleteTodo:   h.DeleteTodo,
		ToolGetTimestamp: h.GetTimestamp,
	}
	for _, tool := range todoTools {
		server.Register(tool, handlers[tool.Name])
	}
}

func (h *TodoHandler) ListTodos(ctx context.Context, raw json.RawMessage) *mcp.ToolResult {
	start := time.Now()

	if _, errRes := h.arguments(ToolListTodos, raw); errRes != nil {
		return errRes
	}

	todos, err := h.TodoService.ListTodos(ctx)
	if err != nil {
		return handleBusinessError(err)
	}

	logger.Info("MCP: Список задач отдан",
		zap.Int("count", len(todos)),
		zap.Duration("ms", time.Since(start)))
	return responseWithJSON(dto.FromTodoList(todos))
}

func (h *TodoHandler) AddTodo(ctx context.Context, raw json.RawMessage) *mcp.ToolResult {
	args, errRes := h.arguments(ToolAddTodo, raw, "description")
	if errRes != nil {
		return errRes
	}

	request := dto.AddTodoRequest{Description: args["description"].(string)}

	created, err := h.TodoService.AddTodo(ctx, request.Description)
	if err != nil {
		return handleBusinessError(err)
	}
	return responseWithJSON(dto.FromTodo(created))
}

func (h *TodoHandler) CompleteTodo(ctx context.Context, raw json.RawMessage) *mcp.ToolResult {
	args, errRes := h.arguments(ToolCompleteTodo, raw, "id")
	if errRes != nil {
		return errRes
	}

	request := dto.TodoIDRequest{ID: args["id"].(string)}

	completed, err := h.TodoService.CompleteTodo(ctx, request.ID)
	if err != nil {
		return handleBusinessError(err)
	}
	return responseWithJSON(dto.FromTodo(completed))
}

func (h *TodoHandler) DeleteTodo(ctx context.Context, raw json.RawMessage) *mcp.ToolResult {
	args, errRes := h.arguments(ToolDeleteTodo, raw, "id")
	if errRes != nil {
		return errRes
	}

	request := dto.TodoIDRequest{ID: args["id"].(string)}

	deleted, err := h.TodoService.DeleteTodo(ctx, request.ID)
	if err != nil {
		return handleBusinessError(err)
	}
	if !deleted {
		return responseWithError(fmt.Sprintf("Todo with ID '%s' not found", request.ID))
	}
	return responseWithText(fmt.Sprintf("Todo with ID '%s' deleted successfully", request.ID))
}

func (h *TodoHandler) GetTimestamp(ctx context.Context, raw json.RawMessage) *mcp.ToolResult {
	if _, errRes := h.arguments(ToolGetTimestamp, raw); errRes != nil {
		return errRes
	}
	return responseWithText(h.TodoService.GetTimestamp())
}

// arguments разбирает аргументы: сначала обязательные параметры, потом схема инструмента.
// При ошибке возвращает готовый результат.
func (h *TodoHandler) arguments(tool string, raw json.RawMessage, required ...string) (map[string]any, *mcp.ToolResult) {
	args, err := decodeArguments(raw)
	if err != nil {
		logger.Warn("MCP: Ошибка чтения аргументов", zap.String("tool", tool), zap.Error(err))
		return nil, responseWithError(fmt.Sprintf("invalid arguments: %v", err))
	}

	for _, field := range required {
		if isBlank(args[field]) {
			logger.Warn("MCP: Ошибка валидации",
				zap.String("tool", tool),
				zap.String("field", field),
				zap.String("error", "empty_field"))
			return nil, responseWithError(field + " parameter is required")
		}
	}

	if err := h.validator.Validate(tool, args); err != nil {
		logger.Warn("MCP: Аргументы не соответствуют схеме", zap.String("tool", tool), zap.Error(err))
		return nil, responseWithError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return args, nil
}
