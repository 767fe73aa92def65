package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"todoManager/internal/logger"
	"todoManager/internal/models/todo"
	rep "todoManager/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

// сколько раз перегенерировать id при совпадении с существующим
const maxIDAttempts = 5

// TodoService - хранилище записей. Каждая операция заново читает коллекцию из репозитория
// внутри критической секции, меняет рабочую копию и сохраняет её целиком. Рабочая копия
// становится состоянием только после успешного Save, так что "успех" всегда означает запись на диск.
type TodoService struct {
	repo  TodoRepository
	mtx   *sync.RWMutex
	now   func() time.Time
	newID func() string
}

func NewTodoService(repo TodoRepository, options ...ServiceOption) *TodoService {
	s := &TodoService{
		repo:  repo,
		mtx:   &sync.RWMutex{},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// HealthCheck загружает коллекцию; повреждённый файл отличается от отсутствующего
func (s *TodoService) HealthCheck(ctx context.Context) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.repo.HealthCheck(ctx); err != nil {
		return s.loadError(err)
	}
	return nil
}

func (s *TodoService) ListTodos(ctx context.Context) ([]*todo.Todo, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	todos, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Service: Получен список задач", zap.Int("count", len(todos)))
	return todos, nil
}

func (s *TodoService) AddTodo(ctx context.Context, description string) (*todo.Todo, error) {
	if strings.TrimSpace(description) == "" {
		logger.Warn("Service: Ошибка валидации", zap.String("field", "description"))
		return nil, NewValidationError("description", "must not be empty")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	todos, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.uniqueID(todos)
	if err != nil {
		return nil, err
	}

	created := todo.New(id, description, todo.NewTimestamp(s.now()))
	working := append(todo.CloneAll(todos), created)

	if err := s.repo.Save(ctx, working); err != nil {
		logger.Error("Service: Задача не сохранена", err, zap.String("todo_id", id))
		return nil, NewPersistenceError("add_todo", err)
	}

	logger.Info("Service: Задача создана", zap.String("todo_id", id))
	return created.Clone(), nil
}

func (s *TodoService) CompleteTodo(ctx context.Context, id string) (*todo.Todo, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	todos, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	working := todo.CloneAll(todos)
	idx := indexOf(working, id)
	if idx < 0 {
		logger.Info("Service: Задача не найдена", zap.String("target_id", id))
		return nil, NewNotFound(id, "not_found")
	}

	target := working[idx]
	if target.IsDone() {
		logger.Info("Service: Задача уже завершена",
			zap.String("target_id", id),
			zap.String("completed_at", target.CompletedAt.String()))
		return nil, NewNotFound(id, "already_done")
	}

	target.Complete(todo.NewTimestamp(s.now()))

	if err := s.repo.Save(ctx, working); err != nil {
		logger.Error("Service: Завершение не сохранено", err, zap.String("todo_id", id))
		return nil, NewPersistenceError("complete_todo", err)
	}

	logger.Info("Service: Задача завершена",
		zap.String("todo_id", id),
		zap.String("description", target.Description))
	return target.Clone(), nil
}

// DeleteTodo возвращает false без записи на диск, если id не найден
func (s *TodoService) DeleteTodo(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	todos, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(todos, id)
	if idx < 0 {
		logger.Info("Service: Задача для удаления не найдена", zap.String("target_id", id))
		return false, nil
	}

	deleted := todos[idx]
	working := make([]*todo.Todo, 0, len(todos)-1)
	working = append(working, todo.CloneAll(todos[:idx])...)
	working = append(working, todo.CloneAll(todos[idx+1:])...)

	if err := s.repo.Save(ctx, working); err != nil {
		logger.Error("Service: Удаление не сохранено", err, zap.String("todo_id", id))
		return false, NewPersistenceError("delete_todo", err)
	}

	logger.Info("Service: Задача удалена",
		zap.String("todo_id", id),
		zap.String("description", deleted.Description))
	return true, nil
}

// GetTimestamp не зависит от состояния хранилища
func (s *TodoService) GetTimestamp() string {
	return todo.NewTimestamp(s.now()).String()
}

func (s *TodoService) load(ctx context.Context) ([]*todo.Todo, error) {
	todos, err := s.repo.Load(ctx)
	if err != nil {
		return nil, s.loadError(err)
	}
	return todos, nil
}

func (s *TodoService) loadError(err error) error {
	if errors.Is(err, rep.ErrCorrupted) {
		logger.Error("Service: Хранилище повреждено", err)
		return NewCorruptionError(err)
	}
	logger.Error("Service: Хранилище недоступно", err)
	return NewStorageUnavailable(err)
}

func (s *TodoService) uniqueID(todos []*todo.Todo) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.newID()
		if strings.TrimSpace(id) != "" && indexOf(todos, id) < 0 {
			return id, nil
		}
		logger.Warn("Service: Совпадение id, генерируем заново", zap.String("todo_id", id))
	}
	return "", fmt.Errorf("generate unique id: %d attempts collided", maxIDAttempts)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		logger.Warn("Service: Ошибка валидации", zap.String("field", "id"))
		return NewValidationError("id", "must not be empty")
	}
	return nil
}

func indexOf(todos []*todo.Todo, id string) int {
	for i, t := range todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}
