package inmemory

import (
	"context"
	"fmt"
	"sync"

	"todoManager/internal/logger"
	"todoManager/internal/models/todo"
	repo "todoManager/internal/repository"
)

// TodoStorage хранит коллекцию в памяти процесса; данные теряются при перезапуске
type TodoStorage struct {
	storage map[string]*todo.Todo
	mtx     *sync.RWMutex
	ids     []string
}

func NewTodoStorage() *TodoStorage {
	return &TodoStorage{
		storage: make(map[string]*todo.Todo),
		mtx:     &sync.RWMutex{},
		ids:     []string{},
	}
}

func (s *TodoStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Хранилище в памяти готово")
	return nil
}

// Load возвращает копии записей в порядке вставки
func (s *TodoStorage) Load(ctx context.Context) ([]*todo.Todo, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*todo.Todo, 0, len(s.ids))
	for _, id := range s.ids {
		res = append(res, s.storage[id].Clone())
	}
	return res, nil
}

// Save заменяет коллекцию целиком
func (s *TodoStorage) Save(ctx context.Context, todos []*todo.Todo) error {
	if err := todo.ValidateCollection(todos); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrCorrupted, err)
	}

	storage := make(map[string]*todo.Todo, len(todos))
	ids := make([]string, 0, len(todos))
	for _, t := range todos {
		storage[t.ID] = t.Clone()
		ids = append(ids, t.ID)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.storage = storage
	s.ids = ids
	return nil
}
