package app

import (
	"context"
	"fmt"
	"io"

	"todoManager/internal/config"
	"todoManager/internal/handlers"
	"todoManager/internal/logger"
	"todoManager/internal/mcp"
	"todoManager/internal/middleware"
	"todoManager/internal/repository/todo/file"
	"todoManager/internal/repository/todo/inmemory"
	"todoManager/internal/service"
	"todoManager/internal/worker"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config     *config.Config
	fs         afero.Fs
	repository service.TodoRepository
	service    *service.TodoService
	handler    *handlers.TodoHandler
	server     *mcp.Server
	janitor    *worker.ScratchJanitor
	shutdowns  []func() // функции для graceful shutdown
}

type Option func(*App)

// WithFs подменяет файловую систему файлового хранилища
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

func New(cfg *config.Config, opts ...Option) *App {
	a := &App{
		config:    cfg,
		fs:        afero.NewOsFs(),
		shutdowns: make([]func(), 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init собирает зависимости. Повреждённый файл хранилища останавливает запуск:
// дальнейшая запись затёрла бы данные, которые ещё можно восстановить руками.
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.LoggerOptions()); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	switch a.config.Storage.Type {
	case config.StorageInMemory:
		a.repository = inmemory.NewTodoStorage()
	default:
		storage, err := file.New(a.config.Storage.Path, file.WithFs(a.fs))
		if err != nil {
			return fmt.Errorf("инициализация хранилища: %w", err)
		}
		a.repository = storage

		if a.config.Janitor.Enabled {
			a.janitor = worker.NewScratchJanitor(a.fs, storage.Dir(), storage.ScratchPrefix(),
				&a.config.Janitor.Interval, &a.config.Janitor.MaxAge)
		}
	}

	a.service = service.NewTodoService(a.repository)
	if err := a.service.HealthCheck(ctx); err != nil {
		logger.Error("App: Хранилище не прошло проверку", err)
		return fmt.Errorf("проверка хранилища: %w", err)
	}

	handler, err := handlers.NewTodoHandler(a.service)
	if err != nil {
		return fmt.Errorf("инициализация обработчиков: %w", err)
	}
	a.handler = handler

	a.server = mcp.NewServer(a.config.Server.Name, a.config.Server.Version)
	a.server.Use(middleware.RequestID, middleware.Logging, middleware.RateLimit(a.config.Server.RateLimit))
	a.handler.Register(a.server)

	logger.Info("App: Инициализация завершена",
		zap.String("storage", a.config.Storage.Type),
		zap.String("path", a.config.Storage.Path),
		zap.Bool("janitor", a.janitor != nil))
	return nil
}

func (a *App) Service() *service.TodoService {
	return a.service
}

func (a *App) Server() *mcp.Server {
	return a.server
}

// Run обслуживает протокол на in/out, пока не закончится ввод или не отменят контекст
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if a.janitor != nil {
		g.Go(func() error {
			a.janitor.Start(ctx)
			return nil
		})
	}

	g.Go(func() error {
		// конец ввода останавливает и фоновые задачи
		defer cancel()
		return a.server.Serve(ctx, in, out)
	})

	if err := g.Wait(); err != nil {
		logger.Error("App: Сервер остановлен с ошибкой", err)
		return err
	}
	return nil
}

// Shutdown вызывает функции завершения в обратном порядке
func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
