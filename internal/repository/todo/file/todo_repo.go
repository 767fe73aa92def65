package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"todoManager/internal/logger"
	"todoManager/internal/models/todo"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// права файла хранилища: только владелец
const FileMode os.FileMode = 0o600

const dirMode os.FileMode = 0o700

type Storage struct {
	fs    afero.Fs
	path  string
	codec Codec
}

type Option func(*Storage)

func WithFs(fs afero.Fs) Option {
	return func(s *Storage) {
		s.fs = fs
	}
}

func WithCodec(codec Codec) Option {
	return func(s *Storage) {
		s.codec = codec
	}
}

func New(path string, opts ...Option) (*Storage, error) {
	if path == "" {
		return nil, errors.New("storage path is empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	s := &Storage{
		fs:    afero.NewOsFs(),
		path:  abs,
		codec: YAMLCodec{},
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("Repository: Файловое хранилище", zap.String("path", s.path))
	return s, nil
}

func (s *Storage) Path() string {
	return s.path
}

// ScratchPrefix - префикс временных файлов, которые создаёт Save рядом с файлом хранилища
func (s *Storage) ScratchPrefix() string {
	return "." + filepath.Base(s.path) + ".tmp-"
}

func (s *Storage) Dir() string {
	return filepath.Dir(s.path)
}

func (s *Storage) Fs() afero.Fs {
	return s.fs
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	todos, err := s.Load(ctx)
	if err != nil {
		logger.Error("Repository: Хранилище недоступно", err, zap.String("path", s.path))
		return err
	}
	logger.Info("Repository: Хранилище в порядке",
		zap.String("path", s.path),
		zap.Int("todos", len(todos)))
	return nil
}

// Load читает коллекцию. Отсутствующий или пустой файл - это пустая коллекция, а не ошибка.
func (s *Storage) Load(ctx context.Context) ([]*todo.Todo, error) {
	start := time.Now()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("Repository: Файл не существует, коллекция пуста", zap.String("path", s.path))
			return []*todo.Todo{}, nil
		}
		logger.Error("Repository: Не удалось прочитать файл", err, zap.String("path", s.path))
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	s.checkMode()

	todos, err := s.codec.Decode(data)
	if err != nil {
		logger.Error("Repository: Файл повреждён", err, zap.String("path", s.path))
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}

	logger.Debug("Repository: Коллекция загружена",
		zap.Int("todos", len(todos)),
		zap.Duration("ms", time.Since(start)))
	return todos, nil
}

// Save целиком переписывает файл: временный файл в том же каталоге, sync, rename поверх старого.
// Наблюдатель видит либо старое, либо новое содержимое, но не частичную запись.
func (s *Storage) Save(ctx context.Context, todos []*todo.Todo) error {
	start := time.Now()

	data, err := s.codec.Encode(todos)
	if err != nil {
		logger.Error("Repository: Не удалось сериализовать коллекцию", err)
		return fmt.Errorf("save: %w", err)
	}

	if err := s.commit(data); err != nil {
		logger.Error("Repository: Не удалось сохранить коллекцию", err,
			zap.String("path", s.path),
			zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("save %s: %w", s.path, err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная запись", zap.Duration("ms", time.Since(start)))
	}
	logger.Debug("Repository: Коллекция сохранена",
		zap.Int("todos", len(todos)),
		zap.Duration("ms", time.Since(start)))
	return nil
}

func (s *Storage) commit(data []byte) error {
	dir := s.Dir()
	if err := s.fs.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, s.ScratchPrefix()+"*")
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	tmpName := tmp.Name()

	renamed := false
	defer func() {
		if renamed {
			return
		}
		if rmErr := s.fs.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("Repository: Не удалось удалить временный файл",
				zap.String("scratch", tmpName),
				zap.Error(rmErr))
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write scratch file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close scratch file: %w", err)
	}
	if err := s.fs.Chmod(tmpName, FileMode); err != nil {
		return fmt.Errorf("chmod scratch file: %w", err)
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	renamed = true

	// после rename права могли смениться, утверждаем их ещё раз.
	// Данные уже зафиксированы, поэтому сбой chmod не отменяет запись.
	if err := s.fs.Chmod(s.path, FileMode); err != nil {
		logger.Error("Repository: Не удалось выставить права 0600", err, zap.String("path", s.path))
	}

	s.syncDir(dir)
	return nil
}

// syncDir фиксирует запись каталога после rename; не везде поддерживается, поэтому ошибка только логируется
func (s *Storage) syncDir(dir string) {
	d, err := s.fs.Open(dir)
	if err != nil {
		logger.Debug("Repository: Не удалось открыть каталог для sync", zap.Error(err))
		return
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		logger.Debug("Repository: Sync каталога не поддерживается", zap.Error(err))
	}
}

func (s *Storage) checkMode() {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&^FileMode != 0 {
		logger.Warn("Repository: Права файла шире, чем 0600; будут исправлены при следующей записи",
			zap.String("path", s.path),
			zap.String("mode", info.Mode().Perm().String()))
	}
}
