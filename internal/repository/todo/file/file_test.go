package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"todoManager/internal/models/todo"
	repo "todoManager/internal/repository"
	"todoManager/internal/repository/todo/file"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyFs отказывает на выбранном шаге фиксации
type faultyFs struct {
	afero.Fs
	failRename bool
	failSync   bool
	failWrite  bool
}

func (f *faultyFs) Rename(oldname, newname string) error {
	if f.failRename {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.New("simulated rename failure")}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	fh, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: fh, fs: f}, nil
}

type faultyFile struct {
	afero.File
	fs *faultyFs
}

func (f *faultyFile) Sync() error {
	if f.fs.failSync {
		return errors.New("simulated fsync failure")
	}
	return f.File.Sync()
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.fs.failWrite {
		// половина данных успела попасть во временный файл
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errors.New("simulated disk full")
	}
	return f.File.Write(p)
}

func sample(t *testing.T, ids ...string) []*todo.Todo {
	t.Helper()
	created, err := todo.ParseTimestamp("2025-01-01T10:00:00")
	require.NoError(t, err)

	res := make([]*todo.Todo, 0, len(ids))
	for _, id := range ids {
		res = append(res, todo.New(id, "task "+id, created))
	}
	return res
}

func newStorage(t *testing.T, opts ...file.Option) (*file.Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todos.yaml")
	s, err := file.New(path, opts...)
	require.NoError(t, err)
	return s, path
}

func scratchFiles(t *testing.T, s *file.Storage) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)

	var res []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), s.ScratchPrefix()) {
			res = append(res, e.Name())
		}
	}
	return res
}

// TestNew тестирует конструктор
func TestNew(t *testing.T) {
	_, err := file.New("")
	assert.Error(t, err)

	s, err := file.New("relative/todos.yaml")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.Path()))
	assert.Equal(t, ".todos.yaml.tmp-", s.ScratchPrefix())
}

// TestStorage_Load тестирует чтение
func TestStorage_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is empty and is not created", func(t *testing.T) {
		s, path := newStorage(t)

		todos, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, todos)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("empty file is empty collection", func(t *testing.T) {
		s, path := newStorage(t)
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		todos, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, todos)
	})

	t.Run("corrupted file fails and is left alone", func(t *testing.T) {
		s, path := newStorage(t)
		garbage := []byte("todos: [\n  {id: ")
		require.NoError(t, os.WriteFile(path, garbage, 0o600))

		todos, err := s.Load(ctx)
		assert.Nil(t, todos)
		assert.ErrorIs(t, err, repo.ErrCorrupted)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, garbage, data)
	})

	t.Run("code execution payload is rejected", func(t *testing.T) {
		s, path := newStorage(t)
		marker := filepath.Join(filepath.Dir(path), "pwned")
		payload := "todos: !!python/object/apply:os.system [\"touch " + marker + "\"]\n"
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, repo.ErrUnsafeContent)

		_, statErr := os.Stat(marker)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("orphan scratch file does not affect load", func(t *testing.T) {
		s, path := newStorage(t)
		require.NoError(t, s.Save(ctx, sample(t, "a")))
		orphan := filepath.Join(filepath.Dir(path), s.ScratchPrefix()+"123456")
		require.NoError(t, os.WriteFile(orphan, []byte("todos: [garbage"), 0o600))

		todos, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		assert.Equal(t, "a", todos[0].ID)
	})

	t.Run("unreadable path is not corruption", func(t *testing.T) {
		s, path := newStorage(t)
		require.NoError(t, os.Mkdir(path, 0o700))

		_, err := s.Load(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, repo.ErrCorrupted)
	})
}

// TestStorage_SaveLoad тестирует round trip
func TestStorage_SaveLoad(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		todos []*todo.Todo
	}{
		{name: "empty", todos: []*todo.Todo{}},
		{name: "single", todos: sample(t, "a")},
		{name: "several", todos: sample(t, "a", "b", "c")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newStorage(t)
			require.NoError(t, s.Save(ctx, tt.todos))

			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, loaded, len(tt.todos))
			for i := range tt.todos {
				assert.Equal(t, tt.todos[i].ID, loaded[i].ID)
				assert.Equal(t, tt.todos[i].Description, loaded[i].Description)
				assert.Equal(t, tt.todos[i].Status, loaded[i].Status)
				assert.True(t, tt.todos[i].CreatedAt.Equal(loaded[i].CreatedAt))
			}
			assert.Empty(t, scratchFiles(t, s))
		})
	}

	t.Run("done record keeps completed_at", func(t *testing.T) {
		s, _ := newStorage(t)
		todos := sample(t, "a")
		completed, err := todo.ParseTimestamp("2025-01-01T11:15:00")
		require.NoError(t, err)
		todos[0].Complete(completed)
		require.NoError(t, s.Save(ctx, todos))

		loaded, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, loaded[0].CompletedAt)
		assert.Equal(t, "2025-01-01T11:15:00", loaded[0].CompletedAt.String())
	})

	t.Run("missing directories are created", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "deeper", "todos.yaml")
		s, err := file.New(path)
		require.NoError(t, err)

		require.NoError(t, s.Save(ctx, sample(t, "a")))
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})
}

// TestStorage_DaylightSavingFallBack тестирует запись внутри повторяющегося часа при переводе часов назад
func TestStorage_DaylightSavingFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	prev := time.Local
	time.Local = ny
	t.Cleanup(func() { time.Local = prev })

	ctx := context.Background()
	s, path := newStorage(t)

	// 01:10 летнего времени и 01:05 зимнего, между ними 55 минут
	created := todo.NewTimestamp(time.Date(2025, 11, 2, 5, 10, 0, 0, time.UTC))
	completed := todo.NewTimestamp(time.Date(2025, 11, 2, 6, 5, 0, 0, time.UTC))
	require.Equal(t, "2025-11-02T01:10:00", created.String())
	require.Equal(t, "2025-11-02T01:05:00", completed.String())

	item := todo.New("a", "across the switch", created)
	item.Complete(completed)
	require.NoError(t, s.Save(ctx, []*todo.Todo{item}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `created_at: "2025-11-02T05:10:00Z"`)
	assert.Contains(t, string(data), `completed_at: "2025-11-02T06:05:00Z"`)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, loaded[0].CreatedAt.Equal(created))
	require.NotNil(t, loaded[0].CompletedAt)
	assert.True(t, loaded[0].CompletedAt.Equal(completed))
	assert.NoError(t, s.HealthCheck(ctx))
}

// TestStorage_Permissions тестирует права 0600
func TestStorage_Permissions(t *testing.T) {
	ctx := context.Background()

	t.Run("new file", func(t *testing.T) {
		s, path := newStorage(t)
		require.NoError(t, s.Save(ctx, sample(t, "a")))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, file.FileMode, info.Mode().Perm())
	})

	t.Run("replaced world-readable file", func(t *testing.T) {
		s, path := newStorage(t)
		require.NoError(t, os.WriteFile(path, []byte("todos: []\n"), 0o644))
		require.NoError(t, os.Chmod(path, 0o644))

		require.NoError(t, s.Save(ctx, sample(t, "a")))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, file.FileMode, info.Mode().Perm())
	})
}

// TestStorage_FailedCommit тестирует, что сбой на любом шаге оставляет прежнее содержимое
func TestStorage_FailedCommit(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		inject func(*faultyFs)
	}{
		{name: "write fails", inject: func(f *faultyFs) { f.failWrite = true }},
		{name: "fsync fails", inject: func(f *faultyFs) { f.failSync = true }},
		{name: "rename fails", inject: func(f *faultyFs) { f.failRename = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &faultyFs{Fs: afero.NewOsFs()}
			s, path := newStorage(t, file.WithFs(fs))

			require.NoError(t, s.Save(ctx, sample(t, "a", "b")))
			before, err := os.ReadFile(path)
			require.NoError(t, err)

			tt.inject(fs)
			err = s.Save(ctx, sample(t, "x"))
			require.Error(t, err)

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Empty(t, scratchFiles(t, s))

			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.Equal(t, "a", loaded[0].ID)
			assert.Equal(t, "b", loaded[1].ID)
		})
	}

	t.Run("first save fails - file never appears", func(t *testing.T) {
		fs := &faultyFs{Fs: afero.NewOsFs(), failRename: true}
		s, path := newStorage(t, file.WithFs(fs))

		require.Error(t, s.Save(ctx, sample(t, "a")))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}

// TestStorage_MemMapFs тестирует работу поверх afero в памяти
func TestStorage_MemMapFs(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s, err := file.New("/home/user/.todos.yaml", file.WithFs(fs))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, sample(t, "a", "b")))
	require.NoError(t, s.HealthCheck(ctx))

	data, err := afero.ReadFile(fs, "/home/user/.todos.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "todos:\n"))

	require.NoError(t, afero.WriteFile(fs, "/home/user/.todos.yaml", []byte("todos: 1\n"), 0o600))
	assert.ErrorIs(t, s.HealthCheck(ctx), repo.ErrCorrupted)
}

// TestStorage_ConcurrentReaders тестирует, что читатель видит либо старое, либо новое содержимое
func TestStorage_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	s, _ := newStorage(t)
	require.NoError(t, s.Save(ctx, sample(t, "a")))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				todos, err := s.Load(ctx)
				if !assert.NoError(t, err) {
					return
				}
				n := len(todos)
				assert.True(t, n == 1 || n == 3, "unexpected collection size %d", n)
			}
		}()
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, s.Save(ctx, sample(t, "a", "b", "c")))
		require.NoError(t, s.Save(ctx, sample(t, "a")))
	}
	close(stop)
	wg.Wait()
}
