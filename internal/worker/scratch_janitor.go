package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todoManager/internal/logger"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ScratchJanitor удаляет временные файлы, оставшиеся после прерванной записи.
// Свежие файлы не трогаются: они могут принадлежать записи, которая идёт прямо сейчас.
type ScratchJanitor struct {
	fs       afero.Fs
	dir      string
	prefix   string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

func NewScratchJanitor(fs afero.Fs, dir, prefix string, interval *time.Duration, maxAge *time.Duration) *ScratchJanitor {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = 10 * time.Minute
	} else {
		intervalToSet = *interval
	}

	var maxAgeToSet time.Duration
	if maxAge == nil || *maxAge <= 0 {
		maxAgeToSet = time.Hour
	} else {
		maxAgeToSet = *maxAge
	}

	return &ScratchJanitor{
		fs:       fs,
		dir:      dir,
		prefix:   prefix,
		interval: intervalToSet,
		maxAge:   maxAgeToSet,
		now:      time.Now,
	}
}

// Start делает первую уборку сразу, затем по тикеру до отмены контекста
func (w *ScratchJanitor) Start(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug("Worker: Поиск брошенных временных файлов", zap.Time("started_at", w.now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Уборка временных файлов останавливается")
			return
		}
	}
}

// Check возвращает число удалённых файлов
func (w *ScratchJanitor) Check(ctx context.Context) int {
	start := time.Now()

	entries, err := afero.ReadDir(w.fs, w.dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Worker: Ошибка чтения каталога", zap.String("dir", w.dir), zap.Error(err))
		}
		return 0
	}

	removed := 0
	now := w.now()
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), w.prefix) {
			continue
		}
		if now.Sub(entry.ModTime()) < w.maxAge {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())
		if err := w.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Worker: Не удалось удалить временный файл", zap.String("scratch", path), zap.Error(err))
			continue
		}
		logger.Info("Worker: Удалён брошенный временный файл",
			zap.String("scratch", path),
			zap.Time("modified_at", entry.ModTime()))
		removed++
	}

	logger.Debug(
		"Worker: Завершение уборки",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", len(entries)),
		zap.Int("removed", removed),
	)
	return removed
}
