package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jandrishti/jandrishti-backend/internal/logger"
	"github.com/jandrishti/jandrishti-backend/internal/storage"
)

// MediaLister перечисляет файлы хранилища и удаляет их.
type MediaLister interface {
	List(ctx context.Context) ([]storage.StoredFile, error)
	Delete(ctx context.Context, ref string) error
}

// ReferenceSource возвращает все ссылки на медиа, которые есть в обращениях.
type ReferenceSource interface {
	ListMediaPaths(ctx context.Context) ([]string, error)
}

// OrphanObserver получает число удалённых файлов.
type OrphanObserver interface {
	AddOrphansRemoved(n int)
}

// MediaJanitorJob удаляет файлы, на которые не ссылается ни одно обращение.
// Файлы моложе grace не трогаются: их может ещё записывать текущий запрос.
type MediaJanitorJob struct {
	files    MediaLister
	refs     ReferenceSource
	observer OrphanObserver
	grace    time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewMediaJanitorJob создаёт задачу очистки.
func NewMediaJanitorJob(files MediaLister, refs ReferenceSource, observer OrphanObserver, grace time.Duration) *MediaJanitorJob {
	return &MediaJanitorJob{
		files:    files,
		refs:     refs,
		observer: observer,
		grace:    grace,
		timeout:  5 * time.Minute,
		now:      time.Now,
	}
}

// Run реализует cron.Job.
func (j *MediaJanitorJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.Sweep(ctx)
	if err != nil {
		logger.L().WithError(err).Error("media janitor: очистка не выполнена")
		return
	}
	logger.L().WithField("removed", removed).Info("media janitor: очистка завершена")
}

// Sweep выполняет один проход и возвращает число удалённых файлов.
func (j *MediaJanitorJob) Sweep(ctx context.Context) (int, error) {
	// Сначала файлы, потом ссылки: файл, сохранённый между двумя чтениями, моложе grace.
	files, err := j.files.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("media janitor: list files %w", err)
	}

	paths, err := j.refs.ListMediaPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("media janitor: list refs %w", err)
	}

	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	cutoff := j.now().Add(-j.grace)
	removed := 0
	for _, f := range files {
		if _, ok := referenced[f.Ref]; ok || f.ModTime.After(cutoff) {
			continue
		}
		if err := j.files.Delete(ctx, f.Ref); err != nil {
			logger.L().WithFields(logrus.Fields{"ref": f.Ref}).WithError(err).Warn("media janitor: не удалось удалить файл")
			continue
		}
		removed++
	}

	if j.observer != nil {
		j.observer.AddOrphansRemoved(removed)
	}
	return removed, nil
}

// Schedule регистрирует задачу в планировщике.
func Schedule(c *cron.Cron, spec string, j cron.Job) error {
	if _, err := c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(j)); err != nil {
		return fmt.Errorf("job: некорректное расписание %q: %w", spec, err)
	}
	return nil
}
