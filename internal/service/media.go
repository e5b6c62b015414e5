package service

import (
	"context"

	"github.com/jandrishti/jandrishti-backend/internal/goroutine"
	"github.com/jandrishti/jandrishti-backend/internal/logger"
)

// BlobStore удаляет сохранённые медиафайлы по ссылке вида /uploads/<имя>.
type BlobStore interface {
	Delete(ctx context.Context, ref string) error
}

// ReconcileMedia вычисляет итоговый список медиа после редактирования.
//
// keep ограничивается путями, которые действительно хранятся в обращении:
// клиент не может «присвоить» чужой файл. Порядок keep сохраняется, дубли отбрасываются.
// final = keep ++ uploaded, toDelete = current − keep.
func ReconcileMedia(current, keep, uploaded []string) (final, toDelete []string) {
	stored := make(map[string]struct{}, len(current))
	for _, p := range current {
		stored[p] = struct{}{}
	}

	kept := make(map[string]struct{}, len(keep))
	final = make([]string, 0, len(keep)+len(uploaded))
	for _, p := range keep {
		if _, ok := stored[p]; !ok {
			continue
		}
		if _, dup := kept[p]; dup {
			continue
		}
		kept[p] = struct{}{}
		final = append(final, p)
	}
	final = append(final, uploaded...)

	toDelete = make([]string, 0)
	seen := make(map[string]struct{}, len(current))
	for _, p := range current {
		if _, ok := kept[p]; ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		toDelete = append(toDelete, p)
	}
	return final, toDelete
}

// scheduleBlobDeletion удаляет файлы в фоне. Ошибки только логируются.
func scheduleBlobDeletion(ctx context.Context, blobs BlobStore, refs []string) {
	if blobs == nil || len(refs) == 0 {
		return
	}
	refs = append([]string(nil), refs...)

	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		for _, ref := range refs {
			if err := blobs.Delete(ctx, ref); err != nil {
				logger.L().WithError(err).WithField("media", ref).Warn("media: не удалось удалить файл")
			}
		}
	})
}
