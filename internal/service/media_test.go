package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconcileMedia(t *testing.T) {
	tests := []struct {
		name         string
		current      []string
		keep         []string
		uploaded     []string
		wantFinal    []string
		wantToDelete []string
	}{
		{
			name:         "всё сохранить и добавить новые",
			current:      []string{"/uploads/a", "/uploads/b"},
			keep:         []string{"/uploads/a", "/uploads/b"},
			uploaded:     []string{"/uploads/c"},
			wantFinal:    []string{"/uploads/a", "/uploads/b", "/uploads/c"},
			wantToDelete: []string{},
		},
		{
			name:         "пустой keep удаляет всё",
			current:      []string{"/uploads/a", "/uploads/b"},
			keep:         []string{},
			uploaded:     []string{"/uploads/n1", "/uploads/n2"},
			wantFinal:    []string{"/uploads/n1", "/uploads/n2"},
			wantToDelete: []string{"/uploads/a", "/uploads/b"},
		},
		{
			name:         "порядок keep сохраняется",
			current:      []string{"/uploads/a", "/uploads/b", "/uploads/c"},
			keep:         []string{"/uploads/c", "/uploads/a"},
			wantFinal:    []string{"/uploads/c", "/uploads/a"},
			wantToDelete: []string{"/uploads/b"},
		},
		{
			name:         "чужие пути в keep игнорируются",
			current:      []string{"/uploads/a"},
			keep:         []string{"/uploads/a", "/uploads/someone-else.jpg"},
			wantFinal:    []string{"/uploads/a"},
			wantToDelete: []string{},
		},
		{
			name:         "дубли в keep схлопываются",
			current:      []string{"/uploads/a", "/uploads/b"},
			keep:         []string{"/uploads/a", "/uploads/a"},
			wantFinal:    []string{"/uploads/a"},
			wantToDelete: []string{"/uploads/b"},
		},
		{
			name:         "пустое обращение",
			wantFinal:    []string{},
			wantToDelete: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, toDelete := ReconcileMedia(tt.current, tt.keep, tt.uploaded)
			assert.Equal(t, tt.wantFinal, final)
			assert.Equal(t, tt.wantToDelete, toDelete)
		})
	}
}

type failingBlobStore struct {
	mu    sync.Mutex
	calls []string
}

func (f *failingBlobStore) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("permission denied")
}

func TestScheduleBlobDeletion_ContinuesAfterFailureAndOutlivesRequest(t *testing.T) {
	blobs := &failingBlobStore{}
	ctx, cancel := context.WithCancel(context.Background())
	refs := []string{"/uploads/a", "/uploads/b"}

	scheduleBlobDeletion(ctx, blobs, refs)
	cancel()
	refs[0] = "/uploads/mutated"

	assert.Eventually(t, func() bool {
		blobs.mu.Lock()
		defer blobs.mu.Unlock()
		return len(blobs.calls) == 2
	}, time.Second, 10*time.Millisecond)

	blobs.mu.Lock()
	defer blobs.mu.Unlock()
	assert.Equal(t, []string{"/uploads/a", "/uploads/b"}, blobs.calls)
}
