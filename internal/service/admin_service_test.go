package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

// mockAdminStore реализует AdminStore для тестов.
type mockAdminStore struct {
	admins []models.Admin
}

func (m *mockAdminStore) Create(ctx context.Context, admin *models.Admin) error {
	for _, a := range m.admins {
		if a.Username == admin.Username {
			return apperror.ErrUsernameTaken
		}
	}
	admin.ID = uuid.New()
	admin.CreatedAt = time.Now()
	m.admins = append(m.admins, *admin)
	return nil
}

func (m *mockAdminStore) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	for _, a := range m.admins {
		if a.Username == username {
			cp := a
			return &cp, nil
		}
	}
	return nil, apperror.ErrAdminNotFound
}

func (m *mockAdminStore) List(ctx context.Context) ([]models.Admin, error) {
	return m.admins, nil
}

func (m *mockAdminStore) Count(ctx context.Context) (int, error) {
	return len(m.admins), nil
}

func TestAdminService_CreateLoginOverview(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	svc := NewAdminService(&mockAdminStore{}, tm, "")
	ctx := context.Background()

	admin, err := svc.Create(ctx, "root", "rootpass", "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, admin.ID)

	_, err = svc.Create(ctx, "root", "rootpass", "")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Admin username already exists", appErr.Message)
	assert.True(t, apperror.IsConflict(err))

	res, err := svc.Login(ctx, "root", "rootpass")
	require.NoError(t, err)
	identity, err := tm.Parse(res.Token)
	require.NoError(t, err)
	assert.True(t, identity.IsAdmin())

	_, err = svc.Login(ctx, "root", "nope")
	assert.ErrorIs(t, err, errInvalidAdminCredentials)

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, overview.Count)
	assert.Len(t, overview.Admins, 1)
}

func TestAdminService_Create_RequiresSignupKey(t *testing.T) {
	svc := NewAdminService(&mockAdminStore{}, NewTokenManager("test-secret", time.Hour), "let-me-in")
	ctx := context.Background()

	_, err := svc.Create(ctx, "root", "rootpass", "wrong")
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.Create(ctx, "root", "rootpass", "let-me-in")
	assert.NoError(t, err)
}

func TestAdminService_Overview_EmptyList(t *testing.T) {
	svc := NewAdminService(&mockAdminStore{}, NewTokenManager("test-secret", time.Hour), "")

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, overview.Count)
	assert.NotNil(t, overview.Admins)
}
