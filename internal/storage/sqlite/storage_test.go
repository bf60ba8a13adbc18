package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/dailyuse/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage, username string) {
	t.Helper()

	err := s.AddUser(ctx, &models.User{
		Username:    username,
		Password:    "$2a$10$hash",
		AccountType: models.AccountTypeLocal,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
}

func TestNew_FileDatabaseUsesWAL(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dailyuse.db")

	s, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var mode string
	require.NoError(t, s.DB().QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, s.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dailyuse.db")

	s, err := New(ctx, dbPath)
	require.NoError(t, err)
	createTestUser(t, ctx, s, "alice")
	require.NoError(t, s.Close())

	// Повторные миграции не должны ломать существующую БД
	s, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exists, err := s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpener_ConcurrentFirstAccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dailyuse.db")
	opener := NewOpener(dbPath)
	defer func() { _ = opener.Close() }()

	const callers = 8
	results := make([]*Storage, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = opener.Get(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		// Все получают один и тот же экземпляр
		assert.Same(t, results[0], results[i])
	}
}

func TestOpener_CancelledWaitDoesNotBreakInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dailyuse.db")
	opener := NewOpener(dbPath)
	defer func() { _ = opener.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Первый вызов уже с отмененным контекстом: ждать он не будет,
	// но инициализация продолжится для остальных
	_, _ = opener.Get(ctx)

	s, err := opener.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestOpener_GetAfterCloseWithoutInit(t *testing.T) {
	opener := NewOpener(filepath.Join(t.TempDir(), "never.db"))
	require.NoError(t, opener.Close())

	s, err := opener.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, s)
}
