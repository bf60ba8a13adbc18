package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/storage"
)

func TestUserStorage_AddUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tests := []struct {
		wantError error
		user      *models.User
		name      string
	}{
		{
			name: "add local user",
			user: &models.User{
				Username:    "testuser1",
				Password:    "hash123",
				AccountType: models.AccountTypeLocal,
				CreatedAt:   time.Now(),
			},
		},
		{
			name: "add user with optional fields",
			user: &models.User{
				Username:    "testuser2",
				Password:    "hash456",
				Email:       strPtr("user2@example.com"),
				Phone:       strPtr("+100000"),
				Avatar:      strPtr("/avatars/2.png"),
				AccountType: models.AccountTypeLocal,
				CreatedAt:   time.Now(),
			},
		},
		{
			name: "account type defaults to local",
			user: &models.User{
				Username: "testuser3",
				Password: "hash789",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddUser(ctx, tt.user)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			// Verify user was created
			retrieved, err := s.FindUserByUsername(ctx, tt.user.Username)
			require.NoError(t, err)
			assert.Equal(t, tt.user.Username, retrieved.Username)
			assert.Equal(t, tt.user.Password, retrieved.Password)
			assert.Equal(t, tt.user.Email, retrieved.Email)
			assert.Equal(t, tt.user.Phone, retrieved.Phone)
			assert.Equal(t, tt.user.Avatar, retrieved.Avatar)
			assert.Equal(t, models.AccountTypeLocal, retrieved.AccountType)
			assert.False(t, retrieved.CreatedAt.IsZero())
		})
	}
}

func TestUserStorage_AddUser_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "duplicate")

	err := s.AddUser(ctx, &models.User{Username: "duplicate", Password: "hash2"})
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserStorage_FindUserByUsername(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "findme")

	tests := []struct {
		wantError error
		name      string
		username  string
	}{
		{
			name:     "get existing user",
			username: "findme",
		},
		{
			name:      "get non-existent user",
			username:  "notfound",
			wantError: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieved, err := s.FindUserByUsername(ctx, tt.username)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, retrieved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, retrieved.Username)
			assert.Nil(t, retrieved.Email)
		})
	}
}

func TestUserStorage_GetAllUsers(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	base := time.Now()
	for i, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, s.AddUser(ctx, &models.User{
			Username:  name,
			Password:  "hash",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	users, err = s.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "carol", users[0].Username)
	assert.Equal(t, "alice", users[1].Username)
	assert.Equal(t, "bob", users[2].Username)
}

func TestUserStorage_UpdateUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "alice")

	t.Run("empty patch is a no-op", func(t *testing.T) {
		require.NoError(t, s.UpdateUser(ctx, "alice", models.UserPatch{}))
		// Для пустого patch существование не проверяется
		require.NoError(t, s.UpdateUser(ctx, "nobody", models.UserPatch{}))
	})

	t.Run("update only supplied fields", func(t *testing.T) {
		require.NoError(t, s.UpdateUser(ctx, "alice", models.UserPatch{
			Email: strPtr("alice@example.com"),
		}))

		user, err := s.FindUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, user.Email)
		assert.Equal(t, "alice@example.com", *user.Email)
		assert.Equal(t, "$2a$10$hash", user.Password)
		assert.Nil(t, user.Phone)
	})

	t.Run("upgrade to online", func(t *testing.T) {
		online := models.AccountTypeOnline
		require.NoError(t, s.UpdateUser(ctx, "alice", models.UserPatch{
			AccountType: &online,
			OnlineID:    strPtr("online-42"),
		}))

		user, err := s.FindUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, models.AccountTypeOnline, user.AccountType)
		require.NotNil(t, user.OnlineID)
		assert.Equal(t, "online-42", *user.OnlineID)
	})

	t.Run("empty string clears optional field", func(t *testing.T) {
		require.NoError(t, s.UpdateUser(ctx, "alice", models.UserPatch{Email: strPtr("")}))

		user, err := s.FindUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, user.Email)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := s.UpdateUser(ctx, "nobody", models.UserPatch{Email: strPtr("x@example.com")})
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func TestUserStorage_RemoveUser_CascadesSessions(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "alice")
	require.NoError(t, s.AddLoginSession(ctx, &models.LoginSession{
		Username:    "alice",
		AccountType: models.AccountTypeLocal,
		IsActive:    true,
	}))

	require.NoError(t, s.RemoveUser(ctx, "alice"))

	exists, err := s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.GetSession(ctx, "alice", models.AccountTypeLocal)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	err = s.RemoveUser(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_UserExists(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	exists, err := s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	createTestUser(t, ctx, s, "alice")

	exists, err = s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserStorage_UpdateUser_AccountTypeMovesSessions(t *testing.T) {
	ctx := context.Background()
	online := models.AccountTypeOnline

	t.Run("local session is re-keyed", func(t *testing.T) {
		s, cleanup := setupTestStorage(t)
		defer cleanup()

		createTestUser(t, ctx, s, "alice")
		createTestUser(t, ctx, s, "bob")
		require.NoError(t, s.AddLoginSession(ctx, &models.LoginSession{
			Username:    "alice",
			AccountType: models.AccountTypeLocal,
			Password:    strPtr("iv:cipher"),
			Token:       strPtr("local-token"),
			RememberMe:  true,
			IsActive:    true,
		}))
		require.NoError(t, s.AddLoginSession(ctx, &models.LoginSession{
			Username:    "bob",
			AccountType: models.AccountTypeLocal,
		}))

		require.NoError(t, s.UpdateUser(ctx, "alice", models.UserPatch{AccountType: &online}))

		_, err := s.GetSession(ctx, "alice", models.AccountTypeLocal)
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)

		moved, err := s.GetSession(ctx, "alice", models.AccountTypeOnline)
		require.NoError(t, err)
		assert.True(t, moved.RememberMe)
		assert.True(t, moved.IsActive)
		require.NotNil(t, moved.Password)
		assert.Equal(t, "iv:cipher", *moved.Password)
		assert.Nil(t, moved.Token)

		// Сессии других пользователей не трогаются
		_, err = s.GetSession(ctx, "bob", models.AccountTypeLocal)
		assert.NoError(t, err)
	})

	t.Run("existing online session wins", func(t *testing.T) {
		s, cleanup := setupTestStorage(t)
		defer cleanup()

		createTestUser(t, ctx, s, "alice")
		require.NoError(t, s.AddLoginSession(ctx, &models.LoginSession{
			Username:    "alice",
			AccountType: models.AccountTypeLocal,
			Token:       strPtr("local-token"),
		}))
		require.NoError(t, s.AddLoginSession(ctx, &models.LoginSession{
			Username:    "alice",
			AccountType: models.AccountTypeOnline,
			Password:    strPtr("iv:online"),
			RememberMe:  true,
		}))

		require.NoError(t, s.UpdateUser(ctx, "alice", models.UserPatch{AccountType: &online}))

		all, err := s.GetAllLoginSessions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, models.AccountTypeOnline, all[0].AccountType)
		require.NotNil(t, all[0].Password)
		assert.Equal(t, "iv:online", *all[0].Password)
	})

	t.Run("unknown user leaves sessions alone", func(t *testing.T) {
		s, cleanup := setupTestStorage(t)
		defer cleanup()

		err := s.UpdateUser(ctx, "nobody", models.UserPatch{AccountType: &online})
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func strPtr(s string) *string {
	return &s
}
