package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/dailyuse/internal/crypto"
	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/storage"
	"github.com/iudanet/dailyuse/internal/validation"
)

// Errors returned to callers. Messages are safe to show to the user.
var (
	ErrUserNotFound      = errors.New("user does not exist")
	ErrUserAlreadyExists = errors.New("username already exists")
	ErrWrongPassword     = errors.New("incorrect password")
	ErrAlreadyOnline     = errors.New("account is already an online account")
)

// PasswordHasher хеширует и проверяет пароли пользователей
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns crypto.ErrPasswordMismatch when password does not match
	Compare(hash, password string) error
}

// TokenIssuer выпускает токен сессии после успешного входа
type TokenIssuer interface {
	Issue(username string, accountType models.AccountType) (string, error)
}

// Service реализует операции над пользователями: регистрация, вход, профиль
type Service struct {
	logger *slog.Logger
	users  storage.UserStorage
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time
}

// NewService создает новый сервис пользователей
func NewService(logger *slog.Logger, users storage.UserStorage, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{
		logger: logger,
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
	}
}

// RegisterForm содержит данные формы регистрации
type RegisterForm struct {
	Avatar          *string `json:"avatar,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Username        string  `json:"username"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
}

// Credentials логин и пароль, введенные пользователем
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProfileUpdate содержит редактируемые поля профиля
type ProfileUpdate struct {
	Avatar *string `json:"avatar,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
}

// Register регистрирует нового локального пользователя
func (s *Service) Register(ctx context.Context, form RegisterForm) (*models.UserView, error) {
	// Валидация входных данных
	if err := validation.ValidateUsername(form.Username); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(form.Password); err != nil {
		return nil, err
	}
	if err := validation.ValidatePasswordConfirmation(form.Password, form.ConfirmPassword); err != nil {
		return nil, err
	}

	exists, err := s.users.UserExists(ctx, form.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		s.logger.WarnContext(ctx, "username already taken", slog.String("username", form.Username))
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:    form.Username,
		Password:    hash,
		Avatar:      form.Avatar,
		Email:       form.Email,
		Phone:       form.Phone,
		AccountType: models.AccountTypeLocal,
		CreatedAt:   s.now(),
	}

	if err := s.users.AddUser(ctx, user); err != nil {
		// Проверка выше не атомарна: уникальность гарантирует PRIMARY KEY
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered successfully", slog.String("username", user.Username))

	return user.View(), nil
}

// Login проверяет пароль и возвращает данные пользователя без хеша
func (s *Service) Login(ctx context.Context, creds Credentials) (*models.LoginResult, error) {
	user, err := s.authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}

	result := &models.LoginResult{UserView: *user.View()}

	if s.tokens != nil {
		token, err := s.tokens.Issue(user.Username, user.AccountType)
		if err != nil {
			return nil, fmt.Errorf("failed to issue session token: %w", err)
		}
		result.Token = token
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("username", user.Username))

	return result, nil
}

// VerifyPassword повторно проверяет пароль без выдачи токена
func (s *Service) VerifyPassword(ctx context.Context, creds Credentials) error {
	_, err := s.authenticate(ctx, creds.Username, creds.Password)
	return err
}

// GetUserInfo возвращает профиль пользователя
func (s *Service) GetUserInfo(ctx context.Context, username string) (*models.UserView, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.View(), nil
}

// GetAllUsers возвращает всех пользователей без хешей паролей
func (s *Service) GetAllUsers(ctx context.Context) ([]*models.UserView, error) {
	users, err := s.users.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	views := make([]*models.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, user.View())
	}
	return views, nil
}

// UpdateUserInfo обновляет редактируемые поля профиля
func (s *Service) UpdateUserInfo(ctx context.Context, username string, update ProfileUpdate) (*models.UserView, error) {
	if _, err := s.findUser(ctx, username); err != nil {
		return nil, err
	}

	patch := models.UserPatch{
		Avatar: update.Avatar,
		Email:  update.Email,
		Phone:  update.Phone,
	}

	if err := s.updateUser(ctx, username, patch); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user profile updated", slog.String("username", username))

	return s.GetUserInfo(ctx, username)
}

// DeleteUser удаляет пользователя вместе с его сессиями
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.findUser(ctx, username); err != nil {
		return err
	}

	if err := s.users.RemoveUser(ctx, username); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("username", username))

	return nil
}

// UpgradeToOnlineAccount привязывает локальный аккаунт к онлайн профилю
func (s *Service) UpgradeToOnlineAccount(ctx context.Context, username, onlineID string) (*models.UserView, error) {
	if onlineID == "" {
		return nil, &validation.Error{Field: "onlineId", Message: "online id cannot be empty"}
	}

	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.AccountType == models.AccountTypeOnline {
		return nil, ErrAlreadyOnline
	}

	online := models.AccountTypeOnline
	if err := s.updateUser(ctx, username, models.UserPatch{
		AccountType: &online,
		OnlineID:    &onlineID,
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user upgraded to online account", slog.String("username", username))

	return s.GetUserInfo(ctx, username)
}

// ChangePassword проверяет старый пароль и сохраняет хеш нового
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	if _, err := s.authenticate(ctx, username, oldPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.updateUser(ctx, username, models.UserPatch{Password: &hash}); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user password changed", slog.String("username", username))

	return nil
}

// authenticate находит пользователя и сверяет пароль с хешем
func (s *Service) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if err := validation.RequireUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &validation.Error{Field: "password", Message: "password cannot be empty"}
	}

	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.Password, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.WarnContext(ctx, "wrong password", slog.String("username", username))
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	return user, nil
}

func (s *Service) findUser(ctx context.Context, username string) (*models.User, error) {
	if err := validation.RequireUsername(username); err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (s *Service) updateUser(ctx context.Context, username string, patch models.UserPatch) error {
	if err := s.users.UpdateUser(ctx, username, patch); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
