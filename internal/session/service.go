package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/storage"
	"github.com/iudanet/dailyuse/internal/token"
	"github.com/iudanet/dailyuse/internal/validation"
)

// Errors returned to callers. Messages are safe to show to the user.
var (
	ErrNoSavedLogin        = errors.New("no saved login")
	ErrSavedLoginInvalid   = errors.New("saved login is no longer valid, please sign in again")
	ErrPasswordMismatch    = errors.New("password does not match the saved login")
	ErrNoActiveSession     = errors.New("no active session")
	ErrAutoLoginNotSet     = errors.New("auto-login is not set")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrInvalidToken        = errors.New("session token is invalid or expired")
	ErrAccountTypeMismatch = errors.New("account type does not match the user")
)

// Cipher обратимо шифрует пароль для "remember me"
type Cipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(encrypted string) (string, error)
}

// Authenticator выполняет полный вход по логину и паролю
type Authenticator interface {
	Login(ctx context.Context, creds account.Credentials) (*models.LoginResult, error)
}

// TokenValidator проверяет подпись и срок действия токена сессии
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// Service управляет сохраненными сессиями: remember me, быстрый вход, auto-login
type Service struct {
	logger *slog.Logger
	store  storage.AccountStore
	cipher Cipher
	auth   Authenticator
	tokens TokenValidator
	now    func() time.Time
}

// NewService создает сервис сессий. tokens может быть nil, тогда VerifyToken всегда отклоняет токен.
func NewService(logger *slog.Logger, store storage.AccountStore, cipher Cipher, auth Authenticator, tokens TokenValidator) *Service {
	return &Service{
		logger: logger,
		store:  store,
		cipher: cipher,
		auth:   auth,
		tokens: tokens,
		now:    time.Now,
	}
}

// Key идентифицирует сессию: на пару (username, accountType) одна запись
type Key struct {
	Username    string             `json:"username"`
	AccountType models.AccountType `json:"accountType"`
}

// normalize проверяет ключ; пустой тип аккаунта считается local
func (k *Key) normalize() error {
	if err := validation.RequireUsername(k.Username); err != nil {
		return err
	}
	if k.AccountType == "" {
		k.AccountType = models.AccountTypeLocal
	}
	return validation.ValidateAccountType(k.AccountType)
}

// SaveRequest описывает сессию после успешного входа.
// Password передается открытым текстом и шифруется только при RememberMe.
type SaveRequest struct {
	Key
	Password   string `json:"password,omitempty"`
	Token      string `json:"token,omitempty"`
	RememberMe bool   `json:"rememberMe"`
	AutoLogin  bool   `json:"autoLogin"`
}

// UpdateRequest частичное обновление сессии. nil поле не меняется.
type UpdateRequest struct {
	Password   *string `json:"password,omitempty"`
	Token      *string `json:"token,omitempty"`
	RememberMe *bool   `json:"rememberMe,omitempty"`
	AutoLogin  *bool   `json:"autoLogin,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
}

// AddSession вставляет новую сессию. Существующая сессия для того же ключа не перезаписывается.
func (s *Service) AddSession(ctx context.Context, req SaveRequest) (*models.CurrentSession, error) {
	session, err := s.buildSession(ctx, &req)
	if err != nil {
		return nil, err
	}

	if err := s.store.AddActiveSession(ctx, session); err != nil {
		if errors.Is(err, storage.ErrSessionAlreadyExists) {
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("failed to add session: %w", err)
	}

	s.logger.InfoContext(ctx, "session added",
		slog.String("username", req.Username),
		slog.String("account_type", string(req.AccountType)),
		slog.Bool("remember_me", req.RememberMe),
	)

	return currentView(session), nil
}

// SaveSession создает или обновляет сессию одной атомарной операцией и делает ее активной
func (s *Service) SaveSession(ctx context.Context, req SaveRequest) (*models.CurrentSession, error) {
	session, err := s.buildSession(ctx, &req)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.InfoContext(ctx, "session saved",
		slog.String("username", req.Username),
		slog.String("account_type", string(req.AccountType)),
		slog.Bool("remember_me", req.RememberMe),
		slog.Bool("auto_login", req.AutoLogin),
	)

	return currentView(session), nil
}

// CreateSession is an alias of SaveSession kept for the "create" operation name.
func (s *Service) CreateSession(ctx context.Context, req SaveRequest) (*models.CurrentSession, error) {
	return s.SaveSession(ctx, req)
}

// UpdateSession применяет частичное обновление к существующей сессии
func (s *Service) UpdateSession(ctx context.Context, key Key, req UpdateRequest) error {
	if err := key.normalize(); err != nil {
		return err
	}

	current, err := s.getSession(ctx, key)
	if err != nil {
		return err
	}

	patch := models.SessionPatch{
		Token:      req.Token,
		RememberMe: req.RememberMe,
		AutoLogin:  req.AutoLogin,
		IsActive:   req.IsActive,
	}

	remember := current.RememberMe
	if req.RememberMe != nil {
		remember = *req.RememberMe
	}

	switch {
	case !remember:
		// Без remember me пароль не хранится
		empty := ""
		patch.Password = &empty
	case req.Password != nil && *req.Password != "":
		encrypted, err := s.cipher.EncryptString(*req.Password)
		if err != nil {
			return fmt.Errorf("failed to encrypt password: %w", err)
		}
		patch.Password = &encrypted
	}

	if err := s.store.UpdateSession(ctx, key.Username, key.AccountType, patch); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// QuickLogin входит по сохраненному паролю.
// Если сохраненный пароль не расшифровывается или больше не подходит,
// сессия инвалидируется и возвращается ErrSavedLoginInvalid.
func (s *Service) QuickLogin(ctx context.Context, key Key) (*models.LoginResult, error) {
	if err := key.normalize(); err != nil {
		return nil, err
	}

	session, err := s.rememberedSession(ctx, key)
	if err != nil {
		return nil, err
	}

	password, err := s.cipher.DecryptString(*session.Password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to decrypt saved password",
			slog.String("username", key.Username),
			slog.Any("error", err),
		)
		return nil, s.invalidate(ctx, key)
	}

	result, err := s.auth.Login(ctx, account.Credentials{Username: key.Username, Password: password})
	if err != nil {
		if isCredentialError(err) {
			s.logger.WarnContext(ctx, "saved password rejected",
				slog.String("username", key.Username),
				slog.Any("error", err),
			)
			return nil, s.invalidate(ctx, key)
		}
		return nil, err
	}
	if result.AccountType != key.AccountType {
		return nil, ErrAccountTypeMismatch
	}

	now := s.now()
	active := true
	patch := models.SessionPatch{
		LastLoginTime: &now,
		IsActive:      &active,
	}
	if result.Token != "" {
		patch.Token = &result.Token
	}

	if err := s.store.UpdateSession(ctx, key.Username, key.AccountType, patch); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	s.logger.InfoContext(ctx, "quick login succeeded", slog.String("username", key.Username))

	return result, nil
}

// ValidateRememberedPassword сравнивает ввод с сохраненным паролем без полного входа
func (s *Service) ValidateRememberedPassword(ctx context.Context, key Key, input string) error {
	if err := key.normalize(); err != nil {
		return err
	}

	session, err := s.rememberedSession(ctx, key)
	if err != nil {
		return err
	}

	password, err := s.cipher.DecryptString(*session.Password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to decrypt saved password",
			slog.String("username", key.Username),
			slog.Any("error", err),
		)
		return s.invalidate(ctx, key)
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(input)) != 1 {
		return ErrPasswordMismatch
	}

	return nil
}

// GetRememberedUsers возвращает аккаунты для экрана выбора, без паролей и токенов
func (s *Service) GetRememberedUsers(ctx context.Context) ([]models.RememberedUser, error) {
	sessions, err := s.store.GetRememberedSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get remembered sessions: %w", err)
	}

	users := make([]models.RememberedUser, 0, len(sessions))
	for _, session := range sessions {
		users = append(users, models.RememberedUser{
			Username:      session.Username,
			AccountType:   session.AccountType,
			LastLoginTime: session.LastLoginTime.UnixMilli(),
			AutoLogin:     session.AutoLogin,
		})
	}
	return users, nil
}

// GetAutoLoginInfo returns the most recent auto-login session
func (s *Service) GetAutoLoginInfo(ctx context.Context) (*models.AutoLoginInfo, error) {
	session, err := s.store.GetAutoLoginSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrAutoLoginNotSet
		}
		return nil, fmt.Errorf("failed to get auto-login session: %w", err)
	}

	return &models.AutoLoginInfo{
		Username:    session.Username,
		AccountType: session.AccountType,
		HasPassword: session.HasPassword(),
	}, nil
}

// GetCurrentSession returns the active session
func (s *Service) GetCurrentSession(ctx context.Context) (*models.CurrentSession, error) {
	session, err := s.store.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return currentView(session), nil
}

// RemoveSession удаляет сохраненный аккаунт из списка
func (s *Service) RemoveSession(ctx context.Context, key Key) error {
	if err := key.normalize(); err != nil {
		return err
	}

	if err := s.store.DeleteSession(ctx, key.Username, key.AccountType); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to remove session: %w", err)
	}

	s.logger.InfoContext(ctx, "session removed", slog.String("username", key.Username))

	return nil
}

// Logout завершает сессию. При keepRemembered сохраненный пароль остается,
// но auto-login всегда снимается. Иначе запись удаляется целиком.
func (s *Service) Logout(ctx context.Context, key Key, keepRemembered bool) error {
	if err := key.normalize(); err != nil {
		return err
	}

	if !keepRemembered {
		return s.RemoveSession(ctx, key)
	}

	inactive := false
	if err := s.store.UpdateSession(ctx, key.Username, key.AccountType, models.SessionPatch{
		IsActive:  &inactive,
		AutoLogin: &inactive,
	}); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to logout: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("username", key.Username))

	return nil
}

// ClearAllSessions удаляет все сессии и возвращает их количество
func (s *Service) ClearAllSessions(ctx context.Context) (int, error) {
	n, err := s.store.ClearAllSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sessions: %w", err)
	}

	s.logger.InfoContext(ctx, "all sessions cleared", slog.Int("count", n))

	return n, nil
}

// GetLoginHistory returns every session newest first, without credentials
func (s *Service) GetLoginHistory(ctx context.Context) ([]models.LoginHistoryEntry, error) {
	sessions, err := s.store.GetAllLoginSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get login history: %w", err)
	}

	history := make([]models.LoginHistoryEntry, 0, len(sessions))
	for _, session := range sessions {
		history = append(history, session.History())
	}
	return history, nil
}

// VerifyToken проверяет токен и то, что он принадлежит активной сессии
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (*models.CurrentSession, error) {
	if s.tokens == nil || tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		s.logger.DebugContext(ctx, "token validation failed", slog.Any("error", err))
		return nil, ErrInvalidToken
	}

	session, err := s.store.GetSession(ctx, claims.Username, claims.AccountType)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	// Токен отозван: сессия завершена или выдан новый
	if !session.IsActive || session.Token == nil ||
		subtle.ConstantTimeCompare([]byte(*session.Token), []byte(tokenString)) != 1 {
		return nil, ErrInvalidToken
	}

	return currentView(session), nil
}

// buildSession проверяет запрос и готовит запись сессии
func (s *Service) buildSession(ctx context.Context, req *SaveRequest) (*models.LoginSession, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	user, err := s.store.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, account.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	// Токен выдается с типом аккаунта пользователя, ключ сессии должен совпадать
	if user.AccountType != req.AccountType {
		return nil, ErrAccountTypeMismatch
	}

	session := &models.LoginSession{
		Username:      req.Username,
		AccountType:   req.AccountType,
		RememberMe:    req.RememberMe,
		AutoLogin:     req.AutoLogin,
		IsActive:      true,
		LastLoginTime: s.now(),
	}

	if req.RememberMe && req.Password != "" {
		encrypted, err := s.cipher.EncryptString(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
		session.Password = &encrypted
	}

	if req.Token != "" {
		session.Token = &req.Token
	}

	return session, nil
}

func (s *Service) getSession(ctx context.Context, key Key) (*models.LoginSession, error) {
	session, err := s.store.GetSession(ctx, key.Username, key.AccountType)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// rememberedSession возвращает сессию с сохраненным паролем или ErrNoSavedLogin
func (s *Service) rememberedSession(ctx context.Context, key Key) (*models.LoginSession, error) {
	session, err := s.getSession(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrNoSavedLogin
		}
		return nil, err
	}

	if !session.RememberMe || !session.HasPassword() {
		return nil, ErrNoSavedLogin
	}

	return session, nil
}

// invalidate забывает сохраненный пароль, чтобы не повторять заведомо неудачный вход
func (s *Service) invalidate(ctx context.Context, key Key) error {
	off := false
	empty := ""
	if err := s.store.UpdateSession(ctx, key.Username, key.AccountType, models.SessionPatch{
		RememberMe: &off,
		Password:   &empty,
		IsActive:   &off,
		AutoLogin:  &off,
	}); err != nil {
		return fmt.Errorf("failed to invalidate saved login: %w", err)
	}

	s.logger.InfoContext(ctx, "saved login invalidated", slog.String("username", key.Username))

	return ErrSavedLoginInvalid
}

// isCredentialError отличает отказ во входе от сбоя хранилища
func isCredentialError(err error) bool {
	var verr *validation.Error
	return errors.Is(err, account.ErrWrongPassword) ||
		errors.Is(err, account.ErrUserNotFound) ||
		errors.As(err, &verr)
}

func currentView(session *models.LoginSession) *models.CurrentSession {
	return &models.CurrentSession{
		Username:      session.Username,
		AccountType:   session.AccountType,
		LastLoginTime: session.LastLoginTime.UnixMilli(),
		RememberMe:    session.RememberMe,
		AutoLogin:     session.AutoLogin,
	}
}
