package models

import "time"

// LoginSession представляет сохраненную сессию входа.
// На пару (Username, AccountType) существует не более одной записи.
type LoginSession struct {
	LastLoginTime time.Time   `json:"lastLoginTime"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Password      *string     `json:"-"` // зашифрованный пароль, только при RememberMe
	Token         *string     `json:"-"` // токен сессии
	Username      string      `json:"username"`
	AccountType   AccountType `json:"accountType"`
	ID            int64       `json:"id"`
	RememberMe    bool        `json:"rememberMe"`
	AutoLogin     bool        `json:"autoLogin"`
	IsActive      bool        `json:"isActive"`
}

// HasPassword reports whether a non-empty ciphertext is cached
func (s *LoginSession) HasPassword() bool {
	return s.Password != nil && *s.Password != ""
}

// SessionPatch описывает частичное обновление сессии.
// ID, Username, AccountType и CreatedAt не изменяемы и в patch не входят.
// Пустая строка в Password/Token очищает поле (NULL).
type SessionPatch struct {
	LastLoginTime *time.Time
	Password      *string
	Token         *string
	RememberMe    *bool
	AutoLogin     *bool
	IsActive      *bool
}

// RememberedUser is one entry of the login-screen account picker.
type RememberedUser struct {
	Username      string      `json:"username"`
	AccountType   AccountType `json:"accountType"`
	LastLoginTime int64       `json:"lastLoginTime"`
	AutoLogin     bool        `json:"autoLogin"`
}

// AutoLoginInfo describes the session selected for unattended sign-in.
type AutoLoginInfo struct {
	Username    string      `json:"username"`
	AccountType AccountType `json:"accountType"`
	HasPassword bool        `json:"hasPassword"`
}

// CurrentSession describes the signed-in session.
type CurrentSession struct {
	Username      string      `json:"username"`
	AccountType   AccountType `json:"accountType"`
	LastLoginTime int64       `json:"lastLoginTime"`
	RememberMe    bool        `json:"rememberMe"`
	AutoLogin     bool        `json:"autoLogin"`
}

// LoginHistoryEntry is a session row without credentials.
type LoginHistoryEntry struct {
	Username      string      `json:"username"`
	AccountType   AccountType `json:"accountType"`
	ID            int64       `json:"id"`
	LastLoginTime int64       `json:"lastLoginTime"`
	CreatedAt     int64       `json:"createdAt"`
	UpdatedAt     int64       `json:"updatedAt"`
	RememberMe    bool        `json:"rememberMe"`
	AutoLogin     bool        `json:"autoLogin"`
	IsActive      bool        `json:"isActive"`
}

// History strips credentials from the session
func (s *LoginSession) History() LoginHistoryEntry {
	return LoginHistoryEntry{
		ID:            s.ID,
		Username:      s.Username,
		AccountType:   s.AccountType,
		RememberMe:    s.RememberMe,
		AutoLogin:     s.AutoLogin,
		IsActive:      s.IsActive,
		LastLoginTime: s.LastLoginTime.UnixMilli(),
		CreatedAt:     s.CreatedAt.UnixMilli(),
		UpdatedAt:     s.UpdatedAt.UnixMilli(),
	}
}
