package models

import "time"

// AccountType различает локальные и онлайн аккаунты
type AccountType string

const (
	// AccountTypeLocal аккаунт, существующий только на этом устройстве
	AccountTypeLocal AccountType = "local"
	// AccountTypeOnline аккаунт, привязанный к онлайн профилю
	AccountTypeOnline AccountType = "online"
)

// Valid reports whether t is one of the known account types
func (t AccountType) Valid() bool {
	return t == AccountTypeLocal || t == AccountTypeOnline
}

// User представляет пользователя в системе
type User struct {
	CreatedAt   time.Time   `json:"createdAt"`          // время создания
	Avatar      *string     `json:"avatar,omitempty"`   // путь или URL аватара
	Email       *string     `json:"email,omitempty"`    // email
	Phone       *string     `json:"phone,omitempty"`    // телефон
	OnlineID    *string     `json:"onlineId,omitempty"` // ID онлайн аккаунта после апгрейда
	Username    string      `json:"username"`           // уникальный username, не меняется
	Password    string      `json:"-"`                  // bcrypt хеш пароля
	AccountType AccountType `json:"accountType"`        // local | online
}

// UserPatch описывает частичное обновление пользователя.
// nil поле означает "не менять". Username здесь нет намеренно: он не редактируется.
type UserPatch struct {
	Password    *string
	Avatar      *string
	Email       *string
	Phone       *string
	AccountType *AccountType
	OnlineID    *string
}

// IsEmpty reports whether the patch carries no changes
func (p UserPatch) IsEmpty() bool {
	return p.Password == nil && p.Avatar == nil && p.Email == nil &&
		p.Phone == nil && p.AccountType == nil && p.OnlineID == nil
}

// UserView is the sanitized user representation handed to callers.
type UserView struct {
	Avatar      *string     `json:"avatar,omitempty"`
	Email       *string     `json:"email,omitempty"`
	Phone       *string     `json:"phone,omitempty"`
	OnlineID    *string     `json:"onlineId,omitempty"`
	Username    string      `json:"username"`
	AccountType AccountType `json:"accountType"`
	CreatedAt   int64       `json:"createdAt"`
}

// View strips the password hash
func (u *User) View() *UserView {
	return &UserView{
		Username:    u.Username,
		Avatar:      u.Avatar,
		Email:       u.Email,
		Phone:       u.Phone,
		AccountType: u.AccountType,
		OnlineID:    u.OnlineID,
		CreatedAt:   u.CreatedAt.UnixMilli(),
	}
}

// LoginResult returned after successful authentication
type LoginResult struct {
	UserView
	Token string `json:"token,omitempty"`
}
