package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/kvstore"
	"github.com/iudanet/dailyuse/internal/session"
)

// Имена операций
const (
	OpUserRegister        = "user:register"
	OpUserLogin           = "user:login"
	OpUserGetInfo         = "user:getUserInfo"
	OpUserUpdateInfo      = "user:updateUserInfo"
	OpUserDelete          = "user:deleteUser"
	OpUserUpgradeToOnline = "user:upgradeToOnlineAccount"
	OpUserGetAll          = "user:getAllUsers"
	OpUserVerifyPassword  = "user:verifyPassword"
	OpUserChangePassword  = "user:changePassword"

	OpSessionSave               = "session:save"
	OpSessionQuickLogin         = "session:quickLogin"
	OpSessionCreate             = "session:create"
	OpSessionUpdate             = "session:update"
	OpSessionGetRememberedUsers = "session:getRememberedUsers"
	OpSessionValidatePassword   = "session:validatePassword"
	OpSessionGetAutoLoginInfo   = "session:getAutoLoginInfo"
	OpSessionGetCurrent         = "session:getCurrentSession"
	OpSessionRemove             = "session:remove"
	OpSessionLogout             = "session:logout"
	OpSessionClearAll           = "session:clearAll"
	OpSessionGetLoginHistory    = "session:getLoginHistory"
	OpSessionVerifyToken        = "session:verifyToken"

	OpStoreGet    = "store:get"
	OpStoreSet    = "store:set"
	OpStoreDelete = "store:delete"
	OpStoreKeys   = "store:keys"
	OpStoreImport = "store:import"
	OpStoreExport = "store:export"
)

// CredentialOps are the operations that check a password and are rate limited
var CredentialOps = []string{
	OpUserLogin,
	OpUserVerifyPassword,
	OpSessionQuickLogin,
	OpSessionValidatePassword,
}

// decode разбирает аргументы; пустые аргументы дают нулевое значение
func decode[T any](args json.RawMessage) (T, error) {
	var v T
	if len(args) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(args, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return v, nil
}

// handle связывает типизированный обработчик с JSON аргументами
func handle[T any](fn func(ctx context.Context, args T) (any, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		args, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
}

type usernameArgs struct {
	Username string `json:"username"`
}

type none struct{}

// RegisterUserOps регистрирует операции user:*
func RegisterUserOps(d *Dispatcher, users *account.Service) {
	d.Register(OpUserRegister, "registration successful",
		handle(func(ctx context.Context, form account.RegisterForm) (any, error) {
			return users.Register(ctx, form)
		}))

	d.Register(OpUserLogin, "login successful",
		handle(func(ctx context.Context, creds account.Credentials) (any, error) {
			return users.Login(ctx, creds)
		}))

	d.Register(OpUserGetInfo, "ok",
		handle(func(ctx context.Context, args usernameArgs) (any, error) {
			return users.GetUserInfo(ctx, args.Username)
		}))

	d.Register(OpUserUpdateInfo, "profile updated",
		handle(func(ctx context.Context, args struct {
			Username string `json:"username"`
			account.ProfileUpdate
		}) (any, error) {
			return users.UpdateUserInfo(ctx, args.Username, args.ProfileUpdate)
		}))

	d.Register(OpUserDelete, "user deleted",
		handle(func(ctx context.Context, args usernameArgs) (any, error) {
			return nil, users.DeleteUser(ctx, args.Username)
		}))

	d.Register(OpUserUpgradeToOnline, "account upgraded",
		handle(func(ctx context.Context, args struct {
			Username string `json:"username"`
			OnlineID string `json:"onlineId"`
		}) (any, error) {
			return users.UpgradeToOnlineAccount(ctx, args.Username, args.OnlineID)
		}))

	d.Register(OpUserGetAll, "ok",
		handle(func(ctx context.Context, _ none) (any, error) {
			return users.GetAllUsers(ctx)
		}))

	d.Register(OpUserVerifyPassword, "password verified",
		handle(func(ctx context.Context, creds account.Credentials) (any, error) {
			return nil, users.VerifyPassword(ctx, creds)
		}))

	d.Register(OpUserChangePassword, "password changed",
		handle(func(ctx context.Context, args struct {
			Username    string `json:"username"`
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}) (any, error) {
			return nil, users.ChangePassword(ctx, args.Username, args.OldPassword, args.NewPassword)
		}))
}

// RegisterSessionOps регистрирует операции session:*
func RegisterSessionOps(d *Dispatcher, sessions *session.Service) {
	d.Register(OpSessionSave, "session saved",
		handle(func(ctx context.Context, req session.SaveRequest) (any, error) {
			return sessions.SaveSession(ctx, req)
		}))

	d.Register(OpSessionCreate, "session saved",
		handle(func(ctx context.Context, req session.SaveRequest) (any, error) {
			return sessions.CreateSession(ctx, req)
		}))

	d.Register(OpSessionQuickLogin, "login successful",
		handle(func(ctx context.Context, key session.Key) (any, error) {
			return sessions.QuickLogin(ctx, key)
		}))

	d.Register(OpSessionUpdate, "session updated",
		handle(func(ctx context.Context, args struct {
			session.Key
			session.UpdateRequest
		}) (any, error) {
			return nil, sessions.UpdateSession(ctx, args.Key, args.UpdateRequest)
		}))

	d.Register(OpSessionGetRememberedUsers, "ok",
		handle(func(ctx context.Context, _ none) (any, error) {
			return sessions.GetRememberedUsers(ctx)
		}))

	d.Register(OpSessionValidatePassword, "password verified",
		handle(func(ctx context.Context, args struct {
			session.Key
			Password string `json:"password"`
		}) (any, error) {
			return nil, sessions.ValidateRememberedPassword(ctx, args.Key, args.Password)
		}))

	d.Register(OpSessionGetAutoLoginInfo, "ok",
		handle(func(ctx context.Context, _ none) (any, error) {
			return sessions.GetAutoLoginInfo(ctx)
		}))

	d.Register(OpSessionGetCurrent, "ok",
		handle(func(ctx context.Context, _ none) (any, error) {
			return sessions.GetCurrentSession(ctx)
		}))

	d.Register(OpSessionRemove, "session removed",
		handle(func(ctx context.Context, key session.Key) (any, error) {
			return nil, sessions.RemoveSession(ctx, key)
		}))

	d.Register(OpSessionLogout, "logged out",
		handle(func(ctx context.Context, args struct {
			KeepRemembered *bool `json:"keepRemembered,omitempty"`
			session.Key
		}) (any, error) {
			// По умолчанию remember me сохраняется
			keep := args.KeepRemembered == nil || *args.KeepRemembered
			return nil, sessions.Logout(ctx, args.Key, keep)
		}))

	d.Register(OpSessionClearAll, "all sessions cleared",
		handle(func(ctx context.Context, _ none) (any, error) {
			n, err := sessions.ClearAllSessions(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]int{"count": n}, nil
		}))

	d.Register(OpSessionGetLoginHistory, "ok",
		handle(func(ctx context.Context, _ none) (any, error) {
			return sessions.GetLoginHistory(ctx)
		}))

	d.Register(OpSessionVerifyToken, "token is valid",
		handle(func(ctx context.Context, args struct {
			Token string `json:"token"`
		}) (any, error) {
			return sessions.VerifyToken(ctx, args.Token)
		}))
}

type storeArgs struct {
	Namespace string          `json:"namespace,omitempty"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// RegisterStoreOps регистрирует операции store:*
func RegisterStoreOps(d *Dispatcher, store *kvstore.Store) {
	d.Register(OpStoreGet, "ok",
		handle(func(ctx context.Context, args storeArgs) (any, error) {
			return store.Get(ctx, args.Namespace, args.Key)
		}))

	d.Register(OpStoreSet, "saved",
		handle(func(ctx context.Context, args storeArgs) (any, error) {
			return nil, store.Set(ctx, args.Namespace, args.Key, args.Value)
		}))

	d.Register(OpStoreDelete, "deleted",
		handle(func(ctx context.Context, args storeArgs) (any, error) {
			return nil, store.Delete(ctx, args.Namespace, args.Key)
		}))

	d.Register(OpStoreKeys, "ok",
		handle(func(ctx context.Context, args storeArgs) (any, error) {
			return store.Keys(ctx, args.Namespace)
		}))

	d.Register(OpStoreImport, "imported",
		handle(func(ctx context.Context, args struct {
			Namespace string                     `json:"namespace,omitempty"`
			Values    map[string]json.RawMessage `json:"values"`
		}) (any, error) {
			return nil, store.Import(ctx, args.Namespace, args.Values)
		}))

	d.Register(OpStoreExport, "ok",
		handle(func(ctx context.Context, args storeArgs) (any, error) {
			return store.Export(ctx, args.Namespace)
		}))
}
