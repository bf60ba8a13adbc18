package ipc

import (
	"errors"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/kvstore"
	"github.com/iudanet/dailyuse/internal/session"
	"github.com/iudanet/dailyuse/internal/validation"
)

// knownErrors сообщения этих ошибок безопасно показывать пользователю
var knownErrors = []error{
	ErrUnknownOperation,
	ErrInvalidArgs,
	ErrRateLimited,

	account.ErrUserNotFound,
	account.ErrUserAlreadyExists,
	account.ErrWrongPassword,
	account.ErrAlreadyOnline,

	session.ErrNoSavedLogin,
	session.ErrSavedLoginInvalid,
	session.ErrPasswordMismatch,
	session.ErrNoActiveSession,
	session.ErrAutoLoginNotSet,
	session.ErrSessionNotFound,
	session.ErrSessionExists,
	session.ErrInvalidToken,
	session.ErrAccountTypeMismatch,

	kvstore.ErrKeyNotFound,
	kvstore.ErrInvalidKey,
	kvstore.ErrInvalidValue,
	kvstore.ErrReservedNamespace,
}

// DomainMessage maps err to a user-facing message. The second result is false
// for unexpected errors, which are reported as ServerErrorMessage.
func DomainMessage(err error) (string, bool) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Message, true
	}

	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error(), true
		}
	}

	return ServerErrorMessage, false
}
