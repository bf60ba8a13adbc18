package handlers

import (
	"context"

	"github.com/iudanet/dailyuse/internal/models"
)

type contextKey string

// SessionKey - ключ контекста для сессии, подтвержденной токеном
const SessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying the authenticated session
func WithSession(ctx context.Context, session *models.CurrentSession) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// SessionFromContext извлекает сессию из контекста
func SessionFromContext(ctx context.Context) (*models.CurrentSession, bool) {
	session, ok := ctx.Value(SessionKey).(*models.CurrentSession)
	return session, ok && session != nil
}
