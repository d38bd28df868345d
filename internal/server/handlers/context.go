package handlers

import "context"

// contextKey тип ключей контекста запроса
type contextKey string

// UserIDKey ключ ID аутентифицированного пользователя в контексте
const UserIDKey contextKey = "user_id"

// WithUserID возвращает контекст с ID пользователя
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
