// Package api описывает тела запросов и ответов HTTP API авторизации
package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User публичные данные пользователя
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse представляет ответ на успешный вход
// Refresh token передается только в HttpOnly cookie
type LoginResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"` // JWT access token
}

// RefreshResponse представляет ответ с новым access token
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// MeResponse представляет ответ защищенного эндпоинта текущего пользователя
type MeResponse struct {
	User           User `json:"user"`
	Authenticated  bool `json:"authenticated"`
	ActiveSessions int  `json:"activeSessions"`
}

// MessageResponse представляет ответ с текстовым сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error      string `json:"error"`                // описание ошибки
	RetryAfter int64  `json:"retryAfter,omitempty"` // секунды до снятия ограничения
}
