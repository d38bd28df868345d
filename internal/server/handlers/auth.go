package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/session"
	"github.com/iudanet/linaform/pkg/api"
)

// RefreshCookieName имя cookie с refresh token
const RefreshCookieName = "refreshToken"

// Сообщения об ошибках, которые видит клиент
const (
	msgInvalidBody     = "Invalid request body"
	msgEmailInUse      = "Email already in use"
	msgUserNotFound    = "User not found"
	msgInvalidPassword = "Invalid password"
	msgNoRefreshToken  = "No refresh token provided"
	msgRefreshRequired = "Refresh token required"
	msgInvalidRefresh  = "Invalid refresh token"
	msgAccessRequired  = "Access token required"
	msgInternalError   = "Internal server error"
	msgRegistered      = "User registered successfully"
	msgLoggedOut       = "Logged out successfully"
)

// SessionService операции над сессиями, которые нужны HTTP слою
type SessionService interface {
	Register(ctx context.Context, email, username, password string) (models.PublicUser, error)
	Login(ctx context.Context, email, password string) (*session.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*session.RefreshResult, error)
	Profile(ctx context.Context, userID string) (*session.Profile, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger   *slog.Logger
	sessions SessionService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, sessions SessionService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		sessions: sessions,
	}
}

// Register обрабатывает POST /api/auth/register
// Регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Register(ctx, req.Email, req.Username, req.Password); err != nil {
		var vErr *session.ValidationError
		switch {
		case errors.As(err, &vErr):
			h.sendError(w, vErr.Message, http.StatusBadRequest)
		case errors.Is(err, session.ErrEmailInUse):
			h.sendError(w, msgEmailInUse, http.StatusBadRequest)
		default:
			h.sendError(w, msgInternalError, http.StatusInternalServerError)
		}
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: msgRegistered}, http.StatusCreated)
}

// Login обрабатывает POST /api/auth/login
// Аутентификация пользователя, refresh token уходит в HttpOnly cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	res, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		var vErr *session.ValidationError
		switch {
		case errors.As(err, &vErr):
			h.sendError(w, vErr.Message, http.StatusBadRequest)
		case errors.Is(err, session.ErrUserNotFound):
			h.sendError(w, msgUserNotFound, http.StatusNotFound)
		case errors.Is(err, session.ErrInvalidPassword):
			h.sendError(w, msgInvalidPassword, http.StatusUnauthorized)
		default:
			h.sendError(w, msgInternalError, http.StatusInternalServerError)
		}
		return
	}

	setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)

	h.sendJSON(w, api.LoginResponse{
		User:        toAPIUser(res.User),
		AccessToken: res.AccessToken,
	}, http.StatusOK)
}

// Logout обрабатывает POST /api/auth/logout
// Удаляет refresh token из cookie и очищает cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := refreshTokenFromCookie(r)
	if token == "" {
		h.sendError(w, msgNoRefreshToken, http.StatusBadRequest)
		return
	}

	if err := h.sessions.Logout(ctx, token); err != nil {
		if errors.Is(err, session.ErrNoRefreshToken) {
			h.sendError(w, msgNoRefreshToken, http.StatusBadRequest)
			return
		}
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	clearRefreshCookie(w)
	h.sendJSON(w, api.MessageResponse{Message: msgLoggedOut}, http.StatusOK)
}

// Refresh обрабатывает POST /api/auth/refresh
// Ротация refresh token и выдача нового access token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := refreshTokenFromCookie(r)
	if token == "" {
		h.sendError(w, msgRefreshRequired, http.StatusUnauthorized)
		return
	}

	res, err := h.sessions.Refresh(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoRefreshToken):
			h.sendError(w, msgRefreshRequired, http.StatusUnauthorized)
		case errors.Is(err, session.ErrRefreshTokenInvalid):
			h.sendError(w, msgInvalidRefresh, http.StatusForbidden)
		default:
			h.sendError(w, msgInternalError, http.StatusInternalServerError)
		}
		return
	}

	setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	h.sendJSON(w, api.RefreshResponse{AccessToken: res.AccessToken}, http.StatusOK)
}

// Me обрабатывает GET /api/auth/me
// Защищенный эндпоинт, ID пользователя кладет в контекст middleware авторизации
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, msgAccessRequired, http.StatusUnauthorized)
		return
	}

	profile, err := h.sessions.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "token subject not found", slog.String("user_id", userID))
			h.sendError(w, msgUserNotFound, http.StatusNotFound)
			return
		}
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.MeResponse{
		User:           toAPIUser(profile.User),
		Authenticated:  profile.State == session.Authenticated,
		ActiveSessions: profile.ActiveSessions,
	}, http.StatusOK)
}

func toAPIUser(u models.PublicUser) api.User {
	return api.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

func refreshTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// sendJSON отправляет JSON ответ
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	SendJSON(h.logger, w, data, statusCode)
}

// sendError отправляет JSON ответ с ошибкой
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	SendError(h.logger, w, message, statusCode)
}
