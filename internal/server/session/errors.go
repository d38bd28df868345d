package session

import "errors"

var (
	// ErrEmailInUse возвращается при регистрации на уже занятый email
	ErrEmailInUse = errors.New("email already in use")
	// ErrUserNotFound возвращается при входе с неизвестным email
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword возвращается при неверном пароле
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNoRefreshToken возвращается, когда refresh token не передан
	ErrNoRefreshToken = errors.New("refresh token required")
	// ErrRefreshTokenInvalid возвращается для неизвестного, уже использованного или истекшего refresh token
	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	// ErrInternal оборачивает сбои хранилища и генерации токенов
	ErrInternal = errors.New("internal error")
)

// ValidationError описывает первое нарушенное правило валидации входных данных
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
