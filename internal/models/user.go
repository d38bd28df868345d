package models

import "time"

// User представляет зарегистрированного пользователя
type User struct {
	CreatedAt    time.Time `json:"created_at"`    // время регистрации
	ID           string    `json:"id"`            // UUID пользователя
	Email        string    `json:"email"`         // уникальный email в нижнем регистре
	Username     string    `json:"username"`      // отображаемое имя
	PasswordHash string    `json:"password_hash"` // bcrypt хеш пароля
}

// Public возвращает профиль пользователя без хеша пароля
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

// PublicUser публичный профиль, который можно отдавать клиенту
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RefreshToken представляет сессию пользователя
// Значение токена одновременно первичный ключ и bearer credential
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время выдачи
	Token     string    `json:"token"`      // непрозрачное случайное значение
	UserID    string    `json:"user_id"`    // владелец токена
}

// Expired сообщает, истек ли токен к моменту now
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
