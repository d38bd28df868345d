package validation

import (
	"fmt"
	"regexp"
)

// EmailPattern определяет допустимый формат email
// Локальная часть без пробелов и @, домен минимум с одной точкой
var EmailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+'\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 6
	// MaxPasswordBytes предел bcrypt, более длинные пароли он не принимает
	MaxPasswordBytes = 72
	// MaxEmailLen ограничение длины email (RFC 5321)
	MaxEmailLen = 254
)

// ValidateUsername проверяет длину username
func ValidateUsername(username string) error {
	if len([]rune(username)) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters", MinUsernameLen)
	}
	return nil
}

// ValidateEmail проверяет формат email
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLen || !EmailPattern.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword проверяет минимальную длину пароля
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}
	return nil
}

// ValidateRegistration проверяет поля регистрации в порядке username, email, password
// и возвращает первое нарушенное правило
func ValidateRegistration(email, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// ValidateLogin проверяет поля входа в порядке email, password
func ValidateLogin(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}
