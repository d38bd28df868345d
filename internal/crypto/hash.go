package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost стоимость bcrypt по умолчанию (2^10 раундов)
const DefaultCost = 10

// ErrEmptyPassword возвращается при попытке захешировать пустой пароль
var ErrEmptyPassword = errors.New("password cannot be empty")

// Hasher хеширует пароли через bcrypt
// Каждый вызов Hash использует новую соль, поэтому два хеша одного пароля различаются
type Hasher struct {
	cost int
}

// NewHasher создает Hasher с заданной стоимостью
// cost вне диапазона bcrypt.MinCost..bcrypt.MaxCost считается ошибкой конфигурации
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash возвращает bcrypt хеш пароля
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify сравнивает пароль с сохраненным хешем
// Битый или пустой хеш дает false, а не ошибку
func (h *Hasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
