package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name    string
		cost    int
		wantErr bool
	}{
		{name: "default cost", cost: DefaultCost},
		{name: "min cost", cost: bcrypt.MinCost},
		{name: "too low", cost: bcrypt.MinCost - 1, wantErr: true},
		{name: "too high", cost: bcrypt.MaxCost + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.cost)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"), "должен быть bcrypt хеш")

	assert.True(t, h.Verify("secret1", hash))
	assert.False(t, h.Verify("secret2", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHasher_FreshSaltPerCall(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	// Одинаковый вход дает разные хеши, но оба проходят проверку
	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("same-password", first))
	assert.True(t, h.Verify("same-password", second))
}

func TestHasher_UsesConfiguredCost(t *testing.T) {
	h, err := NewHasher(DefaultCost)
	require.NoError(t, err)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, cost)
}

func TestHasher_EmptyPassword(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	assert.Empty(t, hash)
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	for _, malformed := range []string{"", "not-a-hash", "$2a$04$short", "$2a$99$" + strings.Repeat("x", 53)} {
		assert.False(t, h.Verify("secret1", malformed), "malformed hash %q", malformed)
	}
}
