package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("panic becomes JSON 500", func(t *testing.T) {
		var buf bytes.Buffer
		handler := RecoveryMiddleware(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		w := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "Internal server error", errorMessage(t, w.Body))
		assert.Contains(t, buf.String(), "panic recovered")
		assert.Contains(t, buf.String(), "stack=")
	})

	t.Run("normal request passes through", func(t *testing.T) {
		var buf bytes.Buffer
		handler := RecoveryMiddleware(newBufferLogger(&buf))(okHandler())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, buf.String())
	})

	t.Run("ErrAbortHandler is propagated", func(t *testing.T) {
		handler := RecoveryMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
