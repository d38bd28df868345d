package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/linaform/pkg/api"
)

// maxBodyBytes ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// decodeJSON читает тело запроса в dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// SendJSON отправляет JSON ответ
func SendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError отправляет JSON ответ с ошибкой
func SendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	SendJSON(logger, w, api.ErrorResponse{Error: message}, statusCode)
}
