package http

import (
	"encoding/json"
	"net/http"

	"github.com/feirasmart/marketplace/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFromError переводит классы доменных ошибок в HTTP-статусы.
func statusFromError(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsForbidden(err):
		return http.StatusForbidden
	case domain.IsInvalidInput(err):
		return http.StatusBadRequest
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
