package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/arar-storefront/internal/payment"
	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// upstreamStatus maps store and provider failures that reach a handler.
func upstreamStatus(err error) int {
	var ge *payment.GatewayError
	switch {
	case errors.As(err, &ge) && ge.NotFound():
		return http.StatusNotFound
	case errors.Is(err, payment.ErrUnavailable), errors.Is(err, postgres.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
