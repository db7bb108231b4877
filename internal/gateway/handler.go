package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
)

// AdminTokenHeader carries the shared operator token.
const AdminTokenHeader = "x-admin-token"

// Handler serves POST bodies of the form {sql, maxRows}. Requests without
// the matching admin token are refused with 401.
func (g *Gateway) Handler(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		var req Request
		// A missing or malformed body reads as an empty query.
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)

		resp, err := g.Query(r.Context(), req)
		if err != nil {
			var rej *RejectedError
			if errors.As(err, &rej) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": rej.Reason})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
