// Package leaderboard exposes the monthly ranking via
// GET /api/leaderboard?month=&year=.
package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/ledger"
)

// NewHandler returns an HTTP handler computing the leaderboard projection.
// Requests must include "Bearer <token>" in Authorization when token is
// non-empty. Month and year default to the current UTC month.
func NewHandler(store ledger.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		now := time.Now().UTC()
		month := now.Month()
		year := now.Year()
		if v := r.URL.Query().Get("month"); v != "" {
			m, err := strconv.Atoi(v)
			if err != nil || m < 1 || m > 12 {
				http.Error(w, "invalid month", http.StatusBadRequest)
				return
			}
			month = time.Month(m)
		}
		if v := r.URL.Query().Get("year"); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid year", http.StatusBadRequest)
				return
			}
			year = y
		}
		rows, err := ledger.Leaderboard(r.Context(), store, month, year)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
