// Package passes exposes recorded scheduling passes over HTTP.
package passes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wastemaster/wastemaster/core/dispatch/logging"
)

// NewLogHandler returns an HTTP handler exposing pass records via GET /api/passes.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := logging.LogQuery{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.ServiceID = r.URL.Query().Get("service_id")
		q.VehicleID = r.URL.Query().Get("vehicle_id")
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
