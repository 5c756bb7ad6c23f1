// Package schedule exposes upcoming occurrences over HTTP.
package schedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/core/store"
)

// NewHandler returns an HTTP handler exposing the schedule via
// GET /api/schedule. A service_id query parameter narrows the response to
// one service's open occurrences; otherwise all open occurrences are
// returned, grouped by status.
func NewHandler(st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		from := time.Time{}
		if s := r.URL.Query().Get("from"); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				http.Error(w, "invalid from date", http.StatusBadRequest)
				return
			}
			from = t
		}

		var (
			occs []model.Occurrence
			err  error
		)
		if id := r.URL.Query().Get("service_id"); id != "" {
			occs, err = st.ListOpenOccurrencesByService(r.Context(), id, from)
		} else {
			occs, err = st.ListOccurrencesByStatus(r.Context(), model.StatusPlanned, model.StatusScheduled, model.StatusInProgress)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(occs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
