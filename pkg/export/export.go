// Package export serializes billing line-item batches for hand-off to
// external accounting systems.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/wastemaster/wastemaster/core/model"
)

// WriteJSON writes the batch to w as a JSON array.
func WriteJSON(w io.Writer, items []model.BillingLineItem) error {
	enc := json.NewEncoder(w)
	return enc.Encode(items)
}

// WriteCSV writes the batch to w in CSV format with accounting headers.
func WriteCSV(w io.Writer, items []model.BillingLineItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "occurrence_id", "service_id", "customer_id", "date", "description", "amount", "currency"}); err != nil {
		return err
	}
	for _, it := range items {
		rec := []string{
			it.ID,
			it.OccurrenceID,
			it.ServiceID,
			it.CustomerID,
			it.Date.Format(time.RFC3339),
			it.Description,
			it.Amount.String(),
			it.Currency,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
