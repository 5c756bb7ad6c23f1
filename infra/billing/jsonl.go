// Package billing provides document renderer implementations for the
// billing feed.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wastemaster/wastemaster/core/model"
)

// JSONLRenderer writes line-item batches as one JSON object per line.
type JSONLRenderer struct {
	path string
}

// NewJSONLRenderer creates a renderer appending to the given file.
func NewJSONLRenderer(path string) (*JSONLRenderer, error) {
	if path == "" {
		return nil, fmt.Errorf("billing: renderer path is required")
	}
	return &JSONLRenderer{path: path}, nil
}

// Render appends the batch to the output file.
func (r *JSONLRenderer) Render(ctx context.Context, batch []model.BillingLineItem) error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
