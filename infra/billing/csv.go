package billing

import (
	"context"
	"fmt"
	"os"

	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/pkg/export"
)

// CSVRenderer writes line-item batches as a CSV document.
type CSVRenderer struct {
	path string
}

// NewCSVRenderer creates a renderer writing to the given file.
func NewCSVRenderer(path string) (*CSVRenderer, error) {
	if path == "" {
		return nil, fmt.Errorf("billing: renderer path is required")
	}
	return &CSVRenderer{path: path}, nil
}

// Render writes the batch, replacing any previous document.
func (r *CSVRenderer) Render(ctx context.Context, batch []model.BillingLineItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteCSV(f, batch)
}
