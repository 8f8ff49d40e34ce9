package sheets

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// ExportReport holds one analysis run's results for export.
type ExportReport struct {
	GeneratedAt   time.Time
	UserID        string
	Subscriptions []model.RecurringCandidate
	Insights      []model.Insight
}

// Exporter is the contract for pushing an analysis run to an external
// spreadsheet.
type Exporter interface {
	Export(ctx context.Context, report ExportReport) error
}

// Ensure Writer implements Exporter.
var _ Exporter = (*Writer)(nil)
