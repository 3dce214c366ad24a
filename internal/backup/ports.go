// Package backup mirrors subscription records to an external spreadsheet.
package backup

import (
	"context"

	"subtrackr/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordWriter mirrors one subscription row keyed by its ID.
	RecordWriter interface {
		Upsert(ctx context.Context, s core.Subscription) error
		Remove(ctx context.Context, id string) error
	}
)
