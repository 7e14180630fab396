package repository

import (
	"context"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ItemStrategy is one way of reading the lines of an order. Applicable is
// decided from Capabilities before any line query runs. A Fetch error that
// IsSchemaMiss means the schema moved under the probe.
type ItemStrategy interface {
	Name() string
	Applicable(caps Capabilities) bool
	Fetch(ctx context.Context, caps Capabilities, orderID int64) ([]domain.ResolvedLine, error)
}

const (
	TierFull     = "full"
	TierSimple   = "simple"
	TierSnapshot = "snapshot"
)

// ItemStrategies returns the strategies in priority order.
func ItemStrategies(db DBTX, logger *zap.Logger) []ItemStrategy {
	return []ItemStrategy{
		NewFullItemStrategy(db),
		NewSimpleItemStrategy(db),
		NewSnapshotItemStrategy(db, logger),
	}
}

func decimalOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}

	return d.Decimal
}

func titleOrPlaceholder(title *string) string {
	if title == nil || *title == "" {
		return domain.PlaceholderTitle
	}

	return *title
}
