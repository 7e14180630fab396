package service

import (
	"context"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	"github.com/sakashimaa/banobox-orders/pkg/metrics"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ItemAssembler returns the resolved lines of one order. It never fails:
// anything it cannot read comes back as an empty, non-nil list.
type ItemAssembler interface {
	Items(ctx context.Context, caps repository.Capabilities, orderID int64) []domain.ResolvedLine
}

type itemAssembler struct {
	strategies []repository.ItemStrategy
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewItemAssembler(strategies []repository.ItemStrategy, m *metrics.Metrics, logger *zap.Logger) ItemAssembler {
	return &itemAssembler{
		strategies: strategies,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("item_assembler"),
	}
}

func (a *itemAssembler) Items(ctx context.Context, caps repository.Capabilities, orderID int64) []domain.ResolvedLine {
	ctx, span := a.tracer.Start(ctx, "ItemAssembler.Items")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	for _, strategy := range a.strategies {
		tier := strategy.Name()

		if !strategy.Applicable(caps) {
			a.metrics.ItemTier(tier, metrics.OutcomeSkipped)
			continue
		}

		lines, err := strategy.Fetch(ctx, caps, orderID)
		if err == nil {
			if lines == nil {
				lines = []domain.ResolvedLine{}
			}

			outcome := metrics.OutcomeHit
			if len(lines) == 0 {
				outcome = metrics.OutcomeEmpty
			}
			a.metrics.ItemTier(tier, outcome)
			span.SetAttributes(attribute.String("tier", tier), attribute.Int("lines", len(lines)))

			return lines
		}

		if repository.IsSchemaMiss(err) {
			a.metrics.ItemTier(tier, metrics.OutcomeSchemaMiss)
			mylogger.Warn(
				ctx,
				a.logger,
				"Item tier hit a missing table or column, trying next tier",
				zap.String("tier", tier),
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)

			continue
		}

		a.metrics.ItemTier(tier, metrics.OutcomeError)
		span.RecordError(err)
		mylogger.Error(
			ctx,
			a.logger,
			"Item tier failed, returning no items",
			zap.String("tier", tier),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return []domain.ResolvedLine{}
	}

	mylogger.Warn(
		ctx,
		a.logger,
		"No item tier applicable, returning no items",
		zap.Int64("order_id", orderID),
	)

	return []domain.ResolvedLine{}
}
