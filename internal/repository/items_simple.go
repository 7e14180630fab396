package repository

import (
	"context"
	"fmt"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type simpleItemStrategy struct {
	db     DBTX
	tracer trace.Tracer
}

// NewSimpleItemStrategy reads lines joined with products only. Photos are
// empty and catalog attributes stay nil.
func NewSimpleItemStrategy(db DBTX) ItemStrategy {
	return &simpleItemStrategy{
		db:     db,
		tracer: otel.Tracer("items_simple"),
	}
}

func (s *simpleItemStrategy) Name() string { return TierSimple }

func (s *simpleItemStrategy) Applicable(caps Capabilities) bool {
	return caps.HasTables("order_items", "products")
}

func (s *simpleItemStrategy) Fetch(ctx context.Context, _ Capabilities, orderID int64) ([]domain.ResolvedLine, error) {
	ctx, span := s.tracer.Start(ctx, "ItemStrategy.Simple")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	query := `
		SELECT
			COALESCE(oi.quantity, 0)::bigint AS quantity,
			oi.unit_price AS price,
			p.pos::text AS pos,
			p.title::text AS title,
			p.discount AS discount
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("simple items query: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.ResolvedLine, 0)
	for rows.Next() {
		var (
			line     domain.ResolvedLine
			title    *string
			price    decimal.NullDecimal
			discount decimal.NullDecimal
		)

		if err := rows.Scan(&line.Quantity, &price, &line.Pos, &title, &discount); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("simple items scan: %w", err)
		}

		line.Title = titleOrPlaceholder(title)
		line.Price = decimalOrZero(price)
		line.Discount = decimalOrZero(discount)
		line.Photos = []string{}

		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("simple items rows: %w", err)
	}

	return lines, nil
}
