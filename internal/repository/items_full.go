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

type fullItemStrategy struct {
	db     DBTX
	tracer trace.Tracer
}

func NewFullItemStrategy(db DBTX) ItemStrategy {
	return &fullItemStrategy{
		db:     db,
		tracer: otel.Tracer("items_full"),
	}
}

func (s *fullItemStrategy) Name() string { return TierFull }

func (s *fullItemStrategy) Applicable(caps Capabilities) bool {
	return caps.HasTables("order_items", "products", "materials", "volumes", "colors", "product_photos")
}

func (s *fullItemStrategy) Fetch(ctx context.Context, caps Capabilities, orderID int64) ([]domain.ResolvedLine, error) {
	ctx, span := s.tracer.Start(ctx, "ItemStrategy.Full")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	rows, err := s.db.Query(ctx, fullItemsQuery(caps), orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("full items query: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.ResolvedLine, 0)
	for rows.Next() {
		var (
			line     domain.ResolvedLine
			title    *string
			price    decimal.NullDecimal
			discount decimal.NullDecimal
			photos   []string
		)

		if err := rows.Scan(
			&line.Quantity,
			&price,
			&line.Pos,
			&title,
			&discount,
			&line.MaterialName,
			&line.VolumeLabel,
			&line.ML,
			&line.ColorName,
			&photos,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("full items scan: %w", err)
		}

		line.Title = titleOrPlaceholder(title)
		line.Price = decimalOrZero(price)
		line.Discount = decimalOrZero(discount)
		line.Photos = domain.NormalizePhotos(photos)
		line.MaterialName = domain.NonEmpty(line.MaterialName)
		line.VolumeLabel = domain.NonEmpty(line.VolumeLabel)
		line.ColorName = domain.NonEmpty(line.ColorName)

		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("full items rows: %w", err)
	}

	return lines, nil
}

// fullItemsQuery prefers the line's own volume and color over the product
// defaults. The legacy free-text products.material is used only when the
// column exists.
func fullItemsQuery(caps Capabilities) string {
	material := "mat.name"
	if caps.HasColumn("products", "material") {
		material = "COALESCE(mat.name, p.material::text)"
	}

	return fmt.Sprintf(`
		SELECT
			COALESCE(oi.quantity, 0)::bigint AS quantity,
			oi.unit_price AS price,
			p.pos::text AS pos,
			p.title::text AS title,
			p.discount AS discount,
			%s AS material_name,
			v.volume::text AS volume_label,
			v.ml::bigint AS ml,
			col.color_name::text AS color_name,
			COALESCE(ph.urls, ARRAY[]::text[]) AS photos
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		LEFT JOIN materials mat ON mat.id = p.material_id
		LEFT JOIN volumes v ON v.id = COALESCE(oi.volume_id, p.volume_id)
		LEFT JOIN colors col ON col.id = COALESCE(oi.color_id, p.color_id)
		LEFT JOIN LATERAL (
			SELECT array_agg(pp.url::text ORDER BY pp.id) AS urls
			FROM product_photos pp
			WHERE pp.product_id = p.id AND pp.url IS NOT NULL
		) ph ON TRUE
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, material)
}
