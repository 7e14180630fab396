package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type snapshotItemStrategy struct {
	db     DBTX
	logger *zap.Logger
	tracer trace.Tracer
}

// NewSnapshotItemStrategy reads the legacy orders.items_json column.
func NewSnapshotItemStrategy(db DBTX, logger *zap.Logger) ItemStrategy {
	return &snapshotItemStrategy{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("items_snapshot"),
	}
}

func (s *snapshotItemStrategy) Name() string { return TierSnapshot }

// Applicable only when line storage is gone; stored lines are never
// replaced by a snapshot.
func (s *snapshotItemStrategy) Applicable(caps Capabilities) bool {
	return !caps.HasTable("order_items") && caps.HasColumn("orders", "items_json")
}

func (s *snapshotItemStrategy) Fetch(ctx context.Context, _ Capabilities, orderID int64) ([]domain.ResolvedLine, error) {
	ctx, span := s.tracer.Start(ctx, "ItemStrategy.Snapshot")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	var raw *string
	err := s.db.QueryRow(ctx, `SELECT items_json::text FROM orders WHERE id = $1`, orderID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.ResolvedLine{}, nil
		}

		span.RecordError(err)
		return nil, fmt.Errorf("snapshot query: %w", err)
	}

	if raw == nil {
		return []domain.ResolvedLine{}, nil
	}

	lines, err := ParseItemsSnapshot([]byte(*raw))
	if err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Unparseable items snapshot",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return []domain.ResolvedLine{}, nil
	}

	return lines, nil
}

// ParseItemsSnapshot reads a JSON array of line objects, accepting the
// alternate field names older clients wrote. Anything other than an array
// yields an empty list. Non-object elements are skipped.
func ParseItemsSnapshot(raw []byte) ([]domain.ResolvedLine, error) {
	lines := make([]domain.ResolvedLine, 0)

	if len(bytes.TrimSpace(raw)) == 0 {
		return lines, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return lines, fmt.Errorf("decode items snapshot: %w", err)
	}

	items, ok := parsed.([]any)
	if !ok {
		return lines, nil
	}

	for _, el := range items {
		item, ok := el.(map[string]any)
		if !ok {
			continue
		}

		lines = append(lines, snapshotLine(item))
	}

	return lines, nil
}

func snapshotLine(item map[string]any) domain.ResolvedLine {
	pos := ""
	if v, ok := firstTruthy(item, "pos", "sku", "code"); ok {
		pos = stringify(v)
	}

	title := domain.PlaceholderTitle
	if v, ok := firstTruthy(item, "title", "name"); ok {
		title = stringify(v)
	}

	var photos []string
	if list, ok := item["photos"].([]any); ok {
		for _, p := range list {
			if truthy(p) {
				photos = append(photos, stringify(p))
			}
		}
	} else if v, ok := firstTruthy(item, "photo"); ok {
		photos = []string{stringify(v)}
	}

	quantity := int64(1)
	if v, ok := firstTruthy(item, "quantity", "qty"); ok {
		quantity = toDecimal(v).IntPart()
	}

	price := decimal.Zero
	if v, ok := firstTruthy(item, "price", "unit_price"); ok {
		price = toDecimal(v)
	}

	discount := decimal.Zero
	if v, ok := firstTruthy(item, "discount"); ok {
		discount = toDecimal(v)
	}

	line := domain.ResolvedLine{
		Pos:      &pos,
		Title:    title,
		Photos:   domain.NormalizePhotos(photos),
		Quantity: quantity,
		Price:    price,
		Discount: discount,
	}

	if v, ok := firstTruthy(item, "material_name", "material"); ok {
		line.MaterialName = strPtr(stringify(v))
	}

	mlRaw, hasML := firstTruthy(item, "ml")
	if hasML {
		if ml := toDecimal(mlRaw); !ml.IsZero() {
			n := ml.IntPart()
			line.ML = &n
		}
	}

	if v, ok := firstTruthy(item, "volume_label", "volume"); ok {
		line.VolumeLabel = strPtr(stringify(v))
	} else if hasML {
		line.VolumeLabel = strPtr(stringify(mlRaw) + " мл")
	}

	if v, ok := firstTruthy(item, "color_name", "color"); ok {
		line.ColorName = strPtr(stringify(v))
	}

	return line
}

// firstTruthy returns the first value under keys that is set and not
// empty, zero or false.
func firstTruthy(item map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := item[k]; ok && truthy(v) {
			return v, true
		}
	}

	return nil, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// toDecimal coerces numbers and numeric strings. Anything else is zero.
func toDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
			return d
		}
	case bool:
		if t {
			return decimal.NewFromInt(1)
		}
	}

	return decimal.Zero
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
