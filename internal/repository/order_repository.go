package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, q DBTX, order *domain.Order) error
	InsertLine(ctx context.Context, q DBTX, line *domain.OrderLine) error
	ListHeaders(ctx context.Context, userID int64, caps Capabilities) ([]domain.OrderHeader, error)
	GetHeader(ctx context.Context, userID, orderID int64, caps Capabilities) (*domain.OrderHeader, error)
}

type orderRepo struct {
	db     DBTX
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(db DBTX, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

func (r *orderRepo) CreateOrder(ctx context.Context, q DBTX, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int("lines_count", len(order.Lines)),
	)

	query := `
		INSERT INTO orders (user_id, customer_name, customer_phone, customer_messenger, city, branch, comment, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	c := order.Customer
	if err := q.QueryRow(
		ctx,
		query,
		order.UserID,
		c.Name,
		c.Phone,
		c.Messenger,
		c.City,
		c.Branch,
		c.Comment,
		order.Total,
	).Scan(&order.ID); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Int64("user_id", order.UserID),
			zap.Error(err),
		)

		return err
	}

	return nil
}

func (r *orderRepo) InsertLine(ctx context.Context, q DBTX, line *domain.OrderLine) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.InsertLine")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", line.OrderID))

	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, color_id, volume_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if err := q.QueryRow(
		ctx,
		query,
		line.OrderID,
		line.ProductID,
		line.Quantity,
		line.UnitPrice,
		line.ColorID,
		line.VolumeID,
	).Scan(&line.ID); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (r *orderRepo) ListHeaders(ctx context.Context, userID int64, caps Capabilities) ([]domain.OrderHeader, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListHeaders")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	rows, err := r.db.Query(ctx, headerQuery(caps, false), userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query order headers",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	headers := make([]domain.OrderHeader, 0)
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		headers = append(headers, h)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(headers)))

	return headers, nil
}

func (r *orderRepo) GetHeader(ctx context.Context, userID, orderID int64, caps Capabilities) (*domain.OrderHeader, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetHeader")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("order_id", orderID),
	)

	h, err := scanHeader(r.db.QueryRow(ctx, headerQuery(caps, true), userID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return &h, nil
}

func scanHeader(row pgx.Row) (domain.OrderHeader, error) {
	var h domain.OrderHeader
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Total,
		&h.CreatedAt,
		&h.City,
		&h.Branch,
		&h.Comment,
	)

	return h, err
}

// headerQuery builds the order header projection. Optional columns that do
// not exist are replaced by constants so the query never references them.
func headerQuery(caps Capabilities, single bool) string {
	optional := func(column, castTo, fallback string) string {
		if caps.HasColumn("orders", column) {
			return fmt.Sprintf("%s::%s AS %s", column, castTo, column)
		}
		return fmt.Sprintf("%s::%s AS %s", fallback, castTo, column)
	}

	total := "0::numeric AS total"
	if caps.HasColumn("orders", "total") {
		total = "COALESCE(total, 0)::numeric AS total"
	}

	cols := []string{
		"id",
		"user_id",
		total,
		optional("created_at", "timestamptz", "NULL"),
		optional("city", "text", "NULL"),
		optional("branch", "text", "NULL"),
		optional("comment", "text", "NULL"),
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM orders WHERE user_id = $1")

	if single {
		b.WriteString(" AND id = $2")
		return b.String()
	}

	if caps.HasColumn("orders", "created_at") {
		b.WriteString(" ORDER BY created_at DESC NULLS LAST, id DESC")
	} else {
		b.WriteString(" ORDER BY id DESC")
	}

	return b.String()
}
