package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	generalDomain "github.com/sakashimaa/banobox-orders/pkg/domain"
	"github.com/sakashimaa/banobox-orders/pkg/metrics"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/banobox-orders/pkg/outbox/domain"
	"github.com/sakashimaa/banobox-orders/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CheckoutService interface {
	PlaceOrder(ctx context.Context, order *domain.Order) (int64, error)
}

type CheckoutOptions struct {
	// Atomic writes header and lines in one transaction. Otherwise the
	// header commits first and lines are inserted concurrently, best effort.
	Atomic bool
	// PublishEvents stores an OrderPlaced outbox row with every order.
	// Enable only when an outbox relay is running.
	PublishEvents bool
	Topic         string
	LineTimeout   time.Duration
	// Invalidator drops cached items of an order once its background line
	// writes are done.
	Invalidator ItemsInvalidator
}

type checkoutService struct {
	pool       repository.DB
	orderRepo  repository.OrderRepository
	catalog    repository.CatalogRepository
	resolver   AttributeResolver
	outboxRepo worker.OutboxRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger
	opts       CheckoutOptions
	tracer     trace.Tracer
}

func NewCheckoutService(
	pool repository.DB,
	orderRepo repository.OrderRepository,
	catalog repository.CatalogRepository,
	resolver AttributeResolver,
	outboxRepo worker.OutboxRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts CheckoutOptions,
) CheckoutService {
	if opts.Topic == "" {
		opts.Topic = generalDomain.DefaultOrderTopic
	}
	if opts.LineTimeout <= 0 {
		opts.LineTimeout = 5 * time.Second
	}

	return &checkoutService{
		pool:       pool,
		orderRepo:  orderRepo,
		catalog:    catalog,
		resolver:   resolver,
		outboxRepo: outboxRepo,
		metrics:    m,
		logger:     logger,
		opts:       opts,
		tracer:     otel.Tracer("checkout_service"),
	}
}

func (s *checkoutService) PlaceOrder(ctx context.Context, order *domain.Order) (int64, error) {
	if len(order.Lines) == 0 {
		return 0, ErrEmptyCart
	}

	ctx, span := s.tracer.Start(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int("lines_count", len(order.Lines)),
		attribute.Bool("atomic", s.opts.Atomic),
	)

	order.CalculateTotal()

	// Lookups run on the pool: a failed query inside the transaction would
	// abort every statement after it.
	var lines []*domain.OrderLine
	if s.opts.Atomic {
		lines = make([]*domain.OrderLine, 0, len(order.Lines))
		for _, line := range order.Lines {
			lines = append(lines, s.resolveLine(ctx, s.pool, line))
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, storageError("begin checkout", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(shutdownCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				shutdownCtx,
				s.logger,
				"Error rolling back checkout transaction",
				zap.Error(err),
			)
		}
	}()

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		span.RecordError(err)
		return 0, storageError("create order", err)
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))

	if s.opts.PublishEvents {
		if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
			span.RecordError(err)
			return 0, storageError("save order event", err)
		}
	}

	if s.opts.Atomic {
		for i, line := range lines {
			line.OrderID = order.ID

			if err := s.orderRepo.InsertLine(ctx, tx, line); err != nil {
				s.metrics.CheckoutLine("failed")
				span.RecordError(err)

				mylogger.Error(
					ctx,
					s.logger,
					"Order line insert failed, rolling back order",
					zap.Int64("order_id", order.ID),
					zap.String("pos", order.Lines[i].Pos),
					zap.Error(err),
				)

				return 0, storageError("insert order line", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			span.RecordError(err)
			return 0, storageError("commit order", err)
		}

		for range order.Lines {
			s.metrics.CheckoutLine("inserted")
		}

		return order.ID, nil
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return 0, storageError("commit order", err)
	}

	s.writeLinesConcurrently(ctx, order)

	if s.opts.Invalidator != nil {
		s.opts.Invalidator.Invalidate(context.WithoutCancel(ctx), order.ID)
	}

	return order.ID, nil
}

// writeLinesConcurrently inserts every line on the pool and waits for all
// attempts. Failures are logged and counted, siblings are not affected.
func (s *checkoutService) writeLinesConcurrently(ctx context.Context, order *domain.Order) {
	// Lines outlive the request context once the header is committed.
	lineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LineTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, line := range order.Lines {
		wg.Add(1)

		go func(line domain.CartLine) {
			defer wg.Done()

			row := s.resolveLine(lineCtx, s.pool, line)
			row.OrderID = order.ID

			if err := s.orderRepo.InsertLine(lineCtx, s.pool, row); err != nil {
				s.metrics.CheckoutLine("failed")

				mylogger.Error(
					lineCtx,
					s.logger,
					"Order line insert failed",
					zap.Int64("order_id", order.ID),
					zap.String("pos", line.Pos),
					zap.Error(err),
				)

				return
			}

			s.metrics.CheckoutLine("inserted")
		}(line)
	}

	wg.Wait()
}

// resolveLine maps a cart line to a stored line. Lookup failures leave the
// matching reference empty.
func (s *checkoutService) resolveLine(ctx context.Context, q repository.DBTX, line domain.CartLine) *domain.OrderLine {
	productID, err := s.catalog.ProductIDByPos(ctx, q, line.Pos)
	if err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Product lookup failed, storing line without product",
			zap.String("pos", line.Pos),
			zap.Error(err),
		)

		productID = nil
	}

	return &domain.OrderLine{
		ProductID: productID,
		Quantity:  line.Quantity,
		UnitPrice: line.Price,
		ColorID:   s.resolver.ResolveColor(ctx, q, line),
		VolumeID:  s.resolver.ResolveVolume(ctx, q, line),
	}
}

func (s *checkoutService) emitOrderPlaced(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	event, err := outboxDomain.NewEnvelopeEvent(
		generalDomain.OrderAggregate,
		strconv.FormatInt(order.ID, 10),
		generalDomain.OrderPlacedEvent,
		s.opts.Topic,
		generalDomain.OrderPlaced{
			OrderID: order.ID,
			UserID:  order.UserID,
			Total:   order.Total,
			Lines:   len(order.Lines),
		},
	)
	if err != nil {
		return err
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, event)
}
