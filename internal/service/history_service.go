package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type HistoryService interface {
	ListOrders(ctx context.Context, userID int64) ([]domain.OrderView, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*domain.OrderView, error)
	GetOrderItems(ctx context.Context, userID, orderID int64) ([]domain.ResolvedLine, error)
}

type historyService struct {
	probe       repository.SchemaProbe
	orderRepo   repository.OrderRepository
	items       ItemAssembler
	concurrency int
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewHistoryService(
	probe repository.SchemaProbe,
	orderRepo repository.OrderRepository,
	items ItemAssembler,
	concurrency int,
	logger *zap.Logger,
) HistoryService {
	if concurrency <= 0 {
		concurrency = 8
	}

	return &historyService{
		probe:       probe,
		orderRepo:   orderRepo,
		items:       items,
		concurrency: concurrency,
		logger:      logger,
		tracer:      otel.Tracer("history_service"),
	}
}

func (s *historyService) ListOrders(ctx context.Context, userID int64) ([]domain.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryService.ListOrders")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	caps := s.probe.Capabilities(ctx)

	headers, err := s.orderRepo.ListHeaders(ctx, userID, caps)
	if err != nil {
		span.RecordError(err)
		return nil, storageError("list orders", err)
	}

	if len(headers) == 0 {
		return []domain.OrderView{}, nil
	}

	views := make([]domain.OrderView, len(headers))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, h := range headers {
		g.Go(func() error {
			views[i] = domain.BuildOrderView(h, s.items.Items(ctx, caps, h.ID))
			return nil
		})
	}

	// Item assembly never fails, so Wait only joins.
	_ = g.Wait()

	domain.SortByRecency(views)

	mylogger.Debug(
		ctx,
		s.logger,
		"Order history assembled",
		zap.Int64("user_id", userID),
		zap.Int("orders", len(views)),
	)

	return views, nil
}

func (s *historyService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryService.GetOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("order_id", orderID),
	)

	caps := s.probe.Capabilities(ctx)

	header, err := s.ownedHeader(ctx, userID, orderID, caps)
	if err != nil {
		return nil, err
	}

	view := domain.BuildOrderView(*header, s.items.Items(ctx, caps, header.ID))
	return &view, nil
}

func (s *historyService) GetOrderItems(ctx context.Context, userID, orderID int64) ([]domain.ResolvedLine, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryService.GetOrderItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("order_id", orderID),
	)

	caps := s.probe.Capabilities(ctx)

	header, err := s.ownedHeader(ctx, userID, orderID, caps)
	if err != nil {
		return nil, err
	}

	return s.items.Items(ctx, caps, header.ID), nil
}

func (s *historyService) ownedHeader(
	ctx context.Context,
	userID, orderID int64,
	caps repository.Capabilities,
) (*domain.OrderHeader, error) {
	header, err := s.orderRepo.GetHeader(ctx, userID, orderID, caps)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			mylogger.Info(
				ctx,
				s.logger,
				"Order not found for user",
				zap.Int64("user_id", userID),
				zap.Int64("order_id", orderID),
			)

			return nil, err
		}

		return nil, storageError("get order", err)
	}

	return header, nil
}
