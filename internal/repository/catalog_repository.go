package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogRepository looks up catalog ids. A missing row is (nil, nil).
type CatalogRepository interface {
	ProductIDByPos(ctx context.Context, q DBTX, pos string) (*int64, error)
	ColorIDByName(ctx context.Context, q DBTX, name string) (*int64, error)
	VolumeIDByLabel(ctx context.Context, q DBTX, label string) (*int64, error)
}

type catalogRepo struct {
	tracer trace.Tracer
}

func NewCatalogRepository() CatalogRepository {
	return &catalogRepo{
		tracer: otel.Tracer("catalog_repository"),
	}
}

func (r *catalogRepo) ProductIDByPos(ctx context.Context, q DBTX, pos string) (*int64, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.ProductIDByPos")
	defer span.End()

	span.SetAttributes(attribute.String("pos", pos))

	return r.lookupID(ctx, span, q, `SELECT id FROM products WHERE pos = $1 ORDER BY id LIMIT 1`, pos)
}

func (r *catalogRepo) ColorIDByName(ctx context.Context, q DBTX, name string) (*int64, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.ColorIDByName")
	defer span.End()

	span.SetAttributes(attribute.String("color_name", name))

	return r.lookupID(ctx, span, q, `SELECT id FROM colors WHERE color_name = $1 ORDER BY id LIMIT 1`, name)
}

func (r *catalogRepo) VolumeIDByLabel(ctx context.Context, q DBTX, label string) (*int64, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.VolumeIDByLabel")
	defer span.End()

	span.SetAttributes(attribute.String("volume", label))

	return r.lookupID(ctx, span, q, `SELECT id FROM volumes WHERE volume = $1 ORDER BY id LIMIT 1`, label)
}

func (r *catalogRepo) lookupID(ctx context.Context, span trace.Span, q DBTX, query string, arg string) (*int64, error) {
	var id int64
	if err := q.QueryRow(ctx, query, arg).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		span.RecordError(err)
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	return &id, nil
}
