package service

import (
	"context"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// AttributeResolver maps a cart line's color and volume to catalog ids.
// It never creates catalog rows and never fails: lookup errors resolve to nil.
type AttributeResolver interface {
	ResolveColor(ctx context.Context, q repository.DBTX, line domain.CartLine) *int64
	ResolveVolume(ctx context.Context, q repository.DBTX, line domain.CartLine) *int64
}

type attributeResolver struct {
	catalog repository.CatalogRepository
	logger  *zap.Logger
}

func NewAttributeResolver(catalog repository.CatalogRepository, logger *zap.Logger) AttributeResolver {
	return &attributeResolver{
		catalog: catalog,
		logger:  logger,
	}
}

func (r *attributeResolver) ResolveColor(ctx context.Context, q repository.DBTX, line domain.CartLine) *int64 {
	return r.resolve(ctx, q, "color", line.ColorID, line.Color, r.catalog.ColorIDByName)
}

func (r *attributeResolver) ResolveVolume(ctx context.Context, q repository.DBTX, line domain.CartLine) *int64 {
	return r.resolve(ctx, q, "volume", line.VolumeID, line.Volume, r.catalog.VolumeIDByLabel)
}

type lookupFunc func(ctx context.Context, q repository.DBTX, text string) (*int64, error)

func (r *attributeResolver) resolve(
	ctx context.Context,
	q repository.DBTX,
	attr string,
	explicit *int64,
	text string,
	lookup lookupFunc,
) *int64 {
	if explicit != nil && *explicit != 0 {
		id := *explicit
		return &id
	}

	if text == "" {
		return nil
	}

	id, err := lookup(ctx, q, text)
	if err != nil {
		mylogger.Warn(
			ctx,
			r.logger,
			"Attribute lookup failed, leaving it unset",
			zap.String("attribute", attr),
			zap.String("value", text),
			zap.Error(err),
		)

		return nil
	}

	return id
}
