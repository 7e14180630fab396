package repository

import (
	"context"
	"strings"

	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Tables whose shape the order reads depend on.
var probedTables = []string{
	"orders",
	"order_items",
	"products",
	"materials",
	"volumes",
	"colors",
	"product_photos",
}

// Capabilities is a snapshot of which tables and columns exist.
// Names are compared case-insensitively.
type Capabilities struct {
	columns map[string]map[string]struct{}
}

func NewCapabilities(tables map[string][]string) Capabilities {
	caps := Capabilities{columns: make(map[string]map[string]struct{}, len(tables))}
	for table, cols := range tables {
		caps.add(table, cols...)
	}

	return caps
}

func (c *Capabilities) add(table string, cols ...string) {
	if c.columns == nil {
		c.columns = make(map[string]map[string]struct{})
	}

	table = strings.ToLower(table)
	set, ok := c.columns[table]
	if !ok {
		set = make(map[string]struct{}, len(cols))
		c.columns[table] = set
	}

	for _, col := range cols {
		set[strings.ToLower(col)] = struct{}{}
	}
}

func (c Capabilities) HasTable(table string) bool {
	_, ok := c.columns[strings.ToLower(table)]
	return ok
}

func (c Capabilities) HasColumn(table, column string) bool {
	set, ok := c.columns[strings.ToLower(table)]
	if !ok {
		return false
	}

	_, ok = set[strings.ToLower(column)]
	return ok
}

func (c Capabilities) HasTables(tables ...string) bool {
	for _, t := range tables {
		if !c.HasTable(t) {
			return false
		}
	}

	return true
}

// SchemaProbe never returns errors. A failed introspection reports the
// table or column as absent.
type SchemaProbe interface {
	Capabilities(ctx context.Context) Capabilities
	HasTable(ctx context.Context, table string) bool
	HasColumn(ctx context.Context, table, column string) bool
}

type schemaProbe struct {
	db     DBTX
	logger *zap.Logger
	tracer trace.Tracer
}

func NewSchemaProbe(db DBTX, logger *zap.Logger) SchemaProbe {
	return &schemaProbe{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("schema_probe"),
	}
}

func (p *schemaProbe) Capabilities(ctx context.Context) Capabilities {
	ctx, span := p.tracer.Start(ctx, "SchemaProbe.Capabilities")
	defer span.End()

	query := `
		SELECT lower(table_name), lower(column_name)
		FROM information_schema.columns
		WHERE table_schema = current_schema()
			AND lower(table_name) = ANY($1)
	`

	caps := Capabilities{columns: make(map[string]map[string]struct{})}

	rows, err := p.db.Query(ctx, query, probedTables)
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, p.logger, "Schema probe failed, treating optional schema as absent", zap.Error(err))

		return caps
	}
	defer rows.Close()

	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			span.RecordError(err)
			mylogger.Warn(ctx, p.logger, "Schema probe scan failed", zap.Error(err))

			return Capabilities{columns: make(map[string]map[string]struct{})}
		}

		caps.add(table, column)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, p.logger, "Schema probe rows error", zap.Error(err))

		return Capabilities{columns: make(map[string]map[string]struct{})}
	}

	span.SetAttributes(attribute.Int("tables_found", len(caps.columns)))

	return caps
}

func (p *schemaProbe) HasTable(ctx context.Context, table string) bool {
	ctx, span := p.tracer.Start(ctx, "SchemaProbe.HasTable")
	defer span.End()

	span.SetAttributes(attribute.String("table", table))

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
				AND lower(table_name) = lower($1)
		)
	`

	var exists bool
	if err := p.db.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, p.logger, "Table probe failed", zap.String("table", table), zap.Error(err))

		return false
	}

	return exists
}

func (p *schemaProbe) HasColumn(ctx context.Context, table, column string) bool {
	ctx, span := p.tracer.Start(ctx, "SchemaProbe.HasColumn")
	defer span.End()

	span.SetAttributes(
		attribute.String("table", table),
		attribute.String("column", column),
	)

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.columns
			WHERE table_schema = current_schema()
				AND lower(table_name) = lower($1)
				AND lower(column_name) = lower($2)
		)
	`

	var exists bool
	if err := p.db.QueryRow(ctx, query, table, column).Scan(&exists); err != nil {
		span.RecordError(err)
		mylogger.Warn(
			ctx,
			p.logger,
			"Column probe failed",
			zap.String("table", table),
			zap.String("column", column),
			zap.Error(err),
		)

		return false
	}

	return exists
}
