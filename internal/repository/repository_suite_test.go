package repository

import (
	"testing"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/pkg/testsuite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type RepositorySuite struct {
	testsuite.BaseSuite

	probe   SchemaProbe
	orders  OrderRepository
	catalog CatalogRepository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite")
	}

	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../migrations")
}

func (s *RepositorySuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *RepositorySuite) SetupTest() {
	s.ResetSchema()

	logger := zap.NewNop()
	s.probe = NewSchemaProbe(s.DbPool, logger)
	s.orders = NewOrderRepository(s.DbPool, logger)
	s.catalog = NewCatalogRepository()
}

type seeded struct {
	orderID     int64
	soapID      int64
	redID       int64
	blueID      int64
	fiftyMLID   int64
	hundredMLID int64
}

// seedCatalog creates two products and an order for user 1 with three
// lines: soap with its own color, candle with product defaults, and a
// line whose product was deleted.
func (s *RepositorySuite) seedCatalog() seeded {
	var out seeded

	var materialID int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `INSERT INTO materials (name) VALUES ('glass') RETURNING id`).Scan(&materialID))
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `INSERT INTO volumes (ml, volume) VALUES (50, '50 мл') RETURNING id`).Scan(&out.fiftyMLID))
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `INSERT INTO volumes (ml, volume) VALUES (100, '100 мл') RETURNING id`).Scan(&out.hundredMLID))
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `INSERT INTO colors (color_name) VALUES ('Red') RETURNING id`).Scan(&out.redID))
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `INSERT INTO colors (color_name) VALUES ('Blue') RETURNING id`).Scan(&out.blueID))

	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		INSERT INTO products (pos, title, price, discount, material_id, volume_id, color_id)
		VALUES ('SOAP-1', 'Soap', 10.00, 5, $1, $2, $3) RETURNING id
	`, materialID, out.fiftyMLID, out.redID).Scan(&out.soapID))

	var candleID int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		INSERT INTO products (pos, title, price, volume_id, color_id)
		VALUES ('CANDLE-1', NULL, 7.50, $1, $2) RETURNING id
	`, out.hundredMLID, out.blueID).Scan(&candleID))

	s.Exec(`INSERT INTO product_photos (product_id, url) VALUES ($1, 'uploads\soap\2.jpg'), ($1, 'https://cdn.example/soap.jpg')`, out.soapID)

	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		INSERT INTO orders (user_id, customer_name, customer_phone, city, branch, total)
		VALUES (1, 'Olena', '+380000000', 'Kyiv', 'Branch 5', 42.50) RETURNING id
	`).Scan(&out.orderID))

	s.Exec(`INSERT INTO order_items (order_id, product_id, quantity, unit_price, color_id) VALUES ($1, $2, 2, 10.00, $3)`,
		out.orderID, out.soapID, out.blueID)
	s.Exec(`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, 3, 7.50)`,
		out.orderID, candleID)
	s.Exec(`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, NULL, 1, 0.00)`,
		out.orderID)

	return out
}

func (s *RepositorySuite) TestProbe_ReferenceSchema() {
	caps := s.probe.Capabilities(s.Ctx)

	s.Require().True(caps.HasTables("orders", "order_items", "products", "materials", "volumes", "colors", "product_photos"))
	s.Require().True(caps.HasColumn("orders", "created_at"))
	s.Require().False(caps.HasColumn("orders", "items_json"))
	s.Require().False(caps.HasColumn("products", "material"))

	s.Require().True(s.probe.HasTable(s.Ctx, "ORDERS"))
	s.Require().False(s.probe.HasTable(s.Ctx, "shipments"))
	s.Require().True(s.probe.HasColumn(s.Ctx, "orders", "Total"))
	s.Require().False(s.probe.HasColumn(s.Ctx, "orders", "status"))
}

func (s *RepositorySuite) TestProbe_SeesDroppedTable() {
	s.Exec(`DROP TABLE product_photos`)

	caps := s.probe.Capabilities(s.Ctx)
	s.Require().False(caps.HasTable("product_photos"))
	s.Require().True(caps.HasTable("order_items"))
}

func (s *RepositorySuite) TestFullTier() {
	data := s.seedCatalog()
	caps := s.probe.Capabilities(s.Ctx)

	lines, err := NewFullItemStrategy(s.DbPool).Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)
	s.Require().Len(lines, 3)

	soap := lines[0]
	s.Require().Equal("SOAP-1", *soap.Pos)
	s.Require().Equal("Soap", soap.Title)
	s.Require().Equal(int64(2), soap.Quantity)
	s.Require().True(decimal.NewFromInt(10).Equal(soap.Price))
	s.Require().True(decimal.NewFromInt(5).Equal(soap.Discount))
	s.Require().Equal([]string{"/uploads/soap/2.jpg", "https://cdn.example/soap.jpg"}, soap.Photos)
	s.Require().Equal("glass", *soap.MaterialName)
	s.Require().Equal("50 мл", *soap.VolumeLabel)
	s.Require().Equal(int64(50), *soap.ML)
	s.Require().Equal("Blue", *soap.ColorName, "line color wins over product default")

	candle := lines[1]
	s.Require().Equal(domain.PlaceholderTitle, candle.Title)
	s.Require().Empty(candle.Photos)
	s.Require().Nil(candle.MaterialName)
	s.Require().Equal("100 мл", *candle.VolumeLabel)
	s.Require().Equal("Blue", *candle.ColorName)

	orphan := lines[2]
	s.Require().Nil(orphan.Pos)
	s.Require().Equal(domain.PlaceholderTitle, orphan.Title)
	s.Require().NotNil(orphan.Photos)
	s.Require().Empty(orphan.Photos)
	s.Require().Nil(orphan.VolumeLabel)
	s.Require().Nil(orphan.ColorName)
}

func (s *RepositorySuite) TestFullTier_LegacyMaterialColumn() {
	data := s.seedCatalog()
	s.Exec(`ALTER TABLE products ADD COLUMN material TEXT`)
	s.Exec(`UPDATE products SET material = 'beeswax' WHERE pos = 'CANDLE-1'`)

	caps := s.probe.Capabilities(s.Ctx)
	lines, err := NewFullItemStrategy(s.DbPool).Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)

	s.Require().Equal("glass", *lines[0].MaterialName)
	s.Require().Equal("beeswax", *lines[1].MaterialName)
}

func (s *RepositorySuite) TestFullTier_Idempotent() {
	data := s.seedCatalog()
	caps := s.probe.Capabilities(s.Ctx)
	strategy := NewFullItemStrategy(s.DbPool)

	first, err := strategy.Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)
	second, err := strategy.Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)

	s.Require().Equal(first, second)
}

func (s *RepositorySuite) TestSimpleTier_MatchesFullCoreFields() {
	data := s.seedCatalog()
	caps := s.probe.Capabilities(s.Ctx)

	full, err := NewFullItemStrategy(s.DbPool).Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)

	s.Exec(`DROP TABLE product_photos`)
	s.Exec(`DROP TABLE materials CASCADE`)

	simple, err := NewSimpleItemStrategy(s.DbPool).Fetch(s.Ctx, s.probe.Capabilities(s.Ctx), data.orderID)
	s.Require().NoError(err)
	s.Require().Len(simple, len(full))

	for i := range full {
		s.Require().Equal(full[i].Pos, simple[i].Pos)
		s.Require().Equal(full[i].Title, simple[i].Title)
		s.Require().Equal(full[i].Quantity, simple[i].Quantity)
		s.Require().True(full[i].Price.Equal(simple[i].Price))
		s.Require().True(full[i].Discount.Equal(simple[i].Discount))

		s.Require().NotNil(simple[i].Photos)
		s.Require().Empty(simple[i].Photos)
		s.Require().Nil(simple[i].MaterialName)
		s.Require().Nil(simple[i].VolumeLabel)
		s.Require().Nil(simple[i].ML)
		s.Require().Nil(simple[i].ColorName)
	}
}

func (s *RepositorySuite) TestFullTier_SchemaMissIsClassified() {
	data := s.seedCatalog()
	caps := s.probe.Capabilities(s.Ctx)

	s.Exec(`DROP TABLE colors CASCADE`)

	_, err := NewFullItemStrategy(s.DbPool).Fetch(s.Ctx, caps, data.orderID)
	s.Require().Error(err)
	s.Require().True(IsSchemaMiss(err))
}

func (s *RepositorySuite) TestSnapshotTier() {
	data := s.seedCatalog()

	s.Exec(`DROP TABLE order_items`)
	s.Exec(`ALTER TABLE orders ADD COLUMN items_json TEXT`)
	s.Exec(`UPDATE orders SET items_json = $1 WHERE id = $2`,
		`[{"code": "X-9", "name": "Diffuser", "unit_price": 99.9, "photos": ["p\\1.png"]}]`, data.orderID)

	caps := s.probe.Capabilities(s.Ctx)
	s.Require().False(NewSimpleItemStrategy(s.DbPool).Applicable(caps))

	strategy := NewSnapshotItemStrategy(s.DbPool, zap.NewNop())
	s.Require().True(strategy.Applicable(caps))

	lines, err := strategy.Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)
	s.Require().Len(lines, 1)
	s.Require().Equal("X-9", *lines[0].Pos)
	s.Require().Equal("Diffuser", lines[0].Title)
	s.Require().Equal(int64(1), lines[0].Quantity)
	s.Require().True(decimal.RequireFromString("99.9").Equal(lines[0].Price))
	s.Require().Equal([]string{"/p/1.png"}, lines[0].Photos)
}

func (s *RepositorySuite) TestSnapshotTier_NullAndGarbage() {
	data := s.seedCatalog()
	s.Exec(`DROP TABLE order_items`)
	s.Exec(`ALTER TABLE orders ADD COLUMN items_json TEXT`)

	strategy := NewSnapshotItemStrategy(s.DbPool, zap.NewNop())
	caps := s.probe.Capabilities(s.Ctx)
	s.Require().True(strategy.Applicable(caps))

	lines, err := strategy.Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)
	s.Require().Empty(lines)

	s.Exec(`UPDATE orders SET items_json = '[{"pos":' WHERE id = $1`, data.orderID)
	lines, err = strategy.Fetch(s.Ctx, caps, data.orderID)
	s.Require().NoError(err)
	s.Require().NotNil(lines)
	s.Require().Empty(lines)
}

func (s *RepositorySuite) TestListHeaders_Tolerant() {
	s.seedCatalog()
	s.Exec(`INSERT INTO orders (user_id, customer_name, customer_phone, total) VALUES (1, 'Olena', '+380000000', 5)`)
	s.Exec(`INSERT INTO orders (user_id, customer_name, customer_phone, total) VALUES (2, 'Ivan', '+380111111', 9)`)

	s.Exec(`ALTER TABLE orders DROP COLUMN created_at, DROP COLUMN city, DROP COLUMN total`)

	caps := s.probe.Capabilities(s.Ctx)
	headers, err := s.orders.ListHeaders(s.Ctx, 1, caps)
	s.Require().NoError(err)
	s.Require().Len(headers, 2)

	s.Require().Greater(headers[0].ID, headers[1].ID, "falls back to id order")
	for _, h := range headers {
		s.Require().Equal(int64(1), h.UserID)
		s.Require().Nil(h.CreatedAt)
		s.Require().Nil(h.City)
		s.Require().True(h.Total.IsZero())
	}
	s.Require().Equal("Branch 5", *headers[1].Branch)
}

func (s *RepositorySuite) TestListHeaders_Empty() {
	headers, err := s.orders.ListHeaders(s.Ctx, 404, s.probe.Capabilities(s.Ctx))
	s.Require().NoError(err)
	s.Require().NotNil(headers)
	s.Require().Empty(headers)
}

func (s *RepositorySuite) TestGetHeader_Ownership() {
	data := s.seedCatalog()
	caps := s.probe.Capabilities(s.Ctx)

	h, err := s.orders.GetHeader(s.Ctx, 1, data.orderID, caps)
	s.Require().NoError(err)
	s.Require().Equal(data.orderID, h.ID)
	s.Require().True(decimal.RequireFromString("42.50").Equal(h.Total))
	s.Require().NotNil(h.CreatedAt)

	_, err = s.orders.GetHeader(s.Ctx, 2, data.orderID, caps)
	s.Require().ErrorIs(err, ErrOrderNotFound)
}

func (s *RepositorySuite) TestCreateOrderAndLine() {
	order := &domain.Order{
		UserID:   3,
		Customer: domain.Customer{Name: "Oksana", Phone: "+380222222", City: "Lviv"},
		Total:    decimal.RequireFromString("15.00"),
	}

	s.Require().NoError(s.orders.CreateOrder(s.Ctx, s.DbPool, order))
	s.Require().NotZero(order.ID)

	line := &domain.OrderLine{OrderID: order.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(5)}
	s.Require().NoError(s.orders.InsertLine(s.Ctx, s.DbPool, line))
	s.Require().NotZero(line.ID)

	var stored decimal.Decimal
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT unit_price FROM order_items WHERE id = $1`, line.ID).Scan(&stored))
	s.Require().True(decimal.NewFromInt(5).Equal(stored))
}

func (s *RepositorySuite) TestCreateOrder_WithoutCreatedAt() {
	s.Exec(`ALTER TABLE orders DROP COLUMN created_at`)

	order := &domain.Order{
		UserID:   4,
		Customer: domain.Customer{Name: "Taras", Phone: "+380333333"},
		Total:    decimal.RequireFromString("7.50"),
	}

	s.Require().NoError(s.orders.CreateOrder(s.Ctx, s.DbPool, order))
	s.Require().NotZero(order.ID)

	caps := s.probe.Capabilities(s.Ctx)
	s.Require().False(caps.HasColumn("orders", "created_at"))

	h, err := s.orders.GetHeader(s.Ctx, 4, order.ID, caps)
	s.Require().NoError(err)
	s.Require().Nil(h.CreatedAt)
}

func (s *RepositorySuite) TestCatalogLookups() {
	data := s.seedCatalog()

	id, err := s.catalog.ColorIDByName(s.Ctx, s.DbPool, "Red")
	s.Require().NoError(err)
	s.Require().Equal(data.redID, *id)

	id, err = s.catalog.ColorIDByName(s.Ctx, s.DbPool, "red")
	s.Require().NoError(err)
	s.Require().Nil(id, "color match is case-sensitive")

	id, err = s.catalog.VolumeIDByLabel(s.Ctx, s.DbPool, "50 мл")
	s.Require().NoError(err)
	s.Require().Equal(data.fiftyMLID, *id)

	id, err = s.catalog.ProductIDByPos(s.Ctx, s.DbPool, "SOAP-1")
	s.Require().NoError(err)
	s.Require().Equal(data.soapID, *id)

	id, err = s.catalog.ProductIDByPos(s.Ctx, s.DbPool, "NOPE")
	s.Require().NoError(err)
	s.Require().Nil(id)
}

func (s *RepositorySuite) TestCatalogLookup_MissingTable() {
	s.Exec(`DROP TABLE volumes CASCADE`)

	id, err := s.catalog.VolumeIDByLabel(s.Ctx, s.DbPool, "50 мл")
	s.Require().Error(err)
	s.Require().Nil(id)
}
