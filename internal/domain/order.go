package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// OrderStatusNew is reported for every order; storage carries no status column.
const OrderStatusNew OrderStatus = "new"

type Customer struct {
	Name      string
	Phone     string
	Messenger string
	City      string
	Branch    string
	Comment   string
}

// CartLine is one requested line. ColorID/VolumeID win over the display
// text in Color/Volume when both are given.
type CartLine struct {
	Pos      string
	Quantity int64
	Price    decimal.Decimal
	ColorID  *int64
	VolumeID *int64
	Color    string
	Volume   string
}

type Order struct {
	ID       int64
	UserID   int64
	Customer Customer
	Lines    []CartLine
	Total    decimal.Decimal
}

type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID *int64
	Quantity  int64
	UnitPrice decimal.Decimal
	ColorID   *int64
	VolumeID  *int64
}

// CalculateTotal uses the client supplied prices. Prices are not checked
// against the catalog.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(line.Quantity)))
	}
	o.Total = total.Round(2)
}

// OrderHeader is the tolerant projection of an order row. Optional columns
// missing from storage come back as nil.
type OrderHeader struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	CreatedAt *time.Time
	City      *string
	Branch    *string
	Comment   *string
}
