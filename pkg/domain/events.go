package domain

import "github.com/shopspring/decimal"

const (
	OrderAggregate    = "order"
	OrderPlacedEvent  = "OrderPlaced"
	DefaultOrderTopic = "order_events"
)

type OrderPlaced struct {
	OrderID int64           `json:"order_id"`
	UserID  int64           `json:"user_id"`
	Total   decimal.Decimal `json:"total"`
	Lines   int             `json:"lines"`
}
