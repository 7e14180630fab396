package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/shopspring/decimal"
)

// OptionalID accepts a JSON number, a numeric string, null or "".
type OptionalID struct {
	Value *int64
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}

	if raw == "" {
		o.Value = nil
		return nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}

	o.Value = &id
	return nil
}

type CartLineInput struct {
	Pos      string          `json:"pos" validate:"required"`
	Quantity int64           `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	VolumeID OptionalID      `json:"volume_id"`
	Volume   string          `json:"volume"`
	ColorID  OptionalID      `json:"color_id"`
	Color    string          `json:"color"`
}

type CustomerInput struct {
	Name      string `json:"name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Messenger string `json:"messenger"`
	City      string `json:"city"`
	Branch    string `json:"branch"`
	Comment   string `json:"comment"`
}

type PlaceOrderInput struct {
	Cart     []CartLineInput `json:"cart" validate:"dive"`
	Customer CustomerInput   `json:"customer" validate:"required"`
}

func (in *PlaceOrderInput) toDomain(userID int64) *domain.Order {
	lines := make([]domain.CartLine, 0, len(in.Cart))
	for _, l := range in.Cart {
		lines = append(lines, domain.CartLine{
			Pos:      l.Pos,
			Quantity: l.Quantity,
			Price:    l.Price,
			ColorID:  l.ColorID.Value,
			VolumeID: l.VolumeID.Value,
			Color:    l.Color,
			Volume:   l.Volume,
		})
	}

	c := in.Customer
	return &domain.Order{
		UserID: userID,
		Customer: domain.Customer{
			Name:      c.Name,
			Phone:     c.Phone,
			Messenger: c.Messenger,
			City:      c.City,
			Branch:    c.Branch,
			Comment:   c.Comment,
		},
		Lines: lines,
	}
}

type ItemResponse struct {
	Pos          *string  `json:"pos"`
	Title        string   `json:"title"`
	Photos       []string `json:"photos"`
	Quantity     int64    `json:"quantity"`
	Price        float64  `json:"price"`
	Discount     float64  `json:"discount"`
	MaterialName *string  `json:"material_name"`
	VolumeLabel  *string  `json:"volume_label"`
	ML           *int64   `json:"ml"`
	ColorName    *string  `json:"color_name"`
}

type OrderResponse struct {
	ID         int64          `json:"id"`
	CreatedAt  *time.Time     `json:"created_at"`
	Status     string         `json:"status"`
	Total      float64        `json:"total"`
	Address    string         `json:"address"`
	Comment    string         `json:"comment"`
	ItemsCount int            `json:"items_count"`
	Items      []ItemResponse `json:"items"`
}

func toItemResponses(lines []domain.ResolvedLine) []ItemResponse {
	items := make([]ItemResponse, 0, len(lines))
	for _, l := range lines {
		photos := l.Photos
		if photos == nil {
			photos = []string{}
		}

		items = append(items, ItemResponse{
			Pos:          l.Pos,
			Title:        l.Title,
			Photos:       photos,
			Quantity:     l.Quantity,
			Price:        l.Price.InexactFloat64(),
			Discount:     l.Discount.InexactFloat64(),
			MaterialName: l.MaterialName,
			VolumeLabel:  l.VolumeLabel,
			ML:           l.ML,
			ColorName:    l.ColorName,
		})
	}

	return items
}

func toOrderResponse(v domain.OrderView) OrderResponse {
	return OrderResponse{
		ID:         v.ID,
		CreatedAt:  v.CreatedAt,
		Status:     string(v.Status),
		Total:      v.Total.InexactFloat64(),
		Address:    v.Address,
		Comment:    v.Comment,
		ItemsCount: v.ItemsCount,
		Items:      toItemResponses(v.Items),
	}
}
