package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderView struct {
	ID         int64
	CreatedAt  *time.Time
	Status     OrderStatus
	Total      decimal.Decimal
	Address    string
	Comment    string
	ItemsCount int
	Items      []ResolvedLine
}

func BuildOrderView(h OrderHeader, items []ResolvedLine) OrderView {
	if items == nil {
		items = []ResolvedLine{}
	}

	comment := ""
	if h.Comment != nil {
		comment = *h.Comment
	}

	return OrderView{
		ID:         h.ID,
		CreatedAt:  h.CreatedAt,
		Status:     OrderStatusNew,
		Total:      h.Total,
		Address:    JoinAddress(h.City, h.Branch),
		Comment:    comment,
		ItemsCount: len(items),
		Items:      items,
	}
}

// JoinAddress joins the non-empty parts with ", ".
func JoinAddress(parts ...*string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != nil && *p != "" {
			kept = append(kept, *p)
		}
	}

	return strings.Join(kept, ", ")
}

// SortByRecency orders views newest first. Views without a timestamp count
// as the epoch and end up last. Equal timestamps keep their input order.
func SortByRecency(views []OrderView) {
	sort.SliceStable(views, func(i, j int) bool {
		return recency(views[i]).After(recency(views[j]))
	})
}

func recency(v OrderView) time.Time {
	if v.CreatedAt == nil {
		return time.Unix(0, 0)
	}

	return *v.CreatedAt
}
