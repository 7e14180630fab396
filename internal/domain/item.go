package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// PlaceholderTitle is shown for lines whose product has no title or is gone.
const PlaceholderTitle = "Товар"

// ResolvedLine is a read-only view of an order line joined with catalog data.
type ResolvedLine struct {
	Pos          *string         `json:"pos"`
	Title        string          `json:"title"`
	Photos       []string        `json:"photos"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Discount     decimal.Decimal `json:"discount"`
	MaterialName *string         `json:"material_name"`
	VolumeLabel  *string         `json:"volume_label"`
	ML           *int64          `json:"ml"`
	ColorName    *string         `json:"color_name"`
}

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// NormalizePhotoURL converts backslashes and roots bare paths at "/".
// Absolute http(s) URLs pass through. Empty input yields "".
func NormalizePhotoURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	url := strings.ReplaceAll(raw, `\`, "/")
	if !absoluteURL.MatchString(url) && !strings.HasPrefix(url, "/") {
		url = "/" + url
	}

	return url
}

// NormalizePhotos normalizes every URL and drops empty ones. Never returns nil.
func NormalizePhotos(raw []string) []string {
	photos := make([]string, 0, len(raw))
	for _, u := range raw {
		if n := NormalizePhotoURL(u); n != "" {
			photos = append(photos, n)
		}
	}

	return photos
}

// NonEmpty returns nil for nil or empty strings.
func NonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}
