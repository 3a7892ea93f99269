package source

import (
	"context"
	"strconv"
	"strings"

	"recycling-bins/internal/geo"
	"recycling-bins/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// Adapter fetches the raw recycling-bin records of one upstream source.
type Adapter interface {
	Name() string
	City() string
	FetchRaw(ctx context.Context) ([]models.RawItem, error)
}

// Client is the subset of httpclient.Client the adapters rely on.
type Client interface {
	GetJSON(ctx context.Context, source, url string, query map[string]string, out any) error
	PostJSON(ctx context.Context, source, url string, body, out any) error
	GetHTML(ctx context.Context, source, url string) (*goquery.Document, error)
}

// attrString renders a decoded JSON attribute as text. Numbers lose no precision
// and never use exponent notation.
func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// attrFloat reads a coordinate-like attribute. Missing or malformed values yield 0,
// which never passes coordinate validation.
func attrFloat(attrs map[string]any, key string) float64 {
	f, ok := geo.ParseCoordinate(attrs[key])
	if !ok {
		return 0
	}
	return f
}

func attrInt(attrs map[string]any, key string) int {
	return int(attrFloat(attrs, key))
}

func joinAddress(street, number string) string {
	street = strings.TrimSpace(street)
	number = strings.TrimSpace(number)
	if number == "" {
		return street
	}
	if street == "" {
		return number
	}
	return street + " " + number
}
