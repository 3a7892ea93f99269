package source

import (
	"context"
	"strconv"

	"recycling-bins/internal/geo"
	"recycling-bins/internal/logger"
	"recycling-bins/internal/models"
	"recycling-bins/internal/normalize"

	"github.com/rs/zerolog"
)

const NominatimURL = "https://nominatim.openstreetmap.org/search"

// Geocoder resolves a free-text address in a city to coordinates.
// found is false when the address could not be located inside the country.
type Geocoder interface {
	Geocode(ctx context.Context, address, city string) (c models.Coordinates, found bool, err error)
}

// Nominatim geocodes through an OpenStreetMap Nominatim endpoint. The client is
// expected to enforce the service's request rate.
type Nominatim struct {
	client Client
	url    string
	parser *normalize.Parser
	cache  Cache
	log    zerolog.Logger
}

func NewNominatim(client Client, url string, parser *normalize.Parser, cache Cache) *Nominatim {
	if url == "" {
		url = NominatimURL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Nominatim{
		client: client,
		url:    url,
		parser: parser,
		cache:  cache,
		log:    logger.For("geocoder"),
	}
}

// Geocode tries the full address first and falls back to the street alone.
// Only successful lookups are cached.
func (g *Nominatim) Geocode(ctx context.Context, address, city string) (models.Coordinates, bool, error) {
	key := address + "-" + city
	if c, ok, err := g.cache.Get(ctx, key); err != nil {
		g.log.Warn().Err(err).Str("address", address).Msg("geocode cache read failed")
	} else if ok {
		return c, true, nil
	}

	queries := []string{
		g.parser.FormatForGeocoding(address, city),
		g.parser.FormatStreetForGeocoding(address, city),
	}
	for i, q := range queries {
		if q == "" || (i > 0 && q == queries[0]) {
			continue
		}
		c, found, err := g.lookup(ctx, q)
		if err != nil {
			return models.Coordinates{}, false, err
		}
		if !found {
			continue
		}
		if err := g.cache.Set(ctx, key, c); err != nil {
			g.log.Warn().Err(err).Str("address", address).Msg("geocode cache write failed")
		}
		return c, true, nil
	}
	return models.Coordinates{}, false, nil
}

func (g *Nominatim) lookup(ctx context.Context, query string) (models.Coordinates, bool, error) {
	var res []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	params := map[string]string{"format": "json", "limit": "1", "q": query}
	if err := g.client.GetJSON(ctx, "nominatim", g.url, params, &res); err != nil {
		return models.Coordinates{}, false, err
	}
	if len(res) == 0 {
		return models.Coordinates{}, false, nil
	}

	lat, errLat := strconv.ParseFloat(res[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(res[0].Lon, 64)
	if errLat != nil || errLon != nil || !geo.IsValid(lat, lon) {
		return models.Coordinates{}, false, nil
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, true, nil
}
