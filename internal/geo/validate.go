package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// National bounding box.
const (
	MinLatitude  = 29.5
	MaxLatitude  = 33.3
	MinLongitude = 34.2
	MaxLongitude = 35.9
)

// IsValid reports whether (lat, lon) is a usable point inside the national bounding box.
// Pairs where latitude equals longitude are rejected: sources that echo one scalar into
// both fields produce them.
func IsValid(lat, lon float64) bool {
	if !isFinite(lat) || !isFinite(lon) {
		return false
	}
	if lat < MinLatitude || lat > MaxLatitude {
		return false
	}
	if lon < MinLongitude || lon > MaxLongitude {
		return false
	}
	return lat != lon
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ParseCoordinate reads a coordinate out of a decoded JSON value.
// Strings may use a comma as the decimal separator ("31,7767").
func ParseCoordinate(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, isFinite(val)
	case float32:
		return float64(val), isFinite(float64(val))
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		if strings.Contains(s, ",") {
			if strings.Contains(s, ".") {
				s = strings.ReplaceAll(s, ",", "")
			} else {
				s = strings.Replace(s, ",", ".", 1)
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, isFinite(f)
	default:
		return 0, false
	}
}

// RoundedKey builds a coarse deduplication key for a point, rounding both axes to
// the given number of decimals.
func RoundedKey(lat, lon float64, decimals int) string {
	return fmt.Sprintf("%.*f,%.*f", decimals, lat, decimals, lon)
}
