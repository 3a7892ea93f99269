package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		lat      float64
		lon      float64
		expected bool
	}{
		{name: "tel aviv", lat: 32.08, lon: 34.78, expected: true},
		{name: "eilat", lat: 29.55, lon: 34.95, expected: true},
		{name: "latitude out of bounds", lat: 40.0, lon: 34.78, expected: false},
		{name: "longitude out of bounds", lat: 32.08, lon: 36.5, expected: false},
		{name: "swapped pair", lat: 34.78, lon: 32.08, expected: false},
		{name: "identical values", lat: 33.0, lon: 33.0, expected: false},
		{name: "zero pair", lat: 0, lon: 0, expected: false},
		{name: "nan latitude", lat: math.NaN(), lon: 34.78, expected: false},
		{name: "infinite longitude", lat: 32.08, lon: math.Inf(1), expected: false},
		{name: "box corner", lat: MinLatitude, lon: MaxLongitude, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValid(tt.lat, tt.lon))
		})
	}
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		ok       bool
	}{
		{name: "float", input: 31.7767, expected: 31.7767, ok: true},
		{name: "int", input: 35, expected: 35, ok: true},
		{name: "decimal string", input: " 35.2137 ", expected: 35.2137, ok: true},
		{name: "comma decimal string", input: "31,7767", expected: 31.7767, ok: true},
		{name: "thousands comma", input: "1,234.5", expected: 1234.5, ok: true},
		{name: "empty string", input: "", ok: false},
		{name: "garbage", input: "abc", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "nan", input: math.NaN(), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParseCoordinate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, v, 1e-9)
			}
		})
	}
}

func TestITMToWGS84(t *testing.T) {
	t.Run("grid origin", func(t *testing.T) {
		lat, lon := ITMToWGS84(itmFalseEast, itmFalseNrth)
		assert.InDelta(t, itmLat0, lat, 1e-6)
		assert.InDelta(t, itmLon0, lon, 1e-6)
	})

	t.Run("search grid lands inside the country", func(t *testing.T) {
		points := [][2]float64{
			{178500, 663900},
			{220000, 633000},
			{190000, 545000},
			{209000, 752000},
		}
		for _, p := range points {
			lat, lon := ITMToWGS84(p[0], p[1])
			assert.True(t, IsValid(lat, lon), "ITM %v -> %f,%f", p, lat, lon)
		}
	})

	t.Run("east of origin increases longitude", func(t *testing.T) {
		_, lonWest := ITMToWGS84(itmFalseEast-10000, itmFalseNrth)
		_, lonEast := ITMToWGS84(itmFalseEast+10000, itmFalseNrth)
		assert.Less(t, lonWest, itmLon0)
		assert.Greater(t, lonEast, itmLon0)
	})
}

func TestRoundedKey(t *testing.T) {
	assert.Equal(t, "32.081,34.781", RoundedKey(32.08061, 34.78072, 3))
	assert.Equal(t, RoundedKey(32.08061, 34.78072, 4), RoundedKey(32.080612, 34.780721, 4))
}
