package models

import "time"

// BinType is one of the canonical recycling categories.
type BinType string

const (
	BinTypePlastic    BinType = "Plastic"
	BinTypePaper      BinType = "Paper"
	BinTypeGlass      BinType = "Glass"
	BinTypeElectronic BinType = "Electronic"
	BinTypeTextile    BinType = "Textile"
	BinTypePackaging  BinType = "Packaging"
	BinTypeCardboard  BinType = "Cardboard"
)

// BinTypes lists the canonical types in a stable order.
var BinTypes = []BinType{
	BinTypePlastic,
	BinTypePaper,
	BinTypeGlass,
	BinTypeElectronic,
	BinTypeTextile,
	BinTypePackaging,
	BinTypeCardboard,
}

// IsCanonical reports whether t is one of the canonical bin types.
func (t BinType) IsCanonical() bool {
	for _, c := range BinTypes {
		if c == t {
			return true
		}
	}
	return false
}

const StatusActive = "active"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BinEntry is a single container type at a location, keyed for upsert by UniqueExternalID.
type BinEntry struct {
	BinTypeName      string  `json:"bin_type_name"`
	BuildingNumber   string  `json:"building_number,omitempty"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	BinCount         int     `json:"bin_count"`
	Status           string  `json:"status"`
	UniqueExternalID string  `json:"unique_external_id"`
}

// LocationSchema groups the bins found at one street location of a city.
type LocationSchema struct {
	City   string     `json:"city"`
	Street string     `json:"street"`
	Bins   []BinEntry `json:"bins"`
}

// RecyclingBin is the persisted, flattened form of a BinEntry.
type RecyclingBin struct {
	ID               int64     `json:"id"`
	CityName         string    `json:"city_name"`
	StreetName       string    `json:"street_name"`
	BuildingNumber   string    `json:"building_number,omitempty"`
	BinTypeName      string    `json:"bin_type_name"`
	BinCount         int       `json:"bin_count"`
	Status           string    `json:"status"`
	UniqueExternalID string    `json:"unique_external_id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	DistanceMeters   float64   `json:"distance_meters,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Flatten expands a location into persisted rows.
func (l LocationSchema) Flatten() []RecyclingBin {
	bins := make([]RecyclingBin, 0, len(l.Bins))
	for _, b := range l.Bins {
		bins = append(bins, RecyclingBin{
			CityName:         l.City,
			StreetName:       l.Street,
			BuildingNumber:   b.BuildingNumber,
			BinTypeName:      b.BinTypeName,
			BinCount:         b.BinCount,
			Status:           b.Status,
			UniqueExternalID: b.UniqueExternalID,
			Latitude:         b.Latitude,
			Longitude:        b.Longitude,
		})
	}
	return bins
}

// UpsertResult mirrors the counters of a bulk upsert.
type UpsertResult struct {
	Matched  int `json:"matched"`
	Modified int `json:"modified"`
	Upserted int `json:"upserted"`
}

// Add accumulates another result into r.
func (r *UpsertResult) Add(o UpsertResult) {
	r.Matched += o.Matched
	r.Modified += o.Modified
	r.Upserted += o.Upserted
}

// BinFilter narrows a bin listing.
type BinFilter struct {
	City    string
	BinType BinType
	Limit   int
}
