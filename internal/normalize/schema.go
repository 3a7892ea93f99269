package normalize

import (
	"recycling-bins/internal/geo"
	"recycling-bins/internal/models"
)

// Mapper turns normalized records into the persisted location schema.
type Mapper struct {
	canon *Canonicalizer
}

// NewMapper creates a mapper that resolves bin labels through canon.
func NewMapper(canon *Canonicalizer) *Mapper {
	return &Mapper{canon: canon}
}

// ToSchema emits one bin entry per container type of the record, in source order.
// Labels the canonicalizer's policy rejects produce no entry.
func (m *Mapper) ToSchema(rec models.NormalizedLocationRecord) models.LocationSchema {
	loc := models.LocationSchema{
		City:   rec.City,
		Street: rec.Street,
		Bins:   make([]models.BinEntry, 0, len(rec.ContainerTypes)),
	}

	count := rec.BinCount
	if count < 1 {
		count = 1
	}

	externalID := rec.ExternalID
	if externalID == "" {
		externalID = geo.RoundedKey(rec.Location.Latitude, rec.Location.Longitude, 6)
	}

	for _, label := range rec.ContainerTypes {
		typeName, ok := m.canon.Resolve(label)
		if !ok {
			continue
		}
		loc.Bins = append(loc.Bins, models.BinEntry{
			BinTypeName:      typeName,
			BuildingNumber:   rec.HouseNumber,
			Latitude:         rec.Location.Latitude,
			Longitude:        rec.Location.Longitude,
			BinCount:         count,
			Status:           models.StatusActive,
			UniqueExternalID: externalID + "-" + typeName,
		})
	}

	return loc
}
