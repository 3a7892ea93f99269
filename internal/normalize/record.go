package normalize

import (
	"iter"
	"strings"

	"recycling-bins/internal/geo"
	"recycling-bins/internal/models"
)

// Normalizer validates raw source items and parses their addresses.
type Normalizer struct {
	parser *Parser
}

// NewNormalizer creates a normalizer around parser.
func NewNormalizer(parser *Parser) *Normalizer {
	return &Normalizer{parser: parser}
}

// Normalize converts one raw item. Items with unusable coordinates report false.
func (n *Normalizer) Normalize(item models.RawItem) (models.NormalizedLocationRecord, bool) {
	if !geo.IsValid(item.Latitude, item.Longitude) {
		return models.NormalizedLocationRecord{}, false
	}

	addr := n.parser.Parse(item.RawAddress)
	street := addr.Street
	if street == "" {
		street = UnknownStreet
	}

	types := make([]string, 0, len(item.ContainerTypes))
	for _, t := range item.ContainerTypes {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	return models.NormalizedLocationRecord{
		City:           item.City,
		Street:         street,
		HouseNumber:    addr.HouseNumber,
		ContainerTypes: types,
		BinCount:       item.BinCount,
		Location: models.Coordinates{
			Latitude:  item.Latitude,
			Longitude: item.Longitude,
		},
		ExternalID: item.ExternalID,
	}, true
}

// Records yields the normalized form of every valid item. The sequence can be ranged
// over more than once.
func (n *Normalizer) Records(items []models.RawItem) iter.Seq[models.NormalizedLocationRecord] {
	return func(yield func(models.NormalizedLocationRecord) bool) {
		for _, item := range items {
			rec, ok := n.Normalize(item)
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Pipeline chains normalization and schema mapping.
type Pipeline struct {
	normalizer *Normalizer
	mapper     *Mapper
}

// NewPipeline wires a normalizer to a mapper.
func NewPipeline(normalizer *Normalizer, mapper *Mapper) *Pipeline {
	return &Pipeline{normalizer: normalizer, mapper: mapper}
}

// Locations yields the schema form of every valid item that still carries at least one bin.
func (p *Pipeline) Locations(items []models.RawItem) iter.Seq[models.LocationSchema] {
	return func(yield func(models.LocationSchema) bool) {
		for rec := range p.normalizer.Records(items) {
			loc := p.mapper.ToSchema(rec)
			if len(loc.Bins) == 0 {
				continue
			}
			if !yield(loc) {
				return
			}
		}
	}
}
