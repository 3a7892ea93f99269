package models

// RawItem is what a source adapter surfaces for a single upstream record.
// Latitude and Longitude are WGS84; projected sources convert before handing items over.
type RawItem struct {
	City           string
	RawAddress     string
	Latitude       float64
	Longitude      float64
	ContainerTypes []string
	BinCount       int
	ExternalID     string
}

// NormalizedAddress is the result of parsing a free-text address.
// An empty HouseNumber means the address carried none.
type NormalizedAddress struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number,omitempty"`
}

// NormalizedLocationRecord is one validated, address-normalized upstream item.
// ContainerTypes keeps the source labels; canonicalization happens when mapping to the schema.
type NormalizedLocationRecord struct {
	City           string
	Street         string
	HouseNumber    string
	ContainerTypes []string
	BinCount       int
	Location       Coordinates
	ExternalID     string
}
