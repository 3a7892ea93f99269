package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/models"
)

// csvColumns is the expected header of a bin export file. types holds one or more
// labels separated by "|".
var csvColumns = []string{"city", "address", "latitude", "longitude", "types", "bin_count", "external_id"}

// CSVFile reads bins from a local export, e.g. a municipality's open-data dump.
type CSVFile struct {
	path string
	city string
}

// NewCSVFile reads path. A non-empty city overrides the city column.
func NewCSVFile(path, city string) *CSVFile {
	return &CSVFile{path: path, city: city}
}

func (a *CSVFile) Name() string { return "file:" + filepath.Base(a.path) }
func (a *CSVFile) City() string { return a.city }

func (a *CSVFile) FetchRaw(_ context.Context) ([]models.RawItem, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, apperr.Fetch(a.Name(), "failed to open file", err)
	}
	defer f.Close()

	items, err := parseCSV(f, a.city)
	if err != nil {
		return nil, apperr.Parse(a.Name(), "failed to read bins", err)
	}
	return items, nil
}

func parseCSV(r io.Reader, city string) ([]models.RawItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))] = i
	}
	for _, col := range []string{"address", "latitude", "longitude", "types"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q (expected %s)", col, strings.Join(csvColumns, ","))
		}
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var items []models.RawItem
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		lat, err := strconv.ParseFloat(field(record, "latitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid latitude: %q", line, field(record, "latitude"))
		}
		lon, err := strconv.ParseFloat(field(record, "longitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid longitude: %q", line, field(record, "longitude"))
		}
		count := 0
		if s := field(record, "bin_count"); s != "" {
			if count, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d: invalid bin count: %q", line, s)
			}
		}

		itemCity := city
		if itemCity == "" {
			itemCity = field(record, "city")
		}

		items = append(items, models.RawItem{
			City:           itemCity,
			RawAddress:     field(record, "address"),
			Latitude:       lat,
			Longitude:      lon,
			ContainerTypes: strings.Split(field(record, "types"), "|"),
			BinCount:       count,
			ExternalID:     field(record, "external_id"),
		})
	}
	return items, nil
}
