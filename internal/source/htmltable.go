package source

import (
	"context"
	"fmt"
	"strings"

	"recycling-bins/internal/logger"
	"recycling-bins/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// TablePage describes one HTML page listing bin addresses in a table.
type TablePage struct {
	URL   string
	Label string
	// Rows selects the table rows.
	Rows string
	// AddressCell and NumberCell are 1-based column indexes; NumberCell 0 means the
	// house number is part of the address text.
	AddressCell int
	NumberCell  int
	// CellText optionally narrows a cell to a child element, e.g. "p".
	CellText   string
	SkipHeader bool
}

const rishonBaseURL = "https://www.rishonlezion.muni.il/Residents/Environment/SanitationRecycling/Pages/"

// RishonLezionPages are the municipal pages, one per bin type.
var RishonLezionPages = []TablePage{
	{URL: rishonBaseURL + "PlasticRecycling.aspx", Label: "Plastic", Rows: ".ms-listviewtable tbody tr", AddressCell: 2},
	{URL: rishonBaseURL + "TextileRecycling.aspx", Label: "Textile", Rows: ".ms-listviewtable tbody tr", AddressCell: 2},
	{URL: rishonBaseURL + "RecyclingElectronics.aspx", Label: "Electronics", Rows: ".ms-listviewtable tbody tr", AddressCell: 2},
	{URL: rishonBaseURL + "boxesRecycling.aspx", Label: "boxes", Rows: ".ms-listviewtable tbody tr", AddressCell: 1},
}

// RehovotPages are the municipal pages for orange, blue and cardboard bins.
var RehovotPages = []TablePage{
	{URL: "https://www.rehovot.muni.il/314/", Label: "פחים כתומים", Rows: ".table.table-bordered tbody tr", AddressCell: 1},
	{URL: "https://www.rehovot.muni.il/863/", Label: "פחים כחולים", Rows: "table tbody tr", AddressCell: 1, SkipHeader: true},
	{URL: "https://www.rehovot.muni.il/317/", Label: "קרטונים", Rows: "table tbody tr", AddressCell: 1, NumberCell: 2, CellText: "p", SkipHeader: true},
}

// HTMLTable scrapes address tables and geocodes each address.
type HTMLTable struct {
	name     string
	city     string
	client   Client
	geocoder Geocoder
	pages    []TablePage
	log      zerolog.Logger
}

func NewHTMLTable(name, city string, client Client, geocoder Geocoder, pages []TablePage) *HTMLTable {
	return &HTMLTable{
		name:     name,
		city:     city,
		client:   client,
		geocoder: geocoder,
		pages:    pages,
		log:      logger.ForSource(name, city),
	}
}

func NewRishonLezion(client Client, geocoder Geocoder) *HTMLTable {
	return NewHTMLTable("rishon-lezion", "Rishon Lezion", client, geocoder, RishonLezionPages)
}

func NewRehovot(client Client, geocoder Geocoder) *HTMLTable {
	return NewHTMLTable("rehovot", "Rehovot", client, geocoder, RehovotPages)
}

func (a *HTMLTable) Name() string { return a.name }
func (a *HTMLTable) City() string { return a.city }

// FetchRaw returns one item per geocoded row. Rows that cannot be geocoded are skipped.
func (a *HTMLTable) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	var items []models.RawItem
	for _, page := range a.pages {
		doc, err := a.client.GetHTML(ctx, a.name, page.URL)
		if err != nil {
			return nil, err
		}

		addresses := page.addresses(doc)
		var missed int
		for _, addr := range addresses {
			c, found, err := a.geocoder.Geocode(ctx, addr, a.city)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				a.log.Warn().Err(err).Str("address", addr).Msg("geocoding failed")
				missed++
				continue
			}
			if !found {
				missed++
				continue
			}
			items = append(items, models.RawItem{
				City:           a.city,
				RawAddress:     addr,
				Latitude:       c.Latitude,
				Longitude:      c.Longitude,
				ContainerTypes: []string{page.Label},
			})
		}

		a.log.Debug().
			Str("page", page.URL).
			Int("rows", len(addresses)).
			Int("not_geocoded", missed).
			Msg("page scraped")
	}
	return items, nil
}

// addresses extracts the non-empty address of every data row.
func (p TablePage) addresses(doc *goquery.Document) []string {
	var out []string
	doc.Find(p.Rows).Each(func(i int, row *goquery.Selection) {
		if p.SkipHeader && i == 0 {
			return
		}
		addr := p.cell(row, p.AddressCell)
		if addr == "" {
			return
		}
		if p.NumberCell > 0 {
			if n := p.cell(row, p.NumberCell); n != "" && n != "-" {
				addr += " " + n
			}
		}
		out = append(out, addr)
	})
	return out
}

func (p TablePage) cell(row *goquery.Selection, col int) string {
	sel := fmt.Sprintf("td:nth-child(%d)", col)
	if p.CellText != "" {
		sel += " " + p.CellText
	}
	return strings.TrimSpace(row.Find(sel).Text())
}
