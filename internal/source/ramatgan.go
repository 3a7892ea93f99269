package source

import (
	"context"
	"strings"

	"recycling-bins/internal/models"
	"recycling-bins/internal/normalize"
)

const (
	RamatGanURL      = "https://rgsec.ramat-gan.muni.il/__svws__/SvService.asmx/GetCategoriesCoordinates"
	ramatGanCategory = "מתקני מיחזור"
)

// ramatGanLabels are searched for in the facility title; one facility may carry several.
var ramatGanLabels = []string{"אריזות", "נייר", "אלקטרונית", "טקסטיל", "קרטונים"}

// RamatGan reads the municipal map web service.
type RamatGan struct {
	client Client
	url    string
}

func NewRamatGan(client Client, url string) *RamatGan {
	if url == "" {
		url = RamatGanURL
	}
	return &RamatGan{client: client, url: url}
}

func (a *RamatGan) Name() string { return "ramat-gan" }
func (a *RamatGan) City() string { return "Ramat Gan" }

func (a *RamatGan) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	var res struct {
		D []map[string]any `json:"d"`
	}
	if err := a.client.PostJSON(ctx, a.Name(), a.url, map[string]string{"category": ramatGanCategory}, &res); err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(res.D))
	for _, rec := range res.D {
		title := normalize.CleanLabel(attrString(rec, "Title"))
		var labels []string
		for _, l := range ramatGanLabels {
			if strings.Contains(title, l) {
				labels = append(labels, l)
			}
		}

		items = append(items, models.RawItem{
			City: a.City(),
			// the upstream field names are misspelled
			RawAddress:     joinAddress(attrString(rec, "SteetName"), attrString(rec, "BuildingNumber")),
			Latitude:       attrFloat(rec, "Latitude"),
			Longitude:      attrFloat(rec, "Longtitude"),
			ContainerTypes: labels,
			ExternalID:     attrString(rec, "Id"),
		})
	}
	return items, nil
}
