package source

import (
	"context"

	"recycling-bins/internal/models"
)

const (
	JerusalemURL = "https://www.jerusalem.muni.il/Umbraco/Surface/Int/GetMapNew"
	// jerusalemMapID selects the recycling map on the municipal site.
	jerusalemMapID = 168571
	// jerusalemGlassCategory is skipped; glass comes from the national layer.
	jerusalemGlassCategory = "מיחזור זכוכית"
)

// Jerusalem reads the municipal recycling map.
type Jerusalem struct {
	client Client
	url    string
}

func NewJerusalem(client Client, url string) *Jerusalem {
	if url == "" {
		url = JerusalemURL
	}
	return &Jerusalem{client: client, url: url}
}

func (a *Jerusalem) Name() string { return "jerusalem" }
func (a *Jerusalem) City() string { return "Jerusalem" }

func (a *Jerusalem) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	body := map[string]any{"culture": "he-IL", "ms": jerusalemMapID}

	var res []map[string]any
	if err := a.client.PostJSON(ctx, a.Name(), a.url, body, &res); err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(res))
	for _, rec := range res {
		category := attrString(rec, "CatName")
		if category == jerusalemGlassCategory {
			continue
		}

		items = append(items, models.RawItem{
			City:           a.City(),
			RawAddress:     attrString(rec, "Address"),
			Latitude:       attrFloat(rec, "Lat"),
			Longitude:      attrFloat(rec, "Long"),
			ContainerTypes: []string{category},
			ExternalID:     attrString(rec, "Id"),
		})
	}
	return items, nil
}
