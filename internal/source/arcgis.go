package source

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/logger"
	"recycling-bins/internal/models"
)

const (
	TelAvivURL    = "https://gisn.tel-aviv.gov.il/arcgis/rest/services/WM/IView2WM/MapServer/787/query"
	HerzliyaURL   = "https://services3.arcgis.com/9qGhZGtb39XMVQyR/arcgis/rest/services/survey123_7b3771dc7e724a4c8fb5e022be2110de/FeatureServer/0/query"
	PetahTikvaURL = "https://services9.arcgis.com/tfeLX7LFVABzD11G/arcgis/rest/services/מחזור/FeatureServer"
)

// PetahTikvaLayers are the feature layers holding recycling facilities.
var PetahTikvaLayers = []int{23, 32, 33, 35, 37, 38, 39}

type arcgisResponse struct {
	Features []arcgisFeature `json:"features"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type arcgisFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"geometry"`
}

// queryArcGIS runs a where=1=1 query against a MapServer or FeatureServer layer.
func queryArcGIS(ctx context.Context, client Client, source, url string, extra map[string]string) ([]arcgisFeature, error) {
	params := map[string]string{
		"where":          "1=1",
		"outFields":      "*",
		"f":              "json",
		"returnGeometry": "true",
	}
	for k, v := range extra {
		params[k] = v
	}

	var res arcgisResponse
	if err := client.GetJSON(ctx, source, url, params, &res); err != nil {
		return nil, err
	}
	// ArcGIS reports query failures with a 200 status
	if res.Error != nil {
		return nil, apperr.Fetch(source, fmt.Sprintf("arcgis error %d: %s", res.Error.Code, res.Error.Message), nil)
	}
	return res.Features, nil
}

var labelParentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)

// TelAviv reads the municipal GIS recycling layer.
type TelAviv struct {
	client Client
	url    string
}

func NewTelAviv(client Client, url string) *TelAviv {
	if url == "" {
		url = TelAvivURL
	}
	return &TelAviv{client: client, url: url}
}

func (a *TelAviv) Name() string { return "tel-aviv" }
func (a *TelAviv) City() string { return "Tel Aviv" }

func (a *TelAviv) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	features, err := queryArcGIS(ctx, a.client, a.Name(), a.url, nil)
	if err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(features))
	for _, f := range features {
		attrs := f.Attributes
		items = append(items, models.RawItem{
			City:           a.City(),
			RawAddress:     joinAddress(attrString(attrs, "shem_rechov"), attrString(attrs, "ms_bait")),
			Latitude:       attrFloat(attrs, "Lat"),
			Longitude:      attrFloat(attrs, "Lon"),
			ContainerTypes: []string{telAvivLabel(attrString(attrs, "t_sug"))},
			BinCount:       attrInt(attrs, "ms_mechalim"),
			ExternalID:     attrString(attrs, "oid"),
		})
	}
	return items, nil
}

// telAvivLabel drops parenthesized notes and keeps the part after a slash,
// e.g. "קרטון (גדול)/קרטוניה" becomes "קרטוניה".
func telAvivLabel(label string) string {
	label = strings.TrimSpace(labelParentheticalRe.ReplaceAllString(label, ""))
	if _, after, ok := strings.Cut(label, "/"); ok {
		label = strings.TrimSpace(after)
	}
	return label
}

// Herzliya reads the survey feature service.
type Herzliya struct {
	client Client
	url    string
}

func NewHerzliya(client Client, url string) *Herzliya {
	if url == "" {
		url = HerzliyaURL
	}
	return &Herzliya{client: client, url: url}
}

func (a *Herzliya) Name() string { return "herzliya" }
func (a *Herzliya) City() string { return "Herzliya" }

func (a *Herzliya) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	features, err := queryArcGIS(ctx, a.client, a.Name(), a.url, nil)
	if err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(features))
	skipped := 0
	for _, f := range features {
		attrs := f.Attributes
		labels, ok := herzliyaLabels(attrString(attrs, "field_10"))
		if !ok {
			skipped++
			continue
		}
		id := attrString(attrs, "globalid")
		if id == "" {
			id = attrString(attrs, "objectid")
		}

		item := models.RawItem{
			City:           a.City(),
			RawAddress:     joinAddress(attrString(attrs, "field_3"), digitRunRe.FindString(attrString(attrs, "field_11"))),
			ContainerTypes: labels,
			ExternalID:     id,
		}
		if f.Geometry != nil {
			item.Latitude, item.Longitude = f.Geometry.Y, f.Geometry.X
		}
		items = append(items, item)
	}
	if skipped > 0 {
		log := logger.ForSource(a.Name(), a.City())
		log.Debug().Int("skipped", skipped).Msg("features with unsupported bin types skipped")
	}
	return items, nil
}

// herzliyaTypes are the labels accepted from the survey. Glass stands are served by the
// national glass layer.
var herzliyaTypes = []string{"פלסטיק", "נייר", "אריזות", "קרטון", "טקסטיל"}

// herzliyaLabels splits the comma list of bin types. A feature with no types or with any
// unsupported type is rejected.
func herzliyaLabels(field string) ([]string, bool) {
	if strings.TrimSpace(field) == "" {
		return nil, false
	}
	labels := strings.Split(field, ",")
	for i, l := range labels {
		labels[i] = strings.TrimSpace(l)
		if !slices.Contains(herzliyaTypes, labels[i]) {
			return nil, false
		}
	}
	return labels, true
}

var digitRunRe = regexp.MustCompile(`\d+`)

// petahTikvaFlags maps facility flag attributes to bin labels. Glass is served by the
// national glass layer.
var petahTikvaFlags = []struct {
	attr  string
	label string
}{
	{attr: "Textile", label: "Textile"},
	{attr: "Paper", label: "Paper"},
	{attr: "Cardboard", label: "Cardboard"},
	{attr: "Electric", label: "Electronics"},
	{attr: "Packs", label: "Packaging"},
}

// PetahTikva reads several facility layers of one feature service.
type PetahTikva struct {
	client  Client
	baseURL string
	layers  []int
}

func NewPetahTikva(client Client, baseURL string, layers []int) *PetahTikva {
	if baseURL == "" {
		baseURL = PetahTikvaURL
	}
	if len(layers) == 0 {
		layers = PetahTikvaLayers
	}
	return &PetahTikva{client: client, baseURL: strings.TrimRight(baseURL, "/"), layers: layers}
}

func (a *PetahTikva) Name() string { return "petah-tikva" }
func (a *PetahTikva) City() string { return "Petah Tikva" }

func (a *PetahTikva) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	var items []models.RawItem
	for _, layer := range a.layers {
		url := fmt.Sprintf("%s/%d/query", a.baseURL, layer)
		features, err := queryArcGIS(ctx, a.client, a.Name(), url, map[string]string{
			"spatialRel": "esriSpatialRelIntersects",
			"outSR":      "4326",
		})
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", layer, err)
		}

		for _, f := range features {
			attrs := f.Attributes
			var labels []string
			for _, flag := range petahTikvaFlags {
				if attrInt(attrs, flag.attr) == 1 {
					labels = append(labels, flag.label)
				}
			}
			if len(labels) == 0 {
				continue
			}

			// object ids are only unique within a layer
			id := attrString(attrs, "OBJECTID_1")
			if id != "" {
				id = fmt.Sprintf("%d-%s", layer, id)
			}

			item := models.RawItem{
				City:           a.City(),
				RawAddress:     attrString(attrs, "Address"),
				ContainerTypes: labels,
				ExternalID:     id,
			}
			if f.Geometry != nil {
				item.Latitude, item.Longitude = f.Geometry.Y, f.Geometry.X
			}
			items = append(items, item)
		}
	}
	return items, nil
}
