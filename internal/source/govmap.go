package source

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/geo"
	"recycling-bins/internal/logger"
	"recycling-bins/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	GovmapURL         = "https://ags.govmap.gov.il"
	govmapIdentify    = "/Identify/IdentifyByXY"
	govmapGlassLayer  = "glass_recylce_stands"
	govmapAddressFld  = "כתובת"
	govmapCountrySufx = ", ישראל"
	// UnknownCity is used for stands whose address carries no city.
	UnknownCity = "לא ידוע"
)

// SearchPoint is a query location in the Israeli Transverse Mercator grid.
type SearchPoint struct {
	X, Y float64
	Name string
}

// govmapCityPoints cover the populated areas the regular grid would sample too sparsely.
var govmapCityPoints = []SearchPoint{
	{186026, 692504, "נתניה"},
	{209000, 752000, "קריית שמונה"},
	{203000, 745000, "צפת"},
	{198000, 738000, "כרמיאל"},
	{215000, 733000, "טבריה"},
	{191000, 733000, "עכו"},
	{198500, 725000, "נצרת"},
	{185000, 725000, "חיפה"},
	{192000, 712000, "עפולה"},
	{185000, 705000, "חדרה"},
	{182500, 672500, "הרצליה"},
	{187000, 675000, "הוד השרון"},
	{184500, 670000, "רמת השרון"},
	{178500, 663900, "תל אביב צפון"},
	{178000, 658000, "תל אביב דרום"},
	{184000, 682000, "רעננה"},
	{190704, 689190, "כפר סבא"},
	{185000, 666000, "רמת גן"},
	{181500, 660000, "חולון"},
	{176500, 657500, "בת ים"},
	{188000, 668000, "פתח תקווה"},
	{195000, 683000, "ראש העין"},
	{220000, 633000, "ירושלים מרכז"},
	{223000, 635000, "ירושלים מזרח"},
	{217000, 635000, "ירושלים מערב"},
	{220000, 631000, "ירושלים דרום"},
	{215000, 642000, "מבשרת ציון"},
	{225000, 625000, "בית לחם"},
	{177500, 644000, "אשדוד"},
	{174500, 635000, "אשקלון"},
	{194000, 627000, "קריית גת"},
	{206000, 617000, "ערד"},
	{182000, 608000, "באר שבע צפון"},
	{179000, 605000, "באר שבע דרום"},
	{178500, 591000, "אופקים"},
	{195000, 593000, "דימונה"},
	{178000, 569000, "מצפה רמון"},
	{190000, 545000, "אילת"},
}

// Grid bounds in ITM meters.
const (
	gridMinX = 150000
	gridMaxX = 250000
	gridMinY = 450000
	gridMaxY = 780000
)

// SearchPoints returns the city points followed by a regular grid, keeping one point
// per square kilometer.
func SearchPoints(step int) []SearchPoint {
	var all []SearchPoint
	all = append(all, govmapCityPoints...)
	for x := gridMinX; x <= gridMaxX; x += step {
		for y := gridMinY; y <= gridMaxY; y += step {
			all = append(all, SearchPoint{X: float64(x), Y: float64(y), Name: fmt.Sprintf("grid_%d_%d", x, y)})
		}
	}

	seen := make(map[string]struct{}, len(all))
	points := all[:0]
	for _, p := range all {
		key := fmt.Sprintf("%d,%d", int64(math.Round(p.X/1000)), int64(math.Round(p.Y/1000)))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		points = append(points, p)
	}
	return points
}

type identifyRequest struct {
	X              float64         `json:"x"`
	Y              float64         `json:"y"`
	MapTolerance   int             `json:"mapTolerance"`
	IsPersonalSite bool            `json:"IsPersonalSite"`
	Layers         []identifyLayer `json:"layers"`
}

type identifyLayer struct {
	LayerType   int    `json:"LayerType"`
	LayerName   string `json:"LayerName"`
	LayerFilter string `json:"LayerFilter"`
}

type identifyResponse struct {
	Data []struct {
		Result []identifyResult `json:"Result"`
	} `json:"data"`
}

type identifyResult struct {
	Centroid *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"centroid"`
	Tabs []struct {
		Fields []struct {
			FieldName  string `json:"FieldName"`
			FieldValue any    `json:"FieldValue"`
		} `json:"fields"`
	} `json:"tabs"`
}

// GovmapOptions tunes the identify sweep.
type GovmapOptions struct {
	BaseURL      string
	BatchSize    int
	BatchDelay   time.Duration
	MapTolerance int
	GridStep     int
}

// Govmap sweeps the national glass-stand layer with spatial identify queries.
type Govmap struct {
	client Client
	seen   Deduper
	opts   GovmapOptions
	points []SearchPoint
	log    zerolog.Logger
}

func NewGovmap(client Client, seen Deduper, opts GovmapOptions) *Govmap {
	if opts.BaseURL == "" {
		opts.BaseURL = GovmapURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.MapTolerance <= 0 {
		opts.MapTolerance = 10000
	}
	if opts.GridStep <= 0 {
		opts.GridStep = 7500
	}
	if seen == nil {
		seen = NewMemorySet()
	}
	return &Govmap{
		client: client,
		seen:   seen,
		opts:   opts,
		points: SearchPoints(opts.GridStep),
		log:    logger.ForSource("govmap-glass", "national"),
	}
}

func (a *Govmap) Name() string { return "govmap-glass" }

// City is empty: stands carry their own city.
func (a *Govmap) City() string { return "" }

// WithPoints replaces the sweep points.
func (a *Govmap) WithPoints(points []SearchPoint) *Govmap {
	a.points = points
	return a
}

// FetchRaw queries every search point in concurrent batches. A failing point is logged
// and skipped; the source fails only when every point failed.
func (a *Govmap) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	if err := a.seen.Reset(ctx); err != nil {
		return nil, apperr.Fetch(a.Name(), "failed to reset stand set", err)
	}

	var (
		items    []models.RawItem
		mu       sync.Mutex
		failures int
		lastErr  error
	)

	for start := 0; start < len(a.points); start += a.opts.BatchSize {
		batch := a.points[start:min(start+a.opts.BatchSize, len(a.points))]
		results := make([][]identifyResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, p := range batch {
			g.Go(func() error {
				res, err := a.identify(gctx, p)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					mu.Lock()
					failures++
					lastErr = err
					mu.Unlock()
					a.log.Warn().Err(err).Str("point", p.Name).Msg("identify failed")
					return nil
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, res := range results {
			for _, r := range res {
				item, ok := standItem(r)
				if !ok {
					continue
				}
				isNew, err := a.seen.Add(ctx, geo.RoundedKey(item.Latitude, item.Longitude, 7))
				if err != nil {
					return nil, apperr.Fetch(a.Name(), "failed to record stand", err)
				}
				if isNew {
					items = append(items, item)
				}
			}
		}

		if start+a.opts.BatchSize < len(a.points) && a.opts.BatchDelay > 0 {
			if err := sleep(ctx, a.opts.BatchDelay); err != nil {
				return nil, err
			}
		}
	}

	if failures > 0 && failures == len(a.points) {
		return nil, apperr.Fetch(a.Name(), "every identify request failed", lastErr)
	}
	a.log.Debug().Int("points", len(a.points)).Int("failed_points", failures).Int("stands", len(items)).Msg("sweep done")
	return items, nil
}

func (a *Govmap) identify(ctx context.Context, p SearchPoint) ([]identifyResult, error) {
	body := identifyRequest{
		X:            p.X,
		Y:            p.Y,
		MapTolerance: a.opts.MapTolerance,
		Layers:       []identifyLayer{{LayerType: 0, LayerName: govmapGlassLayer}},
	}
	var res identifyResponse
	if err := a.client.PostJSON(ctx, a.Name(), strings.TrimRight(a.opts.BaseURL, "/")+govmapIdentify, body, &res); err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, nil
	}
	return res.Data[0].Result, nil
}

// standItem converts one identify hit. Hits without a centroid or attribute tab are dropped.
func standItem(r identifyResult) (models.RawItem, bool) {
	if r.Centroid == nil || len(r.Tabs) == 0 {
		return models.RawItem{}, false
	}
	lat, lon := geo.ITMToWGS84(r.Centroid.X, r.Centroid.Y)

	var address string
	for _, f := range r.Tabs[0].Fields {
		if f.FieldName == govmapAddressFld {
			if s, ok := f.FieldValue.(string); ok {
				address = s
			}
		}
	}
	street, city := splitStandAddress(address)

	return models.RawItem{
		City:           city,
		RawAddress:     street,
		Latitude:       lat,
		Longitude:      lon,
		ContainerTypes: []string{string(models.BinTypeGlass)},
	}, true
}

var countrySuffixRe = regexp.MustCompile(regexp.QuoteMeta(govmapCountrySufx) + `\s*$`)

// splitStandAddress splits "street num, city, ישראל" into its street part and city.
func splitStandAddress(address string) (street, city string) {
	address = strings.TrimSpace(countrySuffixRe.ReplaceAllString(strings.TrimSpace(address), ""))
	if address == "" {
		return "", UnknownCity
	}
	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return parts[0], UnknownCity
	}
	return parts[0], parts[len(parts)-1]
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
