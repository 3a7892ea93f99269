package source

import (
	"fmt"
	"slices"
	"strings"

	"recycling-bins/internal/config"
	"recycling-bins/internal/httpclient"
	"recycling-bins/internal/normalize"
)

// Registry holds the known adapters in collection order.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

func (r *Registry) Get(name string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Select returns the named adapters in registry order. No names selects all of them.
func (r *Registry) Select(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		return slices.Clone(r.adapters), nil
	}

	for _, n := range names {
		if _, ok := r.Get(n); !ok {
			return nil, fmt.Errorf("source: unknown source %q (known: %s)", n, strings.Join(r.Names(), ", "))
		}
	}
	var out []Adapter
	for _, a := range r.adapters {
		if slices.Contains(names, a.Name()) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Dependencies are the shared services the default adapters are built on.
type Dependencies struct {
	Parser *normalize.Parser
	Cache  Cache
	Seen   Deduper
}

// NewDefaultRegistry builds every production adapter from cfg.
func NewDefaultRegistry(cfg config.Config, deps Dependencies) *Registry {
	base := httpclient.Options{
		Timeout:      cfg.HTTP.Timeout,
		RetryCount:   cfg.HTTP.RetryCount,
		RetryWait:    cfg.HTTP.RetryWait,
		RetryMaxWait: cfg.HTTP.RetryMaxWait,
		UserAgent:    cfg.HTTP.UserAgent,
	}
	client := httpclient.New(base)

	geoOpts := base
	geoOpts.Interval = cfg.Geocoder.Interval
	geoOpts.UserAgent = "RecyclingBinsApp/1.0"
	geocoder := NewNominatim(httpclient.New(geoOpts), cfg.Geocoder.URL, deps.Parser, deps.Cache)

	govOpts := base
	govOpts.Headers = map[string]string{
		"Referer": "https://www.govmap.gov.il/",
		"Origin":  "https://www.govmap.gov.il",
	}
	govmap := NewGovmap(httpclient.New(govOpts), deps.Seen, GovmapOptions{
		BaseURL:      cfg.Govmap.BaseURL,
		BatchSize:    cfg.Govmap.BatchSize,
		BatchDelay:   cfg.Govmap.BatchDelay,
		MapTolerance: cfg.Govmap.MapTolerance,
		GridStep:     cfg.Govmap.GridStep,
	})

	return NewRegistry(
		NewTelAviv(client, ""),
		NewHerzliya(client, ""),
		NewPetahTikva(client, "", nil),
		NewRamatGan(client, ""),
		NewJerusalem(client, ""),
		NewRishonLezion(client, geocoder),
		NewRehovot(client, geocoder),
		govmap,
	)
}
