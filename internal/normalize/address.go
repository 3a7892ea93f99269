package normalize

import (
	"regexp"
	"strings"

	"recycling-bins/internal/models"

	"golang.org/x/text/unicode/norm"
)

// UnknownStreet is substituted when nothing usable is left of an address.
const UnknownStreet = "unknown"

// Landmark resolves any address containing Match to a fixed street and house number.
type Landmark struct {
	Match       string `mapstructure:"match"`
	Street      string `mapstructure:"street"`
	HouseNumber string `mapstructure:"house_number"`
}

// DefaultLandmarks are the landmark addresses known to appear in municipal data.
var DefaultLandmarks = []Landmark{
	{Match: "בית המשפט", Street: "ישראל גלילי", HouseNumber: "5"},
}

// DefaultCityNames are stripped wherever they appear in an address.
var DefaultCityNames = []string{"ראשון לציון"}

// fillerPhrases are descriptive fragments removed from the street name.
var fillerPhrases = []string{
	"ליד הדואר",
	"ליד התחנה",
	"ליד גן הילדים",
	"במרכז המסחרי",
	"בגינה הציבורית",
	"בכיכר",
	"בסמטה",
	"מיתחם",
	"בצמוד",
	"סוף",
	`\`,
}

const (
	cornerMarker   = "פינת"
	oppositeMarker = "מול"
)

var (
	trailingNumberRe = regexp.MustCompile(`^(.*?)\s*(\d+)?$`)
	digitsRe         = regexp.MustCompile(`\d+`)
	parentheticalRe  = regexp.MustCompile(`\(.*?\)`)
	streetPrefixRe   = regexp.MustCompile(`^(?:רח['׳]|רחוב\s*)`)
	boulevardRe      = regexp.MustCompile(`^(?:שד['׳]|שדרות\s*)`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// separatorRule splits a cleaned address into a street and an optional house number.
type separatorRule struct {
	name  string
	match func(string) bool
	split func(string) (street, houseNumber string)
}

// separatorRules are evaluated in order; the first matching rule wins.
var separatorRules = []separatorRule{
	{name: "corner", match: containsFunc(cornerMarker), split: splitCorner},
	{name: "backslash", match: containsFunc(`\`), split: splitBackslash},
	{name: "opposite", match: containsFunc(oppositeMarker), split: splitOpposite},
	{name: "slash", match: containsFunc("/"), split: splitSlash},
	{name: "default", match: func(string) bool { return true }, split: splitTrailingNumber},
}

func containsFunc(marker string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, marker) }
}

func splitCorner(s string) (string, string) {
	before, _, _ := strings.Cut(s, cornerMarker)
	return strings.TrimSpace(before), ""
}

func splitBackslash(s string) (string, string) {
	before, _, _ := strings.Cut(s, `\`)
	return strings.TrimSpace(before), ""
}

func splitOpposite(s string) (string, string) {
	before, after, _ := strings.Cut(s, oppositeMarker)
	// only the segment up to a repeated marker is considered
	after, _, _ = strings.Cut(after, oppositeMarker)
	return strings.TrimSpace(before), digitsRe.FindString(after)
}

func splitSlash(s string) (string, string) {
	before, _, _ := strings.Cut(s, "/")
	return strings.TrimSpace(before), ""
}

func splitTrailingNumber(s string) (string, string) {
	m := trailingNumberRe.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	return m[1], m[2]
}

// ParserOptions configures the tables a Parser works from.
type ParserOptions struct {
	CityNames []string
	Landmarks []Landmark
	// Aliases maps a complete raw address to a replacement before parsing.
	Aliases map[string]string
}

// Parser decomposes free-text Hebrew addresses into street and house number.
// A Parser is immutable after construction and safe for concurrent use.
type Parser struct {
	cityNames []string
	landmarks []Landmark
	aliases   map[string]string
}

// NewParser builds a parser. Nil tables fall back to the defaults.
func NewParser(opts ParserOptions) *Parser {
	p := &Parser{
		cityNames: opts.CityNames,
		landmarks: opts.Landmarks,
		aliases:   make(map[string]string, len(opts.Aliases)),
	}
	if p.cityNames == nil {
		p.cityNames = DefaultCityNames
	}
	if p.landmarks == nil {
		p.landmarks = DefaultLandmarks
	}
	for k, v := range opts.Aliases {
		p.aliases[norm.NFC.String(strings.TrimSpace(k))] = v
	}
	return p
}

// ParseValue parses a decoded JSON value; anything but a string is treated as no input.
func (p *Parser) ParseValue(v any) models.NormalizedAddress {
	s, ok := v.(string)
	if !ok {
		return models.NormalizedAddress{}
	}
	return p.Parse(s)
}

// Parse never fails. An empty input yields an empty street, anything else that cannot
// be parsed yields UnknownStreet.
func (p *Parser) Parse(raw string) models.NormalizedAddress {
	if raw == "" {
		return models.NormalizedAddress{}
	}

	full, cleaned := p.clean(raw)

	// landmarks win wherever they appear, including after the first comma
	for _, lm := range p.landmarks {
		if lm.Match != "" && strings.Contains(full, lm.Match) {
			return models.NormalizedAddress{Street: lm.Street, HouseNumber: lm.HouseNumber}
		}
	}

	var street, houseNumber string
	for _, rule := range separatorRules {
		if rule.match(cleaned) {
			street, houseNumber = rule.split(cleaned)
			break
		}
	}

	return models.NormalizedAddress{Street: cleanStreet(street), HouseNumber: houseNumber}
}

// clean applies aliases, strips city names and drops everything from the first comma.
// It returns the aliased input alongside the cleaned text.
func (p *Parser) clean(raw string) (string, string) {
	full := norm.NFC.String(raw)
	if alias, ok := p.aliases[strings.TrimSpace(full)]; ok {
		full = norm.NFC.String(alias)
	}
	s := full
	for _, city := range p.cityNames {
		if city != "" {
			s = strings.ReplaceAll(s, city, "")
		}
	}
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return full, strings.TrimSpace(s)
}

func cleanStreet(street string) string {
	for _, phrase := range fillerPhrases {
		street = strings.ReplaceAll(street, phrase, "")
	}
	street = strings.TrimSpace(parentheticalRe.ReplaceAllString(street, ""))
	street = streetPrefixRe.ReplaceAllString(street, "")
	street = boulevardRe.ReplaceAllString(street, "שדרות ")
	street = strings.TrimSpace(whitespaceRe.ReplaceAllString(street, " "))
	if street == "" {
		return UnknownStreet
	}
	return street
}

// FormatForGeocoding renders an address as a free-form geocoder query.
func (p *Parser) FormatForGeocoding(raw, city string) string {
	if raw == "" || city == "" {
		return ""
	}
	addr := p.Parse(raw)
	q := addr.Street
	if addr.HouseNumber != "" {
		q += " " + addr.HouseNumber
	}
	return q + ", " + city + ", Israel"
}

// FormatStreetForGeocoding is FormatForGeocoding without the house number.
func (p *Parser) FormatStreetForGeocoding(raw, city string) string {
	if raw == "" || city == "" {
		return ""
	}
	return p.Parse(raw).Street + ", " + city + ", Israel"
}
