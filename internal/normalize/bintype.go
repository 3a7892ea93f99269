package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"recycling-bins/internal/models"

	"golang.org/x/text/unicode/norm"
)

// UnknownPolicy decides what happens to a bin whose label is not in the table.
type UnknownPolicy string

const (
	// UnknownDrop discards bins with unrecognized labels.
	UnknownDrop UnknownPolicy = "drop"
	// UnknownKeep keeps the cleaned raw label as the bin type name.
	UnknownKeep UnknownPolicy = "keep"
)

// ParseUnknownPolicy validates a configured policy name.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case UnknownDrop, UnknownKeep:
		return p, nil
	case "":
		return UnknownDrop, nil
	default:
		return "", fmt.Errorf("normalize: unknown bin policy %q", s)
	}
}

// binTypeTable holds every known label variant, keyed in NFC form.
var binTypeTable = map[string]models.BinType{
	"glass":        models.BinTypeGlass,
	"Glass":        models.BinTypeGlass,
	"זכוכית":       models.BinTypeGlass,
	"מיחזור זכוכית": models.BinTypeGlass,
	"מתקן זכוכית":  models.BinTypeGlass,
	"מיכל סגול":    models.BinTypeGlass,

	"Paper":       models.BinTypePaper,
	"נייר":        models.BinTypePaper,
	"מיחזור נייר": models.BinTypePaper,
	"מיכל כחול":   models.BinTypePaper,
	"פחים כחולים": models.BinTypePaper,

	"Cardboard":       models.BinTypeCardboard,
	"boxes":           models.BinTypeCardboard,
	"קרטון":           models.BinTypeCardboard,
	"קרטונים":         models.BinTypeCardboard,
	"מיחזור קרטוניות": models.BinTypeCardboard,
	"קרטוניה":         models.BinTypeCardboard,

	"Electronic":             models.BinTypeElectronic,
	"Electronics":            models.BinTypeElectronic,
	"אלקטרונית":              models.BinTypeElectronic,
	"מיחזור פסולת אלקטרונית": models.BinTypeElectronic,
	"מתקן אלקטרוניקה":        models.BinTypeElectronic,
	"מיכל לאיסוף סוללות":     models.BinTypeElectronic,

	"Textile":      models.BinTypeTextile,
	"טקסטיל":       models.BinTypeTextile,
	"מיחזור טקסטיל": models.BinTypeTextile,
	"מתקן טקסטיל":  models.BinTypeTextile,

	"Packaging":   models.BinTypePackaging,
	"אריזות":      models.BinTypePackaging,
	"מתקן אריזות": models.BinTypePackaging,

	"Plastic":     models.BinTypePlastic,
	"פלסטיק":      models.BinTypePlastic,
	"מיכל כתום":   models.BinTypePlastic,
	"פחים כתומים": models.BinTypePlastic,
}

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	bracketedRe   = regexp.MustCompile(`\s*\[[^\]]*\]`)
	labelSpacesRe = regexp.MustCompile(`\s+`)
)

// CleanLabel strips markup and bracketed annotations from a raw label.
func CleanLabel(label string) string {
	label = htmlTagRe.ReplaceAllString(label, "")
	label = bracketedRe.ReplaceAllString(label, "")
	label = labelSpacesRe.ReplaceAllString(label, " ")
	return norm.NFC.String(strings.TrimSpace(label))
}

// Canonicalizer maps free-text bin labels onto the canonical bin types.
type Canonicalizer struct {
	table  map[string]models.BinType
	policy UnknownPolicy
}

// NewCanonicalizer builds a canonicalizer over the built-in table plus extra label mappings.
func NewCanonicalizer(policy UnknownPolicy, extra map[string]models.BinType) *Canonicalizer {
	table := make(map[string]models.BinType, len(binTypeTable)+len(extra))
	for k, v := range binTypeTable {
		table[norm.NFC.String(k)] = v
	}
	for k, v := range extra {
		if v.IsCanonical() {
			table[CleanLabel(k)] = v
		}
	}
	if policy == "" {
		policy = UnknownDrop
	}
	return &Canonicalizer{table: table, policy: policy}
}

// Canonicalize looks a label up after cleaning it. Unrecognized or empty labels report false.
func (c *Canonicalizer) Canonicalize(label string) (models.BinType, bool) {
	cleaned := CleanLabel(label)
	if cleaned == "" {
		return "", false
	}
	t, ok := c.table[cleaned]
	return t, ok
}

// Resolve returns the bin type name to persist for a label under the configured policy,
// or false when the bin should be dropped.
func (c *Canonicalizer) Resolve(label string) (string, bool) {
	if t, ok := c.Canonicalize(label); ok {
		return string(t), true
	}
	if c.policy == UnknownKeep {
		if cleaned := CleanLabel(label); cleaned != "" {
			return cleaned, true
		}
	}
	return "", false
}
