package normalize

import (
	"testing"

	"recycling-bins/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizer_Canonicalize(t *testing.T) {
	c := NewCanonicalizer(UnknownDrop, nil)

	tests := []struct {
		name     string
		label    string
		expected models.BinType
		found    bool
	}{
		{name: "english glass", label: "Glass", expected: models.BinTypeGlass, found: true},
		{name: "hebrew glass", label: "זכוכית", expected: models.BinTypeGlass, found: true},
		{name: "glass facility", label: "מתקן זכוכית", expected: models.BinTypeGlass, found: true},
		{name: "blue bin is paper", label: "מיכל כחול", expected: models.BinTypePaper, found: true},
		{name: "orange bin is plastic", label: "מיכל כתום", expected: models.BinTypePlastic, found: true},
		{name: "cartons", label: "קרטונים", expected: models.BinTypeCardboard, found: true},
		{name: "electronics plural", label: "Electronics", expected: models.BinTypeElectronic, found: true},
		{name: "html wrapped", label: "<b>אריזות</b>", expected: models.BinTypePackaging, found: true},
		{name: "bracketed note", label: "טקסטיל [2 מיכלים]", expected: models.BinTypeTextile, found: true},
		{name: "padded", label: "  נייר  ", expected: models.BinTypePaper, found: true},
		{name: "unknown label", label: "unknown-label", found: false},
		{name: "empty", label: "", found: false},
		{name: "markup only", label: "<br/>", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Canonicalize(tt.label)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCanonicalizer_CanonicalNamesMapToThemselves(t *testing.T) {
	c := NewCanonicalizer(UnknownDrop, nil)
	for _, bt := range models.BinTypes {
		got, ok := c.Canonicalize(string(bt))
		require.True(t, ok, bt)
		assert.Equal(t, bt, got)
	}
}

func TestCanonicalizer_Resolve(t *testing.T) {
	strict := NewCanonicalizer(UnknownDrop, nil)
	permissive := NewCanonicalizer(UnknownKeep, nil)

	name, ok := strict.Resolve("זכוכית")
	assert.True(t, ok)
	assert.Equal(t, "Glass", name)

	_, ok = strict.Resolve("גזם")
	assert.False(t, ok)

	name, ok = permissive.Resolve("<i>גזם</i>")
	assert.True(t, ok)
	assert.Equal(t, "גזם", name)

	_, ok = permissive.Resolve("")
	assert.False(t, ok)
}

func TestCanonicalizer_ExtraMappings(t *testing.T) {
	c := NewCanonicalizer(UnknownDrop, map[string]models.BinType{
		"מיכל ירוק": models.BinTypePackaging,
		"bogus":     models.BinType("Metal"),
	})

	got, ok := c.Canonicalize("מיכל ירוק")
	assert.True(t, ok)
	assert.Equal(t, models.BinTypePackaging, got)

	_, ok = c.Canonicalize("bogus")
	assert.False(t, ok)
}

func TestParseUnknownPolicy(t *testing.T) {
	p, err := ParseUnknownPolicy("KEEP")
	require.NoError(t, err)
	assert.Equal(t, UnknownKeep, p)

	p, err = ParseUnknownPolicy("")
	require.NoError(t, err)
	assert.Equal(t, UnknownDrop, p)

	_, err = ParseUnknownPolicy("guess")
	assert.Error(t, err)
}
