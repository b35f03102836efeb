package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNameNormalizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercases", "French Fried Potatoes", "french fried potatoes"},
		{"strips trademark symbols", "Coca-Cola® Classic™", "coca-cola classic"},
		{"strips quotes", `Grandma's "Best" Cookies`, "grandmas best cookies"},
		{"ampersand becomes and", "Mac & Cheese", "mac and cheese"},
		{"drops punctuation keeps hyphen", "Half-Baked! (Frozen)", "half-baked frozen"},
		{"collapses whitespace", "  Simple   Truth  ", "simple truth"},
		{"strips leading article the", "The Original Crunch", "original crunch"},
		{"strips leading article a", "A Better Bar", "better bar"},
		{"strips leading article an", "An Apple Snack", "apple snack"},
		{"stacked articles all stripped", "The A Team Snacks", "team snacks"},
		{"article without rest survives", "the", "the"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNameNormalizer()

	inputs := []string{
		"",
		"Kroger - French Fried Potatoes",
		"The Coca-Cola® 'Classic' & Friends!!",
		"  Simple   Truth  Organic  ",
		"Ben & Jerry's™",
		"The A Team Snacks",
		"the an a",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "normalize must be idempotent for %q", in)
	}
}

func TestExtractIdentitySeparators(t *testing.T) {
	n := NewNameNormalizer()

	t.Run("hyphen separator", func(t *testing.T) {
		id := n.ExtractIdentity("Kroger - French Fries")
		assert.Equal(t, "Kroger", id.Brand)
		assert.Equal(t, "French Fries", id.Name)
		assert.Equal(t, "kroger", id.NormalizedBrand)
		assert.Equal(t, "french fries", id.NormalizedBaseName)
	})

	t.Run("no separator uses full string for both", func(t *testing.T) {
		id := n.ExtractIdentity("Simple Truth")
		assert.Equal(t, "Simple Truth", id.Brand)
		assert.Equal(t, "Simple Truth", id.Name)
		assert.Equal(t, id.NormalizedBrand, id.NormalizedBaseName)
	})

	t.Run("colon beats comma by precedence", func(t *testing.T) {
		id := n.ExtractIdentity("Brand: Item, Flavor")
		assert.Equal(t, "Brand", id.Brand)
		assert.Equal(t, "Item, Flavor", id.Name)
	})

	t.Run("pipe separator", func(t *testing.T) {
		id := n.ExtractIdentity("Target|Good Gather Trail Mix")
		assert.Equal(t, "Target", id.Brand)
		assert.Equal(t, "Good Gather Trail Mix", id.Name)
	})

	t.Run("splits at first occurrence only", func(t *testing.T) {
		id := n.ExtractIdentity("Kroger - Deluxe - Fudge")
		assert.Equal(t, "Kroger", id.Brand)
		assert.Equal(t, "Deluxe - Fudge", id.Name)
	})

	t.Run("empty remainder falls back to full string", func(t *testing.T) {
		id := n.ExtractIdentity("Kroger,")
		assert.Equal(t, id.Brand, id.Name)
		assert.Equal(t, "kroger", id.NormalizedBaseName)
	})
}

func TestExtractIdentityStable(t *testing.T) {
	n := NewNameNormalizer()

	raw := "Kroger - French Fried Potatoes"
	first := n.ExtractIdentity(raw)
	second := n.ExtractIdentity(raw)
	assert.Equal(t, first, second, "re-running extraction must yield identical identities")
}

func TestBrandAndBaseNameMatching(t *testing.T) {
	n := NewNameNormalizer()

	assert.True(t, n.BrandsMatch("Coca-Cola®", "coca-cola"))
	assert.True(t, n.BaseNamesMatch("Mac & Cheese", "mac and cheese"))

	// Strikte Gleichheit, kein Fuzzy-Matching: nah verwandte Namen mergen nicht.
	assert.False(t, n.BaseNamesMatch("Coca Cola", "Coca-Cola Classic"))
}
