package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shelf-guard/models"
)

func newTestProcessor(t *testing.T) (*Processor, *CacheStore) {
	t.Helper()

	db := newTestDB(t)
	resolver := newTestResolver(t, db)
	cache := NewCacheStore(db, nil, 168*time.Hour, zap.NewNop())
	return NewProcessor(resolver, cache, zap.NewNop(), 10, 0), cache
}

func TestResolveAndMatchEndToEnd(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	// Detail-Sichtung mit Zutatentext: volle Auflösung plus Befund.
	result, err := p.ResolveAndMatch(ctx, krogerFries("Potatoes, Monosodium Glutamate, Salt"))
	require.NoError(t, err)
	require.NotZero(t, result.ProductGroupID)
	require.Len(t, result.ToxinFlags, 1)
	assert.Equal(t, "Monosodium Glutamate", result.ToxinFlags[0].Name)
	assert.Equal(t, models.ConcernModerate, result.ToxinFlags[0].ConcernLevel)
	assert.True(t, result.IsNewSnapshot)

	// Karten-Sichtung ohne Zutatentext: gültiger Cache-Treffer bedient direkt.
	cached, err := p.ResolveAndMatch(ctx, krogerFries(""))
	require.NoError(t, err)
	assert.Equal(t, result.ProductGroupID, cached.ProductGroupID)
	require.Len(t, cached.ToxinFlags, 1)
	assert.Equal(t, "Monosodium Glutamate", cached.ToxinFlags[0].Name)
}

func TestResolveAndMatchBypassesCacheWithIngredients(t *testing.T) {
	p, cache := newTestProcessor(t)
	ctx := context.Background()

	first, err := p.ResolveAndMatch(ctx, krogerFries("Potatoes, Salt"))
	require.NoError(t, err)

	// Ein Cache-Treffer darf eine Sichtung MIT Zutatentext nicht abkürzen,
	// sonst ginge der Verifikations-Zähler verloren.
	_, ok := cache.Get(ctx, "items_1-100")
	require.True(t, ok)

	second, err := p.ResolveAndMatch(ctx, krogerFries("Potatoes, Monosodium Glutamate, Salt"))
	require.NoError(t, err)
	assert.Equal(t, first.ProductGroupID, second.ProductGroupID)
	assert.True(t, second.IsNewSnapshot)
	assert.NotEqual(t, first.IngredientsHash, second.IngredientsHash)

	// Der Cache trägt jetzt den neuen Befund.
	cached, ok := cache.Get(ctx, "items_1-100")
	require.True(t, ok)
	assert.Equal(t, second.IngredientsHash, cached.IngredientsHash)
}

func TestLookupCachedAndInvalidate(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	_, ok := p.LookupCached(ctx, "items_1-100")
	assert.False(t, ok)

	result, err := p.ResolveAndMatch(ctx, krogerFries("Potatoes, Salt"))
	require.NoError(t, err)

	cached, ok := p.LookupCached(ctx, "items_1-100")
	require.True(t, ok)
	assert.Equal(t, result.ProductGroupID, cached.ProductGroupID)

	p.Invalidate(ctx, "items_1-100")
	_, ok = p.LookupCached(ctx, "items_1-100")
	assert.False(t, ok)
}

func TestLookupByIngredientsText(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	result, err := p.ResolveAndMatch(ctx, krogerFries("Potatoes, Monosodium Glutamate, Salt"))
	require.NoError(t, err)

	// Identischer Text von einem anderen Listing trifft den Hash-Index.
	hit, ok, err := p.LookupByIngredientsText(ctx, "  Potatoes, Monosodium Glutamate, Salt ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.ProductGroupID, hit.ProductGroupID)
	require.Len(t, hit.ToxinFlags, 1)
	assert.Equal(t, "Monosodium Glutamate", hit.ToxinFlags[0].Name)

	_, ok, err = p.LookupByIngredientsText(ctx, "completely different ingredients")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveBatchMixedResults(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	recs := []ScrapedProduct{
		krogerFries("Potatoes, Monosodium Glutamate, Salt"),
		{ExternalID: "wm-1", RetailerID: 1, RawName: "Great Value - Cola", IngredientsText: "Water, High Fructose Corn Syrup, Caramel Color"},
		{ExternalID: "bad-1", RetailerID: 99, RawName: "Mystery Snack"},
		{ExternalID: "tg-1", RetailerID: 2, RawName: "Good Gather - Trail Mix"},
	}

	results := p.ResolveBatch(ctx, recs)
	require.Len(t, results, 4)

	// Ergebnisse stehen an der Position ihrer Eingabe.
	for i, rec := range recs {
		assert.Equal(t, rec.ExternalID, results[i].ExternalID)
	}

	require.NotNil(t, results[0].Result)
	assert.Len(t, results[0].Result.ToxinFlags, 1)

	require.NotNil(t, results[1].Result)
	assert.Len(t, results[1].Result.ToxinFlags, 2, "HFCS and caramel color should both flag")

	assert.Nil(t, results[2].Result, "invalid item must not block its siblings")
	assert.NotEmpty(t, results[2].Error)

	require.NotNil(t, results[3].Result)
	assert.Empty(t, results[3].Result.ToxinFlags)
}

func TestResolveBatchChunking(t *testing.T) {
	db := newTestDB(t)
	resolver := newTestResolver(t, db)
	cache := NewCacheStore(db, nil, 168*time.Hour, zap.NewNop())
	p := NewProcessor(resolver, cache, zap.NewNop(), 2, 0)

	recs := make([]ScrapedProduct, 5)
	for i := range recs {
		recs[i] = ScrapedProduct{
			ExternalID: fmt.Sprintf("bulk-%d", i),
			RetailerID: 3,
			RawName:    fmt.Sprintf("Kroger - Bulk Item %d", i),
		}
	}

	results := p.ResolveBatch(context.Background(), recs)
	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("bulk-%d", i), res.ExternalID)
		require.NotNil(t, res.Result, "item %d should resolve", i)
		assert.NotZero(t, res.Result.ProductGroupID)
	}

	var groupCount int64
	db.Model(&models.ProductGroup{}).Count(&groupCount)
	assert.EqualValues(t, 5, groupCount)
}

func TestNewProcessorDefaultsChunkSize(t *testing.T) {
	p := NewProcessor(nil, nil, zap.NewNop(), 0, 0)
	assert.Equal(t, 10, p.ChunkSize)
}
