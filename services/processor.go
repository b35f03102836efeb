package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shelf-guard/models"
)

// Processor ist der Einstiegspunkt der Pipeline: pro Sichtung Cache-Lookup,
// De-Duplizierung laufender Auflösungen und die eigentliche Resolution.
// Batches werden in begrenzten Chunks mit kurzer Pause verarbeitet, damit
// eine Seite mit 40 Produktkarten das Backend nicht flutet.
type Processor struct {
	Resolver *ProductIdentityResolver
	Cache    *CacheStore
	Logger   *zap.Logger

	ChunkSize  int
	ChunkPause time.Duration

	// inflight bündelt nebenläufige Anfragen zur selben ExternalID: spätere
	// Aufrufer hängen sich als Listener an statt doppelte Arbeit auszulösen.
	inflight singleflight.Group
}

// NewProcessor erstellt einen Processor mit den gegebenen Batch-Grenzen.
func NewProcessor(resolver *ProductIdentityResolver, cache *CacheStore, logger *zap.Logger, chunkSize int, chunkPause time.Duration) *Processor {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &Processor{
		Resolver:   resolver,
		Cache:      cache,
		Logger:     logger,
		ChunkSize:  chunkSize,
		ChunkPause: chunkPause,
	}
}

// ResolveAndMatch verarbeitet eine einzelne Sichtung. Ohne neuen Zutatentext
// bedient ein gültiger Cache-Treffer die Anfrage direkt; sonst läuft die
// volle Auflösung (singleflight-dedupliziert) und das Ergebnis wird gecacht.
func (p *Processor) ResolveAndMatch(ctx context.Context, rec ScrapedProduct) (*MatchResult, error) {
	if rec.IngredientsText == "" {
		if cached, ok := p.Cache.Get(ctx, rec.ExternalID); ok {
			return cached, nil
		}
	}

	v, err, shared := p.inflight.Do(rec.ExternalID, func() (any, error) {
		result, err := p.Resolver.Resolve(ctx, rec)
		if err != nil {
			return nil, err
		}
		p.Cache.Put(ctx, rec.ExternalID, *result)
		if len(result.ToxinFlags) > 0 {
			p.Logger.Info("Bedenkliche Zutaten gefunden",
				zap.String("external_id", rec.ExternalID),
				zap.Strings("flags", justNames(result.ToxinFlags)))
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.Logger.Debug("Auflösung mit wartenden Aufrufern geteilt", zap.String("external_id", rec.ExternalID))
	}
	return v.(*MatchResult), nil
}

// BatchItemResult ist das Einzel-Ergebnis innerhalb eines Batches. Ein
// fehlgeschlagenes Item liefert Result nil und blockiert keine Geschwister;
// die UI zeigt dafür einen neutralen "keine Daten"-Indikator.
type BatchItemResult struct {
	ExternalID string       `json:"external_id"`
	Result     *MatchResult `json:"result"`
	Error      string       `json:"error,omitempty"`
}

// ResolveBatch verarbeitet Sichtungen in Chunks: innerhalb eines Chunks
// laufen die Items nebenläufig und werden gejoint, zwischen Chunks liegt
// eine kurze Pause zur Begrenzung offener Backend-Requests.
func (p *Processor) ResolveBatch(ctx context.Context, recs []ScrapedProduct) []BatchItemResult {
	results := make([]BatchItemResult, len(recs))

	for start := 0; start < len(recs); start += p.ChunkSize {
		end := start + p.ChunkSize
		if end > len(recs) {
			end = len(recs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := recs[i]
				result, err := p.ResolveAndMatch(ctx, rec)
				if err != nil {
					p.Logger.Warn("Batch-Item fehlgeschlagen",
						zap.String("external_id", rec.ExternalID), zap.Error(err))
					results[i] = BatchItemResult{ExternalID: rec.ExternalID, Error: err.Error()}
					return
				}
				results[i] = BatchItemResult{ExternalID: rec.ExternalID, Result: result}
			}(i)
		}
		wg.Wait()

		if end < len(recs) && p.ChunkPause > 0 {
			time.Sleep(p.ChunkPause)
		}
	}
	return results
}

// LookupCached liefert das gecachte Ergebnis zu einer ExternalID, falls gültig.
func (p *Processor) LookupCached(ctx context.Context, externalID string) (*MatchResult, bool) {
	return p.Cache.Get(ctx, externalID)
}

// Invalidate wirft den Cache-Eintrag einer ExternalID aus beiden Ebenen.
func (p *Processor) Invalidate(ctx context.Context, externalID string) {
	p.Cache.Invalidate(ctx, externalID)
}

// LookupByIngredientsText prüft, ob ein identischer Zutatentext bereits für
// eine Gruppe erfasst ist (Hash-Sekundärindex). Das erspart dem Aufrufer das
// Re-Matching identischer Texte, die auf einem anderen Listing gesehen wurden.
func (p *Processor) LookupByIngredientsText(ctx context.Context, ingredientsText string) (*MatchResult, bool, error) {
	hash := HashIngredients(ingredientsText)
	group, snapshot, err := p.Cache.FindByIngredientsHash(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if group == nil || snapshot == nil {
		return nil, false, nil
	}
	return &MatchResult{
		ProductGroupID:  group.ID,
		ToxinFlags:      decodeToxinFlags(snapshot.ToxinFlags),
		IngredientsHash: snapshot.IngredientsHash,
	}, true, nil
}

// justNames reduziert Treffer auf eindeutige Namen (für Logging).
func justNames(flags []models.ConcernIngredient) []string {
	seen := make(map[string]bool, len(flags))
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		if !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}
