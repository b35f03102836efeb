package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelf-guard/models"
)

// ScrapedProduct ist die bereits extrahierte Sichtung eines Produkts, wie sie
// der Scraping-Kollaborateur liefert. IngredientsText ist optional und nur
// auf Detail-/Modal-Ansichten vorhanden.
type ScrapedProduct struct {
	ExternalID      string  `json:"external_id" binding:"required"`
	RetailerID      int     `json:"retailer_id" binding:"required"`
	RawName         string  `json:"raw_name" binding:"required"`
	Brand           string  `json:"brand,omitempty"`
	URLPath         string  `json:"url_path,omitempty"`
	PriceAmount     float64 `json:"price_amount,omitempty"`
	PriceUnit       string  `json:"price_unit,omitempty"`
	ImageURL        string  `json:"image_url,omitempty"`
	IngredientsText string  `json:"ingredients_text,omitempty"`
}

// MatchResult ist das Ergebnis einer Auflösung: Gruppen-Identität plus
// Zutaten-Befund. Das ist die einzige Schnittstelle nach außen.
type MatchResult struct {
	ProductGroupID  uint                       `json:"product_group_id"`
	ToxinFlags      []models.ConcernIngredient `json:"toxin_flags"`
	IngredientsHash string                     `json:"ingredients_hash,omitempty"`
	IsNewSnapshot   bool                       `json:"is_new_snapshot"`
}

// ProductIdentityResolver löst eine Sichtung auf eine kanonische ProductGroup
// auf und pflegt Listing- und Snapshot-Zustand. Alle Schritte sind idempotent:
// dieselbe Eingabe konvergiert unter nebenläufigen Aufrufern auf dieselbe
// Gruppe statt Duplikate zu erzeugen.
type ProductIdentityResolver struct {
	DB         *gorm.DB
	Normalizer *NameNormalizer
	Matcher    *IngredientMatcher
	Logger     *zap.Logger
}

// NewProductIdentityResolver erstellt eine neue Resolver-Instanz.
func NewProductIdentityResolver(db *gorm.DB, normalizer *NameNormalizer, matcher *IngredientMatcher, logger *zap.Logger) *ProductIdentityResolver {
	return &ProductIdentityResolver{
		DB:         db,
		Normalizer: normalizer,
		Matcher:    matcher,
		Logger:     logger,
	}
}

// Resolve führt die komplette Auflösung einer Sichtung aus:
// Listing-Lookup → Identität extrahieren → Gruppe finden/erstellen →
// Listing upserten → Zutaten mergen.
func (r *ProductIdentityResolver) Resolve(ctx context.Context, rec ScrapedProduct) (*MatchResult, error) {
	if err := r.validate(ctx, rec); err != nil {
		return nil, err
	}
	log := r.Logger.With(zap.String("external_id", rec.ExternalID), zap.Int("retailer_id", rec.RetailerID))

	group, err := r.resolveGroup(ctx, rec, log)
	if err != nil {
		return nil, err
	}

	if err := r.upsertListing(ctx, rec, group.ID); err != nil {
		return nil, err
	}

	result := &MatchResult{ProductGroupID: group.ID, ToxinFlags: []models.ConcernIngredient{}}

	if rec.IngredientsText != "" {
		snapshot, isNew, flags, err := r.mergeIngredients(ctx, group, rec.IngredientsText, log)
		if err != nil {
			return nil, err
		}
		result.ToxinFlags = flags
		result.IngredientsHash = snapshot.IngredientsHash
		result.IsNewSnapshot = isNew
		return result, nil
	}

	// Ohne neuen Zutatentext: Befund des aktuellen Snapshots wiederverwenden.
	snapshot, err := r.currentSnapshot(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		result.ToxinFlags = decodeToxinFlags(snapshot.ToxinFlags)
		result.IngredientsHash = snapshot.IngredientsHash
	}
	return result, nil
}

// validate weist fehlerhafte Eingaben ab, bevor irgendetwas geschrieben wird.
func (r *ProductIdentityResolver) validate(ctx context.Context, rec ScrapedProduct) error {
	if rec.ExternalID == "" {
		return NewValidationError("external_id is required")
	}
	if rec.RetailerID <= 0 {
		return NewValidationError("retailer_id must be a positive integer, got %d", rec.RetailerID)
	}
	if rec.IngredientsText != "" && strings.TrimSpace(rec.IngredientsText) == "" {
		return NewValidationError("ingredients text is empty after trim")
	}
	var retailer models.Retailer
	if err := r.DB.WithContext(ctx).First(&retailer, rec.RetailerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewValidationError("unknown retailer_id %d", rec.RetailerID)
		}
		return fmt.Errorf("%w: retailer lookup: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// resolveGroup liefert die Gruppe zur Sichtung: über ein bestehendes Listing
// (Schritt 1) oder über Identitäts-Extraktion plus Find-or-Create (2–4).
func (r *ProductIdentityResolver) resolveGroup(ctx context.Context, rec ScrapedProduct, log *zap.Logger) (*models.ProductGroup, error) {
	var listing models.ProductListing
	err := r.DB.WithContext(ctx).
		Where("retailer_id = ? AND external_id = ?", rec.RetailerID, rec.ExternalID).
		First(&listing).Error
	if err == nil {
		var group models.ProductGroup
		if err := r.DB.WithContext(ctx).First(&group, listing.ProductGroupID).Error; err == nil {
			return &group, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: group lookup: %v", ErrBackendUnavailable, err)
		}
		// Listing zeigt auf eine fehlende Gruppe: unten neu auflösen.
		log.Warn("Listing verweist auf fehlende Gruppe, löse Identität neu auf",
			zap.Uint("product_group_id", listing.ProductGroupID))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: listing lookup: %v", ErrBackendUnavailable, err)
	}

	identity := r.Normalizer.ExtractIdentity(rec.RawName)
	if rec.Brand != "" {
		identity.Brand = rec.Brand
		identity.NormalizedBrand = r.Normalizer.Normalize(rec.Brand)
	}
	if identity.NormalizedBaseName == "" {
		return nil, NewValidationError("product name %q normalizes to empty base name", rec.RawName)
	}
	return r.findOrCreateGroup(ctx, identity, log)
}

// findOrCreateGroup sucht die Gruppe zur normalisierten Identität und legt
// sie bei Bedarf an. Verliert dieser Prozess das Create-Rennen, wird der
// Unique-Konflikt lokal durch Re-Query des Gewinners aufgelöst (ConflictRace),
// nie als Fehler nach außen gereicht.
func (r *ProductIdentityResolver) findOrCreateGroup(ctx context.Context, identity ProductIdentity, log *zap.Logger) (*models.ProductGroup, error) {
	var group models.ProductGroup
	err := r.DB.WithContext(ctx).
		Where("normalized_brand = ? AND normalized_base_name = ?", identity.NormalizedBrand, identity.NormalizedBaseName).
		First(&group).Error
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: group lookup: %v", ErrBackendUnavailable, err)
	}

	group = models.ProductGroup{
		Brand:              identity.Brand,
		BaseName:           identity.Name,
		NormalizedBrand:    identity.NormalizedBrand,
		NormalizedBaseName: identity.NormalizedBaseName,
		LastUpdated:        time.Now(),
	}
	if err := r.DB.WithContext(ctx).Create(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Debug("Create-Rennen verloren, übernehme bestehende Gruppe",
				zap.String("normalized_base_name", identity.NormalizedBaseName))
			var winner models.ProductGroup
			if err := r.DB.WithContext(ctx).
				Where("normalized_brand = ? AND normalized_base_name = ?", identity.NormalizedBrand, identity.NormalizedBaseName).
				First(&winner).Error; err != nil {
				return nil, fmt.Errorf("%w: group re-query after conflict: %v", ErrBackendUnavailable, err)
			}
			return &winner, nil
		}
		return nil, fmt.Errorf("%w: group create: %v", ErrBackendUnavailable, err)
	}
	log.Info("Neue ProductGroup angelegt", zap.Uint("product_group_id", group.ID),
		zap.String("brand", group.Brand), zap.String("base_name", group.BaseName))
	return &group, nil
}

// upsertListing aktualisiert die Sichtung (retailer_id, external_id) oder
// legt sie an; Preis-, Bild- und URL-Felder werden bei jeder Sichtung
// bedingungslos überschrieben.
func (r *ProductIdentityResolver) upsertListing(ctx context.Context, rec ScrapedProduct, groupID uint) error {
	listing := models.ProductListing{
		ProductGroupID: groupID,
		RetailerID:     uint(rec.RetailerID),
		ExternalID:     rec.ExternalID,
		URLPath:        rec.URLPath,
		PriceAmount:    rec.PriceAmount,
		PriceUnit:      rec.PriceUnit,
		ImageURL:       rec.ImageURL,
		LastSeenAt:     time.Now(),
	}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "retailer_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_group_id", "url_path", "price_amount", "price_unit", "image_url", "last_seen_at",
		}),
	}).Create(&listing).Error
	if err != nil {
		return fmt.Errorf("%w: listing upsert: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// currentSnapshot liefert den aktuellen Snapshot einer Gruppe oder nil.
func (r *ProductIdentityResolver) currentSnapshot(ctx context.Context, groupID uint) (*models.IngredientSnapshot, error) {
	var snapshot models.IngredientSnapshot
	err := r.DB.WithContext(ctx).
		Where("product_group_id = ? AND is_current = ?", groupID, true).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: snapshot lookup: %v", ErrBackendUnavailable, err)
	}
	return &snapshot, nil
}

// mergeIngredients versioniert den Zutatentext einer Gruppe: gleicher Hash
// erhöht nur den VerificationCount, ein anderer Hash rolliert den aktuellen
// Snapshot (alt wird nicht-aktuell, neu wird aktuell mit Count 1). Der
// Vorgänger wird innerhalb der Transaktion gelesen; verliert dieser Prozess
// das Rennen um die is_current-Zeile, wird der Merge gegen den Gewinner
// wiederholt statt den Konflikt nach außen zu reichen.
func (r *ProductIdentityResolver) mergeIngredients(ctx context.Context, group *models.ProductGroup, ingredientsText string, log *zap.Logger) (*models.IngredientSnapshot, bool, []models.ConcernIngredient, error) {
	trimmed := strings.TrimSpace(ingredientsText)
	if trimmed == "" {
		return nil, false, nil, NewValidationError("ingredients text is empty after trim")
	}

	hash := HashIngredients(trimmed)
	flags := r.Matcher.Match(trimmed)

	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, false, nil, fmt.Errorf("marshal toxin flags: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		snapshot, isNew, oldHash, err := r.mergeSnapshot(ctx, group.ID, trimmed, hash, flagsJSON)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				log.Debug("Snapshot-Rennen verloren, wiederhole Merge", zap.Uint("product_group_id", group.ID))
				continue
			}
			return nil, false, nil, fmt.Errorf("%w: snapshot merge: %v", ErrBackendUnavailable, err)
		}
		if isNew && oldHash != "" {
			log.Info("Zutaten-Snapshot rolliert", zap.Uint("product_group_id", group.ID),
				zap.String("old_hash", oldHash), zap.String("new_hash", hash))
		}
		return snapshot, isNew, flags, nil
	}
	return nil, false, nil, fmt.Errorf("%w: snapshot merge lost the is_current race repeatedly", ErrBackendUnavailable)
}

// mergeSnapshot führt einen Merge-Versuch in einer Transaktion aus. Der
// partielle Unique-Index auf (product_group_id) WHERE is_current meldet einen
// nebenläufig eingefügten aktuellen Snapshot als gorm.ErrDuplicatedKey.
func (r *ProductIdentityResolver) mergeSnapshot(ctx context.Context, groupID uint, trimmed, hash string, flagsJSON []byte) (*models.IngredientSnapshot, bool, string, error) {
	var result models.IngredientSnapshot
	isNew := false
	oldHash := ""

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.IngredientSnapshot
		err := tx.Where("product_group_id = ? AND is_current = ?", groupID, true).First(&current).Error
		hasCurrent := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()

		// Identischer Hash: nur Verifikation zählen, kein Duplikat.
		if hasCurrent && current.IngredientsHash == hash {
			if err := tx.Model(&current).Updates(map[string]any{
				"verification_count": gorm.Expr("verification_count + 1"),
				"last_updated":       now,
			}).Error; err != nil {
				return err
			}
			current.VerificationCount++
			current.LastUpdated = now
			result = current
			return nil
		}

		if hasCurrent {
			oldHash = current.IngredientsHash
			if err := tx.Model(&models.IngredientSnapshot{}).
				Where("id = ?", current.ID).
				Update("is_current", false).Error; err != nil {
				return err
			}
		}

		snapshot := models.IngredientSnapshot{
			ProductGroupID:    groupID,
			IngredientsText:   trimmed,
			IngredientsHash:   hash,
			ToxinFlags:        flagsJSON,
			IsCurrent:         true,
			VerificationCount: 1,
			FoundAt:           now,
			LastUpdated:       now,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ProductGroup{}).Where("id = ?", groupID).Updates(map[string]any{
			"current_ingredients_id": snapshot.ID,
			"last_updated":           now,
		}).Error; err != nil {
			return err
		}
		result = snapshot
		isNew = true
		return nil
	})
	if err != nil {
		return nil, false, "", err
	}
	return &result, isNew, oldHash, nil
}

// decodeToxinFlags liest die gespeicherten Treffer eines Snapshots.
func decodeToxinFlags(raw []byte) []models.ConcernIngredient {
	flags := []models.ConcernIngredient{}
	if len(raw) == 0 {
		return flags
	}
	_ = json.Unmarshal(raw, &flags)
	return flags
}
