package models

import (
	"time"

	"gorm.io/datatypes"
)

// IngredientSnapshot ist eine versionierte Aufnahme des Zutatentexts einer
// ProductGroup. Pro Gruppe ist zu jedem Zeitpunkt genau ein Snapshot aktuell;
// identische Hashes erhöhen nur den VerificationCount statt zu duplizieren.
type IngredientSnapshot struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Der partielle Unique-Index erzwingt höchstens einen aktuellen Snapshot
	// pro Gruppe; nebenläufige Rollover-Verlierer laufen in ErrDuplicatedKey.
	ProductGroupID uint `json:"product_group_id" gorm:"index;not null;uniqueIndex:idx_snapshots_one_current,where:is_current"`

	IngredientsText string `json:"ingredients_text" gorm:"type:text;not null"`
	IngredientsHash string `json:"ingredients_hash" gorm:"index;size:16;not null"`

	// Gefundene Treffer aus dem Referenzset, als JSON-Array gespeichert
	ToxinFlags datatypes.JSON `json:"toxin_flags" gorm:"type:jsonb"`

	IsCurrent         bool `json:"is_current" gorm:"index;default:false"`
	VerificationCount int  `json:"verification_count" gorm:"default:1"`

	FoundAt     time.Time `json:"found_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// TableName gibt explizit den Tabellennamen an.
func (IngredientSnapshot) TableName() string {
	return "product_group_ingredients"
}
