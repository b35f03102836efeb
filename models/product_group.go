package models

import (
	"time"
)

// ProductGroup repräsentiert ein kanonisches Produkt über Händler und Zeit hinweg.
// Pro (normalized_brand, normalized_base_name) existiert höchstens eine Gruppe;
// der Unique-Index trägt die Find-or-Create-Semantik des Resolvers.
type ProductGroup struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Roh-Formen, wie vom Listing geliefert (menschenlesbar)
	Brand    string `json:"brand"`
	BaseName string `json:"base_name" gorm:"not null"`

	// Normalisierte Formen für Identitätsvergleiche (leerer String nie erlaubt)
	NormalizedBrand    string `json:"normalized_brand" gorm:"index:idx_product_groups_identity,unique;size:256;not null"`
	NormalizedBaseName string `json:"normalized_base_name" gorm:"index:idx_product_groups_identity,unique;size:512;not null"`

	// Verweis auf den aktuellen Ingredient-Snapshot (nil, solange keiner existiert)
	CurrentIngredientsID *uint     `json:"current_ingredients_id,omitempty"`
	LastUpdated          time.Time `json:"last_updated"`
}

// TableName gibt explizit den Tabellennamen an.
func (ProductGroup) TableName() string {
	return "product_groups"
}
