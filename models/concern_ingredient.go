package models

import (
	"time"

	"gorm.io/datatypes"
)

// Concern-Level für Zutaten im Referenzset.
const (
	ConcernLow      = "low"
	ConcernModerate = "moderate"
	ConcernHigh     = "high"
)

// ConcernIngredient ist ein Eintrag im Referenzset bedenklicher Zutaten.
// Das eingebaute Set wird beim Start geladen; Nutzer können eigene Einträge
// additiv ergänzen (IsCustom), eingebaute Einträge werden nie gelöscht.
type ConcernIngredient struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string `json:"name" gorm:"uniqueIndex;not null"` // kanonischer Anzeigename
	Category string `json:"category,omitempty" gorm:"index"`

	// Aliase (case-insensitive), als JSON-Array von Strings
	Aliases datatypes.JSON `json:"aliases,omitempty" gorm:"type:jsonb"`

	IsToxic      bool   `json:"is_toxic" gorm:"default:false"`
	ConcernLevel string `json:"concern_level" gorm:"index;default:'low'"` // low, moderate, high

	// Geordnete Liste von Wirkungsbeschreibungen
	HealthEffects datatypes.JSON `json:"health_effects,omitempty" gorm:"type:jsonb"`
	// Quellenangaben: [{title, publisher, url, year}]
	Sources datatypes.JSON `json:"sources,omitempty" gorm:"type:jsonb"`

	IsCustom bool `json:"is_custom" gorm:"default:false"`
}

// TableName gibt explizit den Tabellennamen an.
func (ConcernIngredient) TableName() string {
	return "concern_ingredients"
}

// SourceCitation ist eine einzelne Quellenangabe innerhalb von Sources.
type SourceCitation struct {
	Title     string `json:"title"`
	Publisher string `json:"publisher,omitempty"`
	URL       string `json:"url,omitempty"`
	Year      int    `json:"year,omitempty"`
}
