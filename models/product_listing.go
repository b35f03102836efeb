package models

import (
	"time"
)

// ProductListing ist eine händlerspezifische Sichtung eines Produkts.
// Unique auf (retailer_id, external_id); Sichtungen werden per Upsert aktualisiert.
type ProductListing struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductGroupID uint   `json:"product_group_id" gorm:"index;not null"`
	RetailerID     uint   `json:"retailer_id" gorm:"index:idx_product_listings_sighting,unique;not null"`
	ExternalID     string `json:"external_id" gorm:"index:idx_product_listings_sighting,unique;size:256;not null"`

	URLPath     string    `json:"url_path,omitempty"`
	PriceAmount float64   `json:"price_amount,omitempty"`
	PriceUnit   string    `json:"price_unit,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (ProductListing) TableName() string {
	return "products"
}
