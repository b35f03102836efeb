package models

// Retailer repräsentiert einen Händler, dessen Listings verarbeitet werden.
type Retailer struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"` // z.B. "Kroger"
	Slug string `json:"slug" gorm:"uniqueIndex;not null"` // z.B. "kroger"
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Retailer) TableName() string {
	return "retailers"
}
