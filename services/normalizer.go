package services

import (
	"regexp"
	"strings"
)

// ProductIdentity bündelt Marke und Basisnamen eines Produkts, jeweils in
// Roh- und normalisierter Form. Zwei Produkte gehören zur selben Gruppe,
// wenn beide normalisierten Formen exakt übereinstimmen.
type ProductIdentity struct {
	Brand              string `json:"brand"`
	Name               string `json:"name"`
	NormalizedBrand    string `json:"normalized_brand"`
	NormalizedBaseName string `json:"normalized_base_name"`
}

// separators in Präzedenz-Reihenfolge; der erste im String vorhandene gewinnt.
var identitySeparators = []string{" - ", " – ", " : ", ": ", " | ", "|", ","}

// NameNormalizer kanonisiert Freitext-Produktnamen für Gleichheitsvergleiche.
// Bewusst strikte String-Gleichheit nach Normalisierung, kein Fuzzy-Matching:
// Tippfehler-Varianten mergen nicht (dokumentierte False-Negative-Quelle).
type NameNormalizer struct {
	trademarks  *regexp.Regexp
	quotes      *regexp.Regexp
	disallowed  *regexp.Regexp
	whitespace  *regexp.Regexp
	leadArticle *regexp.Regexp
}

// NewNameNormalizer erstellt einen Normalizer mit vorkompilierten Patterns.
func NewNameNormalizer() *NameNormalizer {
	return &NameNormalizer{
		trademarks:  regexp.MustCompile(`[®™]`),
		quotes:      regexp.MustCompile("[\"'`´‘’“”]"),
		disallowed:  regexp.MustCompile(`[^a-z0-9\s-]`),
		whitespace:  regexp.MustCompile(`\s+`),
		leadArticle: regexp.MustCompile(`^(the|a|an)\s+`),
	}
}

// Normalize kanonisiert einen Freitext-Namen. Deterministisch, total,
// idempotent; leere Eingabe ergibt leeren String.
func (n *NameNormalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToLower(raw)
	s = n.trademarks.ReplaceAllString(s, "")
	s = n.quotes.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", "and")
	s = n.disallowed.ReplaceAllString(s, "")
	s = n.whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	// Führende Artikel vollständig entfernen, sonst wäre das Ergebnis bei
	// gestapelten Artikeln ("The A Team") nicht idempotent.
	for {
		stripped := n.leadArticle.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.TrimSpace(s)
}

// ExtractIdentity zerlegt einen rohen Produktnamen in (Brand, BaseName).
// Gesplittet wird am ersten Vorkommen des ranghöchsten Separators; ohne
// Separator (oder bei leerem Rest) dient der ganze Name als beides.
func (n *NameNormalizer) ExtractIdentity(raw string) ProductIdentity {
	trimmed := strings.TrimSpace(raw)

	brand, baseName := trimmed, trimmed
	for _, sep := range identitySeparators {
		if idx := strings.Index(trimmed, sep); idx >= 0 {
			before := strings.TrimSpace(trimmed[:idx])
			after := strings.TrimSpace(trimmed[idx+len(sep):])
			if after != "" {
				brand, baseName = before, after
			}
			break
		}
	}

	return ProductIdentity{
		Brand:              brand,
		Name:               baseName,
		NormalizedBrand:    n.Normalize(brand),
		NormalizedBaseName: n.Normalize(baseName),
	}
}

// BrandsMatch vergleicht zwei Markennamen nach Normalisierung (strikt).
func (n *NameNormalizer) BrandsMatch(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}

// BaseNamesMatch vergleicht zwei Basisnamen nach Normalisierung (strikt).
func (n *NameNormalizer) BaseNamesMatch(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}
