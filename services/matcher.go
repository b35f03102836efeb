package services

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"shelf-guard/models"
)

// matcherEntry hält einen Referenz-Eintrag samt vorberechneter
// Kleinschreibungs-Schlüssel für den Substring-Vergleich.
type matcherEntry struct {
	record  models.ConcernIngredient
	name    string
	aliases []string
}

// IngredientMatcher prüft rohe Zutatenlisten gegen das Referenzset
// bedenklicher Zutaten. Der Vergleich ist Substring-Containment, kein
// Token-Gleichheitstest: Zutaten-Labels sind Phrasen wie
// "sodium benzoate (preservative)".
type IngredientMatcher struct {
	mu      sync.RWMutex
	entries []matcherEntry // Scan-Reihenfolge = Lade-Reihenfolge (deterministisch)
	byName  map[string]int
	logger  *zap.Logger
}

// NewIngredientMatcher erstellt einen leeren Matcher.
func NewIngredientMatcher(logger *zap.Logger) *IngredientMatcher {
	return &IngredientMatcher{
		byName: make(map[string]int),
		logger: logger,
	}
}

// Load baut die Lookup-Struktur aus dem Default-Referenzset auf.
// Schlüssel sind case-insensitive.
func (m *IngredientMatcher) Load(defaults []models.ConcernIngredient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
	m.byName = make(map[string]int, len(defaults))
	for _, rec := range defaults {
		m.upsertLocked(rec)
	}
	m.logger.Info("Referenzset geladen", zap.Int("entries", len(m.entries)))
}

// AddCustom ergänzt Nutzer-Einträge. Bei Namenskollision überschreibt der
// Custom-Eintrag den Default (last-write-wins), Defaults werden nie entfernt.
func (m *IngredientMatcher) AddCustom(entries []models.ConcernIngredient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range entries {
		m.upsertLocked(rec)
	}
	m.logger.Info("Custom-Einträge übernommen", zap.Int("added", len(entries)), zap.Int("total", len(m.entries)))
}

func (m *IngredientMatcher) upsertLocked(rec models.ConcernIngredient) {
	key := strings.ToLower(strings.TrimSpace(rec.Name))
	if key == "" {
		return
	}
	entry := matcherEntry{
		record:  rec,
		name:    key,
		aliases: decodeAliases(rec.Aliases),
	}
	if idx, ok := m.byName[key]; ok {
		m.entries[idx] = entry
		return
	}
	m.byName[key] = len(m.entries)
	m.entries = append(m.entries, entry)
}

// decodeAliases liest das Alias-JSON-Array und normalisiert auf Kleinschreibung.
func decodeAliases(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var aliases []string
	if err := json.Unmarshal(raw, &aliases); err != nil {
		return nil
	}
	out := aliases[:0]
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Match zerlegt den Zutatentext an Kommas und liefert pro Token den ersten
// Referenz-Treffer (Substring auf Name oder Alias) in Token-Reihenfolge.
// Ein Eintrag kann mehrfach erscheinen, wenn mehrere Tokens ihn treffen;
// Aufrufer, die Eindeutigkeit brauchen, dedupen über den Namen.
// Leere Eingabe ergibt eine leere Liste, niemals einen Fehler.
func (m *IngredientMatcher) Match(ingredientsText string) []models.ConcernIngredient {
	found := []models.ConcernIngredient{}
	if strings.TrimSpace(ingredientsText) == "" {
		return found
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, token := range strings.Split(ingredientsText, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		for _, entry := range m.entries {
			if entry.matches(token) {
				found = append(found, entry.record)
				break // erster Treffer gewinnt pro Token
			}
		}
	}
	return found
}

// Size gibt die Anzahl geladener Referenz-Einträge zurück.
func (m *IngredientMatcher) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (e *matcherEntry) matches(token string) bool {
	if strings.Contains(token, e.name) {
		return true
	}
	for _, alias := range e.aliases {
		if strings.Contains(token, alias) {
			return true
		}
	}
	return false
}
