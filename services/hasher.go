package services

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// HashIngredients liefert einen stabilen, nicht-kryptographischen Fingerprint
// des getrimmten Zutatentexts (FNV-1a, 32 Bit, hex). Dient als billiger
// Gleichheits-Vorfilter für Change-Detection. Kollisionen sind möglich,
// Korrektheit darf nie allein am Hash hängen.
func HashIngredients(ingredientsText string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.TrimSpace(ingredientsText)))
	return fmt.Sprintf("%08x", h.Sum32())
}
