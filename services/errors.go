package services

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable kennzeichnet Fehler des Durable Stores auf dem
// korrektheitskritischen Pfad (Gruppen-Auflösung). Cache-Pfade degradieren
// stattdessen still auf die schnellere Ebene.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ValidationError beschreibt fehlerhafte Eingaben. Wird nicht wiederholt und
// führt zu keinerlei Schreibzugriffen.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError erstellt einen ValidationError mit formatierter Begründung.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation meldet, ob err (auch gewrappt) ein ValidationError ist.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
