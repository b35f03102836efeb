package services

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIngredientsDeterministic(t *testing.T) {
	text := "Potatoes, Monosodium Glutamate, Salt"
	assert.Equal(t, HashIngredients(text), HashIngredients(text))
}

func TestHashIngredientsTrimsInput(t *testing.T) {
	assert.Equal(t, HashIngredients("water, salt"), HashIngredients("  water, salt \n"))
}

func TestHashIngredientsDistinguishesInputs(t *testing.T) {
	a := HashIngredients("Potatoes, Monosodium Glutamate, Salt")
	b := HashIngredients("Potatoes, Salt")
	c := HashIngredients("Salt, Potatoes")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c, "order matters: same characters, different sequence")
}

func TestHashIngredientsFormat(t *testing.T) {
	hexRe := regexp.MustCompile(`^[0-9a-f]{8}$`)
	for _, in := range []string{"", "salt", "a much longer ingredient list with, many, tokens"} {
		assert.Regexp(t, hexRe, HashIngredients(in))
	}
}
