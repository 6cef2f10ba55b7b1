package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencpa/ledgerpilot/internal/common"
)

func TestParseSuggestion(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		payload, err := parseSuggestion(`{"category": "Office Supplies", "confidence": 0.95, "reasoning": "stationery vendor", "alternatives": ["Software"]}`)
		require.NoError(t, err)
		assert.Equal(t, "Office Supplies", payload.Category)
		assert.Equal(t, 0.95, payload.Confidence)
		assert.Equal(t, []string{"Software"}, payload.Alternatives)
	})

	t.Run("markdown fenced", func(t *testing.T) {
		payload, err := parseSuggestion("```json\n{\"category\": \"Travel\", \"confidence\": 0.8}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Travel", payload.Category)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		payload, err := parseSuggestion(`Here is the classification: {"category": "Meals", "confidence": 0.7} Hope that helps!`)
		require.NoError(t, err)
		assert.Equal(t, "Meals", payload.Category)
	})

	t.Run("no JSON", func(t *testing.T) {
		_, err := parseSuggestion("I cannot classify this transaction.")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrClassificationFailed)
	})

	t.Run("missing category", func(t *testing.T) {
		_, err := parseSuggestion(`{"confidence": 0.9}`)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrClassificationFailed)
	})
}

func TestParseSuggestionList(t *testing.T) {
	t.Run("matching length", func(t *testing.T) {
		payloads, err := parseSuggestionList(`[{"category": "A", "confidence": 0.9}, {"category": "B", "confidence": 0.5}]`, 2)
		require.NoError(t, err)
		require.Len(t, payloads, 2)
		assert.Equal(t, "A", payloads[0].Category)
		assert.Equal(t, "B", payloads[1].Category)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := parseSuggestionList(`[{"category": "A", "confidence": 0.9}]`, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrClassificationFailed)
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := parseSuggestionList(`{"category": "A"}`, 1)
		require.Error(t, err)
	})
}
