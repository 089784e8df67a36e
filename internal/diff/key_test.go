package diff

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSyntheticKey(t *testing.T) {
	t.Run("short bodies are kept whole", func(t *testing.T) {
		require.Equal(t, "row_NULL_NULL_NULL", syntheticKey([]string{"NULL", "NULL", "NULL"}))
		require.Equal(t, "row_", syntheticKey(nil))
	})

	t.Run("long bodies are cut to 20 characters", func(t *testing.T) {
		key := syntheticKey([]string{"abcdefghij", "klmnopqrst", "uvwxyz"})
		require.Equal(t, "row_abcdefghij_klmnopqrs", key)
	})

	t.Run("the cut counts runes, not bytes", func(t *testing.T) {
		key := syntheticKey([]string{"ééééééééééé", "ñññññññññññ"})
		require.Equal(t, "row_ééééééééééé_ññññññññ", key)
		require.True(t, utf8.ValidString(key))
		require.Equal(t, 24, utf8.RuneCountInString(key))
	})
}
