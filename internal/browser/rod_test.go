package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyForNamedKeys(t *testing.T) {
	tests := []struct {
		value string
		want  input.Key
	}{
		{"enter", input.Enter},
		{"Enter", input.Enter},
		{"ESC", input.Escape},
		{"escape", input.Escape},
		{"tab", input.Tab},
		{"backspace", input.Backspace},
		{"ArrowDown", input.ArrowDown},
	}
	for _, tt := range tests {
		got, err := keyFor(tt.value)
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}
}

func TestKeyForSingleCharacter(t *testing.T) {
	got, err := keyFor("a")
	require.NoError(t, err)
	assert.Equal(t, input.Key('a'), got)
}

func TestKeyForUnsupported(t *testing.T) {
	_, err := keyFor("ctrl+shift+p")
	assert.ErrorContains(t, err, "unsupported key")
}
