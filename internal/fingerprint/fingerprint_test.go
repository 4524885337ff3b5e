package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDeterministic(t *testing.T) {
	a, err := Key("click the login button", "https://example.com/login", "<button id=\"login\">")
	require.NoError(t, err)
	b, err := Key("click the login button", "https://example.com/login", "<button id=\"login\">")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestKeySensitivity(t *testing.T) {
	base, err := Key("click the login button", "https://example.com/login", "<button>")
	require.NoError(t, err)

	tests := []struct {
		name        string
		description string
		url         string
		dom         string
	}{
		{"description changed", "click the logout button", "https://example.com/login", "<button>"},
		{"url changed", "click the login button", "https://example.com/signup", "<button>"},
		{"dom changed", "click the login button", "https://example.com/login", "<a>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.description, tt.url, tt.dom)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestKeyFieldShiftDoesNotCollide(t *testing.T) {
	// Moving characters across the separator must change the digest.
	a, err := Key("ab", "c", "d")
	require.NoError(t, err)
	b, err := Key("a", "bc", "d")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyHashesWholeDOM(t *testing.T) {
	long := strings.Repeat("<div>", 100000)
	a, err := Key("step", "url", long)
	require.NoError(t, err)
	b, err := Key("step", "url", long+"<span>")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "a suffix past any truncation point must still change the key")
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	a := Normalize("<div>\n  <p>hello   world</p>\n</div>")
	b := Normalize("<div><p>hello world</p></div>")
	assert.Equal(t, a, b)
}

func TestNormalizeDropsComments(t *testing.T) {
	a := Normalize("<div><!-- build 1234 --><p>hello</p></div>")
	b := Normalize("<div><p>hello</p></div>")
	assert.Equal(t, a, b)
}

func TestNormalizeKeepsAttributes(t *testing.T) {
	a := Normalize(`<button id="login">go</button>`)
	b := Normalize(`<button id="signup">go</button>`)
	assert.NotEqual(t, a, b)
}
