package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	for _, c := range Categories() {
		got, err := ParseCategory(c.Label())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCategory("  Home ")
	require.NoError(t, err)
	assert.Equal(t, CategoryHome, got)

	got, err = ParseCategory("SHOPPING")
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.Equal(t, CategoryUnknown, got)
}

func TestCategoriesClosedSet(t *testing.T) {
	t.Parallel()

	cats := Categories()
	assert.Len(t, cats, 11)
	assert.Equal(t, CategoryUnknown, cats[len(cats)-1])
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":     "",
		"auto": "",
		"AUTO": "",
		"ru":   "ru",
		" EN ": "en",
		"xx":   "",
		"nl":   "nl",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLanguage(in), "hint %q", in)
	}

	assert.True(t, IsSupportedLanguage("ko"))
	assert.False(t, IsSupportedLanguage("uk"))
	assert.Equal(t, "German", LanguageName("de"))
}

func TestMediaKindIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, MediaKindVoice.IsValid())
	assert.True(t, MediaKindAudio.IsValid())
	assert.True(t, MediaKindVideoNote.IsValid())
	assert.False(t, MediaKind("document").IsValid())
}
