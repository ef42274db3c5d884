package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Summer Jam 2025!", "summer-jam-2025"},
		{"  Café   Night  ", "cafe-night"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	got := Slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(got), MaxSlugLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestSlugWithSuffix(t *testing.T) {
	assert.Equal(t, "launch-ab12", SlugWithSuffix("launch", "ab12"))
	assert.Equal(t, "ab12", SlugWithSuffix("", "ab12"))

	long := SlugWithSuffix(strings.Repeat("a", 80), "ab12")
	assert.Len(t, long, MaxSlugLength)
	assert.True(t, strings.HasSuffix(long, "-ab12"))
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("acme-events"))
	assert.False(t, ValidSlug("a"))
	assert.False(t, ValidSlug("-acme"))
	assert.False(t, ValidSlug("Acme"))
	assert.False(t, ValidSlug("acme events"))
}

func TestNewBookingCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewBookingCode()
		require.NoError(t, err)
		require.Len(t, code, BookingCodeLength+1)
		assert.Equal(t, byte('-'), code[4])
		for _, r := range strings.ReplaceAll(code, "-", "") {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}
