package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

func TestNewRegistryDefaultsToMask(t *testing.T) {
	r, err := NewRegistry(Options{})
	require.NoError(t, err)
	assert.Equal(t, MaskPlaceholder, r.Redact("secret"))
}

func TestNewRegistryRejectsBadOptions(t *testing.T) {
	_, err := NewRegistry(Options{Redact: "scramble"})
	assert.Error(t, err)

	_, err = NewRegistry(Options{DatePatterns: []string{"2006-01-02", "  "}})
	assert.Error(t, err)
}

func TestTokenPrefix(t *testing.T) {
	r, err := NewRegistry(Options{
		TokenPrefixes: map[rules.SemanticType]string{rules.TypeName: "PERSON"},
	})
	require.NoError(t, err)

	assert.Equal(t, "PERSON", r.TokenPrefix(rules.TypeName))
	assert.Equal(t, "IDENTIFIER", r.TokenPrefix(rules.TypeIdentifier), "missing prefix falls back to type name")
}

func TestFormatToken(t *testing.T) {
	assert.Equal(t, "NAME-1", FormatToken("NAME", 1))
	assert.Equal(t, "ID-42", FormatToken("ID", 42))
}

func TestRedactPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy RedactPolicy
		input  string
		want   string
	}{
		{"mask", RedactMask, "4111 1111 1111 1111", "[REDACTED]"},
		{"mask_digits", RedactMaskDigits, "4111-22x", "####-##x"},
		{"mask_digits_no_digits", RedactMaskDigits, "abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(Options{Redact: tt.policy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Redact(tt.input))
		})
	}
}

func TestRedactHashIsDeterministic(t *testing.T) {
	r, err := NewRegistry(Options{Redact: RedactHash})
	require.NoError(t, err)

	a := r.Redact("secret")
	b := r.Redact("secret")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "sha-256 hex digest")
	assert.NotEqual(t, a, r.Redact("other"))
}
