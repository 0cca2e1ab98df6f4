// Package transform holds the catalog of format-preserving transforms:
// date-to-epoch, sequence tokens, redaction, and hashing.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

// RedactPolicy selects how FREEFORM_SENSITIVE values are destroyed.
type RedactPolicy string

const (
	// RedactMask replaces the whole value with a fixed placeholder.
	RedactMask RedactPolicy = "mask"

	// RedactMaskDigits replaces each digit with '#' and keeps all other
	// runes, preserving the value's length and shape.
	RedactMaskDigits RedactPolicy = "mask_digits"

	// RedactHash replaces the value with its SHA-256 hex digest.
	RedactHash RedactPolicy = "hash"
)

// Valid reports whether p is a known redact policy.
func (p RedactPolicy) Valid() bool {
	switch p {
	case RedactMask, RedactMaskDigits, RedactHash:
		return true
	}
	return false
}

// MaskPlaceholder is the fixed replacement used by RedactMask.
const MaskPlaceholder = "[REDACTED]"

// Options configures the registry's transforms per semantic type.
type Options struct {
	// DatePatterns is the ordered list of Go time layouts tried when
	// parsing DATE fields. Must be non-empty if any DATE rule exists.
	DatePatterns []string

	// TokenPrefixes maps NAME/IDENTIFIER to their token prefix.
	// Missing entries fall back to the semantic type name itself.
	TokenPrefixes map[rules.SemanticType]string

	// Redact selects the FREEFORM_SENSITIVE policy.
	Redact RedactPolicy
}

// Registry applies the per-type transforms. It owns no mutable state;
// token sequence counters live in the mapping store.
type Registry struct {
	opts Options
}

// NewRegistry validates options and builds a registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Redact == "" {
		opts.Redact = RedactMask
	}
	if !opts.Redact.Valid() {
		return nil, fmt.Errorf("unknown redact policy %q", opts.Redact)
	}
	for _, p := range opts.DatePatterns {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("empty date pattern")
		}
	}
	return &Registry{opts: opts}, nil
}

// TokenPrefix returns the configured token prefix for a semantic type,
// defaulting to the type name ("NAME", "IDENTIFIER").
func (r *Registry) TokenPrefix(typ rules.SemanticType) string {
	if p, ok := r.opts.TokenPrefixes[typ]; ok && p != "" {
		return p
	}
	return string(typ)
}

// FormatToken renders the opaque token for a sequence number, e.g.
// "NAME-1". Sequences start at 1 and are never reused.
func FormatToken(prefix string, seq uint64) string {
	return fmt.Sprintf("%s-%d", prefix, seq)
}

// Redact destroys a FREEFORM_SENSITIVE value per the configured policy.
// Irreversible: no mapping entry is ever recorded for the result.
func (r *Registry) Redact(value string) string {
	switch r.opts.Redact {
	case RedactMaskDigits:
		return maskDigits(value)
	case RedactHash:
		sum := sha256.Sum256([]byte(value))
		return hex.EncodeToString(sum[:])
	default:
		return MaskPlaceholder
	}
}

func maskDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune('#')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
