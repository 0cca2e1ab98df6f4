// Package rules classifies document leaves as sensitive by matching their
// paths against an ordered list of configured patterns.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
)

// SemanticType is the declared category of sensitivity for a field. It
// drives which transform applies.
type SemanticType string

const (
	// TypeName marks human names, replaced by opaque sequence tokens.
	TypeName SemanticType = "NAME"

	// TypeDate marks date/time fields, replaced by epoch integers.
	TypeDate SemanticType = "DATE"

	// TypeIdentifier marks account numbers, user IDs and the like,
	// replaced by opaque sequence tokens.
	TypeIdentifier SemanticType = "IDENTIFIER"

	// TypeFreeform marks free-text sensitive fields, irreversibly
	// redacted.
	TypeFreeform SemanticType = "FREEFORM_SENSITIVE"
)

// KnownTypes lists every valid SemanticType.
var KnownTypes = []SemanticType{TypeName, TypeDate, TypeIdentifier, TypeFreeform}

// Valid reports whether t is one of the known semantic types.
func (t SemanticType) Valid() bool {
	switch t {
	case TypeName, TypeDate, TypeIdentifier, TypeFreeform:
		return true
	}
	return false
}

// Rule pairs a path pattern with the semantic type its matches carry.
type Rule struct {
	Pattern string
	Type    SemanticType
}

// segment is one compiled step of a pattern.
type segment struct {
	key   string  // object key to match (when kind == segKey)
	index int     // array index to match (when kind == segIndex)
	kind  segKind
}

type segKind int

const (
	segKey      segKind = iota // exact object key
	segAnyKey                  // "*": any object key
	segIndex                   // "[N]": exact array index
	segAnyIndex                // "[]": any array index
)

// compiledRule is a pattern compiled once at configuration time so leaf
// matching never re-parses pattern strings.
type compiledRule struct {
	segments []segment
	typ      SemanticType
	pattern  string
}

// Classifier matches leaf paths against an ordered rule list. First match
// wins; unmatched paths return empty.
type Classifier struct {
	rules []compiledRule
}

// Compile parses every rule pattern and validates semantic types. All
// errors are reported with the offending rule's position and pattern.
func Compile(ruleList []Rule) (*Classifier, error) {
	if len(ruleList) == 0 {
		return nil, fmt.Errorf("no classification rules configured")
	}

	compiled := make([]compiledRule, 0, len(ruleList))
	for i, r := range ruleList {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("rule %d (%q): unknown semantic type %q", i, r.Pattern, r.Type)
		}
		segs, err := parsePattern(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled = append(compiled, compiledRule{
			segments: segs,
			typ:      r.Type,
			pattern:  r.Pattern,
		})
	}
	return &Classifier{rules: compiled}, nil
}

// Classify returns the semantic type of the first rule matching path, or
// ("", false) when no rule matches.
func (c *Classifier) Classify(path document.Path) (SemanticType, bool) {
	for _, r := range c.rules {
		if matchPath(r.segments, path) {
			return r.typ, true
		}
	}
	return "", false
}

// parsePattern splits a pattern like "orders[].items[2].name" or
// "user.*" into segments. "[]" matches any index, "[N]" a specific one,
// "*" any single key.
func parsePattern(pattern string) ([]segment, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	if pattern != strings.TrimSpace(pattern) {
		return nil, fmt.Errorf("pattern %q has surrounding whitespace", pattern)
	}

	var segs []segment
	for _, part := range strings.Split(pattern, ".") {
		if part == "" {
			return nil, fmt.Errorf("pattern %q has an empty segment", pattern)
		}

		key := part
		var brackets []string
		for {
			open := strings.Index(key, "[")
			if open < 0 {
				break
			}
			if !strings.HasSuffix(key, "]") {
				return nil, fmt.Errorf("pattern %q: unbalanced bracket in %q", pattern, part)
			}
			// Everything from the first '[' on is index suffixes.
			suffix := key[open:]
			key = key[:open]
			for _, raw := range strings.SplitAfter(suffix, "]") {
				if raw == "" {
					continue
				}
				if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
					return nil, fmt.Errorf("pattern %q: malformed index in %q", pattern, part)
				}
				brackets = append(brackets, raw[1:len(raw)-1])
			}
			break
		}

		if key != "" {
			if key == "*" {
				segs = append(segs, segment{kind: segAnyKey})
			} else {
				segs = append(segs, segment{kind: segKey, key: key})
			}
		} else if len(brackets) == 0 {
			return nil, fmt.Errorf("pattern %q has an empty segment", pattern)
		}

		for _, b := range brackets {
			if b == "" {
				segs = append(segs, segment{kind: segAnyIndex})
				continue
			}
			n, err := strconv.Atoi(b)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("pattern %q: invalid index %q", pattern, b)
			}
			segs = append(segs, segment{kind: segIndex, index: n})
		}
	}
	return segs, nil
}

func matchPath(segs []segment, path document.Path) bool {
	if len(segs) != len(path) {
		return false
	}
	for i, seg := range segs {
		p := path[i]
		switch seg.kind {
		case segKey:
			if !p.IsKey || p.Key != seg.key {
				return false
			}
		case segAnyKey:
			if !p.IsKey {
				return false
			}
		case segIndex:
			if p.IsKey || p.Index != seg.index {
				return false
			}
		case segAnyIndex:
			if p.IsKey {
				return false
			}
		}
	}
	return true
}
