package transform

import (
	"fmt"
	"time"
)

// DateFormatError reports a DATE field whose value matched none of the
// configured patterns.
type DateFormatError struct {
	Value    string
	Patterns []string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("unrecognized date format: %q (tried %d pattern(s))", e.Value, len(e.Patterns))
}

// ParseDate converts a date string to a UTC epoch timestamp in seconds.
// Patterns are tried in configured order; the matching pattern is
// returned so the inverse transform can reconstruct the original text.
// Timezone-naive patterns are interpreted as UTC.
func (r *Registry) ParseDate(value string) (epoch int64, pattern string, err error) {
	if len(r.opts.DatePatterns) == 0 {
		return 0, "", &DateFormatError{Value: value}
	}
	for _, p := range r.opts.DatePatterns {
		t, perr := time.ParseInLocation(p, value, time.UTC)
		if perr != nil {
			continue
		}
		// Go's parser accepts some inputs loosely (e.g. out-of-range
		// normalization is rejected, but a layout may leave fields
		// unset). Require the round-trip to reproduce the input so a
		// matched pattern is exact.
		if t.Format(p) != value {
			continue
		}
		return t.Unix(), p, nil
	}
	return 0, "", &DateFormatError{Value: value, Patterns: r.opts.DatePatterns}
}

// FormatDate is the inverse of ParseDate: it renders a UTC epoch with the
// pattern the forward transform matched.
func FormatDate(epoch int64, pattern string) string {
	return time.Unix(epoch, 0).UTC().Format(pattern)
}

// InversePattern returns the pattern used when de-anonymizing a DATE leaf
// whose forward pattern was not recorded: the first configured pattern.
func (r *Registry) InversePattern() (string, error) {
	if len(r.opts.DatePatterns) == 0 {
		return "", fmt.Errorf("no date patterns configured")
	}
	return r.opts.DatePatterns[0], nil
}
