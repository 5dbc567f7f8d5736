package pipeline

// validate.go provides field-level validation and cleanup for raw input data.
//
// Upstream generators deliberately embed sentinel values ("invalid-email",
// "not-a-date", "broken_link", "#error_handle", "NaN") alongside ordinary
// malformed data. All functions here are total: any input yields a defined
// valid/invalid result, never a panic. Issue strings are appended at the
// call site in the normalizer, not here.

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel values used by upstream data generators to mark known-bad fields.
const (
	sentinelEmail  = "invalid-email"
	sentinelDate   = "not-a-date"
	sentinelURL    = "broken_link"
	sentinelHandle = "#error_handle"
	sentinelNaN    = "NaN"
)

var (
	// emailRegex requires word characters, dots, or hyphens in the local
	// part and domain, plus a TLD of at least two letters. No MX lookup.
	emailRegex = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.[a-zA-Z]{2,}$`)

	// urlRegex requires an http(s) scheme followed by at least one valid
	// URL character (including percent-escapes).
	urlRegex = regexp.MustCompile(`^https?://(?:[-\w.]|%[0-9a-fA-F]{2})+`)
)

// isoLayouts are the ISO-8601 shapes accepted for joined_at, tried in order.
// RFC 3339 covers both "Z" and "+00:00" offsets.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValidEmail reports whether s looks like a deliverable address.
// The sentinel "invalid-email" and the empty string always fail.
func ValidEmail(s string) bool {
	if s == "" || s == sentinelEmail {
		return false
	}
	return emailRegex.MatchString(s)
}

// ParseDate parses an ISO-8601 timestamp, accepting a trailing "Z" as UTC.
// Returns the parsed time and whether parsing succeeded; the sentinel
// "not-a-date" and the empty string always fail.
func ParseDate(s string) (time.Time, bool) {
	if s == "" || s == sentinelDate {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidDate reports whether s parses as an ISO-8601 timestamp.
func ValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ValidURL reports whether s starts with an http(s) scheme followed by at
// least one URL character. The sentinel "broken_link" always fails.
func ValidURL(s string) bool {
	if s == "" || s == sentinelURL {
		return false
	}
	return urlRegex.MatchString(s)
}

// ValidHandle reports whether a social media handle is usable. Only the
// empty string and the sentinel "#error_handle" fail.
func ValidHandle(s string) bool {
	return s != "" && s != sentinelHandle
}

// CleanHandle strips the leading "@" decoration from a passing handle.
func CleanHandle(s string) string {
	return strings.TrimLeft(s, "@")
}

// NumericPolicy selects what an unparseable numeric field becomes.
// The choice applies uniformly to all engagement fields and the sales field.
type NumericPolicy string

const (
	// NumericNull maps unparseable values to null.
	NumericNull NumericPolicy = "null"
	// NumericZero coerces unparseable values to zero. Explicit nulls and
	// absent fields stay null; absence is not a parse failure.
	NumericZero NumericPolicy = "zero"
)

// Valid reports whether the policy is one of the recognized values.
func (p NumericPolicy) Valid() bool {
	return p == NumericNull || p == NumericZero
}

// CleanNumeric converts a loosely typed JSON value to a float. The ok result
// is false when a value was present but unparseable (the caller appends an
// issue string in that case); explicit null or absence returns (nil, true).
// The "NaN" sentinel, non-finite parses, and non-numeric types all count as
// unparseable and follow the policy.
func CleanNumeric(v any, policy NumericPolicy) (*float64, bool) {
	switch n := v.(type) {
	case nil:
		return nil, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return failedNumeric(policy), false
		}
		return &n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return failedNumeric(policy), false
		}
		return &f, true
	case string:
		if n == sentinelNaN {
			return failedNumeric(policy), false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return failedNumeric(policy), false
		}
		return &f, true
	default:
		return failedNumeric(policy), false
	}
}

func failedNumeric(policy NumericPolicy) *float64 {
	if policy == NumericZero {
		zero := 0.0
		return &zero
	}
	return nil
}
