package pipeline

import (
	"encoding/json"
	"testing"
)

// ----------------------------------------------------------------------------
// ValidEmail Tests
// ----------------------------------------------------------------------------

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple address", "jane@example.com", true},
		{"dots and hyphens", "jane.doe-x@mail.example.co", true},
		{"underscore local part", "jane_doe@domain.com", true},
		{"sentinel", "invalid-email", false},
		{"empty", "", false},
		{"no at sign", "janeexample.com", false},
		{"no tld", "jane@example", false},
		{"one letter tld", "jane@example.c", false},
		{"spaces", "jane doe@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidEmail(tt.input); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate / ValidDate Tests
// ----------------------------------------------------------------------------

func TestValidDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"rfc3339 zulu", "2023-05-01T10:30:00Z", true},
		{"explicit utc offset", "2023-05-01T10:30:00+00:00", true},
		{"fractional seconds", "2023-05-01T10:30:00.123456Z", true},
		{"no offset", "2023-05-01T10:30:00", true},
		{"date only", "2023-05-01", true},
		{"space separator", "2023-05-01 10:30:00", true},
		{"sentinel", "not-a-date", false},
		{"empty", "", false},
		{"garbage", "yesterday-ish", false},
		{"us format", "05/01/2023", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidDate(tt.input); got != tt.want {
				t.Errorf("ValidDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate_NormalizesZulu(t *testing.T) {
	got, ok := ParseDate("2023-05-01T10:30:00Z")
	if !ok {
		t.Fatal("ParseDate() failed for valid timestamp")
	}
	if got.UTC().Format("2006-01-02T15:04:05") != "2023-05-01T10:30:00" {
		t.Errorf("ParseDate() = %v, want 2023-05-01T10:30:00 UTC", got)
	}
}

// ----------------------------------------------------------------------------
// ValidURL Tests
// ----------------------------------------------------------------------------

func TestValidURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"https", "https://instagram.com/p/abc123", true},
		{"http", "http://tiktok.com/@jane/video/1", true},
		{"percent escape", "https://example.com%2Fpost", true},
		{"sentinel", "broken_link", false},
		{"empty", "", false},
		{"no scheme", "instagram.com/p/abc123", false},
		{"ftp scheme", "ftp://example.com/file", false},
		{"scheme only", "https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidURL(tt.input); got != tt.want {
				t.Errorf("ValidURL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ValidHandle / CleanHandle Tests
// ----------------------------------------------------------------------------

func TestValidHandle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain handle", "janedoe", true},
		{"at prefix", "@janedoe", true},
		{"odd but usable", "x y z", true},
		{"sentinel", "#error_handle", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidHandle(tt.input); got != tt.want {
				t.Errorf("ValidHandle(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanHandle(t *testing.T) {
	if got := CleanHandle("@janedoe"); got != "janedoe" {
		t.Errorf("CleanHandle(@janedoe) = %q, want janedoe", got)
	}
	if got := CleanHandle("@@doubled"); got != "doubled" {
		t.Errorf("CleanHandle(@@doubled) = %q, want doubled", got)
	}
	if got := CleanHandle("plain"); got != "plain" {
		t.Errorf("CleanHandle(plain) = %q, want plain", got)
	}
}

// ----------------------------------------------------------------------------
// CleanNumeric Tests
// ----------------------------------------------------------------------------

func TestCleanNumeric_NullPolicy(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    *float64
		wantOK  bool
	}{
		{"nil stays null", nil, nil, true},
		{"float64", float64(12.5), f64(12.5), true},
		{"json number", json.Number("42"), f64(42), true},
		{"numeric string", "12.5", f64(12.5), true},
		{"nan sentinel", "NaN", nil, false},
		{"lowercase nan string", "nan", nil, false},
		{"garbage string", "lots", nil, false},
		{"bool", true, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CleanNumeric(tt.input, NumericNull)
			if ok != tt.wantOK {
				t.Fatalf("CleanNumeric(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("CleanNumeric(%v) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("CleanNumeric(%v) = %v, want %v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestCleanNumeric_ZeroPolicy(t *testing.T) {
	// A present-but-unparseable value coerces to zero; explicit null stays
	// null because absence is not a parse failure.
	got, ok := CleanNumeric("NaN", NumericZero)
	if ok {
		t.Error("CleanNumeric(NaN) ok = true, want false")
	}
	if got == nil || *got != 0 {
		t.Errorf("CleanNumeric(NaN, zero) = %v, want 0", got)
	}

	got, ok = CleanNumeric(nil, NumericZero)
	if !ok || got != nil {
		t.Errorf("CleanNumeric(nil, zero) = %v, %v, want nil, true", got, ok)
	}

	got, ok = CleanNumeric("12.5", NumericZero)
	if !ok || got == nil || *got != 12.5 {
		t.Errorf("CleanNumeric(12.5, zero) = %v, %v, want 12.5, true", got, ok)
	}
}

func f64(v float64) *float64 {
	return &v
}
