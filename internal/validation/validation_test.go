package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIslandID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple", "aruba", "aruba", nil},
		{"hyphenated and trimmed", "  st-lucia ", "st-lucia", nil},
		{"uppercase normalized", "Turks-Caicos", "turks-caicos", nil},
		{"empty", "", "", ErrIslandIDEmpty},
		{"whitespace", " \t", "", ErrIslandIDEmpty},
		{"too long", strings.Repeat("a", 65), "", ErrIslandIDTooLong},
		{"path traversal", "../etc", "", ErrIslandIDInvalidChars},
		{"space inside", "st lucia", "", ErrIslandIDInvalidChars},
		{"unicode", "curaçao", "", ErrIslandIDInvalidChars},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateIslandID(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidateIslandID(%q) error = %v, want %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ValidateIslandID(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		input   string
		wantErr error
	}{
		{"2026-10-23", nil},
		{" 2026-10-23 ", nil},
		{"", ErrDateEmpty},
		{"2026-13-01", ErrDateInvalid},
		{"10/23/2026", ErrDateInvalid},
		{"2026-10-23T08:00:00", ErrDateInvalid},
	}
	for _, tc := range tests {
		_, err := ValidateDate(tc.input)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("ValidateDate(%q) error = %v, want %v", tc.input, err, tc.wantErr)
		}
	}
}

func TestValidateDateRange(t *testing.T) {
	tests := []struct {
		name     string
		dep, ret string
		wantErr  error
	}{
		{"round trip", "2026-10-23", "2026-10-26", nil},
		{"one way", "2026-10-23", "", nil},
		{"same day", "2026-10-23", "2026-10-23", nil},
		{"return first", "2026-10-26", "2026-10-23", ErrReturnBeforeDeparture},
		{"bad return", "2026-10-23", "soon", ErrDateInvalid},
		{"missing departure", "", "2026-10-26", ErrDateEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateDateRange(tc.dep, tc.ret); !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateDateRange(%q, %q) error = %v, want %v", tc.dep, tc.ret, err, tc.wantErr)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"nyc", "nyc", nil},
		{" SFO ", "sfo", nil},
		{"", "", nil},
		{"atlantis", "atlantis", nil},
		{"new-york", "", ErrOriginInvalid},
		{"abcdefghi", "", ErrOriginInvalid},
		{"n1c", "", ErrOriginInvalid},
	}
	for _, tc := range tests {
		got, err := ValidateOrigin(tc.input)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("ValidateOrigin(%q) error = %v, want %v", tc.input, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ValidateOrigin(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
