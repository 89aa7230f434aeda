package validation

import (
	"errors"
	"strings"
	"time"

	"github.com/kjstillabower/island-getaway-service/internal/units"
)

// ErrIslandIDEmpty is returned when the island id is empty or whitespace-only after trim.
var ErrIslandIDEmpty = errors.New("islandId is required")

// ErrIslandIDTooLong is returned when the island id exceeds the maximum length.
var ErrIslandIDTooLong = errors.New("islandId too long")

// ErrIslandIDInvalidChars is returned when the island id contains anything but a-z, 0-9 and hyphen.
var ErrIslandIDInvalidChars = errors.New("islandId contains invalid characters")

// ErrDateEmpty is returned when a required date is missing.
var ErrDateEmpty = errors.New("date is required")

// ErrDateInvalid is returned when a date is not YYYY-MM-DD.
var ErrDateInvalid = errors.New("date must be YYYY-MM-DD")

// ErrReturnBeforeDeparture is returned when the return date precedes the departure date.
var ErrReturnBeforeDeparture = errors.New("return date is before departure date")

// ErrOriginInvalid is returned when an origin group is not a short lowercase code.
var ErrOriginInvalid = errors.New("origin must be a short airport group code")

const (
	maxIslandIDLen = 64
	maxOriginLen   = 8
)

// ValidateIslandID trims and lowercases input and restricts it to catalog id characters
// (a-z, 0-9, hyphen). Returns the normalized id or an error suitable for 400 responses.
// Whether the id exists is left to the catalog.
func ValidateIslandID(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", ErrIslandIDEmpty
	}
	if len(s) > maxIslandIDLen {
		return "", ErrIslandIDTooLong
	}
	for _, c := range s {
		if !isIDRune(c) {
			return "", ErrIslandIDInvalidChars
		}
	}
	return s, nil
}

// ValidateDate requires a YYYY-MM-DD date.
func ValidateDate(input string) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, ErrDateEmpty
	}
	t, err := units.ParseDate(s)
	if err != nil {
		return time.Time{}, ErrDateInvalid
	}
	return t, nil
}

// ValidateDateRange validates departure and an optional return date. An empty return is allowed.
func ValidateDateRange(departure, returnDate string) error {
	dep, err := ValidateDate(departure)
	if err != nil {
		return err
	}
	if strings.TrimSpace(returnDate) == "" {
		return nil
	}
	ret, err := ValidateDate(returnDate)
	if err != nil {
		return err
	}
	if ret.Before(dep) {
		return ErrReturnBeforeDeparture
	}
	return nil
}

// ValidateOrigin lowercases an origin group code. Empty input returns "" so callers can apply
// their default. Unknown but well-formed codes are accepted; resolution falls back later.
func ValidateOrigin(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", nil
	}
	if len(s) > maxOriginLen {
		return "", ErrOriginInvalid
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return "", ErrOriginInvalid
		}
	}
	return s, nil
}

func isIDRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
}
