package units

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the ISO calendar date format used for trip windows and forecast days.
const DateLayout = "2006-01-02"

// Round rounds half up (toward +Inf), so -2.5 becomes -2 and 2.5 becomes 3.
func Round(v float64) float64 {
	return math.Floor(v + 0.5)
}

// CelsiusToFahrenheit converts and rounds to a whole degree.
func CelsiusToFahrenheit(c float64) int {
	return int(Round(c*9/5 + 32))
}

// KmhToMph converts and rounds to a whole mph.
func KmhToMph(kmh float64) int {
	return int(Round(kmh * 0.621371))
}

// MetersToFeet converts and rounds to a whole foot.
func MetersToFeet(m float64) int {
	return int(Round(m * 3.281))
}

// MetersToFeetTenths converts and rounds to one decimal place.
func MetersToFeetTenths(m float64) float64 {
	return Round(m*3.281*10) / 10
}

// SecondsToHours converts a sunshine duration in seconds to whole hours.
func SecondsToHours(s float64) int {
	return int(Round(s / 3600))
}

// NextWeekend returns the coming Friday and the Monday after it as ISO dates.
// When now is already a Friday the following week's Friday is returned.
func NextWeekend(now time.Time) (friday, monday string) {
	days := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	fri := now.AddDate(0, 0, days)
	mon := fri.AddDate(0, 0, 3)
	return fri.Format(DateLayout), mon.Format(DateLayout)
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
