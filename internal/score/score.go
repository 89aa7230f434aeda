// Package score computes the beach and trip rankings. Every function here is pure.
package score

import (
	"math"

	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/units"
)

const (
	forecastDays      = 7
	idealSunshineHrs  = 10.0
	defaultHumidity   = 70.0
	maxSunshinePoints = 35.0
	maxRainPoints     = 30.0
)

// Beach scores a week of weather from 0 to 100. Missing daily values count as zero
// and missing humidity counts as 70.
func Beach(daily models.RawDaily, current models.RawCurrent) int {
	total := SunshinePoints(sum(daily.SunshineDuration) / 3600 / forecastDays)
	total += RainPoints(sum(daily.PrecipitationProbabilityMax) / forecastDays)
	total += TemperaturePoints(mean(daily.Temperature2mMax))
	total += HumidityPenalty(current.RelativeHumidity2m)
	total += WindPoints(sum(daily.WindSpeed10mMax) / forecastDays)

	s := int(units.Round(total))
	return clamp(s, 0, 100)
}

// SunshinePoints awards up to 35 points for the average daily hours of sunshine.
func SunshinePoints(avgHours float64) float64 {
	return math.Min(maxSunshinePoints, avgHours/idealSunshineHrs*maxSunshinePoints)
}

// RainPoints awards up to 30 points, losing 0.3 per percent of average rain probability.
func RainPoints(avgProbability float64) float64 {
	return math.Max(0, maxRainPoints-avgProbability*0.3)
}

// TemperaturePoints bands the average daily high in Celsius.
func TemperaturePoints(avgHighC float64) float64 {
	switch {
	case avgHighC >= 25 && avgHighC <= 31:
		return 20
	case avgHighC >= 22 && avgHighC <= 34:
		return 15
	case avgHighC >= 20 && avgHighC <= 36:
		return 10
	default:
		return 5
	}
}

// HumidityPenalty subtracts points for muggy air. nil and 0 read as the 70% default.
func HumidityPenalty(humidity *float64) float64 {
	h := defaultHumidity
	if humidity != nil && *humidity != 0 {
		h = *humidity
	}
	switch {
	case h > 85:
		return -10
	case h > 75:
		return -5
	default:
		return 0
	}
}

// WindPoints awards points for light average maximum winds in km/h.
func WindPoints(avgKmh float64) float64 {
	switch {
	case avgKmh < 20:
		return 15
	case avgKmh < 35:
		return 10
	case avgKmh < 50:
		return 5
	default:
		return 0
	}
}

// Trip blends the beach score with the flight price: 60% weather, 40% price.
// Without a positive price the beach score is returned unchanged.
func Trip(beachScore int, flightPrice *float64) int {
	if flightPrice == nil || *flightPrice <= 0 {
		return beachScore
	}
	priceScore := math.Max(0, 100-(*flightPrice-300)/5)
	priceScore = math.Min(100, priceScore)
	return int(units.Round(float64(beachScore)*0.6 + priceScore*0.4))
}

// Rating labels a beach score for display.
func Rating(beachScore int) string {
	switch {
	case beachScore >= 75:
		return "Perfect"
	case beachScore >= 55:
		return "Great"
	case beachScore >= 40:
		return "Good"
	default:
		return "Fair"
	}
}

func sum(vals []*float64) float64 {
	var total float64
	for _, v := range vals {
		if v != nil {
			total += *v
		}
	}
	return total
}

func mean(vals []*float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
