package client

import (
	"time"

	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/score"
	"github.com/kjstillabower/island-getaway-service/internal/units"
)

var weatherDescriptions = map[int]string{
	0:  "Sunny",
	1:  "Mostly sunny",
	2:  "Partly cloudy",
	3:  "Cloudy",
	45: "Foggy",
	48: "Foggy",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Heavy drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	66: "Freezing rain",
	67: "Heavy freezing rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Light showers",
	81: "Showers",
	82: "Heavy showers",
	85: "Snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Severe thunderstorm",
}

// WeatherDescription maps a WMO weather code to a short label. nil or unknown codes yield "Unknown".
func WeatherDescription(code *int) string {
	if code == nil {
		return "Unknown"
	}
	if d, ok := weatherDescriptions[*code]; ok {
		return d
	}
	return "Unknown"
}

// buildForecast converts raw provider series to US units and scores the week.
// marine may be nil.
func buildForecast(daily models.RawDaily, current models.RawCurrent, marine *marineResponse, now time.Time) models.Forecast {
	var waves []*float64
	var currentWave *float64
	if marine != nil {
		waves = marine.Daily.WaveHeightMax
		currentWave = marine.Current.WaveHeight
	}

	days := make([]models.DailyObservation, 0, len(daily.Time))
	totalSunshine := 0
	var probSum float64
	for i, date := range daily.Time {
		code := intAt(daily.WeatherCode, i)
		d := models.DailyObservation{
			Date:              date,
			TempHigh:          fahrenheit(at(daily.Temperature2mMax, i)),
			TempLow:           fahrenheit(at(daily.Temperature2mMin, i)),
			Precipitation:     orZero(at(daily.PrecipitationSum, i)),
			PrecipProbability: orZero(at(daily.PrecipitationProbabilityMax, i)),
			SunshineHours:     units.SecondsToHours(orZero(at(daily.SunshineDuration, i))),
			UVIndex:           orZero(at(daily.UVIndexMax, i)),
			WindSpeed:         units.KmhToMph(orZero(at(daily.WindSpeed10mMax, i))),
			WeatherCode:       code,
			Description:       WeatherDescription(code),
		}
		if h := at(waves, i); h != nil && *h != 0 {
			ft := units.MetersToFeet(*h)
			d.WaveHeight = &ft
		}
		totalSunshine += d.SunshineHours
		probSum += d.PrecipProbability
		days = append(days, d)
	}

	avgRain := 0
	if len(days) > 0 {
		avgRain = int(units.Round(probSum / float64(len(days))))
	}

	cur := models.CurrentConditions{
		Temperature: fahrenheit(current.Temperature2m),
		Humidity:    current.RelativeHumidity2m,
		WeatherCode: current.WeatherCode,
		Description: WeatherDescription(current.WeatherCode),
		WindSpeed:   units.KmhToMph(orZero(current.WindSpeed10m)),
		UVIndex:     orZero(current.UVIndex),
	}
	if currentWave != nil && *currentWave != 0 {
		ft := units.MetersToFeetTenths(*currentWave)
		cur.WaveHeight = &ft
	}

	beach := score.Beach(daily, current)
	return models.Forecast{
		Current: cur,
		Week: models.WeekSummary{
			TotalSunshineHours: totalSunshine,
			AvgRainChance:      avgRain,
			Daily:              days,
		},
		BeachScore: beach,
		Rating:     score.Rating(beach),
		UpdatedAt:  now.UTC(),
	}
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func intAt(vals []*int, i int) *int {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func fahrenheit(c *float64) *int {
	if c == nil {
		return nil
	}
	f := units.CelsiusToFahrenheit(*c)
	return &f
}
