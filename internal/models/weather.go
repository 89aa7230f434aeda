package models

import "time"

// RawDaily is the provider's 7-day daily series before unit conversion.
// Values are Celsius, millimetres, percent, seconds and km/h. Any slot may be nil.
type RawDaily struct {
	Time                        []string   `json:"time"`
	Temperature2mMax            []*float64 `json:"temperature_2m_max"`
	Temperature2mMin            []*float64 `json:"temperature_2m_min"`
	PrecipitationSum            []*float64 `json:"precipitation_sum"`
	PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
	WeatherCode                 []*int     `json:"weather_code"`
	SunshineDuration            []*float64 `json:"sunshine_duration"`
	UVIndexMax                  []*float64 `json:"uv_index_max"`
	WindSpeed10mMax             []*float64 `json:"wind_speed_10m_max"`
}

// RawCurrent is the provider's current-conditions snapshot before unit conversion.
type RawCurrent struct {
	Temperature2m      *float64 `json:"temperature_2m"`
	RelativeHumidity2m *float64 `json:"relative_humidity_2m"`
	WeatherCode        *int     `json:"weather_code"`
	WindSpeed10m       *float64 `json:"wind_speed_10m"`
	UVIndex            *float64 `json:"uv_index"`
}

// DailyObservation is one normalized forecast day in US units.
type DailyObservation struct {
	Date              string  `json:"date"`
	TempHigh          *int    `json:"tempHigh"`
	TempLow           *int    `json:"tempLow"`
	Precipitation     float64 `json:"precipitation"`
	PrecipProbability float64 `json:"precipProbability"`
	SunshineHours     int     `json:"sunshineHours"`
	UVIndex           float64 `json:"uvIndex"`
	WindSpeed         int     `json:"windSpeed"`
	WeatherCode       *int    `json:"weatherCode"`
	Description       string  `json:"description"`
	WaveHeight        *int    `json:"waveHeight"`
}

// CurrentConditions is the normalized current snapshot in US units.
type CurrentConditions struct {
	Temperature *int     `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	WeatherCode *int     `json:"weatherCode"`
	Description string   `json:"description"`
	WindSpeed   int      `json:"windSpeed"`
	UVIndex     float64  `json:"uvIndex"`
	WaveHeight  *float64 `json:"waveHeight"`
}

// WeekSummary holds the daily series and its aggregates.
type WeekSummary struct {
	TotalSunshineHours int                `json:"totalSunshineHours"`
	AvgRainChance      int                `json:"avgRainChance"`
	Daily              []DailyObservation `json:"daily"`
}

// Forecast is the beach forecast for one island.
type Forecast struct {
	Current    CurrentConditions `json:"current"`
	Week       WeekSummary       `json:"forecast"`
	BeachScore int               `json:"beachScore"`
	Rating     string            `json:"rating"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
