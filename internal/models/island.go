package models

// Island is a catalog entry: a beach destination with its nearest airport.
type Island struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Region         string   `json:"region"`
	Country        string   `json:"country"`
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	NearestAirport string   `json:"nearestAirport"`
	HurricaneRisk  string   `json:"hurricaneRisk"`
	Activities     []string `json:"activities"`
	PriceTier      string   `json:"priceTier"`
	Description    string   `json:"description,omitempty"`
}

// IslandWeather pairs an island with its forecast. Weather is nil when the fetch failed.
type IslandWeather struct {
	Island
	Weather *Forecast `json:"weather"`
}
