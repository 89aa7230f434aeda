package flights

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/kjstillabower/island-getaway-service/internal/models"
)

const (
	minSyntheticPrice = 80
	defaultBasePrice  = 250
	airportStep       = 25
	priceJitter       = 50
)

var carriers = [...]string{"UA", "AA", "DL", "WN"}

// basePrices are New York fares by destination airport.
var basePrices = map[string]float64{
	"DEN": 180, "ASE": 350, "HDN": 320,
	"SLC": 200,
	"RNO": 220, "MMH": 380, "ONT": 200,
	"BZN": 280, "JAC": 350,
	"BTV": 120, "ALB": 80, "PWM": 150, "MHT": 100,
	"YUL": 150, "YYZ": 180, "YVR": 300, "YLW": 350, "YXS": 380,
	"GVA": 450, "INN": 500,
	"CTS": 800,
	"ABQ": 200, "SEA": 250, "TVC": 220, "CKB": 250,
}

// BasePrice returns the New York fare for destination, 250 when unlisted.
func BasePrice(destination string) float64 {
	if p, ok := basePrices[destination]; ok {
		return p
	}
	return defaultBasePrice
}

// OriginAdjustment returns the fare delta for flying from group instead of New York.
// The per-route overrides are kept exactly as published.
func OriginAdjustment(group, destination string) float64 {
	switch group {
	case "nyc":
		return 0
	case "dca":
		return 10
	case "lax":
		switch {
		case isCanadian(destination):
			return 100
		case destination == "MMH" || destination == "RNO":
			return -100
		}
		return 20
	case "chi":
		switch {
		case destination == "DEN":
			return -30
		case isCanadian(destination):
			return -50
		}
		return 10
	case "dfw":
		switch destination {
		case "DEN":
			return -50
		case "ABQ":
			return -80
		}
		return 30
	case "mia":
		if isCanadian(destination) {
			return 150
		}
		return 80
	case "sfo":
		switch destination {
		case "MMH", "RNO", "SLC":
			return -80
		}
		return 40
	case "bos":
		switch destination {
		case "BTV", "PWM", "MHT":
			return -50
		}
		return 20
	case "sea":
		switch destination {
		case "SEA":
			return 0
		case "RNO", "SLC":
			return -40
		}
		return 60
	case "den":
		switch destination {
		case "DEN":
			return 0
		case "SLC":
			return -80
		case "ASE", "HDN":
			return -150
		}
		return 50
	case "atl":
		if destination == "DEN" {
			return -20
		}
		return 40
	default:
		return 0
	}
}

// syntheticOffers builds one mock offer per origin airport, sorted by price.
// intn must return a value in [0, n).
func syntheticOffers(destination, departureDate, returnDate, group string, airports []string, intn func(n int) int) []models.FlightOffer {
	base := BasePrice(destination) + OriginAdjustment(group, destination)

	offers := make([]models.FlightOffer, 0, len(airports))
	for i, origin := range airports {
		price := base + float64(i*airportStep) + float64(intn(priceJitter))
		carrier := carriers[i%len(carriers)]

		offer := models.FlightOffer{
			ID:       "mock-" + origin + "-" + destination + "-" + uuid.NewString(),
			Origin:   origin,
			Price:    math.Max(minSyntheticPrice, price),
			Currency: "USD",
			Outbound: models.FlightLeg{
				Departure: departureDate + "T08:00:00",
				Arrival:   departureDate + "T12:00:00",
				Duration:  "PT4H",
				Stops:     intn(2),
				Carrier:   carrier,
			},
			IsMock:     true,
			BookingURL: bookingURL(origin, destination),
		}
		if returnDate != "" {
			offer.Return = &models.FlightLeg{
				Departure: returnDate + "T15:00:00",
				Arrival:   returnDate + "T23:00:00",
				Duration:  "PT4H30M",
				Stops:     intn(2),
				Carrier:   carrier,
			}
		}
		offers = append(offers, offer)
	}

	sortByPrice(offers)
	return offers
}

func sortByPrice(offers []models.FlightOffer) {
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price < offers[j].Price })
}
