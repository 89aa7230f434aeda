package models

// FlightLeg is one direction of an itinerary.
type FlightLeg struct {
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
	Duration  string `json:"duration"`
	Stops     int    `json:"stops"`
	Carrier   string `json:"carrier"`
}

// FlightOffer is a priced round trip or one-way offer from a single origin airport.
// IsMock marks offers synthesized when no live provider answered.
type FlightOffer struct {
	ID         string     `json:"id"`
	Origin     string     `json:"origin"`
	Price      float64    `json:"price"`
	Currency   string     `json:"currency"`
	Outbound   FlightLeg  `json:"outbound"`
	Return     *FlightLeg `json:"return"`
	IsMock     bool       `json:"isMock"`
	BookingURL string     `json:"bookingUrl"`
}

// TripDates is the requested travel window.
type TripDates struct {
	Departure string `json:"departure"`
	Return    string `json:"return"`
}

// Trip is a ranked getaway candidate.
type Trip struct {
	Island    Island       `json:"island"`
	Weather   *Forecast    `json:"weather"`
	Flight    *FlightOffer `json:"flight"`
	TripScore int          `json:"tripScore"`
	Dates     TripDates    `json:"dates"`
}

// Recommendations is the result of a recommendation request.
type Recommendations struct {
	Recommendations []Trip    `json:"recommendations"`
	AllTrips        []Trip    `json:"allTrips"`
	Dates           TripDates `json:"dates"`
	Origin          string    `json:"origin"`
}

// TripSearch is the result of an ad-hoc search for one island.
type TripSearch struct {
	Island    Island        `json:"island"`
	Weather   *Forecast     `json:"weather"`
	Flights   []FlightOffer `json:"flights"`
	SearchURL string        `json:"searchUrl"`
	Dates     TripDates     `json:"dates"`
	Origin    string        `json:"origin"`
}
