package flights

import (
	"net/url"
	"strings"
)

// DefaultOrigin is used for empty or unknown origin groups.
const DefaultOrigin = "nyc"

type originGroup struct {
	label    string
	airports []string
}

var originGroups = map[string]originGroup{
	"nyc": {"New York", []string{"JFK", "LGA", "EWR"}},
	"dca": {"Washington DC", []string{"DCA", "IAD", "BWI"}},
	"lax": {"Los Angeles", []string{"LAX", "BUR", "SNA"}},
	"chi": {"Chicago", []string{"ORD", "MDW"}},
	"dfw": {"Dallas", []string{"DFW", "DAL"}},
	"mia": {"Miami", []string{"MIA", "FLL"}},
	"sfo": {"San Francisco", []string{"SFO", "OAK", "SJC"}},
	"bos": {"Boston", []string{"BOS"}},
	"sea": {"Seattle", []string{"SEA"}},
	"den": {"Denver", []string{"DEN"}},
	"atl": {"Atlanta", []string{"ATL"}},
}

// KnownOrigin reports whether group names a configured origin group.
func KnownOrigin(group string) bool {
	_, ok := originGroups[group]
	return ok
}

// Airports returns the origin airports for group, falling back to New York.
func Airports(group string) []string {
	g, ok := originGroups[group]
	if !ok {
		g = originGroups[DefaultOrigin]
	}
	out := make([]string, len(g.airports))
	copy(out, g.airports)
	return out
}

// OriginLabel returns the human-readable city for group, falling back to New York.
func OriginLabel(group string) string {
	if g, ok := originGroups[group]; ok {
		return g.label
	}
	return originGroups[DefaultOrigin].label
}

// SearchURL builds a flight search deep link for manual booking.
// An empty returnDate is sent as an empty r parameter.
func SearchURL(originLabel, destination, departureDate, returnDate string) string {
	params := url.Values{}
	params.Set("q", "flights from "+originLabel+" to "+destination)
	params.Set("d", departureDate)
	params.Set("r", returnDate)
	return "https://www.google.com/travel/flights?" + params.Encode()
}

func bookingURL(origin, destination string) string {
	return "https://www.google.com/flights?q=flights+from+" + origin + "+to+" + destination
}

func isCanadian(destination string) bool {
	return strings.HasPrefix(destination, "Y")
}
