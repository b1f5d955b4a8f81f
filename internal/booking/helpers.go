package booking

import (
	"fmt"
	"strings"
	"time"
)

var airportKeywords = []string{"airport", "el prat", "aeropuerto", "aeroport"}

// DetectIsAirport reports whether either end of the trip looks like an airport.
func DetectIsAirport(pickup, destination string) bool {
	return mentionsAirport(pickup) || mentionsAirport(destination)
}

func mentionsAirport(s string) bool {
	s = strings.ToLower(s)
	for _, k := range airportKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Barcelona public holidays; the estimation service applies a surcharge on these.
var holidays = map[string]struct{}{
	"2025-01-01": {},
	"2025-01-06": {},
	"2025-04-18": {},
	"2025-04-21": {},
	"2025-05-01": {},
	"2025-06-24": {},
	"2025-08-15": {},
	"2025-09-11": {},
	"2025-09-24": {},
	"2025-10-12": {},
	"2025-11-01": {},
	"2025-12-06": {},
	"2025-12-08": {},
	"2025-12-25": {},
	"2025-12-26": {},
}

// DetectIsHoliday checks the calendar date of t in its own location.
func DetectIsHoliday(t time.Time) bool {
	_, ok := holidays[t.Format(DateLayout)]
	return ok
}

// CombineDateAndTime joins a YYYY-MM-DD date and an HH:MM time in loc.
func CombineDateAndTime(date, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(hhmm), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine date %q and time %q: %w", date, hhmm, err)
	}
	return t, nil
}
