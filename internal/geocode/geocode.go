// Package geocode turns free-text grievance locations into coordinates.
package geocode

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("geocode not found")

// BuildQuery qualifies a citizen-supplied location with the configured country
// unless the citizen already named it.
func BuildQuery(location, country string) string {
	location = strings.TrimSpace(location)
	country = strings.TrimSpace(country)
	if location == "" {
		return ""
	}
	if country == "" || strings.Contains(strings.ToLower(location), strings.ToLower(country)) {
		return location
	}
	return location + ", " + country
}
