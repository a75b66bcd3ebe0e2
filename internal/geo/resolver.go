// Package geo resolves free-text shipment addresses to ISO country codes
// and, for Australian addresses, to the carrier's domestic zones 1-5.
package geo

import (
	"errors"
	"strings"
)

// ErrAddressUnparsable is returned when neither the country nor the zone
// lookup paths can make sense of an address and the caller required a zone.
var ErrAddressUnparsable = errors.New("address could not be resolved")

// countryNames maps the country names that appear spelled out on carrier
// invoices to ISO-3166 alpha-2 codes. Closed set; addresses normally carry
// the two-letter code as their last semicolon-separated part.
var countryNames = map[string]string{
	"AUSTRALIA":      "AU",
	"CHINA":          "CN",
	"GERMANY":        "DE",
	"ITALY":          "IT",
	"FRANCE":         "FR",
	"JAPAN":          "JP",
	"SINGAPORE":      "SG",
	"HONG KONG":      "HK",
	"NEW ZEALAND":    "NZ",
	"UNITED STATES":  "US",
	"USA":            "US",
	"UNITED KINGDOM": "GB",
	"SOUTH KOREA":    "KR",
	"KOREA":          "KR",
	"TAIWAN":         "TW",
	"THAILAND":       "TH",
	"VIETNAM":        "VN",
	"MALAYSIA":       "MY",
	"INDONESIA":      "ID",
	"INDIA":          "IN",
	"NETHERLANDS":    "NL",
	"SPAIN":          "ES",
	"SWITZERLAND":    "CH",
}

// auStateZones maps full Australian state names to domestic zones. Checked
// before the short codes so that "SOUTH AUSTRALIA" never matches "SA"'s
// sibling "WA"/"SA" substrings by accident.
var auStateZones = []struct {
	Name string
	Zone int
}{
	{"AUSTRALIAN CAPITAL TERRITORY", 4},
	{"NORTHERN TERRITORY", 5},
	{"SOUTH AUSTRALIA", 5},
	{"WESTERN AUSTRALIA", 5},
	{"NEW SOUTH WALES", 3},
	{"QUEENSLAND", 2},
	{"VICTORIA", 1},
	{"TASMANIA", 5},
}

var auCityZones = map[string]int{
	"MELBOURNE": 1,
	"BRISBANE":  2,
	"SYDNEY":    3,
	"CANBERRA":  4,
	"ADELAIDE":  5,
	"PERTH":     5,
	"HOBART":    5,
	"DARWIN":    5,
}

// auCityCodes are the 3-letter city codes DHL prints on AU domestic invoices.
var auCityCodes = map[string]int{
	"MEL": 1,
	"BNE": 2,
	"SYD": 3,
	"CBR": 4,
	"ADL": 5,
	"PER": 5,
	"HBA": 5,
	"DRW": 5,
}

var auStateCodes = map[string]int{
	"VIC": 1,
	"QLD": 2,
	"NSW": 3,
	"ACT": 4,
	"SA":  5,
	"WA":  5,
	"NT":  5,
	"TAS": 5,
}

// RestOfAustraliaZone is the default zone for AU addresses that match
// neither a state nor a known city.
const RestOfAustraliaZone = 5

// CountryFromAddress extracts an ISO alpha-2 country code from a free-text
// address. Address parts are split on ";" and walked right to left; the
// first standalone 2-letter uppercase alphabetic token wins. When no code
// token is present the spelled-out country-name map is consulted.
func CountryFromAddress(addr string) (string, bool) {
	parts := strings.Split(addr, ";")
	for i := len(parts) - 1; i >= 0; i-- {
		token := strings.ToUpper(strings.TrimSpace(parts[i]))
		if len(token) == 2 && isAlpha(token) {
			return token, true
		}
	}

	upper := strings.ToUpper(addr)
	for name, code := range countryNames {
		if strings.Contains(upper, name) {
			return code, true
		}
	}

	return "", false
}

// AUZone resolves an Australian address to a domestic zone 1-5.
// Lookup order: full state name, city name, 3-letter city code, short state
// code. Anything else is "Rest of Australia" = 5.
func AUZone(addr string) int {
	upper := strings.ToUpper(addr)

	// Full state names first; longest names are listed first so that
	// e.g. "SOUTH AUSTRALIA" is consumed before any shorter match.
	for _, s := range auStateZones {
		if strings.Contains(upper, s.Name) {
			return s.Zone
		}
	}

	for city, zone := range auCityZones {
		if strings.Contains(upper, city) {
			return zone
		}
	}

	for _, token := range tokens(upper) {
		if zone, ok := auCityCodes[token]; ok {
			return zone
		}
	}
	for _, token := range tokens(upper) {
		if zone, ok := auStateCodes[token]; ok {
			return zone
		}
	}

	return RestOfAustraliaZone
}

// RequireAUZone is AUZone for callers that must distinguish a real match
// from the rest-of-Australia default.
func RequireAUZone(addr string) (int, error) {
	if strings.TrimSpace(addr) == "" {
		return 0, ErrAddressUnparsable
	}
	return AUZone(addr), nil
}

// tokens splits an address into alphanumeric words.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		}
		return true
	})
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
