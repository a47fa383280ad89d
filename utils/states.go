// backend/utils/states.go
package utils

import "strings"

// stateCodes maps lowercase full names to USPS codes for the 50 states and DC.
var stateCodes = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"district of columbia": "DC",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
}

var stateNames = func() map[string]string {
	names := make(map[string]string, len(stateCodes))
	for name, code := range stateCodes {
		names[code] = name
	}
	return names
}()

// NormalizeState converts a state code or full state name to its uppercase 2-letter code.
// Returns false when the input is neither.
func NormalizeState(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if len(upper) == 2 {
		if _, ok := stateNames[upper]; ok {
			return upper, true
		}
	}
	code, ok := stateCodes[strings.ToLower(trimmed)]
	return code, ok
}

// StateName returns the lowercase full name for a 2-letter code ("CA" -> "california").
func StateName(code string) (string, bool) {
	name, ok := stateNames[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}
