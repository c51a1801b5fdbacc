package domain

import "strings"

// MappingsVersion identifies the code-label tables below.
const MappingsVersion = "lapd-victim-codes/2020.1"

// dateTimeSuffix is the constant placeholder time appended to "DATE OCC".
const dateTimeSuffix = " 12:00:00 AM"

// SexLabels maps "Vict Sex" codes to display labels.
var SexLabels = map[string]string{
	"F": "Female",
	"M": "Male",
	"X": "Unknown",
}

// DescentLabels maps "Vict Descent" codes to display labels.
var DescentLabels = map[string]string{
	"A": "Other Asian",
	"B": "Black",
	"C": "Chinese",
	"D": "Cambodian",
	"F": "Filipino",
	"G": "Guamanian",
	"H": "Hispanic/Latin/Mexican",
	"I": "American Indian/Alaskan Native",
	"J": "Japanese",
	"K": "Korean",
	"L": "Laotian",
	"O": "Other",
	"P": "Pacific Islander",
	"S": "Samoan",
	"U": "Hawaiian",
	"V": "Vietnamese",
	"W": "White",
	"X": "Unknown",
	"Z": "Asian Indian",
}

// MapSex returns the label for a sex code, or the code itself if unmapped.
func MapSex(code string) string {
	return lookupOrPass(SexLabels, code)
}

// MapDescent returns the label for a descent code, or the code itself if unmapped.
func MapDescent(code string) string {
	return lookupOrPass(DescentLabels, code)
}

func lookupOrPass(m map[string]string, code string) string {
	if label, ok := m[code]; ok {
		return label
	}
	return code
}

// StripTimeSuffix removes every " 12:00:00 AM" from a "DATE OCC" value.
func StripTimeSuffix(value string) string {
	return strings.ReplaceAll(value, dateTimeSuffix, "")
}
