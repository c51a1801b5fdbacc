// Package domain models LAPD crime incident data and the rules used to compare
// crime severity across years on a spatial grid.
//
// # Data Source
//
// Incidents come from the City of Los Angeles "Crime Data from 2020 to Present"
// CSV export. Each row is one reported incident; rows are never deduplicated.
//
// # LAPD Data Conventions
//
// Date format:
//
//	"DATE OCC" is exported as "MM/DD/YYYY 12:00:00 AM". The time part is a
//	constant placeholder (the real time lives in "TIME OCC" as HHMM), so the
//	suffix is stripped during cleaning and the column stays a date string.
//
// Victim codes:
//
//	"Vict Sex" uses F, M, X. "Vict Descent" uses a 19-letter code table
//	(H = Hispanic/Latin/Mexican, W = White, ...). Codes outside the tables, and
//	the blank or "-" values the export contains, pass through unchanged.
//
// Coordinates:
//
//	"LAT"/"LON" are WGS-84 degrees rounded to the nearest hundred-block.
//	Incidents with withheld locations are exported at 0,0 and simply fall
//	outside the rendered view.
//
// # Severity
//
// Crime descriptions ("Crm Cd Desc") are free text such as
// "BATTERY - SIMPLE ASSAULT". Each unique lowercase description is scored on a
// five-level scale by comparing its embedding with keyword anchors:
//
//	5: murder, homicide, rape, sexual, kidnap, child abuse, arson
//	4: robbery, weapon, assault, intimate partner, battery, shots fired
//	3: burglary, stolen, theft, break
//	2: vandalism, threat, trespassing, forge, fraud, shoplifting, stalking
//	1: disturb, drunk, minor, petty
//
// A description whose best similarity does not exceed the threshold (0.3)
// scores 1. See [Scorer].
//
// # Grid
//
// Coordinates are snapped to a 0.005° grid (roughly 500 m at LA's latitude).
// Cell identity is the pair of integer bucket indices, rounded half to even.
// See [Grid].
//
// # Percent Change
//
// Changes between a baseline and comparison year are clipped to [-100, 100].
// A zero baseline with a non-zero comparison is a new cell and scores +100.
// See [PercentChange].
package domain
