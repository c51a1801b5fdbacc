package domain

import "time"

// Column names in the LAPD CSV export.
const (
	ColDateOcc     = "DATE OCC"
	ColTimeOcc     = "TIME OCC"
	ColAreaName    = "AREA NAME"
	ColCrimeDesc   = "Crm Cd Desc"
	ColVictAge     = "Vict Age"
	ColVictSex     = "Vict Sex"
	ColVictDescent = "Vict Descent"
	ColPremisDesc  = "Premis Desc"
	ColWeaponDesc  = "Weapon Desc"
	ColLocation    = "LOCATION"
	ColCrossStreet = "Cross Street"
	ColLat         = "LAT"
	ColLon         = "LON"
)

// SourceColumns is the column order of the LAPD "Crime Data from 2020 to
// Present" export.
var SourceColumns = []string{
	"DR_NO", "Date Rptd", ColDateOcc, ColTimeOcc, "AREA", ColAreaName,
	"Rpt Dist No", "Part 1-2", "Crm Cd", ColCrimeDesc, "Mocodes",
	ColVictAge, ColVictSex, ColVictDescent, "Premis Cd", ColPremisDesc,
	"Weapon Used Cd", ColWeaponDesc, "Status", "Status Desc",
	"Crm Cd 1", "Crm Cd 2", "Crm Cd 3", "Crm Cd 4",
	ColLocation, ColCrossStreet, ColLat, ColLon,
}

// DroppedColumns are administrative or internal columns removed during
// cleaning. Every one must be present in the input.
var DroppedColumns = []string{
	"DR_NO",          // Division of Records number
	"Date Rptd",      // date reported
	"AREA",           // LAPD area ID
	"Rpt Dist No",    // report district number
	"Part 1-2",       // crime category
	"Crm Cd",         // crime code
	"Mocodes",        // modus operandi codes
	"Premis Cd",      // premise code
	"Weapon Used Cd", // weapon code
	"Status",
	"Status Desc",
	"Crm Cd 1",
	"Crm Cd 2",
	"Crm Cd 3",
	"Crm Cd 4",
}

// RequiredColumns must survive cleaning; the snapshot contract is built on them.
var RequiredColumns = []string{
	ColDateOcc,
	ColLat,
	ColLon,
	ColVictSex,
	ColVictDescent,
	ColCrimeDesc,
}

// typedColumns are the columns mapped onto Incident fields. Anything else that
// survives cleaning is carried in Incident.Extra.
var typedColumns = map[string]bool{
	ColDateOcc:     true,
	ColTimeOcc:     true,
	ColAreaName:    true,
	ColCrimeDesc:   true,
	ColVictAge:     true,
	ColVictSex:     true,
	ColVictDescent: true,
	ColPremisDesc:  true,
	ColWeaponDesc:  true,
	ColLocation:    true,
	ColCrossStreet: true,
	ColLat:         true,
	ColLon:         true,
}

// IsTypedColumn reports whether a column maps onto an Incident field.
func IsTypedColumn(name string) bool {
	return typedColumns[name]
}

// Incident is one cleaned crime report.
type Incident struct {
	DateOcc     string // calendar date, "MM/DD/YYYY"
	TimeOcc     string // HHMM, 24-hour
	AreaName    string
	CrimeDesc   string
	VictAge     int
	VictSex     string
	VictDescent string
	PremisDesc  string
	WeaponDesc  string
	Location    string
	CrossStreet string
	Lat         float64
	Lon         float64

	Extra map[string]string
}

// SnapshotSchemaVersion is bumped whenever Snapshot or Incident change shape.
const SnapshotSchemaVersion = 1

// Snapshot is the typed contract between the clean and map stages.
type Snapshot struct {
	SchemaVersion int
	CreatedAt     time.Time
	Source        string
	Columns       []string // surviving column order, for display
	Incidents     []Incident
}

// NewSnapshot stamps incidents with the current schema version and clock time.
func NewSnapshot(source string, columns []string, incidents []Incident) Snapshot {
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		CreatedAt:     clock.Now().UTC(),
		Source:        source,
		Columns:       columns,
		Incidents:     incidents,
	}
}

// Descriptions returns the crime description of every incident, duplicates included.
func (s Snapshot) Descriptions() []string {
	out := make([]string, len(s.Incidents))
	for i := range s.Incidents {
		out[i] = s.Incidents[i].CrimeDesc
	}
	return out
}
