package pipeline_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

type mockCSVRow map[string]string

// lapdRow returns a full export row with plausible filler for every column.
func lapdRow(date, desc string, lat, lon float64) mockCSVRow {
	row := mockCSVRow{}
	row["DR_NO"] = "200100501"
	row["Date Rptd"] = date + " 12:00:00 AM"
	row[domain.ColDateOcc] = date + " 12:00:00 AM"
	row[domain.ColTimeOcc] = "2130"
	row["AREA"] = "01"
	row[domain.ColAreaName] = "Central"
	row["Rpt Dist No"] = "0163"
	row["Part 1-2"] = "1"
	row["Crm Cd"] = "310"
	row[domain.ColCrimeDesc] = desc
	row["Mocodes"] = "0344 1822"
	row[domain.ColVictAge] = "31"
	row[domain.ColVictSex] = "F"
	row[domain.ColVictDescent] = "H"
	row["Premis Cd"] = "501"
	row[domain.ColPremisDesc] = "SINGLE FAMILY DWELLING"
	row["Status"] = "IC"
	row["Status Desc"] = "Invest Cont"
	row["Crm Cd 1"] = "310"
	row[domain.ColLocation] = "1100 W  39TH PL"
	row[domain.ColLat] = strconv.FormatFloat(lat, 'f', 4, 64)
	row[domain.ColLon] = strconv.FormatFloat(lon, 'f', 4, 64)
	return row
}

// lapdCSV renders rows under the given header.
func lapdCSV(t *testing.T, header []string, rows ...mockCSVRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(header))
	for _, row := range rows {
		rec := make([]string, len(header))
		for i, col := range header {
			rec[i] = row[col]
		}
		require.NoError(t, w.Write(rec))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.Bytes()
}

func writeLAPDCSV(t *testing.T, rows ...mockCSVRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crime_data_lapd.csv")
	require.NoError(t, os.WriteFile(path, lapdCSV(t, domain.SourceColumns, rows...), 0o600))
	return path
}

func without(columns []string, drop string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}

// mixedYearRows covers two cells: downtown gets busier and more severe,
// Venice only has 2020 incidents.
func mixedYearRows() []mockCSVRow {
	const (
		dtLat, dtLon   = 34.0521, -118.2437
		venLat, venLon = 34.0020, -118.4710
	)
	return []mockCSVRow{
		lapdRow("03/01/2020", "VANDALISM", dtLat, dtLon),
		lapdRow("03/02/2020", "BURGLARY", dtLat, dtLon),
		lapdRow("05/01/2023", "ARSON", dtLat, dtLon),
		lapdRow("05/02/2023", "ARSON", dtLat, dtLon),
		lapdRow("05/03/2023", "BURGLARY", dtLat, dtLon),
		lapdRow("07/04/2020", "BURGLARY", venLat, venLon),
		lapdRow("07/04/2021", "BURGLARY", venLat, venLon),
		lapdRow("07/04/2019", "ARSON", venLat, venLon),
	}
}

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}
