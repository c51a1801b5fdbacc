package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		SchemaVersion: domain.SnapshotSchemaVersion,
		CreatedAt:     time.Date(2024, time.March, 1, 8, 30, 0, 0, time.UTC),
		Source:        "crime_data_lapd.csv",
		Columns:       []string{domain.ColDateOcc, domain.ColCrimeDesc, "Mocodes"},
		Incidents: []domain.Incident{
			{
				DateOcc:   "03/01/2020",
				CrimeDesc: "BURGLARY",
				VictAge:   31,
				VictSex:   "Female",
				Lat:       34.0521,
				Lon:       -118.2437,
				Extra:     map[string]string{"Mocodes": "0344"},
			},
			{DateOcc: "11/11/2023", CrimeDesc: "ARSON", Lat: 34.1, Lon: -118.3},
		},
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.gob.gz")
	snap := sampleSnapshot()

	require.NoError(t, Write(path, snap))
	got, err := Read(path)
	require.NoError(t, err)

	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be gone")
}

func TestDecode_SchemaMismatch(t *testing.T) {
	snap := sampleSnapshot()
	snap.SchemaVersion = domain.SnapshotSchemaVersion + 1

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))

	_, err := Decode(&buf)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestDecode_NotGzip(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("DATE OCC,LAT,LON\n")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open snapshot")
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.gob.gz"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
