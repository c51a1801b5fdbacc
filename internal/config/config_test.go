package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "crime_data_lapd.csv", cfg.InputPath)
	assert.Equal(t, "cleaned_crime_data.gob.gz", cfg.SnapshotPath)
	assert.Equal(t, "la_crime_change_2020_2023.png", cfg.OutputPath)
	assert.Empty(t, cfg.ReportPath)
	assert.Empty(t, cfg.MetricsFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	assert.Equal(t, domain.DefaultAggregateParams(), cfg.AggregateParams())
	assert.InDelta(t, 0.3, cfg.SeverityThreshold, 1e-12)
	assert.Equal(t, "lexical", cfg.Embedder)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaEndpoint)
	assert.Equal(t, "nomic-embed-text", cfg.OllamaModel)
	assert.Equal(t, "gemini-embedding-001", cfg.GenAIModel)
	assert.Equal(t, 30*time.Second, cfg.EmbedTimeout)

	assert.True(t, cfg.BasemapEnabled)
	assert.Equal(t, "https://tile.openstreetmap.org/{z}/{x}/{y}.png", cfg.BasemapURL)
	assert.Equal(t, 10*time.Second, cfg.BasemapTimeout)
	assert.Equal(t, 256, cfg.BasemapCacheSize)
	assert.Equal(t, 64, cfg.BasemapMaxTiles)

	assert.Equal(t, "static", cfg.LandmarkSource)
	assert.Equal(t, domain.DefaultExtent(), cfg.View)
	assert.InDelta(t, 24.0, cfg.RenderWidth, 0)
	assert.InDelta(t, 18.0, cfg.RenderHeight, 0)
	assert.Equal(t, 300, cfg.RenderDPI)
	assert.InDelta(t, 50.0, cfg.MarkerBase, 0)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "crime-grid-changes", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("INPUT_PATH", "in.csv")
	t.Setenv("YEAR_WINDOW", "2019-2024")
	t.Setenv("YEAR_PAIR", "2019, 2024")
	t.Setenv("GRID_RESOLUTION", "0.01")
	t.Setenv("SEVERITY_THRESHOLD", "0.5")
	t.Setenv("EMBEDDER", "ollama")
	t.Setenv("BASEMAP_ENABLED", "false")
	t.Setenv("LANDMARK_SOURCE", "overpass")
	t.Setenv("VIEW_BOUNDS", "-118.5,34.0,-118.3,34.1")
	t.Setenv("RENDER_DPI", "72")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "in.csv", cfg.InputPath)
	assert.Equal(t, domain.Window{Start: 2019, End: 2024}, cfg.Window)
	assert.Equal(t, domain.YearPair{Baseline: 2019, Comparison: 2024}, cfg.Pair)
	assert.InDelta(t, 0.01, cfg.GridResolution, 0)
	assert.InDelta(t, 0.5, cfg.SeverityThreshold, 0)
	assert.Equal(t, "ollama", cfg.Embedder)
	assert.False(t, cfg.BasemapEnabled)
	assert.Equal(t, "overpass", cfg.LandmarkSource)
	assert.Equal(t, domain.Extent{MinLon: -118.5, MinLat: 34.0, MaxLon: -118.3, MaxLat: 34.1}, cfg.View)
	assert.Equal(t, 72, cfg.RenderDPI)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom", cfg.KafkaTopic)
}

func TestLoad_KafkaBrokers(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []string
		enabled bool
	}{
		{"blank entries dropped", " , broker1:9092,, ", []string{"broker1:9092"}, true},
		{"only separators", " , ,", []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KAFKA_BROKERS", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.KafkaBrokers)
			assert.Equal(t, tt.enabled, cfg.KafkaEnabled())
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		errMsg string
	}{
		{"window format", "YEAR_WINDOW", "2020", "YEAR_WINDOW"},
		{"pair format", "YEAR_PAIR", "2020;2023", "YEAR_PAIR"},
		{"pair outside window", "YEAR_PAIR", "2020,2025", "outside window"},
		{"pair same year", "YEAR_PAIR", "2021,2021", "itself"},
		{"zero resolution", "GRID_RESOLUTION", "0", "GRID_RESOLUTION"},
		{"bad threshold", "SEVERITY_THRESHOLD", "high", "SEVERITY_THRESHOLD"},
		{"bad embed timeout", "EMBED_TIMEOUT", "soon", "EMBED_TIMEOUT"},
		{"negative basemap timeout", "BASEMAP_TIMEOUT", "-1s", "BASEMAP_TIMEOUT"},
		{"zero cache size", "BASEMAP_CACHE_SIZE", "0", "BASEMAP_CACHE_SIZE"},
		{"bad dpi", "RENDER_DPI", "many", "RENDER_DPI"},
		{"unknown embedder", "EMBEDDER", "word2vec", "EMBEDDER"},
		{"genai without key", "EMBEDDER", "genai", "GENAI_API_KEY"},
		{"unknown landmark source", "LANDMARK_SOURCE", "wikipedia", "LANDMARK_SOURCE"},
		{"view wrong arity", "VIEW_BOUNDS", "1,2,3", "VIEW_BOUNDS"},
		{"view inverted", "VIEW_BOUNDS", "-118.1,34.0,-118.5,34.1", "VIEW_BOUNDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_GenAIWithKey(t *testing.T) {
	t.Setenv("EMBEDDER", "genai")
	t.Setenv("GENAI_API_KEY", "test-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.GenAIAPIKey)
}
