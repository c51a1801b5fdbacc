package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	InputPath    string
	SnapshotPath string
	OutputPath   string
	ReportPath   string
	MetricsFile  string
	LogLevel     string
	LogFormat    string

	// Aggregation.
	Window         domain.Window
	Pair           domain.YearPair
	GridResolution float64

	// Severity scoring.
	SeverityThreshold float64
	AnchorsFile       string
	Embedder          string
	OllamaEndpoint    string
	OllamaModel       string
	GenAIAPIKey       string
	GenAIModel        string
	EmbedTimeout      time.Duration

	// Basemap tiles.
	BasemapEnabled   bool
	BasemapURL       string
	BasemapUserAgent string
	BasemapTimeout   time.Duration
	BasemapCacheSize int
	BasemapMaxTiles  int

	// Landmarks.
	LandmarkSource   string
	OverpassEndpoint string
	OverpassTimeout  time.Duration

	// Rendering.
	View         domain.Extent
	RenderWidth  float64 // inches
	RenderHeight float64 // inches
	RenderDPI    int
	MarkerBase   float64 // marker area in pt²

	// Change-record publishing.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	window, err := parseWindow(sharedcfg.EnvOrDefault("YEAR_WINDOW", "2020-2023"))
	if err != nil {
		return nil, err
	}
	pair, err := parsePair(sharedcfg.EnvOrDefault("YEAR_PAIR", "2020,2023"))
	if err != nil {
		return nil, err
	}
	view, err := parseExtent(sharedcfg.EnvOrDefault("VIEW_BOUNDS", "-118.75,33.90,-118.15,34.35"))
	if err != nil {
		return nil, err
	}

	var errs []error
	floatVar := func(key, def string) float64 {
		v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return v
	}
	intVar := func(key, def string) int {
		v, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return v
	}
	durationVar := func(key, def string) time.Duration {
		v, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return v
	}

	cfg := &Config{
		InputPath:    sharedcfg.EnvOrDefault("INPUT_PATH", "crime_data_lapd.csv"),
		SnapshotPath: sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "cleaned_crime_data.gob.gz"),
		OutputPath:   sharedcfg.EnvOrDefault("OUTPUT_PATH", "la_crime_change_2020_2023.png"),
		ReportPath:   os.Getenv("REPORT_PATH"),
		MetricsFile:  os.Getenv("METRICS_FILE"),
		LogLevel:     sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),

		Window:         window,
		Pair:           pair,
		GridResolution: floatVar("GRID_RESOLUTION", "0.005"),

		SeverityThreshold: floatVar("SEVERITY_THRESHOLD", "0.3"),
		AnchorsFile:       os.Getenv("ANCHORS_FILE"),
		Embedder:          sharedcfg.EnvOrDefault("EMBEDDER", "lexical"),
		OllamaEndpoint:    sharedcfg.EnvOrDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OllamaModel:       sharedcfg.EnvOrDefault("OLLAMA_MODEL", "nomic-embed-text"),
		GenAIAPIKey:       os.Getenv("GENAI_API_KEY"),
		GenAIModel:        sharedcfg.EnvOrDefault("GENAI_MODEL", "gemini-embedding-001"),
		EmbedTimeout:      durationVar("EMBED_TIMEOUT", "30s"),

		BasemapEnabled:   sharedcfg.EnvOrDefault("BASEMAP_ENABLED", "true") == "true",
		BasemapURL:       sharedcfg.EnvOrDefault("BASEMAP_URL", "https://tile.openstreetmap.org/{z}/{x}/{y}.png"),
		BasemapUserAgent: sharedcfg.EnvOrDefault("BASEMAP_USER_AGENT", "crime-change-map/1.0"),
		BasemapTimeout:   durationVar("BASEMAP_TIMEOUT", "10s"),
		BasemapCacheSize: intVar("BASEMAP_CACHE_SIZE", "256"),
		BasemapMaxTiles:  intVar("BASEMAP_MAX_TILES", "64"),

		LandmarkSource:   sharedcfg.EnvOrDefault("LANDMARK_SOURCE", "static"),
		OverpassEndpoint: sharedcfg.EnvOrDefault("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter"),
		OverpassTimeout:  durationVar("OVERPASS_TIMEOUT", "30s"),

		View:         view,
		RenderWidth:  floatVar("RENDER_WIDTH", "24"),
		RenderHeight: floatVar("RENDER_HEIGHT", "18"),
		RenderDPI:    intVar("RENDER_DPI", "300"),
		MarkerBase:   floatVar("MARKER_BASE", "50"),

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "crime-grid-changes"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	switch cfg.Embedder {
	case "lexical", "ollama", "genai":
	default:
		return nil, fmt.Errorf("EMBEDDER must be lexical, ollama or genai, got %q", cfg.Embedder)
	}
	if cfg.Embedder == "genai" && cfg.GenAIAPIKey == "" {
		return nil, errors.New("EMBEDDER is genai but GENAI_API_KEY is not set")
	}
	switch cfg.LandmarkSource {
	case "static", "overpass":
	default:
		return nil, fmt.Errorf("LANDMARK_SOURCE must be static or overpass, got %q", cfg.LandmarkSource)
	}
	if err := cfg.AggregateParams().Validate(); err != nil {
		return nil, fmt.Errorf("YEAR_WINDOW/YEAR_PAIR: %w", err)
	}

	return cfg, nil
}

// AggregateParams returns the grid and year settings for domain.Aggregate.
func (c *Config) AggregateParams() domain.AggregateParams {
	return domain.AggregateParams{
		Grid:   domain.Grid{Resolution: c.GridResolution},
		Window: c.Window,
		Pair:   c.Pair,
	}
}

// KafkaEnabled reports whether change records should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// parseWindow reads "2020-2023".
func parseWindow(s string) (domain.Window, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return domain.Window{}, fmt.Errorf("invalid YEAR_WINDOW %q: want START-END", s)
	}
	a, errA := strconv.Atoi(strings.TrimSpace(start))
	b, errB := strconv.Atoi(strings.TrimSpace(end))
	if errA != nil || errB != nil {
		return domain.Window{}, fmt.Errorf("invalid YEAR_WINDOW %q: want START-END", s)
	}
	return domain.Window{Start: a, End: b}, nil
}

// parsePair reads "2020,2023" as baseline,comparison.
func parsePair(s string) (domain.YearPair, error) {
	base, cmp, ok := strings.Cut(s, ",")
	if !ok {
		return domain.YearPair{}, fmt.Errorf("invalid YEAR_PAIR %q: want BASELINE,COMPARISON", s)
	}
	a, errA := strconv.Atoi(strings.TrimSpace(base))
	b, errB := strconv.Atoi(strings.TrimSpace(cmp))
	if errA != nil || errB != nil {
		return domain.YearPair{}, fmt.Errorf("invalid YEAR_PAIR %q: want BASELINE,COMPARISON", s)
	}
	return domain.YearPair{Baseline: a, Comparison: b}, nil
}

// parseExtent reads "minLon,minLat,maxLon,maxLat".
func parseExtent(s string) (domain.Extent, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Extent{}, fmt.Errorf("invalid VIEW_BOUNDS %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Extent{}, fmt.Errorf("invalid VIEW_BOUNDS %q: %w", s, err)
		}
		v[i] = f
	}
	e := domain.Extent{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if err := e.Validate(); err != nil {
		return domain.Extent{}, fmt.Errorf("invalid VIEW_BOUNDS: %w", err)
	}
	return e, nil
}
