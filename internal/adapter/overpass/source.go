// Package overpass looks up map labels from OpenStreetMap place nodes.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// DefaultLimit caps how many labels are returned so the map stays readable.
const DefaultLimit = 40

// placeRank orders place types from most to least prominent.
var placeRank = map[string]int{
	"town":          0,
	"suburb":        1,
	"neighbourhood": 2,
}

// Source implements domain.LandmarkSource with an Overpass API endpoint.
type Source struct {
	endpoint   string
	httpClient *http.Client
	limit      int
	logger     *slog.Logger
}

// NewSource creates an Overpass landmark source.
func NewSource(endpoint string, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limit:      DefaultLimit,
		logger:     logger,
	}
}

// Landmarks returns named town, suburb and neighbourhood nodes inside view.
func (s *Source) Landmarks(ctx context.Context, view domain.Extent) ([]domain.Landmark, error) {
	client := overpass.NewWithSettings(s.endpoint, 1, ctxDoer{ctx: ctx, client: s.httpClient})

	result, err := client.Query(placeQuery(view))
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}

	landmarks := toLandmarks(result.Nodes, s.limit)
	s.logger.Debug("overpass landmarks", "nodes", len(result.Nodes), "landmarks", len(landmarks))
	return landmarks, nil
}

// placeQuery selects named place nodes; the bbox is south,west,north,east.
func placeQuery(view domain.Extent) string {
	return fmt.Sprintf(`[out:json][timeout:25];
node["place"~"^(town|suburb|neighbourhood)$"]["name"](%.5f,%.5f,%.5f,%.5f);
out body;`, view.MinLat, view.MinLon, view.MaxLat, view.MaxLon)
}

// toLandmarks dedupes by name and keeps the most prominent places first.
func toLandmarks(nodes map[int64]*overpass.Node, limit int) []domain.Landmark {
	type ranked struct {
		domain.Landmark
		rank int
	}
	byName := make(map[string]ranked, len(nodes))
	for _, n := range nodes {
		name := n.Tags["name"]
		if name == "" {
			continue
		}
		rank, ok := placeRank[n.Tags["place"]]
		if !ok {
			continue
		}
		if prev, seen := byName[name]; seen && prev.rank <= rank {
			continue
		}
		byName[name] = ranked{Landmark: domain.Landmark{Name: name, Lon: n.Lon, Lat: n.Lat}, rank: rank}
	}

	all := make([]ranked, 0, len(byName))
	for _, r := range byName {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].rank != all[j].rank {
			return all[i].rank < all[j].rank
		}
		return all[i].Name < all[j].Name
	})

	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.Landmark, len(all))
	for i, r := range all {
		out[i] = r.Landmark
	}
	return out
}

// ctxDoer binds a context to requests made by the overpass client, which
// has no context support of its own.
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

func (d ctxDoer) PostForm(u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return d.client.Do(req)
}
