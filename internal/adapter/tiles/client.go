// Package tiles fetches slippy-map raster tiles and assembles them into a
// lat/lon basemap image.
package tiles

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // some tile servers return JPEG
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/crime-change-map/internal/observability"
)

// Size is the edge length of a tile in pixels.
const Size = 256

// Tile addresses one tile in the XYZ scheme.
type Tile struct {
	Z, X, Y int
}

// Fetcher returns the decoded image for a tile.
type Fetcher interface {
	Fetch(ctx context.Context, t Tile) (image.Image, error)
}

// Client downloads tiles from a {z}/{x}/{y} URL template.
type Client struct {
	urlTemplate string
	userAgent   string
	httpClient  *http.Client
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a tile client. Public OSM servers reject requests without
// a descriptive User-Agent.
func NewClient(urlTemplate, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch downloads and decodes one tile.
func (c *Client) Fetch(ctx context.Context, t Tile) (image.Image, error) {
	img, err := c.doRequest(ctx, c.tileURL(t))
	if err != nil {
		c.metrics.TileRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	c.metrics.TileRequests.WithLabelValues("success").Inc()
	return img, nil
}

func (c *Client) tileURL(t Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	).Replace(c.urlTemplate)
}

func (c *Client) doRequest(ctx context.Context, u string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tile server error: status %d: %s", resp.StatusCode, body)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return img, nil
}
