package embedding

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
)

// Cached memoizes an Embedder by exact text. Anchor keywords and repeated
// descriptions are embedded once per run.
type Cached struct {
	inner   domain.Embedder
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu      sync.Mutex
	vectors map[string][]float64
}

// NewCached creates a memoizing decorator around an embedder.
func NewCached(inner domain.Embedder, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
		vectors: make(map[string][]float64),
	}
}

// SetClock replaces the clock used to time engine calls.
func (c *Cached) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	c.mu.Lock()
	vec, ok := c.vectors[text]
	c.mu.Unlock()
	if ok {
		c.metrics.EmbedCache.WithLabelValues("hit").Inc()
		return vec, nil
	}
	c.metrics.EmbedCache.WithLabelValues("miss").Inc()

	start := c.clock.Now()
	vec, err := c.inner.Embed(ctx, text)
	c.metrics.EmbedDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		// Errors are not cached so a transient failure can be retried.
		return nil, err
	}

	c.mu.Lock()
	c.vectors[text] = vec
	c.mu.Unlock()
	return vec, nil
}

// Len reports how many distinct texts have been embedded.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vectors)
}
