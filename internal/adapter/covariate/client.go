// Package covariate implements the environmental-join boundary: for each
// Big-Day cluster it fetches scalar covariates (reanalysis fields sampled
// over the cluster footprint, population exposure, and similar) from an
// external provider service. The core never computes these values; it only
// merges them into the emitted record.
package covariate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/geom"
	"github.com/zschroder/pred-casualties/internal/observability"
	"golang.org/x/time/rate"
)

// Client fetches cluster covariates over HTTP. Requests are rate limited
// client-side so a large Big-Day table does not hammer the provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a covariate provider client. rps bounds the sustained
// request rate.
func NewClient(baseURL string, timeout time.Duration, rps float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// request is the provider wire request: the cluster geometry and the
// aggregates the provider needs for sampling.
type request struct {
	Day             string       `json:"day"`
	Centroid        geom.Point   `json:"centroid"`
	Footprint       []geom.Point `json:"footprint"`
	FootprintAreaM2 float64      `json:"footprint_area_m2"`
	EventCount      int          `json:"event_count"`
}

type response struct {
	Covariates map[string]float64 `json:"covariates"`
}

// ClusterCovariates returns the provider's scalar covariates for one
// cluster. An empty map with a nil error means the provider had no data for
// that footprint.
func (c *Client) ClusterCovariates(ctx context.Context, b cluster.BigDay) (map[string]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(request{
		Day:             b.Day.Format("2006-01-02"),
		Centroid:        b.Centroid,
		Footprint:       b.Footprint,
		FootprintAreaM2: b.FootprintArea,
		EventCount:      b.EventCount,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal covariate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/covariates", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CovariateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CovariateRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("covariate request for %s: %w", b.Key(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.CovariateRequests.WithLabelValues("error").Inc()
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("covariate provider error: status %d: %s", resp.StatusCode, errBody)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.CovariateRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode covariate response: %w", err)
	}

	if len(out.Covariates) == 0 {
		c.metrics.CovariateRequests.WithLabelValues("empty").Inc()
		return map[string]float64{}, nil
	}
	c.metrics.CovariateRequests.WithLabelValues("success").Inc()
	return out.Covariates, nil
}
