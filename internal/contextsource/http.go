package contextsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// HTTPSource fetches snapshots from the context aggregation service.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

// NewHTTPSource creates a source calling GET {baseURL}/locations/{id}/snapshot.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Snapshot retrieves the current snapshot for locationID. A 404 maps to
// ErrNoSnapshot. The snapshot's LocationID defaults to the requested one and
// a zero Timestamp is left for the caller to fill.
func (s *HTTPSource) Snapshot(ctx context.Context, locationID string) (models.ContextSnapshot, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		s.metrics.RecordContextSourceLatency(time.Since(start))
		s.metrics.IncrementContextSourceRequests(outcome)
	}()

	endpoint := s.baseURL + "/locations/" + url.PathEscape(locationID) + "/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		outcome = "failure"
		return models.ContextSnapshot{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		outcome = "failure"
		return models.ContextSnapshot{}, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		outcome = "missing"
		return models.ContextSnapshot{}, ErrNoSnapshot
	case resp.StatusCode != http.StatusOK:
		outcome = "failure"
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.ContextSnapshot{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var snap models.ContextSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		outcome = "failure"
		return models.ContextSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.LocationID == "" {
		snap.LocationID = locationID
	}
	return snap, nil
}

// HealthCheck checks if the context service is available.
func (s *HTTPSource) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}
