package poi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
	"github.com/FACorreiaa/aqarbay-api/pkg/observability"
)

const (
	DefaultOverpassURL     = "https://overpass-api.de/api/interpreter"
	DefaultOverpassTimeout = 30 * time.Second
	maxOverpassBody        = 32 << 20
)

var (
	// ErrUpstreamStatus is returned when the map-data service answers with a non-2xx status.
	ErrUpstreamStatus    = errors.New("overpass returned non-success status")
	ErrMalformedResponse = errors.New("malformed overpass response")
)

// Fetcher submits a query to a spatial-data provider and returns the raw
// tagged records.
type Fetcher interface {
	Fetch(ctx context.Context, query string) ([]types.OverpassElement, error)
}

var _ Fetcher = (*OverpassClient)(nil)

type OverpassClient struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

type OverpassOption func(*OverpassClient)

func WithHTTPClient(c *http.Client) OverpassOption {
	return func(o *OverpassClient) { o.httpClient = c }
}

func WithUserAgent(ua string) OverpassOption {
	return func(o *OverpassClient) { o.userAgent = ua }
}

// NewOverpassClient builds a client for the given interpreter endpoint. An
// empty endpoint or a non-positive timeout fall back to the public defaults.
func NewOverpassClient(endpoint string, timeout time.Duration, logger *slog.Logger, opts ...OverpassOption) *OverpassClient {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	if timeout <= 0 {
		timeout = DefaultOverpassTimeout
	}
	c := &OverpassClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: "aqarbay-api/1.0",
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OverpassClient) Fetch(ctx context.Context, query string) ([]types.OverpassElement, error) {
	ctx, span := otel.Tracer("OverpassClient").Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("overpass.endpoint", c.endpoint))

	start := time.Now()
	elements, err := c.do(ctx, query)
	observability.OverpassRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.OverpassRequestsTotal.WithLabelValues(outcomeOf(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "overpass fetch failed")
		c.logger.WarnContext(ctx, "Overpass fetch failed",
			slog.String("endpoint", c.endpoint),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return nil, err
	}
	observability.OverpassRequestsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("overpass.elements", len(elements)))
	c.logger.DebugContext(ctx, "Overpass fetch completed",
		slog.Int("elements", len(elements)),
		slog.Duration("elapsed", time.Since(start)))
	return elements, nil
}

func (c *OverpassClient) do(ctx context.Context, query string) ([]types.OverpassElement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s", ErrUpstreamStatus, resp.Status)
	}

	var payload types.OverpassResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOverpassBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return payload.Elements, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamStatus):
		return "http_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "transport_error"
}
