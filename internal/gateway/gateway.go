package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/ecovision/internal/climate"
)

// Backend resource paths, relative to the configured base URL.
const (
	PathClimate   = "/climate"
	PathSummary   = "/summary"
	PathTrends    = "/trends"
	PathLocations = "/locations"
	PathMetrics   = "/metrics"
)

// RequestIDHeader carries the per-request UUID to the backend.
const RequestIDHeader = "X-Request-ID"

// Config bundles the gateway settings.
type Config struct {
	BaseURL string
	// Timeout is the client-side limit per request; zero means none.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker; zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// HTTPClient overrides the underlying client (tests, custom transports).
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Result is a successful analysis response, not yet normalized. Mode is the
// mode the request was issued for, so callers can route it even if the
// selected mode has changed in the meantime.
type Result struct {
	Mode      climate.AnalysisType
	Path      string
	RequestID string
	Payload   climate.Envelope
}

// Gateway issues requests against the climate API. It holds no per-request
// state and is safe for concurrent use.
type Gateway struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// New creates a Gateway. Retries are disabled: each call is one request.
func New(cfg Config) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errNoBaseURL
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(base)
	client.SetRetryCount(0)
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	g := &Gateway{
		client: client,
		log:    cfg.Logger.With().Str("component", "gateway").Logger(),
	}
	client.SetLogger(restyLogger{g.log})

	if cfg.BreakerFailures > 0 {
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		threshold := cfg.BreakerFailures
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "climate-api",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		})
	}

	return g, nil
}

// ResourceFor maps an analysis mode to its backend path.
func ResourceFor(mode climate.AnalysisType) (string, error) {
	switch mode {
	case climate.AnalysisRaw:
		return PathClimate, nil
	case climate.AnalysisWeighted:
		return PathSummary, nil
	case climate.AnalysisTrends:
		return PathTrends, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Fetch issues exactly one request for the given mode and query.
func (g *Gateway) Fetch(ctx context.Context, mode climate.AnalysisType, query map[string]string) (Result, error) {
	path, err := ResourceFor(mode)
	if err != nil {
		return Result{}, err
	}

	reqID := uuid.NewString()
	env, err := g.get(ctx, path, reqID, query)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Mode:      mode,
		Path:      path,
		RequestID: reqID,
		Payload:   env,
	}, nil
}

// Locations fetches the location reference list.
func (g *Gateway) Locations(ctx context.Context) ([]climate.Location, error) {
	locs := []climate.Location{}
	if err := g.getList(ctx, PathLocations, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// Metrics fetches the metric reference list.
func (g *Gateway) Metrics(ctx context.Context) ([]climate.Metric, error) {
	metrics := []climate.Metric{}
	if err := g.getList(ctx, PathMetrics, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// getList decodes the data array of a reference resource into out. A missing
// data field leaves out untouched (an empty list).
func (g *Gateway) getList(ctx context.Context, path string, out any) error {
	reqID := uuid.NewString()
	env, err := g.get(ctx, path, reqID, nil)
	if err != nil {
		return err
	}
	if !env.HasData() {
		g.log.Warn().Str("path", path).Str("request_id", reqID).Msg("response has no data field; using empty list")
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &RequestError{Kind: KindDecode, Status: http.StatusOK, Path: path, RequestID: reqID, Err: err}
	}
	return nil
}

func (g *Gateway) get(ctx context.Context, path, reqID string, query map[string]string) (climate.Envelope, error) {
	log := g.log.With().Str("path", path).Str("request_id", reqID).Logger()
	start := time.Now()

	log.Debug().Interface("query", query).Msg("sending request")

	resp, err := g.do(ctx, path, reqID, query)
	if err != nil {
		log.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
		return climate.Envelope{}, err
	}

	body := resp.Body()
	if !json.Valid(body) {
		return climate.Envelope{}, &RequestError{
			Kind:      KindDecode,
			Status:    resp.StatusCode(),
			Path:      path,
			RequestID: reqID,
			Err:       fmt.Errorf("invalid JSON (%d bytes)", len(body)),
		}
	}

	var env climate.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Valid JSON that is not an object: treat as an envelope without data
		// and let normalization apply its fallback.
		log.Warn().Err(err).Msg("response body is not a JSON object")
		env = climate.Envelope{}
	}

	log.Debug().Int("status", resp.StatusCode()).Dur("elapsed", time.Since(start)).Msg("request completed")
	return env, nil
}

// do sends the request, through the circuit breaker when one is configured.
func (g *Gateway) do(ctx context.Context, path, reqID string, query map[string]string) (*resty.Response, error) {
	send := func() (*resty.Response, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetHeader(RequestIDHeader, reqID).
			SetQueryParams(query).
			Get(path)
		if err != nil {
			return nil, &RequestError{Kind: KindTransport, Path: path, RequestID: reqID, Err: err}
		}
		if !resp.IsSuccess() {
			return nil, &RequestError{Kind: KindHTTP, Status: resp.StatusCode(), Path: path, RequestID: reqID, Err: ErrHTTPStatus}
		}
		return resp, nil
	}

	if g.breaker == nil {
		return send()
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := send()
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &RequestError{
				Kind:      KindTransport,
				Path:      path,
				RequestID: reqID,
				Err:       fmt.Errorf("%w: %v", ErrCircuitOpen, err),
			}
		}
		return nil, err
	}

	resp, ok := result.(*resty.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}

// restyLogger routes resty's internal messages to zerolog.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }

func (l restyLogger) Warnf(format string, v ...interface{}) { l.log.Warn().Msgf(format, v...) }

func (l restyLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
