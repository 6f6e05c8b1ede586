package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codeclash",
		Subsystem: "judge",
		Name:      "call_duration_seconds",
		Help:      "Duration of judge execution calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	callFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeclash",
		Subsystem: "judge",
		Name:      "call_failures_total",
		Help:      "Number of judge calls that failed before producing a result",
	}, []string{"language"})
)

// ErrUnavailable indicates the execution service could not produce a result.
// It is a transport failure, never a grading verdict.
var ErrUnavailable = errors.New("judge unavailable")

// Client runs a single test case against the external execution service.
type Client interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Request describes one case execution.
type Request struct {
	Code           string  `json:"source_code"`
	Language       string  `json:"language"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output,omitempty"`
	TimeLimitSec   float64 `json:"cpu_time_limit,omitempty"`
	MemoryLimitKB  int64   `json:"memory_limit,omitempty"`
}

// Result is the judged outcome of one case execution.
type Result struct {
	Stdout     string  `json:"stdout"`
	Stderr     string  `json:"stderr"`
	StatusID   int     `json:"status_id"`
	RuntimeSec float64 `json:"time"`
	MemoryKB   int64   `json:"memory"`
}

// Config groups client configuration values.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New constructs an HTTP judge client with a bounded per-call timeout.
func New(cfg Config) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("judge base url must not be empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		logger:  cfg.Logger.With().Str("component", "judge_client").Logger(),
		tracer:  otel.Tracer("github.com/codeclash/codeclash-api/pkg/judge"),
	}, nil
}

func (c *httpClient) Execute(ctx context.Context, req Request) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "judge.execute", trace.WithAttributes(
		attribute.String("judge.language", req.Language),
	))
	defer span.End()

	start := time.Now()
	result, err := c.execute(ctx, req)
	callDuration.WithLabelValues(req.Language).Observe(time.Since(start).Seconds())

	if err != nil {
		callFailures.WithLabelValues(req.Language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "judge call failed")
		c.logger.Warn().Err(err).Str("language", req.Language).Msg("judge call failed")
		return Result{}, err
	}

	span.SetAttributes(attribute.Int("judge.status_id", result.StatusID))
	return result, nil
}

func (c *httpClient) execute(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions?wait=true", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, fmt.Errorf("%w: judge responded with %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Result{}, fmt.Errorf("judge rejected request with status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if result.StatusID == StatusInternalError {
		return Result{}, fmt.Errorf("%w: judge internal error", ErrUnavailable)
	}

	return result, nil
}
