package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Amund211/mediagate/internal/constants"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxBodyBytes = 10 << 20
	queueCapacity       = 512
)

var ErrSchedulerClosed = errors.New("scheduler closed")
var ErrBodyTooLarge = errors.New("response body too large")
var ErrQuotaExhausted = errors.New("upstream quota exhausted")

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WindowLimiter enforces an upstream quota of N calls per window.
// operation is not run, and false is returned, when the quota would hold it past the context deadline.
type WindowLimiter interface {
	LimitCancelable(ctx context.Context, maxOperationTime time.Duration, operation func() bool) bool
}

// Request describes a call so it can be rebuilt for every attempt
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Zero means the default ceiling
	MaxBodyBytes int64
	// Optional. Picks the status to retry on when errors are reported inside a successful response
	EffectiveStatus func(Response) int
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type SchedulerConfig struct {
	Name        string
	MinInterval time.Duration
	Retry       RetryPolicy
	// Optional quota on top of the minimum interval
	Limiter WindowLimiter
}

type schedulerMetricsCollection struct {
	attemptCount metric.Int64Counter
	queueWait    metric.Float64Histogram
}

func setupSchedulerMetrics(meter metric.Meter) (schedulerMetricsCollection, error) {
	attemptCount, err := meter.Int64Counter(
		"upstream/attempt_count",
		metric.WithDescription("Network attempts by upstream and outcome"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create attempt count metric: %w", err)
	}

	queueWait, err := meter.Float64Histogram(
		"upstream/queue_wait_seconds",
		metric.WithDescription("Time spent queued before the first attempt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create queue wait metric: %w", err)
	}

	return schedulerMetricsCollection{
		attemptCount: attemptCount,
		queueWait:    queueWait,
	}, nil
}

type jobResult struct {
	response Response
	err      error
}

type job struct {
	ctx        context.Context
	request    Request
	enqueuedAt time.Time
	result     chan<- jobResult
}

// Scheduler serializes all calls to one upstream, spacing attempts by a minimum interval
type Scheduler struct {
	config     SchedulerConfig
	httpClient HttpClient
	nowFunc    func() time.Time
	afterFunc  func(time.Duration) <-chan time.Time
	jitterFunc func() time.Duration

	jobs   chan job
	closed bool
	// Held for reading while enqueueing so Close can't close jobs under a sender
	closeLock sync.RWMutex
	done      chan struct{}

	// Only touched by the worker
	lastDispatchedAt time.Time

	metrics schedulerMetricsCollection
	tracer  trace.Tracer
}

type SchedulerOption func(*Scheduler)

func WithJitterFunc(jitterFunc func() time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.jitterFunc = jitterFunc
	}
}

func randomJitter() time.Duration {
	return rand.N(MaxJitter)
}

func NewScheduler(
	config SchedulerConfig,
	httpClient HttpClient,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
	opts ...SchedulerOption,
) (*Scheduler, error) {
	name := fmt.Sprintf("mediagate/upstream/%s", config.Name)

	metrics, err := setupSchedulerMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	s := &Scheduler{
		config:     config,
		httpClient: httpClient,
		nowFunc:    nowFunc,
		afterFunc:  afterFunc,
		jitterFunc: randomJitter,

		jobs: make(chan job, queueCapacity),
		done: make(chan struct{}),

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.work()

	return s, nil
}

func (s *Scheduler) Name() string {
	return s.config.Name
}

// QueueLength is the number of calls waiting for the worker
func (s *Scheduler) QueueLength() int {
	return len(s.jobs)
}

// Dispatch queues the request and waits for its final response.
// Retryable statuses are retried; the last response is returned once attempts run out.
func (s *Scheduler) Dispatch(ctx context.Context, request Request) (Response, error) {
	result := make(chan jobResult, 1)

	err := s.enqueue(ctx, job{
		ctx:        ctx,
		request:    request,
		enqueuedAt: s.nowFunc(),
		result:     result,
	})
	if err != nil {
		return Response{}, err
	}

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case r := <-result:
		return r.response, r.err
	}
}

func (s *Scheduler) enqueue(ctx context.Context, j job) error {
	s.closeLock.RLock()
	defer s.closeLock.RUnlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrSchedulerClosed, s.config.Name)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.jobs <- j:
		return nil
	}
}

// Close stops accepting calls and waits for queued calls to finish
func (s *Scheduler) Close() {
	s.closeLock.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.closeLock.Unlock()

	<-s.done
}

func (s *Scheduler) work() {
	defer close(s.done)

	for j := range s.jobs {
		j.result <- s.runJob(j)
	}
}

func (s *Scheduler) runJob(j job) (result jobResult) {
	ctx := j.ctx
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic while calling %s: %v", domain.ErrUpstreamFailure, s.config.Name, r)
			logging.FromContext(ctx).ErrorContext(ctx, "Recovered from panic in upstream call", "upstream", s.config.Name, "error", err.Error())
			result = jobResult{err: err}
		}
	}()

	if err := ctx.Err(); err != nil {
		// Caller gave up while queued
		return jobResult{err: err}
	}

	s.metrics.queueWait.Record(
		ctx,
		s.nowFunc().Sub(j.enqueuedAt).Seconds(),
		metric.WithAttributes(attribute.String("upstream", s.config.Name)),
	)

	ctx, span := s.tracer.Start(ctx, "Scheduler.Dispatch", trace.WithAttributes(
		attribute.String("upstream", s.config.Name),
		attribute.String("http.method", j.request.Method),
	))
	defer span.End()

	response, err := s.dispatchWithRetries(ctx, j.request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("http.status_code", response.StatusCode))
	}

	return jobResult{response: response, err: err}
}

func (s *Scheduler) dispatchWithRetries(ctx context.Context, request Request) (Response, error) {
	logger := logging.FromContext(ctx).With(slog.String("upstream", s.config.Name))
	maxAttempts := s.config.Retry.maxAttempts()

	for attempt := 0; ; attempt++ {
		response, start, err := s.attemptWithinQuota(ctx, request)
		if start.IsZero() {
			// Never dispatched
			return Response{}, err
		}

		outcome := "error"
		if err == nil {
			outcome = strconv.Itoa(response.StatusCode)
		}
		s.metrics.attemptCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("upstream", s.config.Name),
			attribute.String("outcome", outcome),
		))
		logger.InfoContext(
			ctx,
			"Upstream attempt completed",
			"attempt", attempt,
			"outcome", outcome,
			"duration", s.nowFunc().Sub(start).String(),
		)

		retryable, retryAfter := s.classify(ctx, request, response, err)
		if !retryable || attempt+1 >= maxAttempts {
			return response, err
		}
		// Retry-After is otherwise a floor; a pause this long would stall every queued call behind this one
		if retryAfter > maxRetryAfter {
			logger.WarnContext(ctx, "Upstream asked for a long pause, giving up", "retryAfter", retryAfter.String())
			return response, err
		}

		delay := BackoffDelay(attempt, retryAfter, s.jitterFunc())
		logger.InfoContext(ctx, "Retrying upstream call", "attempt", attempt, "delay", delay.String())

		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("%w: cancelled while backing off: %w", domain.ErrTemporarilyUnavailable, ctx.Err())
		case <-s.afterFunc(delay):
		}
	}
}

// attemptWithinQuota makes one network attempt once both the quota and the minimum interval allow it.
// The returned start is zero when no attempt was made.
func (s *Scheduler) attemptWithinQuota(ctx context.Context, request Request) (Response, time.Time, error) {
	var response Response
	var start time.Time
	var err error

	operation := func() bool {
		if err = s.waitForInterval(ctx); err != nil {
			return false
		}

		start = s.nowFunc()
		s.lastDispatchedAt = start
		response, err = s.attempt(ctx, request)
		return true
	}

	if s.config.Limiter == nil {
		operation()
		return response, start, err
	}

	maxOperationTime := s.config.MinInterval + s.config.Retry.attemptTimeout()
	if ran := s.config.Limiter.LimitCancelable(ctx, maxOperationTime, operation); !ran {
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			err = ErrQuotaExhausted
		}
		return Response{}, time.Time{}, fmt.Errorf("%w: waiting for %s quota: %w", domain.ErrTemporarilyUnavailable, s.config.Name, err)
	}

	return response, start, err
}

func (s *Scheduler) waitForInterval(ctx context.Context) error {
	if s.lastDispatchedAt.IsZero() {
		return nil
	}

	if wait := s.lastDispatchedAt.Add(s.config.MinInterval).Sub(s.nowFunc()); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.afterFunc(wait):
		}
	}

	return nil
}

func (s *Scheduler) classify(ctx context.Context, request Request, response Response, err error) (bool, time.Duration) {
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) || ctx.Err() != nil {
			return false, 0
		}
		// Transport errors and attempt timeouts
		return true, 0
	}

	status := response.StatusCode
	if request.EffectiveStatus != nil {
		status = request.EffectiveStatus(response)
	}
	if !IsRetryableStatus(status) {
		return false, 0
	}

	return true, ParseRetryAfter(response.Header.Get("Retry-After"), s.nowFunc())
}

func (s *Scheduler) attempt(ctx context.Context, request Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Retry.attemptTimeout())
	defer cancel()

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if request.Body != nil {
		body = bytes.NewReader(request.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: failed to create request: %w", domain.ErrUpstreamFailure, err)
	}
	for key, values := range request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", constants.USER_AGENT)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: failed to send request to %s: %w", domain.ErrTemporarilyUnavailable, s.config.Name, err)
	}
	defer resp.Body.Close()

	maxBodyBytes := request.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, fmt.Errorf("%w: failed to read response body from %s: %w", domain.ErrTemporarilyUnavailable, s.config.Name, err)
	}
	if int64(len(data)) > maxBodyBytes {
		return Response{}, fmt.Errorf("%w: %w (limit %d bytes)", domain.ErrUpstreamFailure, ErrBodyTooLarge, maxBodyBytes)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
