package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Amund211/mediagate/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Status string

const (
	StatusFresh Status = "fresh"
	StatusStale Status = "stale"
	StatusMiss  Status = "miss"
)

type cacheMetricsCollection struct {
	lookupCount  metric.Int64Counter
	refreshCount metric.Int64Counter
}

var metrics cacheMetricsCollection

func init() {
	meter := otel.Meter("mediagate/cache")

	lookupCount, err := meter.Int64Counter(
		"cache/lookup_count",
		metric.WithDescription("Cache lookups by store and status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookup count metric: %w", err))
	}

	refreshCount, err := meter.Int64Counter(
		"cache/refresh_count",
		metric.WithDescription("Upstream refreshes by store and outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create refresh count metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		lookupCount:  lookupCount,
		refreshCount: refreshCount,
	}
}

// Cache pairs a store with the coordinator that refreshes it
type Cache[T any] struct {
	store       *Store[T]
	coordinator *Coordinator[T]
}

func New[T any](config StoreConfig, nowFunc func() time.Time) *Cache[T] {
	return &Cache[T]{
		store:       NewStore[T](config, nowFunc),
		coordinator: NewCoordinator[T](),
	}
}

func (c *Cache[T]) Store() *Store[T] {
	return c.store
}

// GetOrRefresh serves from the store when possible.
// Stale entries are returned immediately and refreshed in the background.
func GetOrRefresh[T any](ctx context.Context, c *Cache[T], key string, fetch func(ctx context.Context) (T, error)) (T, Status, error) {
	logger := logging.FromContext(ctx).With(slog.String("cache", c.store.Name()))

	entry, freshness := c.store.Get(key)
	switch freshness {
	case Fresh:
		recordLookup(ctx, c, StatusFresh)
		return entry.Value, StatusFresh, nil
	case Stale:
		recordLookup(ctx, c, StatusStale)

		refreshCtx := context.WithoutCancel(ctx)
		go func() {
			_, err := c.refresh(refreshCtx, key, fetch)
			if err != nil {
				logger.WarnContext(refreshCtx, "Background refresh failed", "key", key, "error", err.Error())
			}
		}()

		return entry.Value, StatusStale, nil
	}

	recordLookup(ctx, c, StatusMiss)
	value, err := c.refresh(ctx, key, fetch)
	if err != nil {
		var empty T
		return empty, StatusMiss, err
	}

	return value, StatusMiss, nil
}

func (c *Cache[T]) refresh(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	return c.coordinator.Run(ctx, key, func(ctx context.Context) (T, error) {
		// Another flight may have finished right before this one started
		if entry, freshness := c.store.Get(key); freshness == Fresh {
			return entry.Value, nil
		}

		value, err := fetch(ctx)
		if err != nil {
			metrics.refreshCount.Add(ctx, 1, metric.WithAttributes(
				attribute.String("store", c.store.Name()),
				attribute.Bool("success", false),
			))
			var empty T
			return empty, err
		}

		c.store.Set(key, value)
		metrics.refreshCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("store", c.store.Name()),
			attribute.Bool("success", true),
		))

		return value, nil
	})
}

func recordLookup[T any](ctx context.Context, c *Cache[T], status Status) {
	metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", c.store.Name()),
		attribute.String("status", string(status)),
	))
}
