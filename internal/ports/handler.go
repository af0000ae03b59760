package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/logging"
	"github.com/Amund211/mediagate/internal/ratelimiting"
	"github.com/Amund211/mediagate/internal/reporting"
)

type successResponse struct {
	Success     bool         `json:"success"`
	Data        any          `json:"data"`
	CacheStatus cache.Status `json:"cacheStatus"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

const internalServerErrorResponse = `{"success":false,"cause":"internal server error"}`

const cacheStatusHeader = "X-Cache-Status"

type limits struct {
	ipRefill     ratelimiting.RefillPerSecond
	ipBurst      ratelimiting.BurstSize
	userIDRefill ratelimiting.RefillPerSecond
	userIDBurst  ratelimiting.BurstSize
}

var catalogLimits = limits{ipRefill: 4, ipBurst: 120, userIDRefill: 2, userIDBurst: 60}

// Images are requested in bursts when a listing is rendered
var imageLimits = limits{ipRefill: 20, ipBurst: 400, userIDRefill: 10, userIDBurst: 200}

func buildHandlerMiddleware(
	port string,
	l limits,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(l.ipRefill, l.ipBurst)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(l.userIDRefill, l.userIDBurst)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, "rate limit exceeded", http.StatusTooManyRequests)
	}

	return ComposeMiddlewares(
		buildMetricsMiddleware(port),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(port),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
		NewRateLimitMiddleware(userIDRateLimiter, onLimitExceeded),
	)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(internalServerErrorResponse))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, data any, status cache.Status) {
	w.Header().Set(cacheStatusHeader, string(status))
	writeJSON(ctx, w, http.StatusOK, successResponse{
		Success:     true,
		Data:        data,
		CacheStatus: status,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, cause string, statusCode int) {
	writeJSON(ctx, w, statusCode, errorResponse{
		Success: false,
		Cause:   cause,
	})
}

// handleAppError maps an error from the app layer to a client response
func handleAppError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(ctx, w, "invalid query", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		writeError(ctx, w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTemporarilyUnavailable), errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, "temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrUpstreamFailure):
		// NOTE: Adapters report unexpected upstream responses themselves
		writeError(ctx, w, "upstream failure", http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		// The client went away, nobody will read this
		logging.FromContext(ctx).InfoContext(ctx, "Request cancelled")
		writeError(ctx, w, "request cancelled", http.StatusServiceUnavailable)
	default:
		reporting.Report(ctx, fmt.Errorf("unhandled error: %w", err))
		writeError(ctx, w, "internal server error", http.StatusInternalServerError)
	}
}

// optionalInt parses an optional non-negative integer query parameter, returning 0 when absent
func optionalInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidQuery, name)
	}
	return value, nil
}

func parsePaging(r *http.Request) (domain.Paging, error) {
	page, err := optionalInt(r, "page")
	if err != nil {
		return domain.Paging{}, err
	}
	perPage, err := optionalInt(r, "perPage")
	if err != nil {
		return domain.Paging{}, err
	}
	return domain.Paging{Page: page, PerPage: perPage}.Normalized(), nil
}

func pathInt(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrInvalidQuery, name)
	}
	return value, nil
}

func pathMediaType(r *http.Request) (domain.MediaType, error) {
	return domain.ParseMediaType(r.PathValue("type"))
}
