package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/logging"
)

type catalog interface {
	Name() string

	Search(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, error)
	Top(ctx context.Context, query domain.TopQuery) (domain.MediaPage, error)
	Season(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, error)
	Detail(ctx context.Context, query domain.DetailQuery) (domain.Media, error)
	Characters(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, error)
}

// Router sends each catalog operation to the primary catalog, falling back to the secondary
// for the operations where fallback is enabled
type Router struct {
	primary         catalog
	fallback        catalog
	fallbackEnabled func(op domain.Operation) bool
}

func NewRouter(primary, fallback catalog, fallbackEnabled func(op domain.Operation) bool) (*Router, error) {
	if primary == nil || fallback == nil {
		return nil, fmt.Errorf("router needs both a primary and a fallback catalog")
	}
	if primary.Name() == fallback.Name() {
		return nil, fmt.Errorf("primary and fallback catalog are both %s", primary.Name())
	}

	return &Router{
		primary:         primary,
		fallback:        fallback,
		fallbackEnabled: fallbackEnabled,
	}, nil
}

// PrimaryName identifies the routing table, so results from different primaries never share a cache key
func (r *Router) PrimaryName() string {
	return r.primary.Name()
}

func (r *Router) byName(name string) (catalog, bool) {
	switch name {
	case r.primary.Name():
		return r.primary, true
	case r.fallback.Name():
		return r.fallback, true
	default:
		return nil, false
	}
}

// resolve calls the primary, and on any error the fallback if enabled for the operation.
// Returns the result along with the name of the catalog that produced it.
// When both fail, the primary's error is returned.
func resolve[T any](ctx context.Context, r *Router, op domain.Operation, call func(ctx context.Context, c catalog) (T, error)) (T, string, error) {
	value, primaryErr := call(ctx, r.primary)
	if primaryErr == nil {
		return value, r.primary.Name(), nil
	}

	if !r.fallbackEnabled(op) {
		var empty T
		return empty, "", primaryErr
	}

	logger := logging.FromContext(ctx).With(
		slog.String("operation", string(op)),
		slog.String("primary", r.primary.Name()),
		slog.String("fallback", r.fallback.Name()),
	)
	logger.InfoContext(ctx, "Primary catalog failed, trying fallback", "error", primaryErr.Error())

	value, fallbackErr := call(ctx, r.fallback)
	if fallbackErr != nil {
		logger.WarnContext(ctx, "Fallback catalog failed", "error", fallbackErr.Error())
		var empty T
		return empty, "", primaryErr
	}

	return value, r.fallback.Name(), nil
}

func (r *Router) Search(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, string, error) {
	return resolve(ctx, r, domain.OperationSearch, func(ctx context.Context, c catalog) (domain.MediaPage, error) {
		return c.Search(ctx, query)
	})
}

func (r *Router) Top(ctx context.Context, query domain.TopQuery) (domain.MediaPage, string, error) {
	return resolve(ctx, r, domain.OperationTop, func(ctx context.Context, c catalog) (domain.MediaPage, error) {
		return c.Top(ctx, query)
	})
}

func (r *Router) Season(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, string, error) {
	return resolve(ctx, r, domain.OperationSeason, func(ctx context.Context, c catalog) (domain.MediaPage, error) {
		return c.Season(ctx, query)
	})
}

func (r *Router) Detail(ctx context.Context, query domain.DetailQuery) (domain.Media, string, error) {
	return resolve(ctx, r, domain.OperationDetail, func(ctx context.Context, c catalog) (domain.Media, error) {
		return c.Detail(ctx, query)
	})
}

func (r *Router) Characters(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, string, error) {
	return resolve(ctx, r, domain.OperationCharacters, func(ctx context.Context, c catalog) (domain.CharacterPage, error) {
		return c.Characters(ctx, query)
	})
}
