package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
)

const (
	DefaultNewsLimit = 20
	MaxNewsLimit     = 100
)

const newsFetchTimeout = 45 * time.Second

type GetNews func(ctx context.Context, limit int) ([]domain.NewsItem, cache.Status, error)
type GetArticle func(ctx context.Context, articleURL string) (domain.Article, cache.Status, error)

type newsProvider interface {
	GetNews(ctx context.Context) ([]domain.NewsItem, error)
}

type articleExtractor interface {
	CanonicalURL(articleURL string) (string, error)
	Extract(ctx context.Context, articleURL string) (domain.Article, error)
}

func BuildGetNewsWithCache(newsCache *cache.Cache[[]domain.NewsItem], provider newsProvider) GetNews {
	return func(ctx context.Context, limit int) ([]domain.NewsItem, cache.Status, error) {
		if limit == 0 {
			limit = DefaultNewsLimit
		}
		if limit < 1 || limit > MaxNewsLimit {
			return nil, "", fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidQuery, MaxNewsLimit)
		}

		items, status, err := cache.GetOrRefresh(ctx, newsCache, "news", func(ctx context.Context) ([]domain.NewsItem, error) {
			ctx, cancel := context.WithTimeout(ctx, newsFetchTimeout)
			defer cancel()

			items, err := provider.GetNews(ctx)
			if err != nil {
				return nil, fmt.Errorf("could not get news: %w", err)
			}
			return items, nil
		})
		if err != nil {
			return nil, status, err
		}

		// The cached slice is shared, so only re-slice it
		return items[:min(limit, len(items))], status, nil
	}
}

func BuildGetArticleWithCache(articlesCache *cache.Cache[domain.Article], extractor articleExtractor) GetArticle {
	return func(ctx context.Context, articleURL string) (domain.Article, cache.Status, error) {
		canonical, err := extractor.CanonicalURL(articleURL)
		if err != nil {
			return domain.Article{}, "", err
		}

		return cache.GetOrRefresh(ctx, articlesCache, cache.BuildKey("article", map[string]any{"url": canonical}), func(ctx context.Context) (domain.Article, error) {
			ctx, cancel := context.WithTimeout(ctx, newsFetchTimeout)
			defer cancel()

			article, err := extractor.Extract(ctx, canonical)
			if err != nil {
				return domain.Article{}, fmt.Errorf("could not extract article: %w", err)
			}
			return article, nil
		})
	}
}
