package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/app"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/stretchr/testify/require"
)

type mockNewsProvider struct {
	calls int
	items []domain.NewsItem
	err   error
}

func (m *mockNewsProvider) GetNews(ctx context.Context) ([]domain.NewsItem, error) {
	m.calls++
	return m.items, m.err
}

func TestBuildGetNewsWithCache(t *testing.T) {
	t.Parallel()

	items := make([]domain.NewsItem, 0, 30)
	published := time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)
	for i := range 30 {
		items = append(items, domain.NewsItem{
			ID:          fmt.Sprintf("https://news.example.com/news/%d", i),
			Title:       fmt.Sprintf("Story %d", i),
			Link:        fmt.Sprintf("https://news.example.com/news/%d", i),
			PublishedAt: published.Add(-time.Duration(i) * time.Hour),
			Categories:  []string{},
		})
	}

	t.Run("limit is applied to the cached list", func(t *testing.T) {
		t.Parallel()

		provider := &mockNewsProvider{items: items}
		getNews := app.BuildGetNewsWithCache(app.NewCaches(fixedNow()).News, provider)

		result, status, err := getNews(t.Context(), 0)
		require.NoError(t, err)
		require.Equal(t, cache.StatusMiss, status)
		require.Equal(t, items[:app.DefaultNewsLimit], result)

		result, status, err = getNews(t.Context(), 5)
		require.NoError(t, err)
		require.Equal(t, cache.StatusFresh, status)
		require.Equal(t, items[:5], result)

		result, _, err = getNews(t.Context(), 100)
		require.NoError(t, err)
		require.Len(t, result, 30)

		require.Equal(t, 1, provider.calls)
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		provider := &mockNewsProvider{items: items}
		getNews := app.BuildGetNewsWithCache(app.NewCaches(fixedNow()).News, provider)

		for _, limit := range []int{-1, app.MaxNewsLimit + 1} {
			_, _, err := getNews(t.Context(), limit)
			require.ErrorIs(t, err, domain.ErrInvalidQuery)
		}
		require.Equal(t, 0, provider.calls)
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()

		provider := &mockNewsProvider{err: errUnavailable}
		getNews := app.BuildGetNewsWithCache(app.NewCaches(fixedNow()).News, provider)

		_, _, err := getNews(t.Context(), 10)
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
	})
}

type mockArticleExtractor struct {
	t *testing.T

	calls   int
	article domain.Article
}

func (m *mockArticleExtractor) CanonicalURL(articleURL string) (string, error) {
	parsed, err := domain.ParseAllowedURL(articleURL, "news.example.com")
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

func (m *mockArticleExtractor) Extract(ctx context.Context, articleURL string) (domain.Article, error) {
	m.t.Helper()
	require.Equal(m.t, "https://news.example.com/news/2024-07-15/bleach/.1", articleURL)
	m.calls++
	return m.article, nil
}

func TestBuildGetArticleWithCache(t *testing.T) {
	t.Parallel()

	extractor := &mockArticleExtractor{
		t: t,
		article: domain.Article{
			URL:      "https://news.example.com/news/2024-07-15/bleach/.1",
			Title:    "Bleach Part 3 Dated",
			BodyHTML: "<p>October</p>",
			Images:   []string{},
		},
	}
	getArticle := app.BuildGetArticleWithCache(app.NewCaches(fixedNow()).Articles, extractor)

	article, status, err := getArticle(t.Context(), "https://news.example.com/news/2024-07-15/bleach/.1")
	require.NoError(t, err)
	require.Equal(t, cache.StatusMiss, status)
	require.Equal(t, extractor.article, article)

	// Same article, different fragment
	_, status, err = getArticle(t.Context(), "https://NEWS.example.com/news/2024-07-15/bleach/.1#comments")
	require.NoError(t, err)
	require.Equal(t, cache.StatusFresh, status)
	require.Equal(t, 1, extractor.calls)

	_, _, err = getArticle(t.Context(), "https://evil.example.com/news/2024-07-15/bleach/.1")
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
	require.Equal(t, 1, extractor.calls)
}

type mockImageRelay struct {
	calls int
	image domain.Image
	err   error
}

func (m *mockImageRelay) CanonicalURL(imageURL string) (string, error) {
	parsed, err := domain.ParseAllowedURL(imageURL, "cdn.example.com")
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

func (m *mockImageRelay) Fetch(ctx context.Context, imageURL string) (domain.Image, error) {
	m.calls++
	return m.image, m.err
}

func TestBuildGetImageWithCache(t *testing.T) {
	t.Parallel()

	t.Run("cached", func(t *testing.T) {
		t.Parallel()

		relay := &mockImageRelay{image: domain.Image{ContentType: "image/jpeg", Data: []byte("jpeg")}}
		getImage := app.BuildGetImageWithCache(app.NewCaches(fixedNow()).Images, relay)

		image, status, err := getImage(t.Context(), "https://cdn.example.com/images/anime/1.jpg")
		require.NoError(t, err)
		require.Equal(t, cache.StatusMiss, status)
		require.Equal(t, relay.image, image)

		_, status, err = getImage(t.Context(), "https://cdn.example.com/images/anime/1.jpg")
		require.NoError(t, err)
		require.Equal(t, cache.StatusFresh, status)
		require.Equal(t, 1, relay.calls)
	})

	t.Run("rejected url", func(t *testing.T) {
		t.Parallel()

		relay := &mockImageRelay{}
		getImage := app.BuildGetImageWithCache(app.NewCaches(fixedNow()).Images, relay)

		_, _, err := getImage(t.Context(), "http://cdn.example.com/images/anime/1.jpg")
		require.ErrorIs(t, err, domain.ErrInvalidQuery)
		require.Equal(t, 0, relay.calls)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		relay := &mockImageRelay{err: fmt.Errorf("%w: not an image", domain.ErrUpstreamFailure)}
		getImage := app.BuildGetImageWithCache(app.NewCaches(fixedNow()).Images, relay)

		for range 2 {
			_, _, err := getImage(t.Context(), "https://cdn.example.com/images/anime/1.jpg")
			require.ErrorIs(t, err, domain.ErrUpstreamFailure)
		}
		require.Equal(t, 2, relay.calls)
	})
}
