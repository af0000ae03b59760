package newsprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const name = "news"

const maxPageBytes = 4 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, request upstream.Request) (upstream.Response, error)
}

type NewsProvider interface {
	GetNews(ctx context.Context) ([]domain.NewsItem, error)
}

type newsProvider struct {
	dispatcher Dispatcher
	feedURL    string
	archiveURL string

	tracer trace.Tracer
}

func NewNewsProvider(dispatcher Dispatcher, feedURL, archiveURL string) NewsProvider {
	return &newsProvider{
		dispatcher: dispatcher,
		feedURL:    feedURL,
		archiveURL: archiveURL,
		tracer:     otel.Tracer("mediagate/newsprovider"),
	}
}

// GetNews reads the feed, falling back to scraping the archive page when the feed is unusable.
// Items are ordered newest first.
func (p *newsProvider) GetNews(ctx context.Context) ([]domain.NewsItem, error) {
	ctx, span := p.tracer.Start(ctx, "NewsProvider.GetNews")
	defer span.End()

	items, feedErr := p.fromFeed(ctx)
	if feedErr == nil && len(items) > 0 {
		return sortedNewestFirst(items), nil
	}

	logging.FromContext(ctx).WarnContext(ctx, "News feed unusable, falling back to the archive", "feedError", errString(feedErr), "feedItems", len(items))

	archiveItems, archiveErr := p.fromArchive(ctx)
	if archiveErr == nil {
		return sortedNewestFirst(archiveItems), nil
	}
	if feedErr == nil {
		// An empty feed is still an answer
		return items, nil
	}

	return nil, fmt.Errorf("failed to get news from feed (%w) and archive (%w)", feedErr, archiveErr)
}

func (p *newsProvider) fromFeed(ctx context.Context) ([]domain.NewsItem, error) {
	data, err := p.fetch(ctx, p.feedURL, "application/rss+xml, application/xml;q=0.9, */*;q=0.1")
	if err != nil {
		return nil, err
	}
	return parseFeed(data)
}

func (p *newsProvider) fromArchive(ctx context.Context) ([]domain.NewsItem, error) {
	data, err := p.fetch(ctx, p.archiveURL, "text/html")
	if err != nil {
		return nil, err
	}
	return parseArchive(data, p.archiveURL)
}

func (p *newsProvider) fetch(ctx context.Context, url string, accept string) ([]byte, error) {
	response, err := p.dispatcher.Dispatch(ctx, upstream.Request{
		Method:       http.MethodGet,
		URL:          url,
		Header:       http.Header{"Accept": []string{accept}},
		MaxBodyBytes: maxPageBytes,
	})
	if err != nil {
		return nil, err
	}
	if !response.IsSuccess() {
		return nil, upstream.ErrorForStatus(name, response.StatusCode, "")
	}
	return response.Body, nil
}

func sortedNewestFirst(items []domain.NewsItem) []domain.NewsItem {
	slices.SortStableFunc(items, func(a, b domain.NewsItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return items
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var errNoItems = errors.New("no news items found")
