package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/articleextractor"
	"github.com/Amund211/mediagate/internal/adapters/catalog"
	"github.com/Amund211/mediagate/internal/adapters/imagerelay"
	"github.com/Amund211/mediagate/internal/adapters/newsprovider"
	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/app"
	"github.com/Amund211/mediagate/internal/config"
	"github.com/Amund211/mediagate/internal/logging"
	"github.com/Amund211/mediagate/internal/ports"
	"github.com/Amund211/mediagate/internal/ratelimiting"
	"github.com/Amund211/mediagate/internal/reporting"
	"github.com/Amund211/mediagate/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	// Root certificates for minimal container images
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "mediagate"

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	logger = slog.New(
		logging.WithCloudTrace(slog.NewJSONHandler(os.Stdout, nil), cfg.GoogleCloudProject()),
	).With("instanceID", instanceID)
	logger.Info("Loaded config", "config", cfg.NonSensitiveString())

	if cfg.OTelEnabled() {
		shutdown, err := telemetry.SetupOTelSDK(context.Background(), serviceName)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(cfg)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   12 * time.Second,
	}

	// Article and image urls come from clients, so redirects must stay on the allow-listed host
	sameHostClient := &http.Client{
		Transport:     httpClient.Transport,
		Timeout:       httpClient.Timeout,
		CheckRedirect: upstream.SameHostRedirects,
	}

	newScheduler := func(schedulerConfig upstream.SchedulerConfig, client upstream.HttpClient) *upstream.Scheduler {
		scheduler, err := upstream.NewScheduler(schedulerConfig, client, time.Now, time.After)
		if err != nil {
			fail("Failed to initialize scheduler", "upstream", schedulerConfig.Name, "error", err.Error())
		}
		return scheduler
	}

	aniListScheduler := newScheduler(upstream.SchedulerConfig{
		Name:        catalog.AniListName,
		MinInterval: 700 * time.Millisecond,
		Retry:       upstream.RetryPolicy{MaxAttempts: 3},
	}, httpClient)
	defer aniListScheduler.Close()

	jikanScheduler := newScheduler(upstream.SchedulerConfig{
		Name:        catalog.JikanName,
		MinInterval: 400 * time.Millisecond,
		Retry:       upstream.RetryPolicy{MaxAttempts: 3},
		Limiter:     ratelimiting.NewWindowLimitRequestLimiter(60, time.Minute, time.Now, time.After),
	}, httpClient)
	defer jikanScheduler.Close()

	newsScheduler := newScheduler(upstream.SchedulerConfig{
		Name:        "news",
		MinInterval: 500 * time.Millisecond,
		Retry:       upstream.RetryPolicy{MaxAttempts: 2},
	}, sameHostClient)
	defer newsScheduler.Close()

	imageScheduler := newScheduler(upstream.SchedulerConfig{
		Name:        "images",
		MinInterval: 100 * time.Millisecond,
		Retry:       upstream.RetryPolicy{MaxAttempts: 2},
	}, sameHostClient)
	defer imageScheduler.Close()
	logger.Info("Initialized upstream schedulers")

	aniList := catalog.NewAniList(aniListScheduler, cfg.AniListURL())
	jikan := catalog.NewJikan(jikanScheduler, cfg.JikanURL())

	var primary, fallback catalog.Catalog = aniList, jikan
	if cfg.CatalogPrimary() == config.SourceJikan {
		primary, fallback = jikan, aniList
	}

	router, err := app.NewRouter(primary, fallback, cfg.FallbackEnabled)
	if err != nil {
		fail("Failed to initialize catalog router", "error", err.Error())
	}
	logger.Info("Initialized catalog router", "primary", primary.Name(), "fallback", fallback.Name())

	newsProvider := newsprovider.NewNewsProvider(newsScheduler, cfg.NewsFeedURL(), cfg.NewsArchiveURL())
	extractor := articleextractor.NewArticleExtractor(newsScheduler, cfg.NewsHost())
	relay := imagerelay.NewImageRelay(imageScheduler, cfg.ImageRelayHost())

	allowedOrigins, err := ports.NewDomainSuffixes(cfg.AllowedOriginSuffixes()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	caches := app.NewCaches(time.Now)

	search := app.BuildSearchWithCache(caches.Search, router)
	top := app.BuildTopWithCache(caches.Top, router)
	season := app.BuildSeasonWithCache(caches.Season, caches.LastPage, router)
	getDetail := app.BuildDetailWithCache(caches.Detail, router)
	getDetailByAniListID := app.BuildDetailByAniListIDWithCache(caches.CrossRef, aniList, getDetail)
	getCharacters := app.BuildCharactersWithCache(caches.Characters, router)
	getNews := app.BuildGetNewsWithCache(caches.News, newsProvider)
	getArticle := app.BuildGetArticleWithCache(caches.Articles, extractor)
	getImage := app.BuildGetImageWithCache(caches.Images, relay)

	route := func(pattern string, port string, handler func(*slog.Logger) http.HandlerFunc) {
		http.HandleFunc("OPTIONS "+pattern, ports.BuildCORSHandler(allowedOrigins))
		http.HandleFunc("GET "+pattern, handler(logger.With("port", port)))
	}

	route("/v1/catalog/{type}/search", "search", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeSearchHandler(search, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/catalog/{type}/top", "top", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeTopHandler(top, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/catalog/{type}/season/{year}/{season}", "season", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeSeasonHandler(season, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/catalog/{type}/media/{id}", "detail", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeDetailHandler(getDetail, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/catalog/{type}/anilist/{id}", "detailbyanilistid", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeDetailByAniListIDHandler(getDetailByAniListID, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/catalog/{type}/media/{id}/characters", "characters", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeCharactersHandler(getCharacters, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/news", "news", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeNewsHandler(getNews, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/news/article", "article", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeArticleHandler(getArticle, allowedOrigins, l, sentryMiddleware)
	})
	route("/v1/image", "image", func(l *slog.Logger) http.HandlerFunc {
		return ports.MakeImageHandler(getImage, allowedOrigins, l, sentryMiddleware)
	})

	http.HandleFunc("GET /healthz", ports.HealthHandler)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
