package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/Amund211/mediagate/internal/domain"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type CatalogSource string

const (
	SourceAniList CatalogSource = "anilist"
	SourceJikan   CatalogSource = "jikan"
)

const (
	defaultPort             = "8080"
	defaultAniListURL       = "https://graphql.anilist.co"
	defaultJikanURL         = "https://api.jikan.moe/v4"
	defaultNewsFeedURL      = "https://www.animenewsnetwork.com/all/rss.xml?ann-edition=w"
	defaultNewsArchiveURL   = "https://www.animenewsnetwork.com/news/"
	defaultNewsHost         = "www.animenewsnetwork.com"
	defaultImageRelayHost   = "cdn.myanimelist.net"
	defaultFallbackOps      = "search,top,detail"
	defaultOriginSuffixList = "localhost"
)

type Config struct {
	env  environment
	port string

	sentryDSN string

	catalogPrimary  CatalogSource
	fallbackEnabled []domain.Operation

	aniListURL     string
	jikanURL       string
	newsFeedURL    string
	newsArchiveURL string
	newsHost       string
	imageRelayHost string

	allowedOriginSuffixes []string

	otelEnabled        bool
	googleCloudProject string
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

func (c *Config) CatalogPrimary() CatalogSource {
	return c.catalogPrimary
}

// The catalog used when the primary fails
func (c *Config) CatalogFallback() CatalogSource {
	if c.catalogPrimary == SourceAniList {
		return SourceJikan
	}
	return SourceAniList
}

func (c *Config) FallbackEnabled(op domain.Operation) bool {
	return slices.Contains(c.fallbackEnabled, op)
}

func (c *Config) AniListURL() string {
	return c.aniListURL
}

func (c *Config) JikanURL() string {
	return c.jikanURL
}

func (c *Config) NewsFeedURL() string {
	return c.newsFeedURL
}

func (c *Config) NewsArchiveURL() string {
	return c.newsArchiveURL
}

func (c *Config) NewsHost() string {
	return c.newsHost
}

func (c *Config) ImageRelayHost() string {
	return c.imageRelayHost
}

func (c *Config) AllowedOriginSuffixes() []string {
	return slices.Clone(c.allowedOriginSuffixes)
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	fallback := make([]string, 0, len(c.fallbackEnabled))
	for _, op := range c.fallbackEnabled {
		fallback = append(fallback, string(op))
	}
	return fmt.Sprintf(
		"Config{env: %s, port: %s, primary: %s, fallback: [%s], imageRelayHost: %s, otel: %t, ...}",
		string(c.env),
		c.port,
		string(c.catalogPrimary),
		strings.Join(fallback, ","),
		c.imageRelayHost,
		c.otelEnabled,
	)
}

func getOrDefault(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func parseFallbackOperations(raw string) ([]domain.Operation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "none" {
		return []domain.Operation{}, nil
	}

	ops := []domain.Operation{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		op, err := domain.ParseOperation(part)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(ops, op) {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("MEDIAGATE_ENVIRONMENT")
	if !ok || rawEnv == "" {
		return missingKey("MEDIAGATE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("MEDIAGATE_ENVIRONMENT", rawEnv)
	}

	port := getOrDefault("PORT", defaultPort)
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return invalidValue("PORT", port)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	if env != development && sentryDSN == "" {
		return missingKey("SENTRY_DSN")
	}

	rawPrimary := getOrDefault("CATALOG_PRIMARY", string(SourceAniList))
	var primary CatalogSource
	switch CatalogSource(strings.ToLower(rawPrimary)) {
	case SourceAniList:
		primary = SourceAniList
	case SourceJikan:
		primary = SourceJikan
	default:
		return invalidValue("CATALOG_PRIMARY", rawPrimary)
	}

	rawFallback := getOrDefault("CATALOG_FALLBACK", defaultFallbackOps)
	fallbackEnabled, err := parseFallbackOperations(rawFallback)
	if err != nil {
		return invalidValue("CATALOG_FALLBACK", rawFallback)
	}

	imageRelayHost := getOrDefault("IMAGE_RELAY_HOST", defaultImageRelayHost)
	if strings.Contains(imageRelayHost, "/") {
		return invalidValue("IMAGE_RELAY_HOST", imageRelayHost)
	}

	newsHost := getOrDefault("NEWS_HOST", defaultNewsHost)
	if strings.Contains(newsHost, "/") {
		return invalidValue("NEWS_HOST", newsHost)
	}

	suffixes := []string{}
	for _, suffix := range strings.Split(getOrDefault("ALLOWED_ORIGIN_SUFFIXES", defaultOriginSuffixList), ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" {
			suffixes = append(suffixes, suffix)
		}
	}

	rawOTel := getOrDefault("OTEL_ENABLED", "false")
	otelEnabled, err := strconv.ParseBool(rawOTel)
	if err != nil {
		return invalidValue("OTEL_ENABLED", rawOTel)
	}

	return Config{
		env:  env,
		port: port,

		sentryDSN: sentryDSN,

		catalogPrimary:  primary,
		fallbackEnabled: fallbackEnabled,

		aniListURL:     getOrDefault("ANILIST_URL", defaultAniListURL),
		jikanURL:       strings.TrimSuffix(getOrDefault("JIKAN_URL", defaultJikanURL), "/"),
		newsFeedURL:    getOrDefault("NEWS_FEED_URL", defaultNewsFeedURL),
		newsArchiveURL: getOrDefault("NEWS_ARCHIVE_URL", defaultNewsArchiveURL),
		newsHost:       newsHost,
		imageRelayHost: imageRelayHost,

		allowedOriginSuffixes: suffixes,

		otelEnabled:        otelEnabled,
		googleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
	}, nil
}
