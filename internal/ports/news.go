package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/mediagate/internal/app"
	"github.com/Amund211/mediagate/internal/logging"
	"github.com/Amund211/mediagate/internal/reporting"
)

func MakeNewsHandler(
	getNews app.GetNews,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("news", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := optionalInt(r, "limit")
		if err != nil || (r.URL.Query().Has("limit") && limit == 0) {
			writeError(ctx, w, "invalid limit", http.StatusBadRequest)
			return
		}

		items, status, err := getNews(ctx, limit)
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, items, status)
	}

	return middleware(handler)
}

func MakeArticleHandler(
	getArticle app.GetArticle,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("article", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		articleURL := r.URL.Query().Get("url")
		if articleURL == "" {
			writeError(ctx, w, "missing url", http.StatusBadRequest)
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("articleURL", articleURL))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"articleURL": articleURL})

		article, status, err := getArticle(ctx, articleURL)
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, article, status)
	}

	return middleware(handler)
}
