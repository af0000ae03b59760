package ports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/mediagate/internal/app"
	"github.com/Amund211/mediagate/internal/reporting"
)

// MakeImageHandler relays raw image bytes. Errors are still reported as json.
func MakeImageHandler(
	getImage app.GetImage,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("image", imageLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		imageURL := r.URL.Query().Get("url")
		if imageURL == "" {
			writeError(ctx, w, "missing url", http.StatusBadRequest)
			return
		}
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"imageURL": imageURL})

		image, status, err := getImage(ctx, imageURL)
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		w.Header().Set("Content-Type", image.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set(cacheStatusHeader, string(status))
		w.WriteHeader(http.StatusOK)
		w.Write(image.Data)
	}

	return middleware(handler)
}
