package imagerelay

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const name = "images"

const MaxImageBytes = 5 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, request upstream.Request) (upstream.Response, error)
}

type ImageRelay interface {
	CanonicalURL(imageURL string) (string, error)
	Fetch(ctx context.Context, imageURL string) (domain.Image, error)
}

type imageRelay struct {
	dispatcher  Dispatcher
	allowedHost string

	tracer trace.Tracer
}

func NewImageRelay(dispatcher Dispatcher, allowedHost string) ImageRelay {
	return &imageRelay{
		dispatcher:  dispatcher,
		allowedHost: allowedHost,
		tracer:      otel.Tracer("mediagate/imagerelay"),
	}
}

func (r *imageRelay) CanonicalURL(imageURL string) (string, error) {
	parsed, err := domain.ParseAllowedURL(imageURL, r.allowedHost)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

func (r *imageRelay) Fetch(ctx context.Context, imageURL string) (domain.Image, error) {
	ctx, span := r.tracer.Start(ctx, "ImageRelay.Fetch")
	defer span.End()

	parsed, err := domain.ParseAllowedURL(imageURL, r.allowedHost)
	if err != nil {
		return domain.Image{}, err
	}

	response, err := r.dispatcher.Dispatch(ctx, upstream.Request{
		Method:       http.MethodGet,
		URL:          parsed.String(),
		Header:       http.Header{"Accept": []string{"image/*"}},
		MaxBodyBytes: MaxImageBytes,
	})
	if err != nil {
		return domain.Image{}, err
	}
	if !response.IsSuccess() {
		return domain.Image{}, upstream.ErrorForStatus(name, response.StatusCode, "")
	}

	contentType, err := imageContentType(response.Header.Get("Content-Type"))
	if err != nil {
		return domain.Image{}, err
	}
	span.SetAttributes(
		attribute.String("content_type", contentType),
		attribute.Int("size", len(response.Body)),
	)

	return domain.Image{
		ContentType: contentType,
		Data:        response.Body,
	}, nil
}

// SVG can carry script, so only raster formats are relayed
func imageContentType(header string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("%w: invalid content type '%.50s'", domain.ErrUpstreamFailure, header)
	}
	if !strings.HasPrefix(mediaType, "image/") || mediaType == "image/svg+xml" {
		return "", fmt.Errorf("%w: not an image: %.50s", domain.ErrUpstreamFailure, mediaType)
	}
	return mediaType, nil
}
