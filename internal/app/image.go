package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
)

const imageFetchTimeout = 30 * time.Second

type GetImage func(ctx context.Context, imageURL string) (domain.Image, cache.Status, error)

type imageRelay interface {
	CanonicalURL(imageURL string) (string, error)
	Fetch(ctx context.Context, imageURL string) (domain.Image, error)
}

func BuildGetImageWithCache(imagesCache *cache.Cache[domain.Image], relay imageRelay) GetImage {
	return func(ctx context.Context, imageURL string) (domain.Image, cache.Status, error) {
		canonical, err := relay.CanonicalURL(imageURL)
		if err != nil {
			return domain.Image{}, "", err
		}

		return cache.GetOrRefresh(ctx, imagesCache, cache.BuildKey("image", map[string]any{"url": canonical}), func(ctx context.Context) (domain.Image, error) {
			ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
			defer cancel()

			image, err := relay.Fetch(ctx, canonical)
			if err != nil {
				return domain.Image{}, fmt.Errorf("could not relay image: %w", err)
			}
			return image, nil
		})
	}
}
