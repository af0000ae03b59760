package app

import (
	"time"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
)

const catalogGrace = 15 * time.Minute

// Caches holds one store per logical cache, so a burst in one never evicts another
type Caches struct {
	Search     *cache.Cache[domain.MediaPage]
	Top        *cache.Cache[domain.MediaPage]
	Season     *cache.Cache[domain.MediaPage]
	Detail     *cache.Cache[domain.Media]
	Characters *cache.Cache[domain.CharacterPage]
	LastPage   *cache.Cache[int]
	CrossRef   *cache.Cache[int]
	News       *cache.Cache[[]domain.NewsItem]
	Articles   *cache.Cache[domain.Article]
	Images     *cache.Cache[domain.Image]
}

func NewCaches(nowFunc func() time.Time) Caches {
	return Caches{
		Search:     cache.New[domain.MediaPage](cache.StoreConfig{Name: "search", Capacity: 500, TTL: 10 * time.Minute, Grace: catalogGrace}, nowFunc),
		Top:        cache.New[domain.MediaPage](cache.StoreConfig{Name: "top", Capacity: 100, TTL: time.Hour, Grace: catalogGrace}, nowFunc),
		Season:     cache.New[domain.MediaPage](cache.StoreConfig{Name: "season", Capacity: 200, TTL: 30 * time.Minute, Grace: catalogGrace}, nowFunc),
		Detail:     cache.New[domain.Media](cache.StoreConfig{Name: "detail", Capacity: 1000, TTL: 6 * time.Hour, Grace: catalogGrace}, nowFunc),
		Characters: cache.New[domain.CharacterPage](cache.StoreConfig{Name: "characters", Capacity: 500, TTL: 6 * time.Hour, Grace: catalogGrace}, nowFunc),
		LastPage:   cache.New[int](cache.StoreConfig{Name: "lastPage", Capacity: 200, TTL: 12 * time.Hour, Grace: catalogGrace}, nowFunc),
		CrossRef:   cache.New[int](cache.StoreConfig{Name: "crossref", Capacity: 2000, TTL: 24 * time.Hour, Grace: catalogGrace}, nowFunc),
		News:       cache.New[[]domain.NewsItem](cache.StoreConfig{Name: "news", Capacity: 10, TTL: 10 * time.Minute, Grace: 5 * time.Minute}, nowFunc),
		Articles:   cache.New[domain.Article](cache.StoreConfig{Name: "articles", Capacity: 200, TTL: 6 * time.Hour}, nowFunc),
		Images:     cache.New[domain.Image](cache.StoreConfig{Name: "images", Capacity: 300, TTL: 24 * time.Hour}, nowFunc),
	}
}
