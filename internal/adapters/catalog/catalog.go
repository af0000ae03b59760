package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/reporting"
)

type Catalog interface {
	Name() string

	Search(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, error)
	Top(ctx context.Context, query domain.TopQuery) (domain.MediaPage, error)
	Season(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, error)
	Detail(ctx context.Context, query domain.DetailQuery) (domain.Media, error)
	Characters(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, request upstream.Request) (upstream.Response, error)
}

func reportMalformed(ctx context.Context, err error, response upstream.Response) {
	reporting.Report(ctx, err, map[string]string{
		"status": strconv.Itoa(response.StatusCode),
		"data":   truncate(string(response.Body), 1000),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func nonNilGenres(genres []string) []string {
	if genres == nil {
		return []string{}
	}
	return genres
}

// canonicalFormat maps catalog-specific media formats to the canonical enum
func canonicalFormat(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "TV":
		return domain.FormatTV
	case "TV_SHORT":
		return domain.FormatTVShort
	case "MOVIE":
		return domain.FormatMovie
	case "SPECIAL", "TV SPECIAL", "CM", "PV":
		return domain.FormatSpecial
	case "OVA":
		return domain.FormatOVA
	case "ONA":
		return domain.FormatONA
	case "MUSIC":
		return domain.FormatMusic
	case "MANGA", "MANHWA", "MANHUA", "DOUJINSHI":
		return domain.FormatManga
	case "NOVEL", "LIGHT NOVEL":
		return domain.FormatNovel
	case "ONE_SHOT", "ONE-SHOT":
		return domain.FormatOneShot
	default:
		return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "_")
	}
}

// canonicalStatus maps catalog-specific release statuses to the canonical enum
func canonicalStatus(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "FINISHED", "FINISHED AIRING":
		return domain.StatusFinished
	case "RELEASING", "CURRENTLY AIRING", "PUBLISHING":
		return domain.StatusReleasing
	case "NOT_YET_RELEASED", "NOT YET AIRED", "NOT YET PUBLISHED":
		return domain.StatusNotYetReleased
	case "CANCELLED", "DISCONTINUED":
		return domain.StatusCancelled
	case "HIATUS", "ON HIATUS":
		return domain.StatusHiatus
	default:
		return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "_")
	}
}
