package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
)

type aniListEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []aniListError  `json:"errors"`
}

type aniListError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// aniListStatus is the status of the first reported GraphQL error, which may differ from the http status
func aniListStatus(response upstream.Response) int {
	var envelope aniListEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err != nil || len(envelope.Errors) == 0 || envelope.Errors[0].Status == 0 {
		return response.StatusCode
	}
	return envelope.Errors[0].Status
}

// checkAniListResponse returns the data payload of a GraphQL response.
// Any reported error fails the call, also when the HTTP status is 200.
func checkAniListResponse(response upstream.Response) (json.RawMessage, error) {
	var envelope aniListEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err != nil {
		if !response.IsSuccess() {
			return nil, upstream.ErrorForStatus(AniListName, response.StatusCode, "")
		}
		return nil, fmt.Errorf("%w: failed to parse %s response: %w", domain.ErrUpstreamFailure, AniListName, err)
	}

	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		status := first.Status
		if status == 0 {
			status = response.StatusCode
		}
		return nil, upstream.ErrorForStatus(AniListName, status, first.Message)
	}

	if !response.IsSuccess() {
		return nil, upstream.ErrorForStatus(AniListName, response.StatusCode, "")
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("%w: %s response is missing data", domain.ErrUpstreamFailure, AniListName)
	}

	return envelope.Data, nil
}

func isMalformed(err error) bool {
	return errors.Is(err, domain.ErrUpstreamFailure)
}

type aniListMedia struct {
	ID    int  `json:"id"`
	IDMal *int `json:"idMal"`
	Title struct {
		Romaji  *string `json:"romaji"`
		English *string `json:"english"`
		Native  *string `json:"native"`
	} `json:"title"`
	CoverImage struct {
		ExtraLarge *string `json:"extraLarge"`
		Large      *string `json:"large"`
	} `json:"coverImage"`
	BannerImage  *string  `json:"bannerImage"`
	Genres       []string `json:"genres"`
	AverageScore *int     `json:"averageScore"`
	Format       *string  `json:"format"`
	Episodes     *int     `json:"episodes"`
	Chapters     *int     `json:"chapters"`
	Volumes      *int     `json:"volumes"`
	Status       *string  `json:"status"`
	Season       *string  `json:"season"`
	SeasonYear   *int     `json:"seasonYear"`
	StartDate    struct {
		Year *int `json:"year"`
	} `json:"startDate"`
	Description *string `json:"description"`
	Trailer     *struct {
		ID   *string `json:"id"`
		Site *string `json:"site"`
	} `json:"trailer"`
}

func deref[T any](value *T) T {
	if value == nil {
		var empty T
		return empty
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func (m aniListMedia) toDomain(mediaType domain.MediaType) domain.Media {
	media := domain.Media{
		ID:        deref(m.IDMal),
		AniListID: m.ID,
		Type:      mediaType,

		Title:        firstNonEmpty(deref(m.Title.Romaji), deref(m.Title.English), deref(m.Title.Native)),
		TitleEnglish: deref(m.Title.English),
		TitleNative:  deref(m.Title.Native),
		Synopsis:     strings.TrimSpace(deref(m.Description)),

		CoverImage:  firstNonEmpty(deref(m.CoverImage.ExtraLarge), deref(m.CoverImage.Large)),
		BannerImage: deref(m.BannerImage),
		Genres:      nonNilGenres(m.Genres),

		Format: canonicalFormat(deref(m.Format)),
		Status: canonicalStatus(deref(m.Status)),

		Year: firstNonZero(deref(m.SeasonYear), deref(m.StartDate.Year)),
	}

	if m.AverageScore != nil {
		// 0-100 -> 0-10 with one decimal
		score := float64(*m.AverageScore) / 10
		media.Score = &score
	}

	switch mediaType {
	case domain.MediaTypeAnime:
		media.Episodes = m.Episodes
	case domain.MediaTypeManga:
		media.Chapters = m.Chapters
		media.Volumes = m.Volumes
	}

	if m.Season != nil {
		if season, err := domain.ParseSeason(*m.Season); err == nil {
			media.Season = season
		}
	}

	if m.Trailer != nil {
		media.TrailerURL = domain.TrailerEmbedURL(deref(m.Trailer.Site), deref(m.Trailer.ID))
	}

	return media
}

func firstNonZero(values ...int) int {
	for _, value := range values {
		if value != 0 {
			return value
		}
	}
	return 0
}

type aniListPageInfoResponse struct {
	Total       *int  `json:"total"`
	PerPage     *int  `json:"perPage"`
	CurrentPage *int  `json:"currentPage"`
	LastPage    *int  `json:"lastPage"`
	HasNextPage *bool `json:"hasNextPage"`
}

func (p aniListPageInfoResponse) toDomain(requested domain.Paging) domain.Pagination {
	current := firstNonZero(deref(p.CurrentPage), requested.Page)
	return domain.NewPagination(
		current,
		firstNonZero(deref(p.LastPage), current),
		firstNonZero(deref(p.PerPage), requested.PerPage),
		deref(p.Total),
		p.HasNextPage,
	)
}

type aniListCharacterEdge struct {
	Role *string `json:"role"`
	Node struct {
		ID   int `json:"id"`
		Name struct {
			Full *string `json:"full"`
		} `json:"name"`
		Image struct {
			Large *string `json:"large"`
		} `json:"image"`
	} `json:"node"`
}

func (e aniListCharacterEdge) toDomain() domain.Character {
	return domain.Character{
		ID:    e.Node.ID,
		Name:  deref(e.Node.Name.Full),
		Image: deref(e.Node.Image.Large),
		Role:  strings.ToUpper(deref(e.Role)),
	}
}
