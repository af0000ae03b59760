package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Amund211/mediagate/internal/domain"
)

type jikanEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination jikanPagination `json:"pagination"`
}

type jikanErrorResponse struct {
	Status  any    `json:"status"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jikanPagination struct {
	LastVisiblePage *int  `json:"last_visible_page"`
	HasNextPage     *bool `json:"has_next_page"`
	CurrentPage     *int  `json:"current_page"`
	Items           struct {
		Count   *int `json:"count"`
		Total   *int `json:"total"`
		PerPage *int `json:"per_page"`
	} `json:"items"`
}

func (p jikanPagination) toDomain(requested domain.Paging) domain.Pagination {
	current := firstNonZero(deref(p.CurrentPage), requested.Page)
	return domain.NewPagination(
		current,
		firstNonZero(deref(p.LastVisiblePage), current),
		firstNonZero(deref(p.Items.PerPage), requested.PerPage),
		deref(p.Items.Total),
		p.HasNextPage,
	)
}

type jikanImages struct {
	JPG struct {
		ImageURL      *string `json:"image_url"`
		LargeImageURL *string `json:"large_image_url"`
	} `json:"jpg"`
}

type jikanMedia struct {
	MalID         int         `json:"mal_id"`
	Images        jikanImages `json:"images"`
	Title         *string     `json:"title"`
	TitleEnglish  *string     `json:"title_english"`
	TitleJapanese *string     `json:"title_japanese"`
	Type          *string     `json:"type"`
	Episodes      *int        `json:"episodes"`
	Chapters      *int        `json:"chapters"`
	Volumes       *int        `json:"volumes"`
	Status        *string     `json:"status"`
	Score         *float64    `json:"score"`
	Synopsis      *string     `json:"synopsis"`
	Season        *string     `json:"season"`
	Year          *int        `json:"year"`
	Published     *struct {
		From *string `json:"from"`
	} `json:"published"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Trailer *struct {
		YoutubeID *string `json:"youtube_id"`
	} `json:"trailer"`
}

func (m jikanMedia) toDomain(mediaType domain.MediaType) domain.Media {
	genres := make([]string, 0, len(m.Genres))
	for _, genre := range m.Genres {
		genres = append(genres, genre.Name)
	}

	media := domain.Media{
		ID:   m.MalID,
		Type: mediaType,

		Title:        firstNonEmpty(deref(m.Title), deref(m.TitleEnglish), deref(m.TitleJapanese)),
		TitleEnglish: deref(m.TitleEnglish),
		TitleNative:  deref(m.TitleJapanese),
		Synopsis:     strings.TrimSpace(deref(m.Synopsis)),

		CoverImage: firstNonEmpty(deref(m.Images.JPG.LargeImageURL), deref(m.Images.JPG.ImageURL)),
		Genres:     genres,

		Score:  m.Score,
		Format: canonicalFormat(deref(m.Type)),
		Status: canonicalStatus(deref(m.Status)),

		Year: deref(m.Year),
	}

	switch mediaType {
	case domain.MediaTypeAnime:
		media.Episodes = m.Episodes
	case domain.MediaTypeManga:
		media.Chapters = m.Chapters
		media.Volumes = m.Volumes
	}

	if media.Year == 0 && m.Published != nil && m.Published.From != nil {
		if published, err := time.Parse(time.RFC3339, *m.Published.From); err == nil {
			media.Year = published.Year()
		}
	}

	if m.Season != nil {
		if season, err := domain.ParseSeason(*m.Season); err == nil {
			media.Season = season
		}
	}

	if m.Trailer != nil {
		media.TrailerURL = domain.TrailerEmbedURL("youtube", deref(m.Trailer.YoutubeID))
	}

	return media
}

type jikanCharacterEntry struct {
	Character struct {
		MalID  int         `json:"mal_id"`
		Images jikanImages `json:"images"`
		Name   string      `json:"name"`
	} `json:"character"`
	Role string `json:"role"`
}

func (e jikanCharacterEntry) toDomain() domain.Character {
	return domain.Character{
		ID:    e.Character.MalID,
		Name:  e.Character.Name,
		Image: deref(e.Character.Images.JPG.ImageURL),
		Role:  strings.ToUpper(e.Role),
	}
}
