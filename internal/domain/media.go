package domain

import (
	"fmt"
	"strings"
)

type MediaType string

const (
	MediaTypeAnime MediaType = "anime"
	MediaTypeManga MediaType = "manga"
)

func ParseMediaType(raw string) (MediaType, error) {
	switch strings.ToLower(raw) {
	case string(MediaTypeAnime):
		return MediaTypeAnime, nil
	case string(MediaTypeManga):
		return MediaTypeManga, nil
	default:
		return "", fmt.Errorf("%w: unknown media type '%.20s'", ErrInvalidQuery, raw)
	}
}

type Season string

const (
	SeasonWinter Season = "WINTER"
	SeasonSpring Season = "SPRING"
	SeasonSummer Season = "SUMMER"
	SeasonFall   Season = "FALL"
)

func ParseSeason(raw string) (Season, error) {
	switch strings.ToUpper(raw) {
	case string(SeasonWinter):
		return SeasonWinter, nil
	case string(SeasonSpring):
		return SeasonSpring, nil
	case string(SeasonSummer):
		return SeasonSummer, nil
	case string(SeasonFall), "AUTUMN":
		return SeasonFall, nil
	default:
		return "", fmt.Errorf("%w: unknown season '%.20s'", ErrInvalidQuery, raw)
	}
}

// Months returns the first and last month (1-12) of the season
func (s Season) Months() (int, int) {
	switch s {
	case SeasonWinter:
		return 1, 3
	case SeasonSpring:
		return 4, 6
	case SeasonSummer:
		return 7, 9
	case SeasonFall:
		return 10, 12
	default:
		panic(fmt.Sprintf("invalid season %q", string(s)))
	}
}

// Canonical format and status values, shared by every catalog
const (
	FormatTV      = "TV"
	FormatTVShort = "TV_SHORT"
	FormatMovie   = "MOVIE"
	FormatSpecial = "SPECIAL"
	FormatOVA     = "OVA"
	FormatONA     = "ONA"
	FormatMusic   = "MUSIC"
	FormatManga   = "MANGA"
	FormatNovel   = "NOVEL"
	FormatOneShot = "ONE_SHOT"

	StatusFinished       = "FINISHED"
	StatusReleasing      = "RELEASING"
	StatusNotYetReleased = "NOT_YET_RELEASED"
	StatusCancelled      = "CANCELLED"
	StatusHiatus         = "HIATUS"
)

var Formats = []string{
	FormatTV, FormatTVShort, FormatMovie, FormatSpecial, FormatOVA, FormatONA, FormatMusic,
	FormatManga, FormatNovel, FormatOneShot,
}

var Statuses = []string{
	StatusFinished, StatusReleasing, StatusNotYetReleased, StatusCancelled, StatusHiatus,
}

// Media is the canonical record returned to clients, independent of which catalog answered
type Media struct {
	// MyAnimeList id, shared by both catalogs. Zero when the catalog does not know it.
	ID        int       `json:"id,omitempty"`
	AniListID int       `json:"anilistId,omitempty"`
	Type      MediaType `json:"type"`

	Title        string `json:"title"`
	TitleEnglish string `json:"titleEnglish,omitempty"`
	TitleNative  string `json:"titleNative,omitempty"`
	Synopsis     string `json:"synopsis,omitempty"`

	CoverImage  string   `json:"coverImage,omitempty"`
	BannerImage string   `json:"bannerImage,omitempty"`
	Genres      []string `json:"genres"`

	// 0-10
	Score  *float64 `json:"score"`
	Format string   `json:"format,omitempty"`
	Status string   `json:"status,omitempty"`

	// Only set for anime
	Episodes *int `json:"episodes,omitempty"`
	// Only set for manga
	Chapters *int `json:"chapters,omitempty"`
	Volumes  *int `json:"volumes,omitempty"`

	Season Season `json:"season,omitempty"`
	Year   int    `json:"year,omitempty"`

	TrailerURL string `json:"trailerUrl,omitempty"`
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
	Total       int  `json:"total"`
}

// NewPagination fills in the derived fields for catalogs that don't report them
func NewPagination(currentPage, lastPage, perPage, total int, hasNextPage *bool) Pagination {
	if currentPage < 1 {
		currentPage = 1
	}
	if lastPage < currentPage {
		lastPage = currentPage
	}

	next := currentPage < lastPage
	if hasNextPage != nil {
		next = *hasNextPage
	}

	return Pagination{
		CurrentPage: currentPage,
		LastPage:    lastPage,
		HasNextPage: next,
		PerPage:     perPage,
		Total:       total,
	}
}

// WithLastPage replaces the last page, re-deriving HasNextPage
func (p Pagination) WithLastPage(lastPage int) Pagination {
	if lastPage < 1 {
		lastPage = 1
	}
	p.LastPage = lastPage
	p.HasNextPage = p.CurrentPage < lastPage
	if p.PerPage > 0 {
		p.Total = lastPage * p.PerPage
	}
	return p
}

type MediaPage struct {
	Items      []Media    `json:"items"`
	Pagination Pagination `json:"pagination"`

	// Set when the catalog is known to report inflated totals for this listing
	EstimatedTotals bool `json:"-"`
}

type Character struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role,omitempty"`
}

type CharacterPage struct {
	Items      []Character `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// TrailerEmbedURL synthesizes an embeddable player url from a video site and id
func TrailerEmbedURL(site, id string) string {
	if id == "" {
		return ""
	}
	switch strings.ToLower(site) {
	case "youtube":
		return fmt.Sprintf("https://www.youtube.com/embed/%s", id)
	case "dailymotion":
		return fmt.Sprintf("https://www.dailymotion.com/embed/video/%s", id)
	default:
		return ""
	}
}
