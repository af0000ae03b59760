package domain

import (
	"fmt"
	"slices"
	"strings"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 50
	MaxQueryLength = 100
	MinYear        = 1900
	MaxYear        = 2100
)

type Operation string

const (
	OperationSearch     Operation = "search"
	OperationTop        Operation = "top"
	OperationSeason     Operation = "season"
	OperationDetail     Operation = "detail"
	OperationCharacters Operation = "characters"
)

var Operations = []Operation{
	OperationSearch,
	OperationTop,
	OperationSeason,
	OperationDetail,
	OperationCharacters,
}

func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(Operations, op) {
		return "", fmt.Errorf("unknown operation '%s'", raw)
	}
	return op, nil
}

type Paging struct {
	Page    int
	PerPage int
}

// Normalized fills in defaults
func (p Paging) Normalized() Paging {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	return p
}

func (p Paging) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be positive", ErrInvalidQuery)
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return fmt.Errorf("%w: perPage must be between 1 and %d", ErrInvalidQuery, MaxPerPage)
	}
	return nil
}

type SearchFilters struct {
	Genres []string
	Format string
	Status string
	Year   int
}

type SearchQuery struct {
	Type    MediaType
	Query   string
	Filters SearchFilters
	Paging
}

func (q SearchQuery) Validate() error {
	if err := validateType(q.Type); err != nil {
		return err
	}
	if len(q.Query) > MaxQueryLength {
		return fmt.Errorf("%w: query too long", ErrInvalidQuery)
	}
	if q.Query == "" && len(q.Filters.Genres) == 0 && q.Filters.Format == "" && q.Filters.Status == "" && q.Filters.Year == 0 {
		return fmt.Errorf("%w: empty search", ErrInvalidQuery)
	}
	if q.Filters.Format != "" && !slices.Contains(Formats, q.Filters.Format) {
		return fmt.Errorf("%w: unknown format '%.20s'", ErrInvalidQuery, q.Filters.Format)
	}
	if q.Filters.Status != "" && !slices.Contains(Statuses, q.Filters.Status) {
		return fmt.Errorf("%w: unknown status '%.20s'", ErrInvalidQuery, q.Filters.Status)
	}
	if q.Filters.Year != 0 {
		if err := validateYear(q.Filters.Year); err != nil {
			return err
		}
	}
	return q.Paging.Validate()
}

type TopQuery struct {
	Type MediaType
	Paging
}

func (q TopQuery) Validate() error {
	if err := validateType(q.Type); err != nil {
		return err
	}
	return q.Paging.Validate()
}

type SeasonQuery struct {
	Type   MediaType
	Year   int
	Season Season
	Paging
}

func (q SeasonQuery) Validate() error {
	if err := validateType(q.Type); err != nil {
		return err
	}
	if err := validateYear(q.Year); err != nil {
		return err
	}
	if _, err := ParseSeason(string(q.Season)); err != nil {
		return err
	}
	return q.Paging.Validate()
}

type DetailQuery struct {
	Type MediaType
	ID   int
}

func (q DetailQuery) Validate() error {
	if err := validateType(q.Type); err != nil {
		return err
	}
	if q.ID < 1 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidQuery)
	}
	return nil
}

type CharactersQuery struct {
	Type MediaType
	ID   int
	Paging
}

func (q CharactersQuery) Validate() error {
	if err := (DetailQuery{Type: q.Type, ID: q.ID}).Validate(); err != nil {
		return err
	}
	return q.Paging.Validate()
}

func validateType(t MediaType) error {
	_, err := ParseMediaType(string(t))
	return err
}

func validateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: year must be between %d and %d", ErrInvalidQuery, MinYear, MaxYear)
	}
	return nil
}
