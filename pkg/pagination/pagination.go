package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page at the default size.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: DefaultPerPage,
		Offset:  0,
	}
}

// FromRequest reads page and per_page from the query string. Missing values
// take the defaults; per_page above MaxPerPage is clamped. Values that are
// not positive integers are an error.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer, got %q", raw)
		}
		p.Page = v
	}

	if raw := q.Get("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return Params{}, fmt.Errorf("per_page must be a positive integer, got %q", raw)
		}
		p.PerPage = min(v, MaxPerPage)
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p, nil
}

// FetchLimit is the number of rows to ask the store for: one more than the
// page size, so HasNext can be known without a count query.
func (p Params) FetchLimit() int {
	return p.PerPage + 1
}

// Result wraps one page of a listing.
type Result[T any] struct {
	Data    []T  `json:"data"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewResult builds a page from rows fetched with FetchLimit, dropping the
// look-ahead row.
func NewResult[T any](rows []T, params Params) Result[T] {
	hasNext := len(rows) > params.PerPage
	if hasNext {
		rows = rows[:params.PerPage]
	}
	if rows == nil {
		rows = []T{}
	}

	return Result[T]{
		Data:    rows,
		Page:    params.Page,
		PerPage: params.PerPage,
		HasNext: hasNext,
		HasPrev: params.Page > 1,
	}
}
