package helpers

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPerPage = 20
	MinPerPage     = 5
	MaxPerPage     = 100
	DefaultPage    = 1 // pages are 1-based
)

// Pagination describes one page of a filtered listing.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"perPage"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasPrev bool  `json:"hasPrev"`
	HasNext bool  `json:"hasNext"`
	PrevNum *int  `json:"prevNum"`
	NextNum *int  `json:"nextNum"`
}

// ClampPage forces a 1-based page number.
func ClampPage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	return page
}

// ClampPerPage keeps the page size inside [MinPerPage, MaxPerPage].
// Zero means "not supplied" and yields the default.
func ClampPerPage(perPage int) int {
	switch {
	case perPage == 0:
		return DefaultPerPage
	case perPage < MinPerPage:
		return MinPerPage
	case perPage > MaxPerPage:
		return MaxPerPage
	default:
		return perPage
	}
}

// CalculateOffsetLimit converts an already clamped page/perPage pair into SQL offset and limit.
// The multiplication is done in uint64 and saturates instead of wrapping.
func CalculateOffsetLimit(page, perPage int) (offset uint64, limit uint64) {
	limit = uint64(perPage)
	skipped := uint64(page - 1)
	if limit != 0 && skipped > math.MaxUint64/limit {
		return math.MaxUint64, limit
	}
	return skipped * limit, limit
}

// NewPagination derives the navigation metadata from the total match count.
// The requested page is kept even when it lies past the last page.
func NewPagination(total int64, page, perPage int) Pagination {
	pages := 0
	if total > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}

	p := Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasPrev: page > 1,
		HasNext: page < pages,
	}
	if p.HasPrev {
		prev := page - 1
		p.PrevNum = &prev
	}
	if p.HasNext {
		next := page + 1
		p.NextNum = &next
	}
	return p
}

// ParsePaginationParams extracts page and per_page from the query string.
// Invalid numbers are treated as absent; clamping is left to the caller.
func ParsePaginationParams(c *gin.Context) (page, perPage int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = DefaultPage
	}

	perPage, err = strconv.Atoi(c.DefaultQuery("per_page", "0"))
	if err != nil {
		perPage = 0
	}

	return page, perPage
}
