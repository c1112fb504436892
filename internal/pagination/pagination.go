// Package pagination parses page parameters and wraps list results.
package pagination

import (
	"math"

	"gorm.io/gorm"
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in default values when page or page_size are not provided.
func (p *PageRequest) Defaults() {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = 20
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// Fetch counts the rows matched by q, then loads the requested page. The
// scopes run only for the page query, so ordering and preloads go there.
func Fetch[T any](q *gorm.DB, req PageRequest, scopes ...func(*gorm.DB) *gorm.DB) (*PageResponse[T], error) {
	req.Defaults()

	var totalItems int64
	if err := q.Count(&totalItems).Error; err != nil {
		return nil, err
	}

	var items []T
	if err := q.Scopes(scopes...).Scopes(Paginate(req)).Find(&items).Error; err != nil {
		return nil, err
	}

	resp := NewPageResponse(items, req.Page, req.PageSize, totalItems)
	return &resp, nil
}

// OrderBy returns a scope adding each ORDER BY expression in turn.
func OrderBy(exprs ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, e := range exprs {
			db = db.Order(e)
		}
		return db
	}
}
