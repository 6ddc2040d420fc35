package persistence

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListFilter narrows and pages an operator listing of families or submissions.
// Zero values mean "no constraint".
type ListFilter struct {
	Status        string
	MarketplaceID string
	FamilyID      uuid.UUID
	OrderBy       string
	OrderDir      string
	Page          int
	PageSize      int
}

func (f ListFilter) limit() int {
	switch {
	case f.PageSize <= 0:
		return defaultPageSize
	case f.PageSize > maxPageSize:
		return maxPageSize
	}
	return f.PageSize
}

func (f ListFilter) offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.limit()
}

// paginate applies ordering and paging; orderBy must already be whitelisted
func (f ListFilter) paginate(q *gorm.DB, orderBy string) *gorm.DB {
	return q.Order(orderBy + " " + ValidateSortOrder(f.OrderDir)).
		Limit(f.limit()).
		Offset(f.offset())
}
