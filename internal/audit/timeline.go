package audit

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filters narrows a timeline query. Empty fields match everything.
type Filters struct {
	PrincipalID string
	Entity      string
	Effect      string
	Reason      string
	From        time.Time
	To          time.Time
	Page        int
	PageSize    int
}

// PagingInfo holds simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}

// Repository reads recorded entries.
type Repository interface {
	Window(ctx context.Context, f Filters, limit, offset int) ([]Entry, error)
}

// Service coordinates timeline reads.
type Service struct {
	repo Repository
}

// NewService builds a timeline Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of entries. It fetches one extra row to learn
// whether a next page exists.
func (s *Service) Timeline(ctx context.Context, f Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, f, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Entries: rows, Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}}, nil
}

// ExportLimit caps the number of rows in one export.
const ExportLimit = 5000

// Export returns every entry matching filters, up to ExportLimit.
func (s *Service) Export(ctx context.Context, f Filters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Window(ctx, f, ExportLimit, 0)
}
