package audit

import (
	"context"
	"errors"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// ErrMissingActor rejects unscoped timeline reads.
var ErrMissingActor = errors.New("audit: actor required")

// Repository reads audit rows newest first.
type Repository interface {
	Timeline(ctx context.Context, q Query) ([]TimelineRow, error)
}

// Service coordinates timeline reads.
type Service struct {
	repo Repository
}

// NewService creates an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the actor's activity.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if strings.TrimSpace(filters.ActorID) == "" {
		return Result{}, ErrMissingActor
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	q := queryOf(filters)
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize + 1

	rows, err := s.repo.Timeline(ctx, q)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if strings.TrimSpace(filters.ActorID) == "" {
		return nil, ErrMissingActor
	}
	return s.repo.Timeline(ctx, queryOf(filters))
}

func queryOf(f TimelineFilters) Query {
	return Query{
		From:    f.From,
		To:      f.To,
		ActorID: strings.TrimSpace(f.ActorID),
		Entity:  strings.TrimSpace(f.Entity),
		Action:  strings.TrimSpace(f.Action),
	}
}
