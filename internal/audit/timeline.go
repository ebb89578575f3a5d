// Package audit reads back the ledger audit trail as a per-user activity
// timeline.
package audit

import "time"

// TimelineFilters narrows the timeline. ActorID is always set by callers
// so a user only sees their own activity.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  string         `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo carries simple page navigation.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// Query is the storage level request: filters plus a window. A zero Limit
// returns every matching row.
type Query struct {
	From    time.Time
	To      time.Time
	ActorID string
	Entity  string
	Action  string
	Offset  int
	Limit   int
}

func (q Query) matches(row TimelineRow) bool {
	if q.ActorID != "" && row.ActorID != q.ActorID {
		return false
	}
	if q.Entity != "" && row.Entity != q.Entity {
		return false
	}
	if q.Action != "" && row.Action != q.Action {
		return false
	}
	if !q.From.IsZero() && row.At.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !row.At.Before(q.To) {
		return false
	}
	return true
}
