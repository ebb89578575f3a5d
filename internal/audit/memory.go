package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pocketledger/pocketledger/internal/shared"
)

// Recorder is the write side of the audit trail.
type Recorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MemoryLog keeps audit entries in process memory and optionally forwards
// each entry to another recorder. It backs the in-memory storage mode.
type MemoryLog struct {
	mu      sync.RWMutex
	rows    []TimelineRow
	next    Recorder
	now     func() time.Time
	maxRows int
}

// NewMemoryLog returns an empty log that keeps at most maxRows entries,
// dropping the oldest first. A non-positive maxRows keeps everything.
func NewMemoryLog(next Recorder, maxRows int) *MemoryLog {
	return &MemoryLog{next: next, now: time.Now, maxRows: maxRows}
}

// Record appends the entry and forwards it.
func (m *MemoryLog) Record(ctx context.Context, log shared.AuditLog) error {
	if m.next != nil {
		if err := m.next.Record(ctx, log); err != nil {
			return err
		}
	}
	at := log.At
	if at.IsZero() {
		at = m.now()
	}
	row := TimelineRow{
		At:       at.UTC(),
		ActorID:  log.ActorID,
		Action:   log.Action,
		Entity:   log.Entity,
		EntityID: log.EntityID,
		Meta:     log.Meta,
	}
	m.mu.Lock()
	m.rows = append(m.rows, row)
	if m.maxRows > 0 && len(m.rows) > m.maxRows {
		m.rows = append([]TimelineRow(nil), m.rows[len(m.rows)-m.maxRows:]...)
	}
	m.mu.Unlock()
	return nil
}

// Timeline returns matching rows newest first.
func (m *MemoryLog) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	matched := make([]TimelineRow, 0)
	for i := len(m.rows) - 1; i >= 0; i-- {
		if q.matches(m.rows[i]) {
			matched = append(matched, m.rows[i])
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].At.After(matched[j].At) })

	if q.Offset >= len(matched) {
		return []TimelineRow{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}
