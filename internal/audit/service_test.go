package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pocketledger/pocketledger/internal/shared"
)

func seedLog(t *testing.T, entries int) *MemoryLog {
	t.Helper()
	log := NewMemoryLog(nil, 0)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < entries; i++ {
		action := "transaction.register"
		if i%2 == 1 {
			action = "account.create"
		}
		require.NoError(t, log.Record(context.Background(), shared.AuditLog{
			ActorID:  "u1",
			Action:   action,
			Entity:   "transaction",
			EntityID: "t" + string(rune('a'+i)),
			At:       base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, log.Record(context.Background(), shared.AuditLog{
		ActorID: "u2", Action: "account.create", Entity: "account", EntityID: "a9", At: base,
	}))
	return log
}

func TestTimelinePagingNewestFirst(t *testing.T) {
	svc := NewService(seedLog(t, 5))
	ctx := context.Background()

	first, err := svc.Timeline(ctx, TimelineFilters{ActorID: "u1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Rows, 2)
	require.Equal(t, "te", first.Rows[0].EntityID)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	last, err := svc.Timeline(ctx, TimelineFilters{ActorID: "u1", PageSize: 2, Page: 3})
	require.NoError(t, err)
	require.Len(t, last.Rows, 1)
	require.Equal(t, "ta", last.Rows[0].EntityID)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)

	beyond, err := svc.Timeline(ctx, TimelineFilters{ActorID: "u1", PageSize: 2, Page: 9})
	require.NoError(t, err)
	require.NotNil(t, beyond.Rows)
	require.Empty(t, beyond.Rows)
}

func TestTimelineFiltersAndScoping(t *testing.T) {
	svc := NewService(seedLog(t, 4))
	ctx := context.Background()

	res, err := svc.Timeline(ctx, TimelineFilters{ActorID: "u1", Action: "account.create"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		require.Equal(t, "u1", row.ActorID)
	}

	from := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	res, err = svc.Timeline(ctx, TimelineFilters{ActorID: "u1", From: from, To: to})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	res, err = svc.Timeline(ctx, TimelineFilters{ActorID: "u1", PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, res.Paging.PageSize)

	_, err = svc.Timeline(ctx, TimelineFilters{})
	require.ErrorIs(t, err, ErrMissingActor)
	_, err = svc.Export(ctx, TimelineFilters{ActorID: " "})
	require.ErrorIs(t, err, ErrMissingActor)
}

type countingRecorder struct{ calls int }

func (c *countingRecorder) Record(context.Context, shared.AuditLog) error {
	c.calls++
	return nil
}

func TestMemoryLogForwardsAndCaps(t *testing.T) {
	next := &countingRecorder{}
	log := NewMemoryLog(next, 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, log.Record(ctx, shared.AuditLog{ActorID: "u1", Action: "account.create", Entity: "account", EntityID: id}))
	}
	require.Equal(t, 3, next.calls)

	rows, err := log.Timeline(ctx, Query{ActorID: "u1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.ElementsMatch(t, []string{"b", "c"}, []string{rows[0].EntityID, rows[1].EntityID})
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{{
		At:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Action:   "transaction.edit",
		Entity:   "transaction",
		EntityID: "t1",
		Meta:     map[string]any{"amount": "12.50"},
	}}
	raw, err := WriteCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{"At", "Action", "Entity", "EntityID", "Meta"}, records[0])
	require.Equal(t, "2024-03-01T12:00:00Z", records[1][0])
	require.JSONEq(t, `{"amount":"12.50"}`, records[1][4])
}
