package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL timeline reader.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `SELECT occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::text IS NULL OR actor_id = $1)
  AND ($2::text IS NULL OR entity = $2)
  AND ($3::text IS NULL OR action = $3)
  AND ($4::timestamptz IS NULL OR occurred_at >= $4)
  AND ($5::timestamptz IS NULL OR occurred_at < $5)
ORDER BY occurred_at DESC, id DESC
OFFSET $6
LIMIT $7`

// Timeline returns matching rows newest first.
func (r *PGRepository) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	var limit pgtype.Int8
	if q.Limit > 0 {
		limit = pgtype.Int8{Int64: int64(q.Limit), Valid: true}
	}
	rows, err := r.pool.Query(ctx, timelineQuery,
		optionalText(q.ActorID),
		optionalText(q.Entity),
		optionalText(q.Action),
		toPgTime(q.From),
		toPgTime(q.To),
		q.Offset,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()

	out := make([]TimelineRow, 0)
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, fmt.Errorf("audit: scan timeline: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		row.At = row.At.UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
