package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/infrastructure/resilience"
)

type SearchLogRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewSearchLogRepository(db *sql.DB, executor *resilience.Executor) *SearchLogRepository {
	return &SearchLogRepository{db: db, executor: executor}
}

// AppendSearchEvent is idempotent on event id so redelivered events are harmless.
func (r *SearchLogRepository) AppendSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	resultIDs, err := json.Marshal(event.ResultIDs)
	if err != nil {
		return fmt.Errorf("marshal result ids: %w", err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	call := func(callCtx context.Context) error {
		_, err := r.db.ExecContext(callCtx, `
INSERT INTO search_log (id, query, result_limit, result_ids, candidates, duplicates, duration_ms, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
			event.ID, event.Query, event.Limit, string(resultIDs), event.Candidates, event.Duplicates,
			event.DurationMS, occurredAt,
		)
		return err
	}
	if r.executor == nil {
		err = call(ctx)
	} else {
		err = r.executor.Execute(ctx, "postgres.append_search_event", call, classifyPostgresError)
	}
	if err != nil {
		return wrapUnavailable("postgres append search event", fmt.Errorf("insert search event: %w", err))
	}
	return nil
}

// RecentSearches lists the newest audit events first.
func (r *SearchLogRepository) RecentSearches(ctx context.Context, limit int) ([]domain.SearchEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, query, result_limit, result_ids, candidates, duplicates, duration_ms, occurred_at
FROM search_log
ORDER BY occurred_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query search log: %w", err)
	}
	defer rows.Close()

	events := make([]domain.SearchEvent, 0, limit)
	for rows.Next() {
		var event domain.SearchEvent
		var resultIDs []byte
		if err := rows.Scan(
			&event.ID, &event.Query, &event.Limit, &resultIDs, &event.Candidates, &event.Duplicates,
			&event.DurationMS, &event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan search event: %w", err)
		}
		if err := json.Unmarshal(resultIDs, &event.ResultIDs); err != nil {
			return nil, fmt.Errorf("unmarshal result ids: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search log: %w", err)
	}
	return events, nil
}
