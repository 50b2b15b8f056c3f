package store

import (
	"context"
	"fmt"
)

const monitorColumns = `id, user_id, keyword, platforms, active, result_count, created_at`

func scanMonitor(row rowScanner) (SocialMonitor, error) {
	var (
		item      SocialMonitor
		platforms []byte
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.Keyword, &platforms, &item.Active, &item.ResultCount, &item.CreatedAt); err != nil {
		return SocialMonitor{}, err
	}
	if err := decodeJSON(platforms, &item.Platforms); err != nil {
		return SocialMonitor{}, fmt.Errorf("decode platforms: %w", err)
	}
	if item.Platforms == nil {
		item.Platforms = []string{}
	}
	return item, nil
}

func (s *PostgresStore) ListMonitors(ctx context.Context, userID string) ([]SocialMonitor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+monitorColumns+` FROM social_monitors WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	items := make([]SocialMonitor, 0)
	for rows.Next() {
		item, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitors: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetMonitor(ctx context.Context, userID, monitorID string) (SocialMonitor, error) {
	return scanMonitor(s.db.QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM social_monitors WHERE id=$1 AND user_id=$2`, monitorID, userID))
}

func (s *PostgresStore) InsertMonitor(ctx context.Context, monitor SocialMonitor) (SocialMonitor, error) {
	platforms, err := encodeJSON(monitor.Platforms)
	if err != nil {
		return SocialMonitor{}, fmt.Errorf("encode platforms: %w", err)
	}
	created, err := scanMonitor(s.db.QueryRowContext(ctx, `
		INSERT INTO social_monitors (id, user_id, keyword, platforms, active)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		RETURNING `+monitorColumns,
		monitor.ID, monitor.UserID, monitor.Keyword, platforms, monitor.Active,
	))
	if err != nil {
		return SocialMonitor{}, fmt.Errorf("insert monitor: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) DeleteMonitor(ctx context.Context, userID, monitorID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM social_monitors WHERE id=$1 AND user_id=$2`, monitorID, userID)
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	return expectAffected(result, "delete monitor")
}

// InsertResults stores results for a monitor and resyncs result_count with the
// live row count. It returns the new count.
func (s *PostgresStore) InsertResults(ctx context.Context, monitorID string, results []SocialResult) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert results: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, result := range results {
		author, err := encodeJSON(result.Author)
		if err != nil {
			return 0, fmt.Errorf("encode author: %w", err)
		}
		engagement, err := encodeJSON(result.Engagement)
		if err != nil {
			return 0, fmt.Errorf("encode engagement: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO social_results (id, monitor_id, platform, author, content, url, engagement, sentiment, found_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7::jsonb, $8, $9)
		`, result.ID, monitorID, result.Platform, author, result.Content, result.URL, engagement, result.Sentiment, result.FoundAt); err != nil {
			return 0, fmt.Errorf("insert social result: %w", err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		UPDATE social_monitors
		SET result_count = (SELECT COUNT(*) FROM social_results WHERE monitor_id=$1)
		WHERE id=$1
		RETURNING result_count
	`, monitorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("sync result count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit social results: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter SocialResultFilter) ([]SocialResult, error) {
	var w where
	w.add("monitor_id = ?", filter.MonitorID)
	if filter.Platform != "" {
		w.add("platform = ?", filter.Platform)
	}
	if filter.Sentiment != "" {
		w.add("sentiment = ?", filter.Sentiment)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, monitor_id, platform, author, content, url, engagement, sentiment, found_at
		FROM social_results ` + w.String() + `
		ORDER BY found_at DESC
		LIMIT ` + w.next(limit)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list social results: %w", err)
	}
	defer rows.Close()

	items := make([]SocialResult, 0)
	for rows.Next() {
		var (
			item       SocialResult
			author     []byte
			engagement []byte
		)
		if err := rows.Scan(&item.ID, &item.MonitorID, &item.Platform, &author, &item.Content, &item.URL, &engagement, &item.Sentiment, &item.FoundAt); err != nil {
			return nil, fmt.Errorf("scan social result: %w", err)
		}
		if err := decodeJSON(author, &item.Author); err != nil {
			return nil, fmt.Errorf("decode author: %w", err)
		}
		if err := decodeJSON(engagement, &item.Engagement); err != nil {
			return nil, fmt.Errorf("decode engagement: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social results: %w", err)
	}
	return items, nil
}
