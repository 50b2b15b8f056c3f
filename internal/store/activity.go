package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertActivity(ctx context.Context, entry ActivityEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Details)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListActivity returns newest entries first, joined to the actor's name.
func (s *PostgresStore) ListActivity(ctx context.Context, filter ActivityFilter) ([]ActivityEntry, error) {
	var w where
	if filter.UserID != "" {
		w.add("a.user_id = ?", filter.UserID)
	}
	if filter.EntityID != "" {
		w.add("a.entity_id = ?", filter.EntityID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT a.id, a.user_id, u.name, a.action, a.entity_type, a.entity_id, a.details, a.created_at
		FROM activity_log a
		LEFT JOIN users u ON u.id = a.user_id
		` + w.String() + `
		ORDER BY a.created_at DESC
		LIMIT ` + w.next(limit) + ` OFFSET ` + w.next(max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEntry, 0)
	for rows.Next() {
		var item ActivityEntry
		if err := rows.Scan(&item.ID, &item.UserID, &item.UserName, &item.Action, &item.EntityType, &item.EntityID, &item.Details, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}
