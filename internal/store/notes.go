package store

import (
	"context"
	"fmt"
)

const noteSelect = `
	SELECT n.id, n.user_id, n.lead_id, l.name, n.title, n.content, n.color, n.pinned, n.created_at, n.updated_at
	FROM notes n
	LEFT JOIN leads l ON l.id = n.lead_id
`

func scanNote(row rowScanner) (Note, error) {
	var item Note
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.LeadID,
		&item.LeadName,
		&item.Title,
		&item.Content,
		&item.Color,
		&item.Pinned,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// ListNotes returns pinned notes first, then the most recently updated.
func (s *PostgresStore) ListNotes(ctx context.Context, filter NoteFilter) ([]Note, error) {
	var w where
	w.add("n.user_id = ?", filter.UserID)
	if filter.LeadID != "" {
		w.add("n.lead_id = ?", filter.LeadID)
	}
	if filter.PinnedOnly {
		w.add("n.pinned")
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(n.title ILIKE ? OR n.content ILIKE ?)", pattern, pattern)
	}

	rows, err := s.db.QueryContext(ctx, noteSelect+w.String()+` ORDER BY n.pinned DESC, n.updated_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		item, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, userID, noteID string) (Note, error) {
	return scanNote(s.db.QueryRowContext(ctx, noteSelect+`WHERE n.id=$1 AND n.user_id=$2`, noteID, userID))
}

func (s *PostgresStore) InsertNote(ctx context.Context, note Note) (Note, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, lead_id, title, content, color, pinned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, note.ID, note.UserID, note.LeadID, note.Title, note.Content, note.Color, note.Pinned)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return s.GetNote(ctx, note.UserID, note.ID)
}

func (s *PostgresStore) UpdateNote(ctx context.Context, note Note) (Note, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET lead_id=$3, title=$4, content=$5, color=$6, pinned=$7, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, note.ID, note.UserID, note.LeadID, note.Title, note.Content, note.Color, note.Pinned)
	if err != nil {
		return Note{}, fmt.Errorf("update note: %w", err)
	}
	if err := expectAffected(result, "update note"); err != nil {
		return Note{}, err
	}
	return s.GetNote(ctx, note.UserID, note.ID)
}

func (s *PostgresStore) DeleteNote(ctx context.Context, userID, noteID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1 AND user_id=$2`, noteID, userID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return expectAffected(result, "delete note")
}
