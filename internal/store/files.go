package store

import (
	"context"
	"fmt"
)

const fileSelect = `
	SELECT f.id, f.user_id, f.lead_id, l.name, f.original_name, f.stored_name, f.mime_type, f.size, f.created_at
	FROM files f
	LEFT JOIN leads l ON l.id = f.lead_id
`

func scanFile(row rowScanner) (File, error) {
	var item File
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.LeadID,
		&item.LeadName,
		&item.OriginalName,
		&item.StoredName,
		&item.MimeType,
		&item.Size,
		&item.CreatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListFiles(ctx context.Context, filter FileFilter) ([]File, error) {
	var w where
	w.add("f.user_id = ?", filter.UserID)
	if filter.LeadID != "" {
		w.add("f.lead_id = ?", filter.LeadID)
	}
	if filter.Search != "" {
		w.add("f.original_name ILIKE ?", likePattern(filter.Search))
	}

	rows, err := s.db.QueryContext(ctx, fileSelect+w.String()+` ORDER BY f.created_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	items := make([]File, 0)
	for rows.Next() {
		item, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetFile(ctx context.Context, userID, fileID string) (File, error) {
	return scanFile(s.db.QueryRowContext(ctx, fileSelect+`WHERE f.id=$1 AND f.user_id=$2`, fileID, userID))
}

func (s *PostgresStore) InsertFile(ctx context.Context, file File) (File, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, user_id, lead_id, original_name, stored_name, mime_type, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, file.ID, file.UserID, file.LeadID, file.OriginalName, file.StoredName, file.MimeType, file.Size)
	if err != nil {
		return File{}, fmt.Errorf("insert file: %w", err)
	}
	return s.GetFile(ctx, file.UserID, file.ID)
}

func (s *PostgresStore) SetFileLead(ctx context.Context, userID, fileID string, leadID *string) (File, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE files SET lead_id=$3 WHERE id=$1 AND user_id=$2`, fileID, userID, leadID)
	if err != nil {
		return File{}, fmt.Errorf("update file: %w", err)
	}
	if err := expectAffected(result, "update file"); err != nil {
		return File{}, err
	}
	return s.GetFile(ctx, userID, fileID)
}

func (s *PostgresStore) DeleteFile(ctx context.Context, userID, fileID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1 AND user_id=$2`, fileID, userID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return expectAffected(result, "delete file")
}
