package store

import (
	"context"
	"fmt"
)

const leadColumns = `id, user_id, name, email, phone, company, position, status, source, score, social_profiles, tags, address, website, place_id, notes_count, created_at, updated_at`

func scanLead(row rowScanner) (Lead, error) {
	var (
		item     Lead
		profiles []byte
		tags     []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Name,
		&item.Email,
		&item.Phone,
		&item.Company,
		&item.Position,
		&item.Status,
		&item.Source,
		&item.Score,
		&profiles,
		&tags,
		&item.Address,
		&item.Website,
		&item.PlaceID,
		&item.NotesCount,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return Lead{}, err
	}
	if err := decodeJSON(profiles, &item.SocialProfiles); err != nil {
		return Lead{}, fmt.Errorf("decode social profiles: %w", err)
	}
	if err := decodeJSON(tags, &item.Tags); err != nil {
		return Lead{}, fmt.Errorf("decode tags: %w", err)
	}
	if item.SocialProfiles == nil {
		item.SocialProfiles = map[string]string{}
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	return item, nil
}

func (s *PostgresStore) queryLeads(ctx context.Context, query string, args ...any) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		item, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return items, nil
}

// ListLeads returns leads ordered by most recently updated. An empty UserID
// lists every tenant's leads.
func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]Lead, error) {
	var w where
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Source != "" {
		w.add("source = ?", filter.Source)
	}
	leadSearch(&w, filter.Search, filter.IDs)
	return s.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads `+w.String()+` ORDER BY updated_at DESC`, w.args...)
}

// leadSearch adds the case-insensitive substring match on name, email and
// company. Index hits in ids are accepted alongside it.
func leadSearch(w *where, search string, ids []string) {
	if search == "" {
		return
	}
	pattern := likePattern(search)
	match := "name ILIKE ? OR COALESCE(email, '') ILIKE ? OR COALESCE(company, '') ILIKE ?"
	if len(ids) == 0 {
		w.add("("+match+")", pattern, pattern, pattern)
		return
	}
	w.add("(id = ANY(?) OR "+match+")", ids, pattern, pattern, pattern)
}

func (s *PostgresStore) RecentLeads(ctx context.Context, userID string, limit int) ([]Lead, error) {
	return s.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

// LeadCounts groups leads by column ("status" or "source"). An empty userID
// counts across all users.
func (s *PostgresStore) LeadCounts(ctx context.Context, userID, column string) ([]CountBucket, error) {
	if column != "status" && column != "source" {
		return nil, fmt.Errorf("lead counts: unsupported column %q", column)
	}
	var w where
	if userID != "" {
		w.add("user_id = ?", userID)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*)
		FROM leads `+w.String()+`
		GROUP BY `+column+`
		ORDER BY COUNT(*) DESC, `+column+` ASC
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("lead counts by %s: %w", column, err)
	}
	defer rows.Close()

	items := make([]CountBucket, 0)
	for rows.Next() {
		var item CountBucket
		if err := rows.Scan(&item.Key, &item.Count); err != nil {
			return nil, fmt.Errorf("scan lead count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead counts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, userID, leadID string) (Lead, error) {
	return scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1 AND user_id=$2`, leadID, userID))
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead Lead) (Lead, error) {
	profiles, err := encodeJSON(lead.SocialProfiles)
	if err != nil {
		return Lead{}, fmt.Errorf("encode social profiles: %w", err)
	}
	tags, err := encodeJSON(lead.Tags)
	if err != nil {
		return Lead{}, fmt.Errorf("encode tags: %w", err)
	}
	created, err := scanLead(s.db.QueryRowContext(ctx, `
		INSERT INTO leads (id, user_id, name, email, phone, company, position, status, source, score, social_profiles, tags, address, website, place_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13, $14, $15)
		RETURNING `+leadColumns,
		lead.ID, lead.UserID, lead.Name, lead.Email, lead.Phone, lead.Company, lead.Position,
		lead.Status, lead.Source, lead.Score, profiles, tags, lead.Address, lead.Website, lead.PlaceID,
	))
	if err != nil {
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

// UpdateLead writes every mutable column of an owned lead and refreshes
// updated_at. A lead not owned by lead.UserID yields sql.ErrNoRows.
func (s *PostgresStore) UpdateLead(ctx context.Context, lead Lead) (Lead, error) {
	profiles, err := encodeJSON(lead.SocialProfiles)
	if err != nil {
		return Lead{}, fmt.Errorf("encode social profiles: %w", err)
	}
	tags, err := encodeJSON(lead.Tags)
	if err != nil {
		return Lead{}, fmt.Errorf("encode tags: %w", err)
	}
	return scanLead(s.db.QueryRowContext(ctx, `
		UPDATE leads
		SET name=$3, email=$4, phone=$5, company=$6, position=$7, status=$8, source=$9, score=$10,
			social_profiles=$11::jsonb, tags=$12::jsonb, address=$13, website=$14, place_id=$15, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING `+leadColumns,
		lead.ID, lead.UserID, lead.Name, lead.Email, lead.Phone, lead.Company, lead.Position,
		lead.Status, lead.Source, lead.Score, profiles, tags, lead.Address, lead.Website, lead.PlaceID,
	))
}

func (s *PostgresStore) UpdateLeadScore(ctx context.Context, userID, leadID string, score int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE leads SET score=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2`, leadID, userID, score)
	if err != nil {
		return fmt.Errorf("update lead score: %w", err)
	}
	return expectAffected(result, "update lead score")
}

// AdjustNotesCount shifts a lead's notes_count by delta without going below zero.
func (s *PostgresStore) AdjustNotesCount(ctx context.Context, leadID string, delta int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE leads SET notes_count=GREATEST(notes_count + $2, 0) WHERE id=$1`, leadID, delta)
	if err != nil {
		return fmt.Errorf("adjust notes count: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteLead(ctx context.Context, userID, leadID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id=$1 AND user_id=$2`, leadID, userID)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return expectAffected(result, "delete lead")
}
