package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userColumns = `id, name, email, password_hash, role, is_owner, company, phone, created_at, updated_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsOwner,
		&user.Company,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	return user, err
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, is_owner, company, phone)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.IsOwner, user.Company, user.Phone,
	)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
}

// EmailTaken reports whether another user already uses email. excludeID may be empty.
func (s *PostgresStore) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE LOWER(email)=LOWER($1) AND id <> $2 LIMIT 1`, email, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// UpdateUser persists the mutable profile columns plus role and ownership.
func (s *PostgresStore) UpdateUser(ctx context.Context, user User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET name=$2, email=LOWER($3), role=$4, is_owner=$5, company=$6, phone=$7, updated_at=NOW()
		WHERE id=$1
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.Role, user.IsOwner, user.Company, user.Phone,
	)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(result, "update password")
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login=NOW() WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(result, "delete user")
}

func (s *PostgresStore) ListUserSummaries(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.is_owner, u.company, u.phone, u.created_at, u.updated_at, u.last_login,
			(SELECT COUNT(*) FROM leads l WHERE l.user_id = u.id),
			(SELECT COUNT(*) FROM tasks t WHERE t.user_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]UserSummary, 0)
	for rows.Next() {
		var item UserSummary
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Email,
			&item.PasswordHash,
			&item.Role,
			&item.IsOwner,
			&item.Company,
			&item.Phone,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.LastLogin,
			&item.LeadCount,
			&item.TaskCount,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) TopUsersByTaskCount(ctx context.Context, limit int) ([]UserTaskCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.name, COUNT(t.id) AS cnt
		FROM users u
		LEFT JOIN tasks t ON t.user_id = u.id
		GROUP BY u.id, u.name
		ORDER BY cnt DESC, u.name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("tasks per user: %w", err)
	}
	defer rows.Close()

	items := make([]UserTaskCount, 0)
	for rows.Next() {
		var item UserTaskCount
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task counts: %w", err)
	}
	return items, nil
}
