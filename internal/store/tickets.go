package store

import (
	"context"
	"fmt"
)

const ticketSelect = `
	SELECT t.id, t.user_id, u.name, t.assigned_to, a.name, t.title, t.description, t.status, t.priority, t.category, t.created_at, t.updated_at
	FROM tickets t
	LEFT JOIN users u ON u.id = t.user_id
	LEFT JOIN users a ON a.id = t.assigned_to
`

type TicketCounts struct {
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
	Total      int `json:"total"`
}

func scanTicket(row rowScanner) (Ticket, error) {
	var item Ticket
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.UserName,
		&item.AssignedTo,
		&item.AssignedName,
		&item.Title,
		&item.Description,
		&item.Status,
		&item.Priority,
		&item.Category,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func ticketVisibility(w *where, visibleTo string) {
	if visibleTo == "" {
		return
	}
	p := w.next(visibleTo)
	w.clauses = append(w.clauses, "(t.user_id = "+p+" OR t.assigned_to = "+p+")")
}

func (s *PostgresStore) ListTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	var w where
	ticketVisibility(&w, filter.VisibleTo)
	if filter.Status != "" {
		w.add("t.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		w.add("t.priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		w.add("t.category = ?", filter.Category)
	}

	rows, err := s.db.QueryContext(ctx, ticketSelect+w.String()+` ORDER BY t.updated_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	items := make([]Ticket, 0)
	for rows.Next() {
		item, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) TicketStats(ctx context.Context, visibleTo string) (TicketCounts, error) {
	var w where
	ticketVisibility(&w, visibleTo)
	var counts TicketCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE t.status = 'open'),
			COUNT(*) FILTER (WHERE t.status = 'in_progress'),
			COUNT(*) FILTER (WHERE t.status = 'resolved'),
			COUNT(*) FILTER (WHERE t.status = 'closed'),
			COUNT(*)
		FROM tickets t `+w.String(), w.args...).Scan(&counts.Open, &counts.InProgress, &counts.Resolved, &counts.Closed, &counts.Total)
	if err != nil {
		return TicketCounts{}, fmt.Errorf("ticket stats: %w", err)
	}
	return counts, nil
}

// GetTicket loads a ticket regardless of caller; visibility is decided by the service.
func (s *PostgresStore) GetTicket(ctx context.Context, ticketID string) (Ticket, error) {
	return scanTicket(s.db.QueryRowContext(ctx, ticketSelect+`WHERE t.id=$1`, ticketID))
}

func (s *PostgresStore) InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, user_id, assigned_to, title, description, status, priority, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ticket.ID, ticket.UserID, ticket.AssignedTo, ticket.Title, ticket.Description, ticket.Status, ticket.Priority, ticket.Category)
	if err != nil {
		return Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	return s.GetTicket(ctx, ticket.ID)
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, ticket Ticket) (Ticket, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET assigned_to=$2, title=$3, description=$4, status=$5, priority=$6, category=$7, updated_at=NOW()
		WHERE id=$1
	`, ticket.ID, ticket.AssignedTo, ticket.Title, ticket.Description, ticket.Status, ticket.Priority, ticket.Category)
	if err != nil {
		return Ticket{}, fmt.Errorf("update ticket: %w", err)
	}
	if err := expectAffected(result, "update ticket"); err != nil {
		return Ticket{}, err
	}
	return s.GetTicket(ctx, ticket.ID)
}

// DeleteTicket removes the ticket; its messages cascade.
func (s *PostgresStore) DeleteTicket(ctx context.Context, ticketID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, ticketID)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return expectAffected(result, "delete ticket")
}

func (s *PostgresStore) ListTicketMessages(ctx context.Context, ticketID string, includeInternal bool) ([]TicketMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.ticket_id, m.user_id, u.name, u.role, m.message, m.is_internal, m.created_at
		FROM ticket_messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.ticket_id=$1
		  AND ($2::boolean OR NOT m.is_internal)
		ORDER BY m.created_at ASC
	`, ticketID, includeInternal)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	defer rows.Close()

	items := make([]TicketMessage, 0)
	for rows.Next() {
		var item TicketMessage
		if err := rows.Scan(&item.ID, &item.TicketID, &item.UserID, &item.UserName, &item.UserRole, &item.Message, &item.IsInternal, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket messages: %w", err)
	}
	return items, nil
}

// InsertTicketMessage stores a message and bumps the ticket's updated_at.
func (s *PostgresStore) InsertTicketMessage(ctx context.Context, message TicketMessage) (TicketMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TicketMessage{}, fmt.Errorf("begin ticket message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, user_id, message, is_internal)
		VALUES ($1, $2, $3, $4, $5)
	`, message.ID, message.TicketID, message.UserID, message.Message, message.IsInternal); err != nil {
		return TicketMessage{}, fmt.Errorf("insert ticket message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1`, message.TicketID); err != nil {
		return TicketMessage{}, fmt.Errorf("touch ticket: %w", err)
	}

	var item TicketMessage
	if err := tx.QueryRowContext(ctx, `
		SELECT m.id, m.ticket_id, m.user_id, u.name, u.role, m.message, m.is_internal, m.created_at
		FROM ticket_messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.id=$1
	`, message.ID).Scan(&item.ID, &item.TicketID, &item.UserID, &item.UserName, &item.UserRole, &item.Message, &item.IsInternal, &item.CreatedAt); err != nil {
		return TicketMessage{}, fmt.Errorf("read ticket message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return TicketMessage{}, fmt.Errorf("commit ticket message: %w", err)
	}
	return item, nil
}
