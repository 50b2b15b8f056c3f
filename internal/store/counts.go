package store

import (
	"context"
	"fmt"
)

var countQueries = map[string]string{
	"users":        `SELECT COUNT(*) FROM users`,
	"leads":        `SELECT COUNT(*) FROM leads`,
	"tasks":        `SELECT COUNT(*) FROM tasks`,
	"notes":        `SELECT COUNT(*) FROM notes`,
	"files":        `SELECT COUNT(*) FROM files`,
	"tickets":      `SELECT COUNT(*) FROM tickets`,
	"open_tickets": `SELECT COUNT(*) FROM tickets WHERE status = 'open'`,
	"monitors":     `SELECT COUNT(*) FROM social_monitors`,
}

// CountNames lists the keys accepted by Count.
func CountNames() []string {
	return []string{"users", "leads", "tasks", "notes", "files", "tickets", "open_tickets", "monitors"}
}

// Count returns the row total for one of the CountNames tables.
func (s *PostgresStore) Count(ctx context.Context, name string) (int, error) {
	query, ok := countQueries[name]
	if !ok {
		return 0, fmt.Errorf("count: unknown table %q", name)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return count, nil
}

func (c *TableCounts) Set(name string, value int) {
	switch name {
	case "users":
		c.Users = value
	case "leads":
		c.Leads = value
	case "tasks":
		c.Tasks = value
	case "notes":
		c.Notes = value
	case "files":
		c.Files = value
	case "tickets":
		c.Tickets = value
	case "open_tickets":
		c.OpenTickets = value
	case "monitors":
		c.Monitors = value
	}
}
