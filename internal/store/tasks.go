package store

import (
	"context"
	"fmt"
)

const taskSelect = `
	SELECT t.id, t.user_id, t.lead_id, l.name, t.title, t.description, t.status, t.priority,
		to_char(t.due_date, 'YYYY-MM-DD'), t.completed_at, t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN leads l ON l.id = t.lead_id
`

// Priority rank: urgent first, unknown values sort with medium.
const taskOrder = `
	ORDER BY CASE t.priority WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 WHEN 'low' THEN 4 ELSE 3 END,
		t.due_date ASC NULLS LAST,
		t.created_at DESC
`

type TaskCounts struct {
	Total   int
	Done    int
	Overdue int
	// ByStatus always carries todo, in_progress and done.
	ByStatus map[string]int
}

func scanTask(row rowScanner) (Task, error) {
	var item Task
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.LeadID,
		&item.LeadName,
		&item.Title,
		&item.Description,
		&item.Status,
		&item.Priority,
		&item.DueDate,
		&item.CompletedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	var w where
	w.add("t.user_id = ?", filter.UserID)
	if filter.Status != "" {
		w.add("t.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		w.add("t.priority = ?", filter.Priority)
	}
	if filter.LeadID != "" {
		w.add("t.lead_id = ?", filter.LeadID)
	}
	if filter.DueBefore != "" {
		w.add("t.due_date <= ?::date AND t.status <> 'done'", filter.DueBefore)
	}

	rows, err := s.db.QueryContext(ctx, taskSelect+w.String()+taskOrder, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// TaskStats counts a user's tasks. today is a YYYY-MM-DD date; tasks due
// strictly before it and not done are overdue.
func (s *PostgresStore) TaskStats(ctx context.Context, userID, today string) (TaskCounts, error) {
	counts := TaskCounts{ByStatus: map[string]int{"todo": 0, "in_progress": 0, "done": 0}}
	rows, err := s.db.QueryContext(ctx, `
		SELECT status,
			COUNT(*),
			COUNT(*) FILTER (WHERE due_date IS NOT NULL AND due_date < $2::date AND status <> 'done')
		FROM tasks
		WHERE user_id=$1
		GROUP BY status
	`, userID, today)
	if err != nil {
		return TaskCounts{}, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status  string
			total   int
			overdue int
		)
		if err := rows.Scan(&status, &total, &overdue); err != nil {
			return TaskCounts{}, fmt.Errorf("scan task stats: %w", err)
		}
		counts.ByStatus[status] = total
		counts.Total += total
		counts.Overdue += overdue
		if status == "done" {
			counts.Done = total
		}
	}
	if err := rows.Err(); err != nil {
		return TaskCounts{}, fmt.Errorf("iterate task stats: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, userID, taskID string) (Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, taskSelect+`WHERE t.id=$1 AND t.user_id=$2`, taskID, userID))
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) (Task, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, lead_id, title, description, status, priority, due_date, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9)
	`, task.ID, task.UserID, task.LeadID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.CompletedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, task.UserID, task.ID)
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) (Task, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET lead_id=$3, title=$4, description=$5, status=$6, priority=$7, due_date=$8::date, completed_at=$9, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, task.ID, task.UserID, task.LeadID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.CompletedAt)
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := expectAffected(result, "update task"); err != nil {
		return Task{}, err
	}
	return s.GetTask(ctx, task.UserID, task.ID)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 AND user_id=$2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectAffected(result, "delete task")
}
