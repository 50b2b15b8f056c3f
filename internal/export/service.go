package export

import (
	"context"
	"fmt"
	"time"

	"nexacrm/api/internal/store"
)

// DataStore is the read access the dossier needs.
type DataStore interface {
	GetLead(ctx context.Context, userID, leadID string) (store.Lead, error)
	ListNotes(ctx context.Context, filter store.NoteFilter) ([]store.Note, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
	ListActivity(ctx context.Context, filter store.ActivityFilter) ([]store.ActivityEntry, error)
}

const dossierActivityLimit = 20

type Service struct {
	store    DataStore
	renderer Renderer
	now      func() time.Time
}

func NewService(store DataStore, renderer Renderer) *Service {
	return &Service{store: store, renderer: renderer, now: time.Now}
}

// ExportLead builds the PDF dossier for a lead owned by userID. A lead owned
// by someone else surfaces as the store's not-found error.
func (s *Service) ExportLead(ctx context.Context, userID, leadID, preparedBy string) (*Result, error) {
	lead, err := s.store.GetLead(ctx, userID, leadID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotes(ctx, store.NoteFilter{UserID: userID, LeadID: leadID})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{UserID: userID, LeadID: leadID})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	activity, err := s.store.ListActivity(ctx, store.ActivityFilter{EntityID: leadID, Limit: dossierActivityLimit})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	open := make([]store.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Status != "done" {
			open = append(open, task)
		}
	}

	html, err := RenderDossierHTML(Dossier{
		Lead:        lead,
		Notes:       notes,
		OpenTasks:   open,
		Activity:    activity,
		PreparedBy:  preparedBy,
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	data, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(lead.Name) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}
