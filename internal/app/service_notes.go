package app

import (
	"context"
	"strings"

	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

const defaultNoteColor = "#ffffff"

// checkLeadLink rejects links to leads the caller does not own.
func (s *Service) checkLeadLink(ctx context.Context, userID string, leadID *string) error {
	if leadID == nil {
		return nil
	}
	if _, err := s.store.GetLead(ctx, userID, *leadID); err != nil {
		if isNotFound(err) {
			return validationError("Linked lead not found")
		}
		return err
	}
	return nil
}

// adjustNotesCount keeps the lead counter in step with its notes. The note
// write has already succeeded, so failures are only logged.
func (s *Service) adjustNotesCount(ctx context.Context, leadID *string, delta int) {
	if leadID == nil {
		return
	}
	if err := s.store.AdjustNotesCount(ctx, *leadID, delta); err != nil {
		s.log.Warn().Err(err).Str("lead_id", *leadID).Msg("notes_count not adjusted")
	}
}

type NoteListParams struct {
	LeadID     string
	Search     string
	PinnedOnly bool
}

func (s *Service) ListNotes(ctx context.Context, userID string, params NoteListParams) ([]store.Note, error) {
	return s.store.ListNotes(ctx, store.NoteFilter{
		UserID:     userID,
		LeadID:     strings.TrimSpace(params.LeadID),
		Search:     strings.TrimSpace(params.Search),
		PinnedOnly: params.PinnedOnly,
	})
}

type NoteInput struct {
	Title   *string          `json:"title"`
	Content *string          `json:"content"`
	Color   *string          `json:"color"`
	Pinned  *bool            `json:"pinned"`
	LeadID  nullable[string] `json:"lead_id"`
}

func (s *Service) CreateNote(ctx context.Context, userID string, in NoteInput) (store.Note, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return store.Note{}, validationError("Title is required")
	}
	note := store.Note{
		ID:     util.NewID(),
		UserID: userID,
		Title:  strings.TrimSpace(*in.Title),
		Color:  defaultNoteColor,
	}
	if in.Content != nil {
		note.Content = *in.Content
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		note.Color = strings.TrimSpace(*in.Color)
	}
	if in.Pinned != nil {
		note.Pinned = *in.Pinned
	}
	in.LeadID.apply(&note.LeadID)
	if err := s.checkLeadLink(ctx, userID, note.LeadID); err != nil {
		return store.Note{}, err
	}

	created, err := s.store.InsertNote(ctx, note)
	if err != nil {
		return store.Note{}, err
	}
	s.adjustNotesCount(ctx, created.LeadID, 1)
	return created, nil
}

func (s *Service) UpdateNote(ctx context.Context, userID, noteID string, in NoteInput) (store.Note, error) {
	note, err := s.store.GetNote(ctx, userID, noteID)
	if isNotFound(err) {
		return store.Note{}, notFoundError("Note not found")
	}
	if err != nil {
		return store.Note{}, err
	}
	previousLead := note.LeadID

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return store.Note{}, validationError("Title cannot be empty")
		}
		note.Title = title
	}
	if in.Content != nil {
		note.Content = *in.Content
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		note.Color = strings.TrimSpace(*in.Color)
	}
	if in.Pinned != nil {
		note.Pinned = *in.Pinned
	}
	if in.LeadID.Set {
		in.LeadID.apply(&note.LeadID)
		if err := s.checkLeadLink(ctx, userID, note.LeadID); err != nil {
			return store.Note{}, err
		}
	}

	updated, err := s.store.UpdateNote(ctx, note)
	if isNotFound(err) {
		return store.Note{}, notFoundError("Note not found")
	}
	if err != nil {
		return store.Note{}, err
	}
	if stringValue(previousLead) != stringValue(updated.LeadID) {
		s.adjustNotesCount(ctx, previousLead, -1)
		s.adjustNotesCount(ctx, updated.LeadID, 1)
	}
	return updated, nil
}

func (s *Service) DeleteNote(ctx context.Context, userID, noteID string) error {
	note, err := s.store.GetNote(ctx, userID, noteID)
	if isNotFound(err) {
		return notFoundError("Note not found")
	}
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, userID, noteID); err != nil {
		if isNotFound(err) {
			return notFoundError("Note not found")
		}
		return err
	}
	s.adjustNotesCount(ctx, note.LeadID, -1)
	return nil
}
