package app

import (
	"context"
	"fmt"
	"strings"

	"nexacrm/api/internal/rbac"
	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

var (
	ticketStatuses   = []string{"open", "in_progress", "resolved", "closed"}
	ticketPriorities = []string{"low", "medium", "high", "urgent"}
)

// ticketScope returns the user id tickets are restricted to, or "" for
// callers who see every ticket.
func ticketScope(current Session) string {
	if rbac.Can(rbac.Normalize(current.Role), rbac.ActionViewAllTickets) {
		return ""
	}
	return current.UserID
}

func canSeeTicket(current Session, ticket store.Ticket) bool {
	if ticketScope(current) == "" || ticket.UserID == current.UserID {
		return true
	}
	return ticket.AssignedTo != nil && *ticket.AssignedTo == current.UserID
}

// canSeeInternal reports whether internal notes on ticket are shown to current.
func canSeeInternal(current Session, ticket store.Ticket) bool {
	if rbac.Can(rbac.Normalize(current.Role), rbac.ActionViewInternal) {
		return true
	}
	return ticket.AssignedTo != nil && *ticket.AssignedTo == current.UserID
}

type TicketListParams struct {
	Status   string
	Priority string
	Category string
}

func (s *Service) ListTickets(ctx context.Context, current Session, params TicketListParams) ([]store.Ticket, error) {
	return s.store.ListTickets(ctx, store.TicketFilter{
		VisibleTo: ticketScope(current),
		Status:    strings.TrimSpace(params.Status),
		Priority:  strings.TrimSpace(params.Priority),
		Category:  strings.TrimSpace(params.Category),
	})
}

func (s *Service) TicketStats(ctx context.Context, current Session) (store.TicketCounts, error) {
	return s.store.TicketStats(ctx, ticketScope(current))
}

// visibleTicket loads a ticket and hides it from callers outside its audience.
func (s *Service) visibleTicket(ctx context.Context, current Session, ticketID string) (store.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if isNotFound(err) {
		return store.Ticket{}, notFoundError("Ticket not found")
	}
	if err != nil {
		return store.Ticket{}, err
	}
	if !canSeeTicket(current, ticket) {
		return store.Ticket{}, notFoundError("Ticket not found")
	}
	return ticket, nil
}

type TicketDetail struct {
	store.Ticket
	Messages []store.TicketMessage `json:"messages"`
}

func (s *Service) GetTicket(ctx context.Context, current Session, ticketID string) (TicketDetail, error) {
	ticket, err := s.visibleTicket(ctx, current, ticketID)
	if err != nil {
		return TicketDetail{}, err
	}
	messages, err := s.store.ListTicketMessages(ctx, ticketID, canSeeInternal(current, ticket))
	if err != nil {
		return TicketDetail{}, err
	}
	return TicketDetail{Ticket: ticket, Messages: messages}, nil
}

type TicketInput struct {
	Title       *string          `json:"title"`
	Description nullable[string] `json:"description"`
	Status      *string          `json:"status"`
	Priority    *string          `json:"priority"`
	Category    *string          `json:"category"`
	AssignedTo  nullable[string] `json:"assigned_to"`
}

func (in TicketInput) apply(ticket *store.Ticket) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return validationError("Title is required")
		}
		ticket.Title = title
	}
	in.Description.apply(&ticket.Description)
	if in.Status != nil {
		if !oneOf(*in.Status, ticketStatuses...) {
			return validationError(fmt.Sprintf("Invalid status %q", *in.Status))
		}
		ticket.Status = *in.Status
	}
	if in.Priority != nil {
		if !oneOf(*in.Priority, ticketPriorities...) {
			return validationError(fmt.Sprintf("Invalid priority %q", *in.Priority))
		}
		ticket.Priority = *in.Priority
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		ticket.Category = strings.TrimSpace(*in.Category)
	}
	return nil
}

func (s *Service) checkAssignee(ctx context.Context, assignee *string) error {
	if assignee == nil {
		return nil
	}
	if _, err := s.store.GetUserByID(ctx, *assignee); err != nil {
		if isNotFound(err) {
			return validationError("Assigned user not found")
		}
		return err
	}
	return nil
}

// CreateTicket opens a ticket. A description is also posted as the first
// message of the thread.
func (s *Service) CreateTicket(ctx context.Context, current Session, in TicketInput) (store.Ticket, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return store.Ticket{}, validationError("Title is required")
	}
	ticket := store.Ticket{
		ID:       util.NewID(),
		UserID:   current.UserID,
		Status:   "open",
		Priority: "medium",
		Category: "general",
	}
	if err := in.apply(&ticket); err != nil {
		return store.Ticket{}, err
	}
	in.AssignedTo.apply(&ticket.AssignedTo)
	if err := s.checkAssignee(ctx, ticket.AssignedTo); err != nil {
		return store.Ticket{}, err
	}

	created, err := s.store.InsertTicket(ctx, ticket)
	if err != nil {
		return store.Ticket{}, err
	}
	if created.Description != nil {
		if _, err := s.store.InsertTicketMessage(ctx, store.TicketMessage{
			ID:       util.NewID(),
			TicketID: created.ID,
			UserID:   current.UserID,
			Message:  *created.Description,
		}); err != nil {
			s.log.Warn().Err(err).Str("ticket_id", created.ID).Msg("first ticket message not stored")
		}
	}
	s.logActivity(ctx, current.UserID, "created_ticket", "ticket", created.ID, "Created ticket: "+created.Title)
	return created, nil
}

func (s *Service) UpdateTicket(ctx context.Context, current Session, ticketID string, in TicketInput) (store.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, current, ticketID)
	if err != nil {
		return store.Ticket{}, err
	}
	if err := in.apply(&ticket); err != nil {
		return store.Ticket{}, err
	}
	if in.AssignedTo.Set {
		in.AssignedTo.apply(&ticket.AssignedTo)
		if err := s.checkAssignee(ctx, ticket.AssignedTo); err != nil {
			return store.Ticket{}, err
		}
	}
	updated, err := s.store.UpdateTicket(ctx, ticket)
	if isNotFound(err) {
		return store.Ticket{}, notFoundError("Ticket not found")
	}
	return updated, err
}

// DeleteTicket is allowed for the ticket's creator and for admins.
func (s *Service) DeleteTicket(ctx context.Context, current Session, ticketID string) error {
	ticket, err := s.visibleTicket(ctx, current, ticketID)
	if err != nil {
		return err
	}
	if ticket.UserID != current.UserID && !current.IsAdmin() {
		return forbiddenError("Only the requester or an admin can delete a ticket")
	}
	err = s.store.DeleteTicket(ctx, ticketID)
	if isNotFound(err) {
		return notFoundError("Ticket not found")
	}
	return err
}

type MessageInput struct {
	Message    string `json:"message"`
	IsInternal bool   `json:"is_internal"`
}

func (s *Service) PostTicketMessage(ctx context.Context, current Session, ticketID string, in MessageInput) (store.TicketMessage, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return store.TicketMessage{}, validationError("Message is required")
	}
	ticket, err := s.visibleTicket(ctx, current, ticketID)
	if err != nil {
		return store.TicketMessage{}, err
	}
	internal := in.IsInternal && canSeeInternal(current, ticket)

	message, err := s.store.InsertTicketMessage(ctx, store.TicketMessage{
		ID:         util.NewID(),
		TicketID:   ticketID,
		UserID:     current.UserID,
		Message:    text,
		IsInternal: internal,
	})
	if err != nil {
		return store.TicketMessage{}, err
	}
	if !internal && ticket.UserID != current.UserID {
		s.notifyRequester(ctx, ticket, current.Name, text)
	}
	return message, nil
}

// notifyRequester e-mails the ticket's creator about a reply. Delivery runs
// in the background and never fails the request.
func (s *Service) notifyRequester(ctx context.Context, ticket store.Ticket, authorName, message string) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	requester, err := s.store.GetUserByID(ctx, ticket.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("ticket requester lookup failed")
		return
	}
	go func() {
		if err := s.mailer.SendTicketReply(requester.Email, requester.Name, authorName, ticket.Title, message); err != nil {
			s.log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("ticket reply e-mail failed")
		}
	}()
}
