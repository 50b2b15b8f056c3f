package app

import (
	"net/http"
)

func (s *HTTPServer) handleTickets(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			tickets, err := s.service.ListTickets(ctx, session, TicketListParams{
				Status:   query.Get("status"),
				Priority: query.Get("priority"),
				Category: query.Get("category"),
			})
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, tickets)
		case http.MethodPost:
			var body TicketInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ticket, err := s.service.CreateTicket(ctx, session, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, ticket)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 && parts[2] == "stats" && r.Method == http.MethodGet {
		stats, err := s.service.TicketStats(ctx, session)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	if len(parts) == 4 && parts[3] == "messages" && r.Method == http.MethodPost {
		var body MessageInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		message, err := s.service.PostTicketMessage(ctx, session, parts[2], body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, message)
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ticketID := parts[2]

	switch r.Method {
	case http.MethodGet:
		ticket, err := s.service.GetTicket(ctx, session, ticketID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	case http.MethodPut:
		var body TicketInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ticket, err := s.service.UpdateTicket(ctx, session, ticketID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	case http.MethodDelete:
		if err := s.service.DeleteTicket(ctx, session, ticketID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleSocial(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 3 && parts[2] == "prospect-finder" && r.Method == http.MethodPost {
		var body ProspectSearchInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.FindProspects(ctx, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if len(parts) == 3 && parts[2] == "scrape-profile" && r.Method == http.MethodPost {
		var body struct {
			URL string `json:"url"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		profile, err := s.service.ScrapeProfile(ctx, body.URL)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
		return
	}

	if len(parts) < 3 || parts[2] != "monitors" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		monitors, err := s.service.ListMonitors(ctx, session.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, monitors)
	case len(parts) == 3 && r.Method == http.MethodPost:
		var body MonitorInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		monitor, err := s.service.CreateMonitor(ctx, session.UserID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, monitor)
	case len(parts) == 4 && r.Method == http.MethodDelete:
		if err := s.service.DeleteMonitor(ctx, session.UserID, parts[3]); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	case len(parts) == 5 && parts[4] == "results" && r.Method == http.MethodGet:
		query := r.URL.Query()
		results, err := s.service.MonitorResults(ctx, session.UserID, parts[3], query.Get("platform"), query.Get("sentiment"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	case len(parts) == 5 && parts[4] == "refresh" && r.Method == http.MethodPost:
		result, err := s.service.RefreshMonitor(ctx, session.UserID, parts[3])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleAdmin serves /api/admin. The router has already checked the role.
func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 3 && parts[2] == "stats" && r.Method == http.MethodGet {
		stats, err := s.service.AdminStats(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	if len(parts) == 3 && parts[2] == "activity" && r.Method == http.MethodGet {
		entries, err := s.service.ListActivity(ctx, ActivityParams{
			UserID: r.URL.Query().Get("user_id"),
			Limit:  queryInt(r, "limit"),
			Offset: queryInt(r, "offset"),
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	if len(parts) < 3 || parts[2] != "users" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		users, err := s.service.ListUsers(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	case len(parts) == 3 && r.Method == http.MethodPost:
		var body AdminUserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.CreateUser(ctx, session, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	case len(parts) == 4 && r.Method == http.MethodPut:
		var body AdminUserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateUser(ctx, session, parts[3], body); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	case len(parts) == 4 && r.Method == http.MethodDelete:
		if err := s.service.DeleteUser(ctx, session, parts[3]); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
