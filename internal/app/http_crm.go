package app

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
)

const uploadMemory = 32 << 20

func (s *HTTPServer) handleLeads(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			leads, err := s.service.ListLeads(ctx, session.UserID, LeadListParams{
				Status: query.Get("status"),
				Source: query.Get("source"),
				Search: query.Get("search"),
			})
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, leads)
		case http.MethodPost:
			var body LeadInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			lead, err := s.service.CreateLead(ctx, session.UserID, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, lead)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 && parts[2] == "stats" && r.Method == http.MethodGet {
		stats, err := s.service.LeadStats(ctx, session.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	if len(parts) == 4 && parts[2] == "search" && parts[3] == "google-maps" && r.Method == http.MethodPost {
		var body PlacesSearchInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		places, err := s.service.SearchPlaces(ctx, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, places)
		return
	}

	leadID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			lead, err := s.service.GetLead(ctx, session.UserID, leadID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, lead)
		case http.MethodPut:
			var body LeadInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			lead, err := s.service.UpdateLead(ctx, session.UserID, leadID, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, lead)
		case http.MethodDelete:
			if err := s.service.DeleteLead(ctx, session.UserID, leadID); err != nil {
				s.fail(w, r, err)
				return
			}
			writeSuccess(w)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 4 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	var (
		payload any
		err     error
	)
	switch {
	case parts[3] == "notes" && r.Method == http.MethodGet:
		payload, err = s.service.LeadNotes(ctx, session.UserID, leadID)
	case parts[3] == "tasks" && r.Method == http.MethodGet:
		payload, err = s.service.LeadTasks(ctx, session.UserID, leadID)
	case parts[3] == "files" && r.Method == http.MethodGet:
		payload, err = s.service.LeadFiles(ctx, session.UserID, leadID)
	case parts[3] == "activity" && r.Method == http.MethodGet:
		payload, err = s.service.LeadActivity(ctx, session.UserID, leadID)
	case parts[3] == "ai-score" && r.Method == http.MethodPost:
		payload, err = s.service.ScoreLead(ctx, session.UserID, leadID)
	case parts[3] == "export" && r.Method == http.MethodGet:
		result, exportErr := s.service.ExportLead(ctx, session, leadID)
		if exportErr != nil {
			s.fail(w, r, exportErr)
			return
		}
		writeAttachment(w, result.MimeType, result.Filename, int64(len(result.Data)))
		_, _ = w.Write(result.Data)
		return
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			notes, err := s.service.ListNotes(ctx, session.UserID, NoteListParams{
				LeadID:     query.Get("lead_id"),
				Search:     query.Get("search"),
				PinnedOnly: queryBool(r, "pinned"),
			})
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, notes)
		case http.MethodPost:
			var body NoteInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			note, err := s.service.CreateNote(ctx, session.UserID, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, note)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	noteID := parts[2]

	switch r.Method {
	case http.MethodPut:
		var body NoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.UpdateNote(ctx, session.UserID, noteID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	case http.MethodDelete:
		if err := s.service.DeleteNote(ctx, session.UserID, noteID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			tasks, err := s.service.ListTasks(ctx, session.UserID, TaskListParams{
				Status:   query.Get("status"),
				Priority: query.Get("priority"),
				LeadID:   query.Get("lead_id"),
				DueSoon:  queryBool(r, "due_soon"),
			})
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, tasks)
		case http.MethodPost:
			var body TaskInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			task, err := s.service.CreateTask(ctx, session.UserID, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, task)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "stats" && r.Method == http.MethodGet {
		stats, err := s.service.TaskStats(ctx, session.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	taskID := parts[2]
	switch r.Method {
	case http.MethodGet:
		task, err := s.service.GetTask(ctx, session.UserID, taskID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodPut:
		var body TaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.UpdateTask(ctx, session.UserID, taskID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodDelete:
		if err := s.service.DeleteTask(ctx, session.UserID, taskID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 2 && r.Method == http.MethodGet {
		query := r.URL.Query()
		files, err := s.service.ListFiles(ctx, session.UserID, query.Get("lead_id"), query.Get("search"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, files)
		return
	}

	if len(parts) == 3 && parts[2] == "upload" && r.Method == http.MethodPost {
		s.handleUpload(w, r, session)
		return
	}

	if len(parts) == 4 && parts[2] == "download" && r.Method == http.MethodGet {
		file, body, err := s.service.OpenFile(ctx, session.UserID, parts[3])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		defer body.Close()
		writeAttachment(w, file.MimeType, file.OriginalName, file.Size)
		if _, err := io.Copy(w, body); err != nil {
			s.service.log.Warn().Err(err).Str("file_id", file.ID).Msg("download interrupted")
		}
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	fileID := parts[2]

	switch r.Method {
	case http.MethodPut:
		var body struct {
			LeadID *string `json:"lead_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if _, err := s.service.RelinkFile(ctx, session.UserID, fileID, body.LeadID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	case http.MethodDelete:
		if err := s.service.DeleteFile(ctx, session.UserID, fileID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeSuccess(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadFiles*MaxUploadFileSize+uploadMemory)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Upload too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Expected a multipart form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		uploads = append(uploads, uploadFromHeader(header))
	}

	var leadID *string
	if values := r.MultipartForm.Value["lead_id"]; len(values) > 0 {
		leadID = &values[0]
	}

	files, err := s.service.UploadFiles(r.Context(), session.UserID, leadID, uploads)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, files)
}

func uploadFromHeader(header *multipart.FileHeader) Upload {
	return Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

// writeAttachment replaces the JSON headers set by the middleware with a
// download response.
func writeAttachment(w http.ResponseWriter, contentType, filename string, size int64) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if size > 0 {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
}
