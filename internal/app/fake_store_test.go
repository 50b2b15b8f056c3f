package app

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"nexacrm/api/internal/store"
)

// fakeStore is an in-memory dataStore. It keeps just enough query semantics
// (ownership scoping, filters) for the service tests.
type fakeStore struct {
	mu sync.Mutex

	users       map[string]store.User
	leads       map[string]store.Lead
	notes       map[string]store.Note
	tasks       map[string]store.Task
	files       map[string]store.File
	monitors    map[string]store.SocialMonitor
	results     map[string][]store.SocialResult
	tickets     map[string]store.Ticket
	messages    map[string][]store.TicketMessage
	activity    []store.ActivityEntry
	revoked     map[string]time.Time
	activityErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]store.User{},
		leads:    map[string]store.Lead{},
		notes:    map[string]store.Note{},
		tasks:    map[string]store.Task{},
		files:    map[string]store.File{},
		monitors: map[string]store.SocialMonitor{},
		results:  map[string][]store.SocialResult{},
		tickets:  map[string]store.Ticket{},
		messages: map[string][]store.TicketMessage{},
		revoked:  map[string]time.Time{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CountUsers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email && user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, user store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.users[user.ID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	user.PasswordHash = current.PasswordHash
	user.UpdatedAt = time.Now().UTC()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = hash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) TouchLastLogin(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	f.users[userID] = user
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, userID)
	return nil
}

func (f *fakeStore) ListUserSummaries(context.Context) ([]store.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.UserSummary{}
	for _, user := range f.users {
		summary := store.UserSummary{User: user}
		for _, lead := range f.leads {
			if lead.UserID == user.ID {
				summary.LeadCount++
			}
		}
		for _, task := range f.tasks {
			if task.UserID == user.ID {
				summary.TaskCount++
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

func (f *fakeStore) TopUsersByTaskCount(_ context.Context, limit int) ([]store.UserTaskCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.UserTaskCount{}
	for _, user := range f.users {
		count := 0
		for _, task := range f.tasks {
			if task.UserID == user.ID {
				count++
			}
		}
		out = append(out, store.UserTaskCount{Name: user.Name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Lead{}
	for _, lead := range f.leads {
		if filter.UserID != "" && lead.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		if filter.Source != "" && lead.Source != filter.Source {
			continue
		}
		if filter.Search != "" && !fakeLeadMatches(lead, filter.Search) && !oneOf(lead.ID, filter.IDs...) {
			continue
		}
		out = append(out, lead)
	}
	return out, nil
}

func fakeLeadMatches(lead store.Lead, text string) bool {
	text = strings.ToLower(text)
	for _, field := range []*string{&lead.Name, lead.Email, lead.Company} {
		if field != nil && strings.Contains(strings.ToLower(*field), text) {
			return true
		}
	}
	return false
}

func (f *fakeStore) RecentLeads(ctx context.Context, userID string, limit int) ([]store.Lead, error) {
	leads, _ := f.ListLeads(ctx, store.LeadFilter{UserID: userID})
	if len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

func (f *fakeStore) LeadCounts(_ context.Context, userID, column string) ([]store.CountBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, lead := range f.leads {
		if userID != "" && lead.UserID != userID {
			continue
		}
		if column == "source" {
			counts[lead.Source]++
		} else {
			counts[lead.Status]++
		}
	}
	out := []store.CountBucket{}
	for key, count := range counts {
		out = append(out, store.CountBucket{Key: key, Count: count})
	}
	return out, nil
}

func (f *fakeStore) GetLead(_ context.Context, userID, leadID string) (store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok || lead.UserID != userID {
		return store.Lead{}, sql.ErrNoRows
	}
	return lead, nil
}

func (f *fakeStore) InsertLead(_ context.Context, lead store.Lead) (store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead.CreatedAt = time.Now().UTC()
	lead.UpdatedAt = lead.CreatedAt
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) UpdateLead(_ context.Context, lead store.Lead) (store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.leads[lead.ID]
	if !ok || current.UserID != lead.UserID {
		return store.Lead{}, sql.ErrNoRows
	}
	lead.NotesCount = current.NotesCount
	lead.UpdatedAt = time.Now().UTC()
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) UpdateLeadScore(_ context.Context, userID, leadID string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok || lead.UserID != userID {
		return sql.ErrNoRows
	}
	lead.Score = score
	f.leads[leadID] = lead
	return nil
}

func (f *fakeStore) AdjustNotesCount(_ context.Context, leadID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return nil
	}
	lead.NotesCount = max(lead.NotesCount+delta, 0)
	f.leads[leadID] = lead
	return nil
}

func (f *fakeStore) DeleteLead(_ context.Context, userID, leadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok || lead.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.leads, leadID)
	return nil
}

func (f *fakeStore) ListNotes(_ context.Context, filter store.NoteFilter) ([]store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Note{}
	for _, note := range f.notes {
		if note.UserID != filter.UserID {
			continue
		}
		if filter.LeadID != "" && (note.LeadID == nil || *note.LeadID != filter.LeadID) {
			continue
		}
		if filter.PinnedOnly && !note.Pinned {
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

func (f *fakeStore) GetNote(_ context.Context, userID, noteID string) (store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[noteID]
	if !ok || note.UserID != userID {
		return store.Note{}, sql.ErrNoRows
	}
	return note, nil
}

func (f *fakeStore) InsertNote(_ context.Context, note store.Note) (store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note.CreatedAt = time.Now().UTC()
	note.UpdatedAt = note.CreatedAt
	f.notes[note.ID] = note
	return note, nil
}

func (f *fakeStore) UpdateNote(_ context.Context, note store.Note) (store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.notes[note.ID]
	if !ok || current.UserID != note.UserID {
		return store.Note{}, sql.ErrNoRows
	}
	note.UpdatedAt = time.Now().UTC()
	f.notes[note.ID] = note
	return note, nil
}

func (f *fakeStore) DeleteNote(_ context.Context, userID, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[noteID]
	if !ok || note.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.notes, noteID)
	return nil
}

func (f *fakeStore) ListTasks(_ context.Context, filter store.TaskFilter) ([]store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Task{}
	for _, task := range f.tasks {
		if task.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		if filter.LeadID != "" && (task.LeadID == nil || *task.LeadID != filter.LeadID) {
			continue
		}
		if filter.DueBefore != "" && (task.DueDate == nil || *task.DueDate > filter.DueBefore || task.Status == "done") {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (f *fakeStore) TaskStats(_ context.Context, userID, today string) (store.TaskCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := store.TaskCounts{ByStatus: map[string]int{"todo": 0, "in_progress": 0, "done": 0}}
	for _, task := range f.tasks {
		if task.UserID != userID {
			continue
		}
		counts.Total++
		counts.ByStatus[task.Status]++
		if task.Status == "done" {
			counts.Done++
		} else if task.DueDate != nil && *task.DueDate < today {
			counts.Overdue++
		}
	}
	return counts, nil
}

func (f *fakeStore) GetTask(_ context.Context, userID, taskID string) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (f *fakeStore) InsertTask(_ context.Context, task store.Task) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, task store.Task) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.tasks[task.ID]
	if !ok || current.UserID != task.UserID {
		return store.Task{}, sql.ErrNoRows
	}
	task.UpdatedAt = time.Now().UTC()
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeStore) DeleteTask(_ context.Context, userID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeStore) ListFiles(_ context.Context, filter store.FileFilter) ([]store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.File{}
	for _, file := range f.files {
		if file.UserID != filter.UserID {
			continue
		}
		if filter.LeadID != "" && (file.LeadID == nil || *file.LeadID != filter.LeadID) {
			continue
		}
		out = append(out, file)
	}
	return out, nil
}

func (f *fakeStore) GetFile(_ context.Context, userID, fileID string) (store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok || file.UserID != userID {
		return store.File{}, sql.ErrNoRows
	}
	return file, nil
}

func (f *fakeStore) InsertFile(_ context.Context, file store.File) (store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file.CreatedAt = time.Now().UTC()
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeStore) SetFileLead(_ context.Context, userID, fileID string, leadID *string) (store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok || file.UserID != userID {
		return store.File{}, sql.ErrNoRows
	}
	file.LeadID = leadID
	f.files[fileID] = file
	return file, nil
}

func (f *fakeStore) DeleteFile(_ context.Context, userID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok || file.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeStore) ListMonitors(_ context.Context, userID string) ([]store.SocialMonitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.SocialMonitor{}
	for _, monitor := range f.monitors {
		if monitor.UserID == userID {
			out = append(out, monitor)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMonitor(_ context.Context, userID, monitorID string) (store.SocialMonitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	monitor, ok := f.monitors[monitorID]
	if !ok || monitor.UserID != userID {
		return store.SocialMonitor{}, sql.ErrNoRows
	}
	return monitor, nil
}

func (f *fakeStore) InsertMonitor(_ context.Context, monitor store.SocialMonitor) (store.SocialMonitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	monitor.CreatedAt = time.Now().UTC()
	f.monitors[monitor.ID] = monitor
	return monitor, nil
}

func (f *fakeStore) DeleteMonitor(_ context.Context, userID, monitorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	monitor, ok := f.monitors[monitorID]
	if !ok || monitor.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.monitors, monitorID)
	delete(f.results, monitorID)
	return nil
}

func (f *fakeStore) InsertResults(_ context.Context, monitorID string, results []store.SocialResult) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[monitorID] = append(f.results[monitorID], results...)
	count := len(f.results[monitorID])
	monitor := f.monitors[monitorID]
	monitor.ResultCount = count
	f.monitors[monitorID] = monitor
	return count, nil
}

func (f *fakeStore) ListResults(_ context.Context, filter store.SocialResultFilter) ([]store.SocialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.SocialResult{}
	for _, result := range f.results[filter.MonitorID] {
		if filter.Platform != "" && result.Platform != filter.Platform {
			continue
		}
		if filter.Sentiment != "" && result.Sentiment != filter.Sentiment {
			continue
		}
		out = append(out, result)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) visible(ticket store.Ticket, userID string) bool {
	if userID == "" || ticket.UserID == userID {
		return true
	}
	return ticket.AssignedTo != nil && *ticket.AssignedTo == userID
}

func (f *fakeStore) ListTickets(_ context.Context, filter store.TicketFilter) ([]store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Ticket{}
	for _, ticket := range f.tickets {
		if !f.visible(ticket, filter.VisibleTo) {
			continue
		}
		if filter.Status != "" && ticket.Status != filter.Status {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (f *fakeStore) TicketStats(_ context.Context, visibleTo string) (store.TicketCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var counts store.TicketCounts
	for _, ticket := range f.tickets {
		if !f.visible(ticket, visibleTo) {
			continue
		}
		counts.Total++
		switch ticket.Status {
		case "open":
			counts.Open++
		case "in_progress":
			counts.InProgress++
		case "resolved":
			counts.Resolved++
		case "closed":
			counts.Closed++
		}
	}
	return counts, nil
}

func (f *fakeStore) GetTicket(_ context.Context, ticketID string) (store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return store.Ticket{}, sql.ErrNoRows
	}
	return ticket, nil
}

func (f *fakeStore) InsertTicket(_ context.Context, ticket store.Ticket) (store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	f.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (f *fakeStore) UpdateTicket(_ context.Context, ticket store.Ticket) (store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[ticket.ID]; !ok {
		return store.Ticket{}, sql.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	f.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (f *fakeStore) DeleteTicket(_ context.Context, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[ticketID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.tickets, ticketID)
	delete(f.messages, ticketID)
	return nil
}

func (f *fakeStore) ListTicketMessages(_ context.Context, ticketID string, includeInternal bool) ([]store.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.TicketMessage{}
	for _, message := range f.messages[ticketID] {
		if message.IsInternal && !includeInternal {
			continue
		}
		out = append(out, message)
	}
	return out, nil
}

func (f *fakeStore) InsertTicketMessage(_ context.Context, message store.TicketMessage) (store.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message.CreatedAt = time.Now().UTC()
	f.messages[message.TicketID] = append(f.messages[message.TicketID], message)
	return message, nil
}

func (f *fakeStore) InsertActivity(_ context.Context, entry store.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activityErr != nil {
		return f.activityErr
	}
	entry.CreatedAt = time.Now().UTC()
	f.activity = append(f.activity, entry)
	return nil
}

// ListActivity returns newest first.
func (f *fakeStore) ListActivity(_ context.Context, filter store.ActivityFilter) ([]store.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.ActivityEntry{}
	for i := len(f.activity) - 1; i >= 0; i-- {
		entry := f.activity[i]
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.EntityID != "" && entry.EntityID != filter.EntityID {
			continue
		}
		out = append(out, entry)
	}
	if filter.Offset > 0 {
		out = out[min(filter.Offset, len(out)):]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) Count(_ context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case "users":
		return len(f.users), nil
	case "leads":
		return len(f.leads), nil
	case "tasks":
		return len(f.tasks), nil
	case "notes":
		return len(f.notes), nil
	case "files":
		return len(f.files), nil
	case "tickets":
		return len(f.tickets), nil
	case "open_tickets":
		open := 0
		for _, ticket := range f.tickets {
			if ticket.Status == "open" {
				open++
			}
		}
		return open, nil
	case "monitors":
		return len(f.monitors), nil
	}
	return 0, nil
}

func (f *fakeStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = expiresAt
	return nil
}

func (f *fakeStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}
