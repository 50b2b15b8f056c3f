package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"nexacrm/api/internal/authpw"
	"nexacrm/api/internal/blob"
	"nexacrm/api/internal/config"
	"nexacrm/api/internal/enrich"
	"nexacrm/api/internal/rbac"
	"nexacrm/api/internal/scoring"
	"nexacrm/api/internal/search"
	"nexacrm/api/internal/session"
)

const testOwnerEmail = "owner@nexacrm.test"

func newTestService(t *testing.T, fs *fakeStore) *Service {
	t.Helper()
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			TokenTTL:   time.Hour,
			OwnerEmail: testOwnerEmail,
		},
		store:      fs,
		passwords:  authpw.NewService(fs, testOwnerEmail).WithCost(bcrypt.MinCost),
		sessions:   session.NewMemoryStore(fs),
		blobs:      blobs,
		prospector: enrich.NewMockProspectorWithSeed(7),
		log:        zerolog.Nop(),
		now:        time.Now,
	}
}

// signUp registers an account and returns its session.
func signUp(t *testing.T, svc *Service, name, email string) Session {
	t.Helper()
	result, err := svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	current, err := svc.SessionFromToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("session for %s: %v", email, err)
	}
	return current
}

func ptr[T any](value T) *T {
	return &value
}

func statusOf(err error) int {
	status, _, _, _ := mapError(err)
	return status
}

func TestRegisterEnforcesPasswordLength(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "12345"})
	if !errors.Is(err, authpw.ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if statusOf(err) != 400 {
		t.Fatalf("expected 400, got %d", statusOf(err))
	}

	result, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.com ", Password: "123456"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected token")
	}
	if result.User.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", result.User.Email)
	}
	if result.User.Role != "admin" {
		t.Fatalf("expected first account to be admin, got %q", result.User.Role)
	}

	second, err := svc.Register(ctx, RegisterInput{Name: "Ben", Email: "ben@example.com", Password: "123456"})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.User.Role != "user" {
		t.Fatalf("expected second account to be user, got %q", second.User.Role)
	}

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana 2", Email: "ana@example.com", Password: "123456"})
	if !errors.Is(err, authpw.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginThrottlesAfterRepeatedFailures(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	signUp(t, svc, "Ana", "ana@example.com")

	for i := 0; i < session.MaxLoginFailures; i++ {
		_, err := svc.Login(ctx, "ana@example.com", "wrong-password")
		if !errors.Is(err, authpw.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	_, err := svc.Login(ctx, "ANA@example.com", "secret1")
	if statusOf(err) != 429 {
		t.Fatalf("expected 429 after %d failures, got %v", session.MaxLoginFailures, err)
	}
}

func TestLoginResetsFailureCount(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	signUp(t, svc, "Ana", "ana@example.com")

	for i := 0; i < session.MaxLoginFailures-1; i++ {
		_, _ = svc.Login(ctx, "ana@example.com", "nope")
	}
	if _, err := svc.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Login(ctx, "ana@example.com", "nope"); !errors.Is(err, authpw.ErrInvalidCredentials) {
		t.Fatalf("expected counter reset, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")

	if err := svc.Logout(ctx, current); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, current.Token); err == nil {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestLeadUpdateRecordsActivity(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")

	lead, err := svc.CreateLead(ctx, current.UserID, LeadInput{Name: ptr("Acme Co"), Score: ptr(140)})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if lead.Status != "new" || lead.Source != "manual" {
		t.Fatalf("unexpected defaults: status=%q source=%q", lead.Status, lead.Source)
	}
	if lead.Score != 100 {
		t.Fatalf("expected score clamped to 100, got %d", lead.Score)
	}

	updated, err := svc.UpdateLead(ctx, current.UserID, lead.ID, LeadInput{Status: ptr("won")})
	if err != nil {
		t.Fatalf("update lead: %v", err)
	}
	if updated.Status != "won" || updated.Name != "Acme Co" {
		t.Fatalf("unexpected lead after update: %+v", updated)
	}

	entries, err := svc.LeadActivity(ctx, current.UserID, lead.ID)
	if err != nil {
		t.Fatalf("lead activity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 activity entries, got %d", len(entries))
	}
	if entries[0].Action != "updated_lead" || entries[1].Action != "created_lead" {
		t.Fatalf("unexpected activity order: %q, %q", entries[0].Action, entries[1].Action)
	}

	if _, err := svc.UpdateLead(ctx, current.UserID, lead.ID, LeadInput{Status: ptr("maybe")}); statusOf(err) != 400 {
		t.Fatalf("expected invalid status to be rejected, got %v", err)
	}
}

func TestLeadsAreScopedToOwner(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	ana := signUp(t, svc, "Ana", "ana@example.com")
	ben := signUp(t, svc, "Ben", "ben@example.com")

	lead, err := svc.CreateLead(ctx, ana.UserID, LeadInput{Name: ptr("Acme Co")})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}

	if _, err := svc.GetLead(ctx, ben.UserID, lead.ID); statusOf(err) != 404 {
		t.Fatalf("expected 404 for foreign lead, got %v", err)
	}
	if err := svc.DeleteLead(ctx, ben.UserID, lead.ID); statusOf(err) != 404 {
		t.Fatalf("expected 404 deleting foreign lead, got %v", err)
	}
	leads, err := svc.ListLeads(ctx, ben.UserID, LeadListParams{Status: "all"})
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("expected no leads for ben, got %d", len(leads))
	}
	if _, err := svc.CreateNote(ctx, ben.UserID, NoteInput{Title: ptr("Call"), LeadID: nullable[string]{Set: true, Value: &lead.ID}}); statusOf(err) != 400 {
		t.Fatalf("expected linking a foreign lead to fail, got %v", err)
	}
}

func TestActivityFailureDoesNotFailMutation(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	current := signUp(t, svc, "Ana", "ana@example.com")
	fs.activityErr = errors.New("activity table locked")

	if _, err := svc.CreateLead(context.Background(), current.UserID, LeadInput{Name: ptr("Acme Co")}); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
}

func TestNotesCountFollowsLink(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")

	first, _ := svc.CreateLead(ctx, current.UserID, LeadInput{Name: ptr("First")})
	second, _ := svc.CreateLead(ctx, current.UserID, LeadInput{Name: ptr("Second")})

	note, err := svc.CreateNote(ctx, current.UserID, NoteInput{Title: ptr("Intro"), LeadID: nullable[string]{Set: true, Value: &first.ID}})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.Color != "#ffffff" {
		t.Fatalf("expected default color, got %q", note.Color)
	}
	if got := fs.leads[first.ID].NotesCount; got != 1 {
		t.Fatalf("expected notes_count 1, got %d", got)
	}

	if _, err := svc.UpdateNote(ctx, current.UserID, note.ID, NoteInput{LeadID: nullable[string]{Set: true, Value: &second.ID}}); err != nil {
		t.Fatalf("update note: %v", err)
	}
	if fs.leads[first.ID].NotesCount != 0 || fs.leads[second.ID].NotesCount != 1 {
		t.Fatalf("expected count to move, got first=%d second=%d", fs.leads[first.ID].NotesCount, fs.leads[second.ID].NotesCount)
	}

	if err := svc.DeleteNote(ctx, current.UserID, note.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if got := fs.leads[second.ID].NotesCount; got != 0 {
		t.Fatalf("expected notes_count 0 after delete, got %d", got)
	}
}

func TestTaskCompletedAtFollowsStatus(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")

	task, err := svc.CreateTask(ctx, current.UserID, TaskInput{Title: ptr("Send proposal")})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "todo" || task.Priority != "medium" || task.CompletedAt != nil {
		t.Fatalf("unexpected defaults: %+v", task)
	}

	done, err := svc.UpdateTask(ctx, current.UserID, task.ID, TaskInput{Status: ptr("done")})
	if err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}

	reopened, err := svc.UpdateTask(ctx, current.UserID, task.ID, TaskInput{Status: ptr("in_progress")})
	if err != nil {
		t.Fatalf("reopen task: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Fatalf("expected completed_at to be cleared")
	}

	if _, err := svc.UpdateTask(ctx, current.UserID, task.ID, TaskInput{DueDate: nullable[string]{Set: true, Value: ptr("next week")}}); statusOf(err) != 400 {
		t.Fatalf("expected bad due_date to be rejected, got %v", err)
	}
}

func TestTaskStatsCompletionRate(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	inputs := []TaskInput{
		{Title: ptr("a"), Status: ptr("done")},
		{Title: ptr("b"), DueDate: nullable[string]{Set: true, Value: ptr("2026-03-01")}},
		{Title: ptr("c"), DueDate: nullable[string]{Set: true, Value: ptr("2026-04-01")}},
	}
	for _, in := range inputs {
		if _, err := svc.CreateTask(ctx, current.UserID, in); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	stats, err := svc.TaskStats(ctx, current.UserID)
	if err != nil {
		t.Fatalf("task stats: %v", err)
	}
	if stats.Total != 3 || stats.Done != 1 || stats.Overdue != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.CompletionRate != 33 {
		t.Fatalf("expected completion rate 33, got %d", stats.CompletionRate)
	}
}

func upload(name, body string) Upload {
	return Upload{
		Name:        name,
		Size:        int64(len(body)),
		ContentType: "text/plain",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestUploadValidatesEveryFileFirst(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")

	_, err := svc.UploadFiles(ctx, current.UserID, nil, []Upload{upload("notes.txt", "hi"), upload("run.exe", "MZ")})
	if statusOf(err) != 400 {
		t.Fatalf("expected disallowed extension to be rejected, got %v", err)
	}
	if len(fs.files) != 0 {
		t.Fatalf("expected nothing stored, got %d files", len(fs.files))
	}

	big := upload("deck.pdf", "x")
	big.Size = MaxUploadFileSize + 1
	if _, err := svc.UploadFiles(ctx, current.UserID, nil, []Upload{big}); statusOf(err) != 400 {
		t.Fatalf("expected oversized file to be rejected, got %v", err)
	}

	many := make([]Upload, MaxUploadFiles+1)
	for i := range many {
		many[i] = upload("a.txt", "a")
	}
	if _, err := svc.UploadFiles(ctx, current.UserID, nil, many); statusOf(err) != 400 {
		t.Fatalf("expected too many files to be rejected, got %v", err)
	}
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")
	lead, _ := svc.CreateLead(ctx, current.UserID, LeadInput{Name: ptr("Acme Co")})

	files, err := svc.UploadFiles(ctx, current.UserID, &lead.ID, []Upload{upload("Quote.TXT", "forty two")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if !strings.HasSuffix(files[0].StoredName, ".txt") || files[0].OriginalName != "Quote.TXT" {
		t.Fatalf("unexpected names: %+v", files[0])
	}

	file, body, err := svc.OpenFile(ctx, current.UserID, files[0].ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf.String() != "forty two" || file.LeadID == nil || *file.LeadID != lead.ID {
		t.Fatalf("unexpected download: %q %+v", buf.String(), file)
	}

	if err := svc.DeleteFile(ctx, current.UserID, file.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := svc.OpenFile(ctx, current.UserID, file.ID); statusOf(err) != 404 {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestTicketVisibility(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	admin := signUp(t, svc, "Ada", "ada@example.com")
	ana := signUp(t, svc, "Ana", "ana@example.com")
	ben := signUp(t, svc, "Ben", "ben@example.com")

	ticket, err := svc.CreateTicket(ctx, ana, TicketInput{
		Title:       ptr("Export broken"),
		Description: nullable[string]{Set: true, Value: ptr("PDF is empty")},
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.Status != "open" || ticket.Priority != "medium" || ticket.Category != "general" {
		t.Fatalf("unexpected defaults: %+v", ticket)
	}

	if _, err := svc.GetTicket(ctx, ben, ticket.ID); statusOf(err) != 404 {
		t.Fatalf("expected ticket hidden from ben, got %v", err)
	}
	list, _ := svc.ListTickets(ctx, ben, TicketListParams{})
	if len(list) != 0 {
		t.Fatalf("expected ben to see no tickets, got %d", len(list))
	}

	if _, err := svc.PostTicketMessage(ctx, admin, ticket.ID, MessageInput{Message: "looking", IsInternal: true}); err != nil {
		t.Fatalf("internal note: %v", err)
	}
	reply, err := svc.PostTicketMessage(ctx, ana, ticket.ID, MessageInput{Message: "thanks", IsInternal: true})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.IsInternal {
		t.Fatalf("expected internal flag to be ignored for the requester")
	}

	own, err := svc.GetTicket(ctx, ana, ticket.ID)
	if err != nil {
		t.Fatalf("get own ticket: %v", err)
	}
	if len(own.Messages) != 2 {
		t.Fatalf("expected requester to see 2 public messages, got %d", len(own.Messages))
	}
	all, err := svc.GetTicket(ctx, admin, ticket.ID)
	if err != nil {
		t.Fatalf("admin get ticket: %v", err)
	}
	if len(all.Messages) != 3 {
		t.Fatalf("expected admin to see 3 messages, got %d", len(all.Messages))
	}

	if _, err := svc.UpdateTicket(ctx, admin, ticket.ID, TicketInput{AssignedTo: nullable[string]{Set: true, Value: &ben.UserID}}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	assigned, err := svc.GetTicket(ctx, ben, ticket.ID)
	if err != nil {
		t.Fatalf("assignee get ticket: %v", err)
	}
	if len(assigned.Messages) != 3 {
		t.Fatalf("expected assignee to see internal notes, got %d messages", len(assigned.Messages))
	}
	if err := svc.DeleteTicket(ctx, ben, ticket.ID); statusOf(err) != 403 {
		t.Fatalf("expected assignee delete to be forbidden, got %v", err)
	}
	if err := svc.DeleteTicket(ctx, ana, ticket.ID); err != nil {
		t.Fatalf("requester delete: %v", err)
	}
}

func TestCreateMonitorSeedsResults(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")

	monitor, err := svc.CreateMonitor(ctx, current.UserID, MonitorInput{Keyword: "acme", Platforms: []string{"twitter"}})
	if err != nil {
		t.Fatalf("create monitor: %v", err)
	}
	if monitor.ResultCount != initialMonitorPosts {
		t.Fatalf("expected %d seeded results, got %d", initialMonitorPosts, monitor.ResultCount)
	}
	results, err := svc.MonitorResults(ctx, current.UserID, monitor.ID, "", "")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != initialMonitorPosts {
		t.Fatalf("expected %d results, got %d", initialMonitorPosts, len(results))
	}

	refreshed, err := svc.RefreshMonitor(ctx, current.UserID, monitor.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.NewResults < 2 || refreshed.NewResults > 5 || refreshed.Source != "mock" {
		t.Fatalf("unexpected refresh result: %+v", refreshed)
	}

	other := signUp(t, svc, "Ben", "ben@example.com")
	if _, err := svc.MonitorResults(ctx, other.UserID, monitor.ID, "", ""); statusOf(err) != 404 {
		t.Fatalf("expected foreign monitor to be hidden, got %v", err)
	}
	if err := svc.DeleteMonitor(ctx, current.UserID, monitor.ID); err != nil {
		t.Fatalf("delete monitor: %v", err)
	}
}

func TestScrapeProfileRequiresProvider(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	if _, err := svc.ScrapeProfile(context.Background(), ""); statusOf(err) != 400 {
		t.Fatalf("expected missing url to fail, got %v", err)
	}
	_, err := svc.ScrapeProfile(context.Background(), "https://linkedin.com/in/someone")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "CONFIG_ERROR" {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestScoreLeadWithoutProviderIsBasic(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")
	lead, _ := svc.CreateLead(ctx, current.UserID, LeadInput{
		Name:    ptr("Acme Co"),
		Email:   nullable[string]{Set: true, Value: ptr("hi@acme.test")},
		Company: nullable[string]{Set: true, Value: ptr("Acme")},
	})

	result, err := svc.ScoreLead(ctx, current.UserID, lead.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.Source != "basic" {
		t.Fatalf("expected basic source, got %q", result.Source)
	}
	if fs.leads[lead.ID].Score != 0 {
		t.Fatalf("expected basic score not to be persisted")
	}
}

type stubProvider struct {
	hits    int
	scraped map[string]any
	queries []string
}

func (p *stubProvider) Name() string { return "firecrawl" }

func (p *stubProvider) Search(_ context.Context, query string, limit int) ([]enrich.SearchResult, error) {
	p.queries = append(p.queries, query)
	out := []enrich.SearchResult{}
	for i := 0; i < p.hits && i < limit; i++ {
		out = append(out, enrich.SearchResult{URL: fmt.Sprintf("https://news.test/%d", i), Title: fmt.Sprintf("Acme mention %d", i)})
	}
	return out, nil
}

func (p *stubProvider) Scrape(context.Context, string) (map[string]any, error) {
	return p.scraped, nil
}

func TestScoreLeadWithProviderPersistsScore(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	provider := &stubProvider{hits: 5, scraped: map[string]any{"title": "Acme"}}
	svc.provider = provider
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")
	lead, err := svc.CreateLead(ctx, current.UserID, LeadInput{
		Name:    ptr("Acme Co"),
		Email:   nullable[string]{Set: true, Value: ptr("hi@acme.test")},
		Phone:   nullable[string]{Set: true, Value: ptr("+1 555 0100")},
		Company: nullable[string]{Set: true, Value: ptr("Acme")},
		Website: nullable[string]{Set: true, Value: ptr("https://acme.test")},
		SocialProfiles: ptr(map[string]string{
			"linkedin":  "https://linkedin.com/company/acme",
			"twitter":   "https://twitter.com/acme",
			"instagram": "https://instagram.com/acme",
			"facebook":  "https://facebook.com/acme",
		}),
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}

	result, err := svc.ScoreLead(ctx, current.UserID, lead.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	want := scoring.Breakdown{WebPresence: 25, ContactInfo: 20, SocialProfiles: 30, OnlineMentions: 20, WebsiteContent: 15}
	if result.Breakdown != want {
		t.Fatalf("unexpected breakdown: %+v", result.Breakdown)
	}
	if result.Score != 100 {
		t.Fatalf("expected score clamped to 100, got %d", result.Score)
	}
	if len(result.Mentions) != 3 {
		t.Fatalf("expected 3 mentions kept, got %d", len(result.Mentions))
	}
	if result.Source != "firecrawl" || result.WebsiteSummary["title"] != "Acme" {
		t.Fatalf("unexpected source or website summary: %+v", result)
	}
	if len(provider.queries) != 1 || provider.queries[0] != `"Acme Co" "Acme"` {
		t.Fatalf("unexpected mention queries: %q", provider.queries)
	}
	if fs.leads[lead.ID].Score != 100 {
		t.Fatalf("expected score persisted, got %d", fs.leads[lead.ID].Score)
	}
	if !hasActivity(fs, "ai_scored", lead.ID) {
		t.Fatalf("expected ai_scored activity")
	}
}

func TestScoreLeadWithoutWebsiteSkipsScrape(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	svc.provider = &stubProvider{hits: 1, scraped: map[string]any{"title": "unused"}}
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")
	lead, _ := svc.CreateLead(ctx, current.UserID, LeadInput{
		Name:  ptr("Bolt"),
		Email: nullable[string]{Set: true, Value: ptr("hi@bolt.test")},
	})

	result, err := svc.ScoreLead(ctx, current.UserID, lead.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	want := scoring.Breakdown{ContactInfo: 10, OnlineMentions: 7}
	if result.Breakdown != want || result.Score != 17 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.WebsiteSummary != nil {
		t.Fatalf("expected no website summary, got %v", result.WebsiteSummary)
	}
	if fs.leads[lead.ID].Score != 17 {
		t.Fatalf("expected score persisted, got %d", fs.leads[lead.ID].Score)
	}
}

func hasActivity(fs *fakeStore, action, entityID string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, entry := range fs.activity {
		if entry.Action == action && entry.EntityID == entityID {
			return true
		}
	}
	return false
}

// stubIndex answers every query with a fixed set of ids, the way a word
// oriented index can disagree with a substring match.
type stubIndex struct {
	ids []string
}

func (i *stubIndex) Healthy() bool { return true }
func (i *stubIndex) SearchLeads(search.Query) ([]string, error) { return i.ids, nil }
func (i *stubIndex) IndexLeads([]search.LeadRecord) error { return nil }
func (i *stubIndex) DeleteLead(string) error { return nil }

func TestListLeadsSearchStaysSubstringWithIndex(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	ctx := context.Background()
	current := signUp(t, svc, "Ana", "ana@example.com")
	acme, _ := svc.CreateLead(ctx, current.UserID, LeadInput{Name: ptr("Acme Co")})
	acne, _ := svc.CreateLead(ctx, current.UserID, LeadInput{Name: ptr("Acne Clinic")})
	bolt, _ := svc.CreateLead(ctx, current.UserID, LeadInput{
		Name:    ptr("Bolt"),
		Company: nullable[string]{Set: true, Value: ptr("ACME Holdings")},
	})

	// The index misses the mid-word match and returns a near miss instead.
	index := &stubIndex{ids: []string{acne.ID}}
	svc.search = search.NewService(index, zerolog.Nop())

	leads, err := svc.ListLeads(ctx, current.UserID, LeadListParams{Search: "cme"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, lead := range leads {
		got[lead.ID] = true
	}
	if len(got) != 2 || !got[acme.ID] || !got[bolt.ID] {
		t.Fatalf("expected substring matches only, got %+v", leads)
	}

	index.ids = []string{acme.ID}
	leads, err = svc.ListLeads(ctx, current.UserID, LeadListParams{Search: "acme co"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 1 || leads[0].ID != acme.ID {
		t.Fatalf("expected index hit that also matches, got %+v", leads)
	}
}

func TestAdminOwnerProtection(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	first := signUp(t, svc, "Ada", "ada@example.com")
	owner := signUp(t, svc, "Owner", testOwnerEmail)
	if !owner.IsOwner || owner.Role != "admin" {
		t.Fatalf("expected owner admin, got %+v", owner)
	}

	err := svc.UpdateUser(ctx, first, owner.UserID, AdminUserInput{Role: ptr("user")})
	if !errors.Is(err, rbac.ErrOwnerProtected) {
		t.Fatalf("expected owner protection on update, got %v", err)
	}
	if err := svc.DeleteUser(ctx, first, owner.UserID); !errors.Is(err, rbac.ErrOwnerProtected) {
		t.Fatalf("expected owner protection on delete, got %v", err)
	}
	if err := svc.DeleteUser(ctx, first, first.UserID); !errors.Is(err, rbac.ErrSelfDelete) {
		t.Fatalf("expected self delete to be refused, got %v", err)
	}

	// The owner may edit their own profile but the role stays admin.
	if err := svc.UpdateUser(ctx, owner, owner.UserID, AdminUserInput{Name: ptr("The Owner"), Role: ptr("admin")}); err != nil {
		t.Fatalf("owner self edit: %v", err)
	}
}

func TestAdminCreateAndDemoteUser(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	admin := signUp(t, svc, "Ada", "ada@example.com")

	user, err := svc.CreateUser(ctx, admin, AdminUserInput{
		Name:     ptr("Cleo"),
		Email:    ptr("cleo@example.com"),
		Password: ptr("secret1"),
		Role:     ptr("admin"),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Role != "admin" {
		t.Fatalf("expected admin role, got %q", user.Role)
	}

	if err := svc.UpdateUser(ctx, admin, user.ID, AdminUserInput{Role: ptr("superuser")}); statusOf(err) != 400 {
		t.Fatalf("expected invalid role to be rejected, got %v", err)
	}
	if err := svc.UpdateUser(ctx, admin, user.ID, AdminUserInput{Email: ptr("ada@example.com")}); statusOf(err) != 400 {
		t.Fatalf("expected duplicate email to be rejected, got %v", err)
	}
	if err := svc.UpdateUser(ctx, admin, user.ID, AdminUserInput{Role: ptr("user")}); err != nil {
		t.Fatalf("demote: %v", err)
	}
	reloaded, _ := svc.Me(ctx, user.ID)
	if reloaded.Role != "user" {
		t.Fatalf("expected demoted role, got %q", reloaded.Role)
	}

	entries, err := svc.ListActivity(ctx, ActivityParams{UserID: admin.UserID})
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "updated_user" || entries[1].Action != "created_user" {
		t.Fatalf("unexpected admin activity: %+v", entries)
	}
}

func TestAdminStatsCounts(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()
	admin := signUp(t, svc, "Ada", "ada@example.com")
	_, _ = svc.CreateLead(ctx, admin.UserID, LeadInput{Name: ptr("Acme Co")})
	_, _ = svc.CreateTicket(ctx, admin, TicketInput{Title: ptr("Help")})

	stats, err := svc.AdminStats(ctx)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	if stats.Users != 1 || stats.Leads != 1 || stats.Tickets != 1 || stats.OpenTickets != 1 {
		t.Fatalf("unexpected counts: %+v", stats.TableCounts)
	}
	if len(stats.LeadsPerStatus) != 1 || stats.LeadsPerStatus[0].Status != "new" {
		t.Fatalf("unexpected leads per status: %+v", stats.LeadsPerStatus)
	}
	if len(stats.RecentActivity) != 2 {
		t.Fatalf("expected 2 recent activity entries, got %d", len(stats.RecentActivity))
	}
}

func TestSessionFromTokenDropsDeletedUser(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	current := signUp(t, svc, "Ana", "ana@example.com")
	delete(fs.users, current.UserID)

	if _, err := svc.SessionFromToken(context.Background(), current.Token); err == nil {
		t.Fatalf("expected token of deleted user to be rejected")
	}
}

var _ dataStore = (*fakeStore)(nil)
