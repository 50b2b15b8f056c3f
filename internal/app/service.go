package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nexacrm/api/internal/auth"
	"nexacrm/api/internal/authpw"
	"nexacrm/api/internal/blob"
	"nexacrm/api/internal/config"
	"nexacrm/api/internal/enrich"
	"nexacrm/api/internal/export"
	"nexacrm/api/internal/search"
	"nexacrm/api/internal/session"
	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

// Session is the authenticated caller of a request.
type Session struct {
	Token     string
	UserID    string
	Name      string
	Email     string
	Role      string
	IsOwner   bool
	JTI       string
	ExpiresAt time.Time
}

func (s Session) IsAdmin() bool {
	return s.Role == "admin"
}

type dataStore interface {
	Ping(context.Context) error

	CountUsers(context.Context) (int, error)
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	EmailTaken(context.Context, string, string) (bool, error)
	UpdateUser(context.Context, store.User) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error
	TouchLastLogin(context.Context, string) error
	DeleteUser(context.Context, string) error
	ListUserSummaries(context.Context) ([]store.UserSummary, error)
	TopUsersByTaskCount(context.Context, int) ([]store.UserTaskCount, error)

	ListLeads(context.Context, store.LeadFilter) ([]store.Lead, error)
	RecentLeads(context.Context, string, int) ([]store.Lead, error)
	LeadCounts(context.Context, string, string) ([]store.CountBucket, error)
	GetLead(context.Context, string, string) (store.Lead, error)
	InsertLead(context.Context, store.Lead) (store.Lead, error)
	UpdateLead(context.Context, store.Lead) (store.Lead, error)
	UpdateLeadScore(context.Context, string, string, int) error
	AdjustNotesCount(context.Context, string, int) error
	DeleteLead(context.Context, string, string) error

	ListNotes(context.Context, store.NoteFilter) ([]store.Note, error)
	GetNote(context.Context, string, string) (store.Note, error)
	InsertNote(context.Context, store.Note) (store.Note, error)
	UpdateNote(context.Context, store.Note) (store.Note, error)
	DeleteNote(context.Context, string, string) error

	ListTasks(context.Context, store.TaskFilter) ([]store.Task, error)
	TaskStats(context.Context, string, string) (store.TaskCounts, error)
	GetTask(context.Context, string, string) (store.Task, error)
	InsertTask(context.Context, store.Task) (store.Task, error)
	UpdateTask(context.Context, store.Task) (store.Task, error)
	DeleteTask(context.Context, string, string) error

	ListFiles(context.Context, store.FileFilter) ([]store.File, error)
	GetFile(context.Context, string, string) (store.File, error)
	InsertFile(context.Context, store.File) (store.File, error)
	SetFileLead(context.Context, string, string, *string) (store.File, error)
	DeleteFile(context.Context, string, string) error

	ListMonitors(context.Context, string) ([]store.SocialMonitor, error)
	GetMonitor(context.Context, string, string) (store.SocialMonitor, error)
	InsertMonitor(context.Context, store.SocialMonitor) (store.SocialMonitor, error)
	DeleteMonitor(context.Context, string, string) error
	InsertResults(context.Context, string, []store.SocialResult) (int, error)
	ListResults(context.Context, store.SocialResultFilter) ([]store.SocialResult, error)

	ListTickets(context.Context, store.TicketFilter) ([]store.Ticket, error)
	TicketStats(context.Context, string) (store.TicketCounts, error)
	GetTicket(context.Context, string) (store.Ticket, error)
	InsertTicket(context.Context, store.Ticket) (store.Ticket, error)
	UpdateTicket(context.Context, store.Ticket) (store.Ticket, error)
	DeleteTicket(context.Context, string) error
	ListTicketMessages(context.Context, string, bool) ([]store.TicketMessage, error)
	InsertTicketMessage(context.Context, store.TicketMessage) (store.TicketMessage, error)

	InsertActivity(context.Context, store.ActivityEntry) error
	ListActivity(context.Context, store.ActivityFilter) ([]store.ActivityEntry, error)
	Count(context.Context, string) (int, error)
}

type placeSearcher interface {
	Search(ctx context.Context, q enrich.PlacesQuery) ([]enrich.Place, error)
}

type leadExporter interface {
	ExportLead(ctx context.Context, userID, leadID, preparedBy string) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendTicketReply(to, recipientName, authorName, ticketTitle, message string) error
	SendWelcome(to, userName, role, createdBy string) error
}

// Dependencies are the optional collaborators wired in main. Nil values
// disable the matching feature or select its fallback.
type Dependencies struct {
	Sessions   session.Store
	Search     *search.Service
	Blobs      blob.Store
	Prospector enrich.Prospector
	// Provider is the web search/scrape provider; nil when no key is configured.
	Provider enrich.Provider
	Places   *enrich.Places
	Exporter *export.Service
	Mailer   mailer
	Logger   zerolog.Logger
}

type Service struct {
	cfg        config.Config
	store      dataStore
	passwords  *authpw.Service
	sessions   session.Store
	search     *search.Service
	blobs      blob.Store
	prospector enrich.Prospector
	provider   enrich.Provider
	places     placeSearcher
	exporter   leadExporter
	mailer     mailer
	log        zerolog.Logger
	now        func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Dependencies) *Service {
	svc := &Service{
		cfg:        cfg,
		store:      dataStore,
		passwords:  authpw.NewService(dataStore, cfg.OwnerEmail),
		sessions:   deps.Sessions,
		search:     deps.Search,
		blobs:      deps.Blobs,
		prospector: deps.Prospector,
		provider:   deps.Provider,
		mailer:     deps.Mailer,
		log:        deps.Logger,
		now:        time.Now,
	}
	if svc.sessions == nil {
		svc.sessions = session.NewMemoryStore(dataStore)
	}
	if svc.prospector == nil {
		svc.prospector = enrich.NewMockProspector()
	}
	// Typed nils must stay nil interfaces so feature checks work.
	if deps.Places != nil {
		svc.places = deps.Places
	}
	if deps.Exporter != nil {
		svc.exporter = deps.Exporter
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user store.User) (string, error) {
	claims := auth.NewClaims(user.ID, user.Name, user.Email, user.Role, s.cfg.TokenTTL)
	return auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
}

// SessionFromToken validates a bearer token and reloads the caller so role
// changes and deletions take effect before the token expires.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		IsOwner:   user.IsOwner,
		JTI:       claims.ID,
		ExpiresAt: claims.Expiry(),
	}, nil
}

// logActivity appends to the activity log. A failed write is logged and
// otherwise ignored; the primary mutation has already happened.
func (s *Service) logActivity(ctx context.Context, userID, action, entityType, entityID, details string) {
	err := s.store.InsertActivity(ctx, store.ActivityEntry{
		ID:         util.NewID(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("action", action).Str("entity_id", entityID).Msg("activity log write failed")
	}
}

func (s *Service) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// nullable tracks whether a JSON field was sent at all, so an explicit null
// can clear a column while an absent field leaves it alone.
type nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	n.Value = &value
	return nil
}

// apply overwrites target when the field was sent. Blank strings clear.
func (n nullable[T]) apply(target **T) {
	if !n.Set {
		return
	}
	if str, ok := any(n.Value).(*string); ok && str != nil && strings.TrimSpace(*str) == "" {
		*target = nil
		return
	}
	*target = n.Value
}

func blankToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func oneOf(value string, allowed ...string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
