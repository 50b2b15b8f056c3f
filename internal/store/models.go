package store

import "time"

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsOwner      bool       `json:"is_owner"`
	Company      *string    `json:"company"`
	Phone        *string    `json:"phone"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login"`
}

// UserSummary is a user row with ownership counters for the admin console.
type UserSummary struct {
	User
	LeadCount int `json:"lead_count"`
	TaskCount int `json:"task_count"`
}

type Lead struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Name           string            `json:"name"`
	Email          *string           `json:"email"`
	Phone          *string           `json:"phone"`
	Company        *string           `json:"company"`
	Position       *string           `json:"position"`
	Status         string            `json:"status"`
	Source         string            `json:"source"`
	Score          int               `json:"score"`
	SocialProfiles map[string]string `json:"social_profiles"`
	Tags           []string          `json:"tags"`
	Address        *string           `json:"address"`
	Website        *string           `json:"website"`
	PlaceID        *string           `json:"place_id"`
	NotesCount     int               `json:"notes_count"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type LeadFilter struct {
	UserID string
	Status string
	Source string
	Search string
	// IDs are search index hits for Search. They widen the substring match,
	// they never replace it.
	IDs []string
}

type CountBucket struct {
	Key   string
	Count int
}

type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	LeadID    *string   `json:"lead_id"`
	LeadName  *string   `json:"lead_name"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NoteFilter struct {
	UserID     string
	LeadID     string
	Search     string
	PinnedOnly bool
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	LeadID      *string    `json:"lead_id"`
	LeadName    *string    `json:"lead_name"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *string    `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type TaskFilter struct {
	UserID   string
	Status   string
	Priority string
	LeadID   string
	// DueBefore keeps open tasks due on or before this YYYY-MM-DD date.
	DueBefore string
}

type File struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	LeadID       *string   `json:"lead_id"`
	LeadName     *string   `json:"lead_name"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

type FileFilter struct {
	UserID string
	LeadID string
	Search string
}

type SocialMonitor struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Keyword     string    `json:"keyword"`
	Platforms   []string  `json:"platforms"`
	Active      bool      `json:"active"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type SocialAuthor struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type Engagement struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

type SocialResult struct {
	ID         string       `json:"id"`
	MonitorID  string       `json:"monitor_id"`
	Platform   string       `json:"platform"`
	Author     SocialAuthor `json:"author"`
	Content    string       `json:"content"`
	URL        string       `json:"url"`
	Engagement Engagement   `json:"engagement"`
	Sentiment  string       `json:"sentiment"`
	FoundAt    time.Time    `json:"found_at"`
}

type SocialResultFilter struct {
	MonitorID string
	Platform  string
	Sentiment string
	Limit     int
}

type Ticket struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     *string   `json:"user_name"`
	AssignedTo   *string   `json:"assigned_to"`
	AssignedName *string   `json:"assigned_name"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TicketFilter struct {
	// VisibleTo limits results to tickets created by or assigned to this user.
	// Empty means every ticket (admin view).
	VisibleTo string
	Status    string
	Priority  string
	Category  string
}

type TicketMessage struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	UserName   *string   `json:"user_name"`
	UserRole   *string   `json:"user_role"`
	Message    string    `json:"message"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActivityEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   *string   `json:"user_name"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActivityFilter struct {
	UserID   string
	EntityID string
	Limit    int
	Offset   int
}

// TableCounts holds the row totals shown on the admin dashboard.
type TableCounts struct {
	Users       int `json:"users"`
	Leads       int `json:"leads"`
	Tasks       int `json:"tasks"`
	Notes       int `json:"notes"`
	Files       int `json:"files"`
	Tickets     int `json:"tickets"`
	OpenTickets int `json:"openTickets"`
	Monitors    int `json:"monitors"`
}

type UserTaskCount struct {
	Name  string `json:"name"`
	Count int    `json:"cnt"`
}
