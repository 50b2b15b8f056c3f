package enrich

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

const (
	// MaxSearchPlatforms bounds external calls per request.
	MaxSearchPlatforms = 3
	refreshSearchLimit = 4
)

var (
	DefaultProspectPlatforms = []string{"twitter", "linkedin", "instagram", "facebook"}
	DefaultMonitorPlatforms  = []string{"twitter", "linkedin", "instagram"}
)

// Profile is a candidate prospect found on a social platform.
type Profile struct {
	ID              string `json:"id"`
	Platform        string `json:"platform"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	Position        string `json:"position,omitempty"`
	Company         string `json:"company,omitempty"`
	Bio             string `json:"bio"`
	Followers       *int   `json:"followers"`
	Following       *int   `json:"following,omitempty"`
	Posts           *int   `json:"posts,omitempty"`
	Avatar          string `json:"avatar"`
	ProfileURL      string `json:"profile_url"`
	SourceURL       string `json:"source_url,omitempty"`
	MarkdownPreview string `json:"markdown_preview,omitempty"`
	Email           string `json:"email,omitempty"`
	Location        string `json:"location,omitempty"`
	Verified        bool   `json:"verified"`
	RelevanceScore  int    `json:"relevance_score"`
	Source          string `json:"source,omitempty"`
}

type ProspectQuery struct {
	Keyword   string
	Industry  string
	Platforms []string
	Limit     int
}

// MentionQuery asks for posts about Keyword. PerPlatform zero means a small
// random batch, used for monitor refreshes.
type MentionQuery struct {
	Keyword     string
	Platforms   []string
	PerPlatform int
}

// Prospector discovers prospect profiles and keyword mentions.
type Prospector interface {
	Source() string
	FindProspects(ctx context.Context, q ProspectQuery) ([]Profile, error)
	Mentions(ctx context.Context, q MentionQuery) ([]store.SocialResult, error)
}

var (
	firstNames = []string{"Alex", "Sarah", "Michael", "Emma", "David", "Jessica", "Chris", "Amanda", "Daniel", "Lisa", "James", "Maria", "Robert", "Jennifer"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Wilson", "Anderson", "Taylor", "Thomas"}
	companies  = []string{"TechCorp", "InnovateCo", "StartupHub", "GrowthLabs", "DigitalEdge", "FutureTech", "CloudBase", "DataDrive"}
	positions  = []string{"CEO", "Founder", "CTO", "VP of Sales", "Marketing Director", "Business Dev Manager", "Product Manager"}
	locations  = []string{"Budapest", "London", "New York", "Berlin", "Sydney", "Singapore"}
	// Weighted towards positive, as in real mention streams.
	sentiments    = []string{"positive", "positive", "positive", "neutral", "negative"}
	postTemplates = []string{
		"Just saw incredible results with %s! Conversion rates up 40%%.",
		"%s is completely changing how we approach sales. Who else?",
		"Looking for experts in %s. DM if interested!",
		"Hot take: %s is the most underutilized strategy in B2B right now.",
		"Our team is all-in on %s. AMA!",
	}
)

// MockProspector synthesizes plausible profiles and posts. It is the fallback
// when no search provider is configured.
type MockProspector struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewMockProspector() *MockProspector {
	return NewMockProspectorWithSeed(uint64(time.Now().UnixNano()))
}

func NewMockProspectorWithSeed(seed uint64) *MockProspector {
	return &MockProspector{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

func (m *MockProspector) Source() string {
	return "mock"
}

// between returns a value in [lo, hi]. Callers hold m.mu.
func (m *MockProspector) between(lo, hi int) int {
	return lo + m.rnd.IntN(hi-lo+1)
}

func (m *MockProspector) pick(values []string) string {
	return values[m.rnd.IntN(len(values))]
}

func (m *MockProspector) intPtr(lo, hi int) *int {
	v := m.between(lo, hi)
	return &v
}

func (m *MockProspector) profile(keyword, platform string) Profile {
	first, last, company, position := m.pick(firstNames), m.pick(lastNames), m.pick(companies), m.pick(positions)
	username := fmt.Sprintf("%s%s%d", strings.ToLower(first), strings.ToLower(last), m.between(1, 999))
	return Profile{
		ID:             util.NewID(),
		Platform:       platform,
		Name:           first + " " + last,
		Username:       "@" + username,
		Position:       position,
		Company:        company,
		Bio:            fmt.Sprintf("%s @ %s. Passionate about %s.", position, company, keyword),
		Followers:      m.intPtr(200, 80000),
		Following:      m.intPtr(50, 5000),
		Posts:          m.intPtr(20, 3000),
		Avatar:         "https://api.dicebear.com/7.x/avataaars/svg?seed=" + username,
		ProfileURL:     fmt.Sprintf("https://%s.com/%s", platform, username),
		Email:          fmt.Sprintf("%s.%s@%s.com", strings.ToLower(first), strings.ToLower(last), strings.ToLower(company)),
		Location:       m.pick(locations),
		Verified:       m.rnd.Float64() > 0.8,
		RelevanceScore: m.between(55, 99),
		Source:         "mock",
	}
}

func (m *MockProspector) post(keyword, platform string, foundAt time.Time) store.SocialResult {
	first := m.pick(firstNames)
	seed := fmt.Sprintf("%s%d", first, m.between(1, 9999))
	return store.SocialResult{
		ID:       util.NewID(),
		Platform: platform,
		Author: store.SocialAuthor{
			Name:     first + " " + m.pick(lastNames),
			Username: fmt.Sprintf("@%s%d", strings.ToLower(first), m.between(10, 999)),
			Avatar:   "https://api.dicebear.com/7.x/avataaars/svg?seed=" + seed,
		},
		Content: fmt.Sprintf(m.pick(postTemplates), keyword),
		URL:     fmt.Sprintf("https://%s.com/post/%s", platform, util.NewID()[:10]),
		Engagement: store.Engagement{
			Likes:    m.between(0, 8000),
			Comments: m.between(0, 800),
			Shares:   m.between(0, 2000),
		},
		Sentiment: m.pick(sentiments),
		FoundAt:   foundAt,
	}
}

// FindProspects returns q.Limit profiles spread over q.Platforms, best first.
func (m *MockProspector) FindProspects(ctx context.Context, q ProspectQuery) ([]Profile, error) {
	if len(q.Platforms) == 0 || q.Limit <= 0 {
		return []Profile{}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	perPlatform := (q.Limit + len(q.Platforms) - 1) / len(q.Platforms)
	out := make([]Profile, 0, perPlatform*len(q.Platforms))
	for _, platform := range q.Platforms {
		for i := 0; i < perPlatform; i++ {
			out = append(out, m.profile(q.Keyword, platform))
		}
	}
	sortByRelevance(out)
	return out[:q.Limit], nil
}

// pad appends random profiles until there are limit entries.
func (m *MockProspector) pad(profiles []Profile, keyword string, platforms []string, limit int) []Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(profiles) < limit {
		profiles = append(profiles, m.profile(keyword, m.pick(platforms)))
	}
	return profiles
}

// Mentions generates PerPlatform posts per platform (2 to 5 when zero). Posts
// for a fixed batch are backdated up to a week; refresh batches are dated now.
func (m *MockProspector) Mentions(ctx context.Context, q MentionQuery) ([]store.SocialResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	out := make([]store.SocialResult, 0)
	for _, platform := range q.Platforms {
		n := q.PerPlatform
		foundAt := func() time.Time {
			return now.Add(-time.Duration(m.rnd.Int64N(int64(7 * 24 * time.Hour))))
		}
		if n <= 0 {
			n = m.between(2, 5)
			foundAt = func() time.Time { return now }
		}
		for i := 0; i < n; i++ {
			out = append(out, m.post(q.Keyword, platform, foundAt()))
		}
	}
	return out, nil
}

// SearchProspector runs site-restricted searches through a Provider and
// pads or falls back with the mock generator.
type SearchProspector struct {
	provider Provider
	fallback *MockProspector
	log      zerolog.Logger
}

func NewSearchProspector(provider Provider, fallback *MockProspector, log zerolog.Logger) *SearchProspector {
	return &SearchProspector{provider: provider, fallback: fallback, log: log}
}

func (s *SearchProspector) Source() string {
	return s.provider.Name()
}

func (s *SearchProspector) FindProspects(ctx context.Context, q ProspectQuery) ([]Profile, error) {
	if len(q.Platforms) == 0 || q.Limit <= 0 {
		return []Profile{}, nil
	}
	perPlatform := (q.Limit + len(q.Platforms) - 1) / len(q.Platforms)

	profiles := make([]Profile, 0, q.Limit)
	for _, platform := range capPlatforms(q.Platforms) {
		query := strings.TrimSpace(q.Keyword + " " + q.Industry)
		query += " site:" + siteFilter(platform, true)
		results, err := s.provider.Search(ctx, query, perPlatform)
		if err != nil {
			s.log.Warn().Err(err).Str("platform", platform).Msg("prospect search failed")
			continue
		}
		for _, r := range results {
			profiles = append(profiles, s.searchProfile(platform, r))
		}
	}

	profiles = s.fallback.pad(profiles, q.Keyword, q.Platforms, q.Limit)
	sortByRelevance(profiles)
	return profiles[:q.Limit], nil
}

func (s *SearchProspector) searchProfile(platform string, r SearchResult) Profile {
	s.fallback.mu.Lock()
	relevance := s.fallback.between(60, 95)
	s.fallback.mu.Unlock()

	bio := r.Description
	if bio == "" {
		bio = truncate(r.Markdown, 200)
	}
	seed := r.Title
	if seed == "" {
		seed = "U"
	}
	return Profile{
		ID:              util.NewID(),
		Platform:        platform,
		Name:            titleName(r.Title),
		Username:        usernameFromURL(r.URL),
		Bio:             bio,
		Avatar:          "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(seed),
		ProfileURL:      r.URL,
		SourceURL:       r.URL,
		MarkdownPreview: truncate(r.Markdown, 500),
		RelevanceScore:  relevance,
		Source:          s.provider.Name(),
	}
}

// Mentions searches each platform (capped) and falls back to generated posts
// when the provider finds nothing.
func (s *SearchProspector) Mentions(ctx context.Context, q MentionQuery) ([]store.SocialResult, error) {
	limit := q.PerPlatform
	if limit <= 0 {
		limit = refreshSearchLimit
	}
	now := time.Now().UTC()

	out := make([]store.SocialResult, 0)
	for _, platform := range capPlatforms(q.Platforms) {
		results, err := s.provider.Search(ctx, q.Keyword+" site:"+siteFilter(platform, false), limit)
		if err != nil {
			s.log.Warn().Err(err).Str("platform", platform).Msg("mention search failed")
			continue
		}
		for _, r := range results {
			content := r.Description
			if content == "" {
				content = truncate(r.Markdown, 300)
			}
			seed := r.Title
			if seed == "" {
				seed = "U"
			}
			out = append(out, store.SocialResult{
				ID:       util.NewID(),
				Platform: platform,
				Author: store.SocialAuthor{
					Name:   titleName(r.Title),
					Avatar: "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(seed),
				},
				Content:   content,
				URL:       r.URL,
				Sentiment: "neutral",
				FoundAt:   now,
			})
		}
	}

	if len(out) == 0 {
		return s.fallback.Mentions(ctx, q)
	}
	return out, nil
}

func capPlatforms(platforms []string) []string {
	if len(platforms) > MaxSearchPlatforms {
		return platforms[:MaxSearchPlatforms]
	}
	return platforms
}

func usernameFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimRight(raw, "/")
	last := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if i := strings.Index(last, "?"); i >= 0 {
		last = last[:i]
	}
	return "@" + last
}

func sortByRelevance(profiles []Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].RelevanceScore > profiles[j].RelevanceScore
	})
}
