package app

import (
	"context"
	"strings"

	"nexacrm/api/internal/enrich"
	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

const (
	defaultProspectLimit = 12
	maxProspectLimit     = 50
	initialMonitorPosts  = 6
	monitorResultsLimit  = 100
)

type ProspectSearchInput struct {
	Keyword   string   `json:"keyword"`
	Industry  string   `json:"industry"`
	Platforms []string `json:"platforms"`
	Limit     int      `json:"limit"`
}

type ProspectSearchResult struct {
	Results []enrich.Profile `json:"results"`
	Source  string           `json:"source"`
}

func cleanPlatforms(platforms, fallback []string) []string {
	out := make([]string, 0, len(platforms))
	seen := make(map[string]bool, len(platforms))
	for _, platform := range platforms {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" || seen[platform] {
			continue
		}
		seen[platform] = true
		out = append(out, platform)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

func (s *Service) FindProspects(ctx context.Context, in ProspectSearchInput) (ProspectSearchResult, error) {
	keyword := strings.TrimSpace(in.Keyword)
	if keyword == "" {
		return ProspectSearchResult{}, validationError("Keyword is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultProspectLimit
	}
	limit = min(limit, maxProspectLimit)

	profiles, err := s.prospector.FindProspects(ctx, enrich.ProspectQuery{
		Keyword:   keyword,
		Industry:  strings.TrimSpace(in.Industry),
		Platforms: cleanPlatforms(in.Platforms, enrich.DefaultProspectPlatforms),
		Limit:     limit,
	})
	if err != nil {
		return ProspectSearchResult{}, err
	}
	return ProspectSearchResult{Results: profiles, Source: s.prospector.Source()}, nil
}

type ScrapedProfile struct {
	Name       any            `json:"name"`
	Position   any            `json:"position"`
	Company    any            `json:"company"`
	Bio        any            `json:"bio"`
	Location   any            `json:"location"`
	Followers  any            `json:"followers"`
	Email      any            `json:"email"`
	Platform   string         `json:"platform"`
	ProfileURL string         `json:"profile_url"`
	Raw        map[string]any `json:"raw"`
}

// firstField returns the first non-empty value among keys, or nil.
func firstField(data map[string]any, keys ...string) any {
	for _, key := range keys {
		value, ok := data[key]
		if !ok || value == nil {
			continue
		}
		if str, isString := value.(string); isString && strings.TrimSpace(str) == "" {
			continue
		}
		return value
	}
	return nil
}

func (s *Service) ScrapeProfile(ctx context.Context, rawURL string) (ScrapedProfile, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return ScrapedProfile{}, validationError("URL is required")
	}
	if s.provider == nil {
		return ScrapedProfile{}, configError("FIRECRAWL_API_KEY is not configured")
	}
	extracted, err := s.provider.Scrape(ctx, url)
	if err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("profile scrape failed")
		extracted = nil
	}
	if len(extracted) == 0 {
		return ScrapedProfile{}, extractionError("Could not extract any content from the page")
	}
	return ScrapedProfile{
		Name:       firstField(extracted, "full_name", "name"),
		Position:   firstField(extracted, "job_title", "title"),
		Company:    firstField(extracted, "company"),
		Bio:        firstField(extracted, "bio", "about"),
		Location:   firstField(extracted, "location"),
		Followers:  firstField(extracted, "follower_count", "followers"),
		Email:      firstField(extracted, "email"),
		Platform:   enrich.DetectPlatform(url),
		ProfileURL: url,
		Raw:        extracted,
	}, nil
}

func (s *Service) ListMonitors(ctx context.Context, userID string) ([]store.SocialMonitor, error) {
	return s.store.ListMonitors(ctx, userID)
}

type MonitorInput struct {
	Keyword   string   `json:"keyword"`
	Platforms []string `json:"platforms"`
}

// CreateMonitor stores the monitor and seeds it with an initial batch of
// mentions per platform.
func (s *Service) CreateMonitor(ctx context.Context, userID string, in MonitorInput) (store.SocialMonitor, error) {
	keyword := strings.TrimSpace(in.Keyword)
	if keyword == "" {
		return store.SocialMonitor{}, validationError("Keyword is required")
	}
	monitor, err := s.store.InsertMonitor(ctx, store.SocialMonitor{
		ID:        util.NewID(),
		UserID:    userID,
		Keyword:   keyword,
		Platforms: cleanPlatforms(in.Platforms, enrich.DefaultMonitorPlatforms),
		Active:    true,
	})
	if err != nil {
		return store.SocialMonitor{}, err
	}

	results, err := s.prospector.Mentions(ctx, enrich.MentionQuery{
		Keyword:     monitor.Keyword,
		Platforms:   monitor.Platforms,
		PerPlatform: initialMonitorPosts,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("monitor_id", monitor.ID).Msg("initial mentions failed")
		return monitor, nil
	}
	count, err := s.storeResults(ctx, monitor.ID, results)
	if err != nil {
		return store.SocialMonitor{}, err
	}
	monitor.ResultCount = count
	return monitor, nil
}

func (s *Service) storeResults(ctx context.Context, monitorID string, results []store.SocialResult) (int, error) {
	for i := range results {
		results[i].MonitorID = monitorID
		if results[i].ID == "" {
			results[i].ID = util.NewID()
		}
	}
	return s.store.InsertResults(ctx, monitorID, results)
}

func (s *Service) ownedMonitor(ctx context.Context, userID, monitorID string) (store.SocialMonitor, error) {
	monitor, err := s.store.GetMonitor(ctx, userID, monitorID)
	if isNotFound(err) {
		return store.SocialMonitor{}, notFoundError("Monitor not found")
	}
	return monitor, err
}

func (s *Service) MonitorResults(ctx context.Context, userID, monitorID, platform, sentiment string) ([]store.SocialResult, error) {
	if _, err := s.ownedMonitor(ctx, userID, monitorID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, store.SocialResultFilter{
		MonitorID: monitorID,
		Platform:  strings.TrimSpace(platform),
		Sentiment: strings.TrimSpace(sentiment),
		Limit:     monitorResultsLimit,
	})
}

type RefreshResult struct {
	NewResults int    `json:"new_results"`
	Source     string `json:"source"`
}

func (s *Service) RefreshMonitor(ctx context.Context, userID, monitorID string) (RefreshResult, error) {
	monitor, err := s.ownedMonitor(ctx, userID, monitorID)
	if err != nil {
		return RefreshResult{}, err
	}
	results, err := s.prospector.Mentions(ctx, enrich.MentionQuery{
		Keyword:   monitor.Keyword,
		Platforms: monitor.Platforms,
	})
	if err != nil {
		return RefreshResult{}, err
	}
	if len(results) > 0 {
		if _, err := s.storeResults(ctx, monitor.ID, results); err != nil {
			return RefreshResult{}, err
		}
	}
	return RefreshResult{NewResults: len(results), Source: s.prospector.Source()}, nil
}

func (s *Service) DeleteMonitor(ctx context.Context, userID, monitorID string) error {
	err := s.store.DeleteMonitor(ctx, userID, monitorID)
	if isNotFound(err) {
		return notFoundError("Monitor not found")
	}
	return err
}
