package app

import (
	"context"
	"fmt"
	"strings"

	"nexacrm/api/internal/enrich"
	"nexacrm/api/internal/export"
	"nexacrm/api/internal/scoring"
	"nexacrm/api/internal/search"
	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

var leadStatuses = []string{"new", "contacted", "qualified", "proposal", "won", "lost"}

const (
	recentLeadsLimit  = 5
	leadActivityLimit = 50
	searchHitLimit    = 1000
	mentionSearchSize = 5
	mentionsKept      = 3
	defaultRadius     = 5000
)

type LeadListParams struct {
	Status string
	Source string
	Search string
}

// ListLeads returns the caller's leads, newest change first. Text search is a
// case-insensitive substring match; index hits are only kept when they match.
func (s *Service) ListLeads(ctx context.Context, userID string, params LeadListParams) ([]store.Lead, error) {
	filter := store.LeadFilter{
		UserID: userID,
		Source: strings.TrimSpace(params.Source),
		Search: strings.TrimSpace(params.Search),
	}
	if status := strings.TrimSpace(params.Status); status != "" && status != "all" {
		filter.Status = status
	}
	if filter.Search != "" {
		ids, ok := s.search.LeadIDs(search.Query{
			Text:   filter.Search,
			UserID: userID,
			Status: filter.Status,
			Source: filter.Source,
			Limit:  searchHitLimit,
		})
		if ok {
			filter.IDs = ids
		}
	}
	leads, err := s.store.ListLeads(ctx, filter)
	if err != nil || len(filter.IDs) == 0 {
		return leads, err
	}
	matched := leads[:0]
	for _, lead := range leads {
		if leadMatches(lead, filter.Search) {
			matched = append(matched, lead)
		}
	}
	return matched, nil
}

// leadMatches reports whether text occurs in the lead's name, email or
// company, ignoring case.
func leadMatches(lead store.Lead, text string) bool {
	text = strings.ToLower(text)
	for _, field := range []string{lead.Name, stringValue(lead.Email), stringValue(lead.Company)} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"cnt"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"cnt"`
}

type LeadStats struct {
	Total    int           `json:"total"`
	ByStatus []StatusCount `json:"byStatus"`
	BySource []SourceCount `json:"bySource"`
	Recent   []store.Lead  `json:"recent"`
}

func (s *Service) LeadStats(ctx context.Context, userID string) (LeadStats, error) {
	byStatus, err := s.store.LeadCounts(ctx, userID, "status")
	if err != nil {
		return LeadStats{}, err
	}
	bySource, err := s.store.LeadCounts(ctx, userID, "source")
	if err != nil {
		return LeadStats{}, err
	}
	recent, err := s.store.RecentLeads(ctx, userID, recentLeadsLimit)
	if err != nil {
		return LeadStats{}, err
	}

	stats := LeadStats{
		ByStatus: make([]StatusCount, 0, len(byStatus)),
		BySource: make([]SourceCount, 0, len(bySource)),
		Recent:   recent,
	}
	for _, bucket := range byStatus {
		stats.Total += bucket.Count
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: bucket.Key, Count: bucket.Count})
	}
	for _, bucket := range bySource {
		stats.BySource = append(stats.BySource, SourceCount{Source: bucket.Key, Count: bucket.Count})
	}
	return stats, nil
}

func (s *Service) GetLead(ctx context.Context, userID, leadID string) (store.Lead, error) {
	lead, err := s.store.GetLead(ctx, userID, leadID)
	if isNotFound(err) {
		return store.Lead{}, notFoundError("Lead not found")
	}
	return lead, err
}

type LeadInput struct {
	Name           *string            `json:"name"`
	Email          nullable[string]   `json:"email"`
	Phone          nullable[string]   `json:"phone"`
	Company        nullable[string]   `json:"company"`
	Position       nullable[string]   `json:"position"`
	Status         *string            `json:"status"`
	Source         *string            `json:"source"`
	Score          *int               `json:"score"`
	SocialProfiles *map[string]string `json:"social_profiles"`
	Tags           *[]string          `json:"tags"`
	Address        nullable[string]   `json:"address"`
	Website        nullable[string]   `json:"website"`
	PlaceID        nullable[string]   `json:"place_id"`
}

// apply merges the supplied fields onto lead.
func (in LeadInput) apply(lead *store.Lead) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationError("Name is required")
		}
		lead.Name = name
	}
	in.Email.apply(&lead.Email)
	in.Phone.apply(&lead.Phone)
	in.Company.apply(&lead.Company)
	in.Position.apply(&lead.Position)
	in.Address.apply(&lead.Address)
	in.Website.apply(&lead.Website)
	in.PlaceID.apply(&lead.PlaceID)
	if in.Status != nil {
		if !oneOf(*in.Status, leadStatuses...) {
			return validationError(fmt.Sprintf("Invalid status %q", *in.Status))
		}
		lead.Status = *in.Status
	}
	if in.Source != nil && strings.TrimSpace(*in.Source) != "" {
		lead.Source = strings.TrimSpace(*in.Source)
	}
	if in.Score != nil {
		lead.Score = scoring.Clamp(*in.Score)
	}
	if in.SocialProfiles != nil {
		lead.SocialProfiles = *in.SocialProfiles
	}
	if in.Tags != nil {
		lead.Tags = *in.Tags
	}
	if lead.SocialProfiles == nil {
		lead.SocialProfiles = map[string]string{}
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	return nil
}

func (s *Service) CreateLead(ctx context.Context, userID string, in LeadInput) (store.Lead, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return store.Lead{}, validationError("Name is required")
	}
	lead := store.Lead{
		ID:     util.NewID(),
		UserID: userID,
		Status: "new",
		Source: "manual",
	}
	if err := in.apply(&lead); err != nil {
		return store.Lead{}, err
	}

	created, err := s.store.InsertLead(ctx, lead)
	if err != nil {
		return store.Lead{}, err
	}
	s.logActivity(ctx, userID, "created_lead", "lead", created.ID, "Created lead: "+created.Name)
	s.search.IndexLead(search.LeadRecordFrom(created))
	return created, nil
}

func (s *Service) UpdateLead(ctx context.Context, userID, leadID string, in LeadInput) (store.Lead, error) {
	lead, err := s.GetLead(ctx, userID, leadID)
	if err != nil {
		return store.Lead{}, err
	}
	if err := in.apply(&lead); err != nil {
		return store.Lead{}, err
	}

	updated, err := s.store.UpdateLead(ctx, lead)
	if isNotFound(err) {
		return store.Lead{}, notFoundError("Lead not found")
	}
	if err != nil {
		return store.Lead{}, err
	}
	s.logActivity(ctx, userID, "updated_lead", "lead", updated.ID, "Updated lead: "+updated.Name)
	s.search.IndexLead(search.LeadRecordFrom(updated))
	return updated, nil
}

func (s *Service) DeleteLead(ctx context.Context, userID, leadID string) error {
	lead, err := s.GetLead(ctx, userID, leadID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLead(ctx, userID, leadID); err != nil {
		if isNotFound(err) {
			return notFoundError("Lead not found")
		}
		return err
	}
	s.logActivity(ctx, userID, "deleted_lead", "lead", leadID, "Deleted lead: "+lead.Name)
	s.search.DeleteLead(leadID)
	return nil
}

func (s *Service) LeadNotes(ctx context.Context, userID, leadID string) ([]store.Note, error) {
	return s.store.ListNotes(ctx, store.NoteFilter{UserID: userID, LeadID: leadID})
}

func (s *Service) LeadTasks(ctx context.Context, userID, leadID string) ([]store.Task, error) {
	return s.store.ListTasks(ctx, store.TaskFilter{UserID: userID, LeadID: leadID})
}

func (s *Service) LeadFiles(ctx context.Context, userID, leadID string) ([]store.File, error) {
	return s.store.ListFiles(ctx, store.FileFilter{UserID: userID, LeadID: leadID})
}

// LeadActivity lists the history of a lead the caller owns, including
// entries written by other users.
func (s *Service) LeadActivity(ctx context.Context, userID, leadID string) ([]store.ActivityEntry, error) {
	if _, err := s.GetLead(ctx, userID, leadID); err != nil {
		return nil, err
	}
	return s.store.ListActivity(ctx, store.ActivityFilter{EntityID: leadID, Limit: leadActivityLimit})
}

type PlacesSearchInput struct {
	Query    string `json:"query"`
	Location string `json:"location"`
	Radius   int    `json:"radius"`
	Type     string `json:"type"`
}

func (s *Service) SearchPlaces(ctx context.Context, in PlacesSearchInput) ([]enrich.Place, error) {
	if s.places == nil {
		return nil, configError("GOOGLE_MAPS_API_KEY is not configured")
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, validationError("Search query is required")
	}
	radius := in.Radius
	if radius <= 0 {
		radius = defaultRadius
	}
	places, err := s.places.Search(ctx, enrich.PlacesQuery{
		Query:    query,
		Location: strings.TrimSpace(in.Location),
		Radius:   radius,
		Type:     strings.TrimSpace(in.Type),
	})
	if err != nil {
		return nil, err
	}
	if places == nil {
		places = []enrich.Place{}
	}
	return places, nil
}

type Mention struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ScoreResult struct {
	Score          int               `json:"score"`
	Breakdown      scoring.Breakdown `json:"breakdown"`
	Mentions       []Mention         `json:"mentions"`
	Source         string            `json:"source"`
	Summary        string            `json:"summary,omitempty"`
	WebsiteSummary map[string]any    `json:"website_summary,omitempty"`
}

// ScoreLead computes the lead score. Without a provider only the basic
// breakdown is returned and nothing is stored.
func (s *Service) ScoreLead(ctx context.Context, userID, leadID string) (ScoreResult, error) {
	lead, err := s.GetLead(ctx, userID, leadID)
	if err != nil {
		return ScoreResult{}, err
	}

	breakdown := scoring.Basic(scoring.Input{
		HasWebsite:     blankToNil(lead.Website) != nil,
		HasEmail:       blankToNil(lead.Email) != nil,
		HasPhone:       blankToNil(lead.Phone) != nil,
		SocialProfiles: len(lead.SocialProfiles),
	})

	if s.provider == nil {
		return ScoreResult{
			Score:     breakdown.Total(),
			Breakdown: breakdown,
			Mentions:  []Mention{},
			Source:    "basic",
			Summary:   "No search provider configured; scored from known fields only.",
		}, nil
	}

	query := fmt.Sprintf("%q", lead.Name)
	if company := stringValue(blankToNil(lead.Company)); company != "" {
		query += fmt.Sprintf(" %q", company)
	}
	mentions := []Mention{}
	results, err := s.provider.Search(ctx, query, mentionSearchSize)
	if err != nil {
		s.log.Warn().Err(err).Str("lead_id", leadID).Msg("mention search failed")
	}
	for i, r := range results {
		if i == mentionsKept {
			break
		}
		mentions = append(mentions, Mention{URL: r.URL, Title: r.Title, Description: r.Description})
	}
	breakdown.OnlineMentions = scoring.MentionsScore(len(mentions))

	var websiteData map[string]any
	if website := stringValue(blankToNil(lead.Website)); website != "" {
		websiteData, err = s.provider.Scrape(ctx, website)
		if err != nil {
			s.log.Warn().Err(err).Str("lead_id", leadID).Msg("website scrape failed")
			websiteData = nil
		}
		breakdown.WebsiteContent = scoring.WebsiteScore(websiteData != nil)
	}

	total := breakdown.Total()
	if err := s.store.UpdateLeadScore(ctx, userID, leadID, total); err != nil {
		return ScoreResult{}, err
	}
	s.logActivity(ctx, userID, "ai_scored", "lead", leadID, fmt.Sprintf("AI score calculated: %d/100", total))

	return ScoreResult{
		Score:          total,
		Breakdown:      breakdown,
		Mentions:       mentions,
		Source:         s.provider.Name(),
		WebsiteSummary: websiteData,
	}, nil
}

func (s *Service) ExportLead(ctx context.Context, current Session, leadID string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	if _, err := s.GetLead(ctx, current.UserID, leadID); err != nil {
		return nil, err
	}
	return s.exporter.ExportLead(ctx, current.UserID, leadID, current.Name)
}
