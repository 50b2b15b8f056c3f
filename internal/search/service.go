package search

import (
	"context"

	"github.com/rs/zerolog"
)

// LeadIndex is the subset of Meili the service depends on.
type LeadIndex interface {
	Healthy() bool
	SearchLeads(q Query) ([]string, error)
	IndexLeads(records []LeadRecord) error
	DeleteLead(id string) error
}

// Service fronts the optional lead index. Callers fall back to SQL matching
// whenever LeadIDs reports ok=false.
type Service struct {
	index LeadIndex
	log   zerolog.Logger
}

// NewService creates a search service. index may be nil when Meilisearch is
// not configured.
func NewService(index LeadIndex, logger zerolog.Logger) *Service {
	return &Service{index: index, log: logger}
}

func (s *Service) available() bool {
	return s != nil && s.index != nil && s.index.Healthy()
}

// LeadIDs returns the ids of matching leads. ok is false when the index is
// unavailable or failed, in which case the caller must search on its own.
func (s *Service) LeadIDs(q Query) (ids []string, ok bool) {
	if !s.available() {
		return nil, false
	}
	ids, err := s.index.SearchLeads(q)
	if err != nil {
		s.log.Warn().Err(err).Msg("lead search failed, falling back to sql")
		return nil, false
	}
	return ids, true
}

// IndexLead pushes one lead to the index (fire-and-forget).
func (s *Service) IndexLead(record LeadRecord) {
	if !s.available() {
		return
	}
	go func() {
		if err := s.index.IndexLeads([]LeadRecord{record}); err != nil {
			s.log.Warn().Err(err).Str("lead_id", record.ID).Msg("index lead")
		}
	}()
}

// DeleteLead removes a lead from the index (fire-and-forget).
func (s *Service) DeleteLead(id string) {
	if !s.available() {
		return
	}
	go func() {
		if err := s.index.DeleteLead(id); err != nil {
			s.log.Warn().Err(err).Str("lead_id", id).Msg("delete lead from index")
		}
	}()
}

// Reindex synchronously pushes every record, in batches.
func (s *Service) Reindex(ctx context.Context, records []LeadRecord) (int, error) {
	if !s.available() {
		return 0, ErrUnavailable
	}
	const batch = 500
	done := 0
	for start := 0; start < len(records); start += batch {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		end := min(start+batch, len(records))
		if err := s.index.IndexLeads(records[start:end]); err != nil {
			return done, err
		}
		done = end
	}
	return done, nil
}
