package search

import (
	"errors"
	"strings"

	"nexacrm/api/internal/store"
)

// LeadRecord is the data we index for a lead.
type LeadRecord struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Status  string `json:"status"`
	Source  string `json:"source"`
}

// Query describes a lead search scoped to one owner.
type Query struct {
	Text   string
	UserID string
	Status string
	Source string
	Limit  int
}

func LeadRecordFrom(lead store.Lead) LeadRecord {
	return LeadRecord{
		ID:      lead.ID,
		UserID:  lead.UserID,
		Name:    lead.Name,
		Email:   deref(lead.Email),
		Company: deref(lead.Company),
		Status:  lead.Status,
		Source:  lead.Source,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// filterExpr builds a Meilisearch filter list for the scoped fields of q.
func filterExpr(q Query) []string {
	var filters []string
	add := func(field, value string) {
		if value == "" {
			return
		}
		filters = append(filters, field+" = "+quote(value))
	}
	add("userId", q.UserID)
	add("status", q.Status)
	add("source", q.Source)
	return filters
}

func quote(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return `"` + value + `"`
}

var ErrUnavailable = errors.New("search index unavailable")
