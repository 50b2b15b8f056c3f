// Package enrich wraps the external search/scrape and places providers used
// to discover prospects and score leads.
package enrich

import (
	"context"
	"strings"
)

// SearchResult is one hit from a web search provider.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
}

// Provider searches the web and extracts structured data from pages.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	// Scrape returns the provider's extraction for url, or nil when the page
	// yielded nothing.
	Scrape(ctx context.Context, url string) (map[string]any, error)
}

// platformSites maps a platform to the domain used in site: filters.
var platformSites = map[string]string{
	"linkedin":  "linkedin.com",
	"twitter":   "twitter.com",
	"instagram": "instagram.com",
	"facebook":  "facebook.com",
	"tiktok":    "tiktok.com",
}

// profileSites narrows LinkedIn to personal profiles for prospecting.
var profileSites = map[string]string{
	"linkedin": "linkedin.com/in",
}

func siteFilter(platform string, profiles bool) string {
	if profiles {
		if site, ok := profileSites[platform]; ok {
			return site
		}
	}
	if site, ok := platformSites[platform]; ok {
		return site
	}
	return platform
}

// DetectPlatform classifies a profile URL by domain.
func DetectPlatform(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "linkedin"):
		return "linkedin"
	case strings.Contains(lower, "twitter"), strings.Contains(lower, "x.com"):
		return "twitter"
	case strings.Contains(lower, "instagram"):
		return "instagram"
	case strings.Contains(lower, "facebook"):
		return "facebook"
	case strings.Contains(lower, "tiktok"):
		return "tiktok"
	default:
		return "web"
	}
}

// titleName strips the " - Site" / " | Site" suffix search engines append.
func titleName(title string) string {
	if i := strings.IndexAny(title, "-|"); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "Unknown"
	}
	return title
}

func truncate(value string, n int) string {
	runes := []rune(value)
	if len(runes) <= n {
		return value
	}
	return string(runes[:n])
}
