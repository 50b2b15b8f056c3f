// Package scoring computes the lead quality score shown as "AI score".
package scoring

const (
	MaxScore = 100

	webPresencePoints = 25
	contactPoints     = 10
	socialPoints      = 10
	socialCap         = 30
	mentionPoints     = 7
	mentionsCounted   = 3
	mentionsCap       = 20
	websitePoints     = 15
)

// Input carries the lead fields the heuristic looks at.
type Input struct {
	HasWebsite     bool
	HasEmail       bool
	HasPhone       bool
	SocialProfiles int
}

type Breakdown struct {
	WebPresence    int `json:"web_presence"`
	ContactInfo    int `json:"contact_info"`
	SocialProfiles int `json:"social_profiles"`
	OnlineMentions int `json:"online_mentions"`
	WebsiteContent int `json:"website_content"`
}

// Basic scores what is already known about a lead, without enrichment.
func Basic(in Input) Breakdown {
	var b Breakdown
	if in.HasWebsite {
		b.WebPresence = webPresencePoints
	}
	if in.HasEmail {
		b.ContactInfo += contactPoints
	}
	if in.HasPhone {
		b.ContactInfo += contactPoints
	}
	b.SocialProfiles = min(in.SocialProfiles*socialPoints, socialCap)
	return b
}

// MentionsScore awards points for the first few external mentions.
func MentionsScore(mentions int) int {
	if mentions <= 0 {
		return 0
	}
	return min(min(mentions, mentionsCounted)*mentionPoints, mentionsCap)
}

func WebsiteScore(scraped bool) int {
	if scraped {
		return websitePoints
	}
	return 0
}

func (b Breakdown) Total() int {
	return Clamp(b.WebPresence + b.ContactInfo + b.SocialProfiles + b.OnlineMentions + b.WebsiteContent)
}

func Clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}
