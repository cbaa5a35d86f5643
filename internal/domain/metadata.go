package domain

// MetadataStatusOpen is forced onto every extracted metadata record.
const MetadataStatusOpen = "Open"

// Metadata holds the structured signals pulled from a ticket's free text.
type Metadata struct {
	MainIssue            string   `json:"main_issue"`
	AffectedSystem       string   `json:"affected_system"`
	UrgencyLevel         string   `json:"urgency_level"`
	ErrorMessages        string   `json:"error_messages"`
	TechnicalKeywords    []string `json:"technical_keywords"`
	UserActions          string   `json:"user_actions"`
	ResolutionIndicators string   `json:"resolution_indicators"`
	Status               string   `json:"status"`
}
