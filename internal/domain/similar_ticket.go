package domain

// SimilarTicket is a historical ticket returned by the similarity cascade.
type SimilarTicket struct {
	TicketNumber   string  `json:"ticket_number"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	IssueType      string  `json:"issuetype"`
	SubIssueType   string  `json:"subissuetype"`
	TicketCategory string  `json:"ticketcategory"`
	TicketType     string  `json:"tickettype"`
	Priority       string  `json:"priority"`
	Status         string  `json:"status"`
	Resolution     string  `json:"resolution"`
	Score          float64 `json:"similarity_score"`
	Tier           string  `json:"tier,omitempty"`
}

// Code returns the stored code for a classified field.
func (t SimilarTicket) Code(f Field) string {
	switch f {
	case FieldIssueType:
		return t.IssueType
	case FieldSubIssueType:
		return t.SubIssueType
	case FieldTicketCategory:
		return t.TicketCategory
	case FieldTicketType:
		return t.TicketType
	case FieldPriority:
		return t.Priority
	case FieldStatus:
		return t.Status
	}
	return ""
}
