package models

// Session carries what the caller remembers between asks
type Session struct {
	ActiveLeadID   int64        `json:"activeLeadId,omitempty"`
	ActiveLeadName string       `json:"activeLeadName,omitempty"`
	LastSummary    *LastSummary `json:"lastSummary,omitempty"`
	LastDraft      *LastDraft   `json:"lastDraft,omitempty"`
}

// LastSummary is the most recent conversation summary shown to the user
type LastSummary struct {
	LeadID  int64  `json:"leadId"`
	Summary string `json:"summary"`
}

// LastDraft is the most recent draft shown to the user
type LastDraft struct {
	LeadID  int64  `json:"leadId"`
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}
