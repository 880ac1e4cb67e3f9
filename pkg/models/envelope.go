package models

import (
	"encoding/json"
	"time"
)

// Result types carried in Envelope.ResultType
const (
	ResultLeadList            = "lead_list"
	ResultTaskList            = "task_list"
	ResultTaskCreated         = "task_created"
	ResultTaskUpdated         = "task_updated"
	ResultConversationSummary = "conversation_summary"
	ResultDraftReply          = "draft_reply"
	ResultSendResult          = "send_result"
	ResultMessage             = "message"
)

// Envelope is the uniform result returned by every tool and by the orchestrator
type Envelope struct {
	Intent     string `json:"intent"`
	ResultType string `json:"resultType"`
	Title      string `json:"title"`
	Items      []Item `json:"items"`
	AISummary  string `json:"aiSummary"`
}

// Item is one entry of an envelope. Each result type has exactly one item variant.
type Item interface {
	ItemType() string
}

// MarshalJSON keeps items as an array even when empty
func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	out := alias(e)
	if out.Items == nil {
		out.Items = []Item{}
	}
	return json.Marshal(out)
}

// NoActionEnvelope is returned when no tool produced a result
func NoActionEnvelope() Envelope {
	return Envelope{
		Intent:     "none",
		ResultType: ResultMessage,
		Title:      "No action",
		Items:      []Item{},
		AISummary:  "No deterministic action matched this request.",
	}
}

// LeadRow is the lead_list item
type LeadRow struct {
	InboxLeadID      *int64     `json:"inboxLeadId"`
	LeadID           int64      `json:"leadId"`
	CustomerID       int64      `json:"customerId"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	Language         string     `json:"language,omitempty"`
	LastContactAt    *time.Time `json:"lastContactAt"`
	LastMissedCallAt *time.Time `json:"lastMissedCallAt"`
	MissedCallCount  int        `json:"missedCallCount"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (LeadRow) ItemType() string { return ResultLeadList }

// NewLeadRow builds a row from a candidate, applying display defaults
func NewLeadRow(c LeadCandidate) LeadRow {
	row := LeadRow{
		LeadID:           c.Lead.ID,
		CustomerID:       c.Lead.CustomerID,
		Name:             c.Lead.DisplayName(),
		Email:            c.Lead.Email,
		Phone:            c.Lead.Phone,
		Source:           c.Lead.Source,
		Status:           c.Lead.Status,
		Language:         c.Lead.Language,
		LastContactAt:    c.Activity.LastContactAt,
		LastMissedCallAt: c.Activity.LastMissedCallAt,
		MissedCallCount:  c.Activity.MissedCallCount,
		CreatedAt:        c.Lead.CreatedAt,
	}
	if c.Activity.PrimaryInboxID != 0 {
		id := c.Activity.PrimaryInboxID
		row.InboxLeadID = &id
	}
	if row.LastMissedCallAt == nil {
		row.LastMissedCallAt = c.Lead.LastMissedCallAt
	}
	if row.MissedCallCount == 0 {
		row.MissedCallCount = c.Lead.MissedCallCount
	}
	if row.Source == "" {
		row.Source = "unknown"
	}
	if row.Status == "" {
		row.Status = "new"
	}
	return row
}

// TaskRow is the item for task_list, task_created and task_updated
type TaskRow struct {
	ID          int64      `json:"id"`
	LeadID      int64      `json:"leadId"`
	TaskType    string     `json:"taskType"`
	DueAt       time.Time  `json:"dueAt"`
	Status      string     `json:"status"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (TaskRow) ItemType() string { return ResultTaskList }

// NewTaskRow converts a stored task into its envelope row
func NewTaskRow(t Task) TaskRow {
	row := TaskRow{
		ID:          t.ID,
		LeadID:      t.LeadID,
		TaskType:    t.Type,
		DueAt:       t.DueAt,
		Status:      t.Status,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
	}
	if row.TaskType == "" {
		row.TaskType = "general"
	}
	if row.Priority == "" {
		row.Priority = "normal"
	}
	return row
}

// ConversationSummary is the conversation_summary item
type ConversationSummary struct {
	LeadID                  int64    `json:"leadId"`
	MatchReason             string   `json:"matchReason"`
	DaysBack                int      `json:"daysBack"`
	MessageCount            int      `json:"messageCount"`
	Summary                 string   `json:"summary"`
	LeadIntent              string   `json:"leadIntent"`
	KeyDetails              []string `json:"keyDetails"`
	Sentiment               string   `json:"sentiment"`
	Objections              []string `json:"objections"`
	NextSteps               []string `json:"nextSteps"`
	OpenQuestions           []string `json:"openQuestions"`
	RecommendedFollowUpType string   `json:"recommendedFollowUpType"`
	Urgency                 string   `json:"urgency"`
}

func (ConversationSummary) ItemType() string { return ResultConversationSummary }

// DraftVariant is one drafted message
type DraftVariant struct {
	Label   string `json:"label"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// DraftReply is the draft_reply item
type DraftReply struct {
	LeadID      int64          `json:"leadId"`
	MatchReason string         `json:"matchReason"`
	Channel     string         `json:"channel"`
	To          string         `json:"to,omitempty"`
	Purpose     string         `json:"purpose"`
	Tone        string         `json:"tone"`
	Language    string         `json:"language"`
	Variants    []DraftVariant `json:"variants"`
}

func (DraftReply) ItemType() string { return ResultDraftReply }

// SendResult is the send_result item
type SendResult struct {
	LeadID            int64     `json:"leadId"`
	Channel           string    `json:"channel"`
	To                string    `json:"to"`
	From              string    `json:"from"`
	Provider          string    `json:"provider"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	MessageID         int64     `json:"message_id"`
	CreatedAt         time.Time `json:"created_at"`
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
}

func (SendResult) ItemType() string { return ResultSendResult }
