package models

import (
	"time"
)

// Tenant-scoped CRM records

// Customer represents a tenant account
type Customer struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	TelnyxSMSNumber *string   `json:"telnyx_sms_number,omitempty" db:"telnyx_sms_number"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Lead represents the canonical contact record owned by a customer
type Lead struct {
	ID               int64      `json:"id" db:"id"`
	CustomerID       int64      `json:"customer_id" db:"customer_id"`
	Name             string     `json:"name" db:"name"`
	Email            string     `json:"email" db:"email"`
	Phone            string     `json:"phone" db:"phone"`
	Source           string     `json:"source" db:"source"`
	Status           string     `json:"status" db:"status"`
	Language         string     `json:"language" db:"language"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	LastMissedCallAt *time.Time `json:"last_missed_call_at,omitempty" db:"last_missed_call_at"`
	MissedCallCount  int        `json:"missed_call_count" db:"missed_call_count"`
}

// DisplayName returns the best human label for the lead
func (l Lead) DisplayName() string {
	switch {
	case l.Name != "":
		return l.Name
	case l.Email != "":
		return l.Email
	case l.Phone != "":
		return l.Phone
	default:
		return "Lead"
	}
}

// ActivityRow is one raw inbox activity row for a lead
type ActivityRow struct {
	ID               int64      `db:"id"`
	LeadID           int64      `db:"lead_id"`
	LastContactAt    *time.Time `db:"last_contact_at"`
	LastMissedCallAt *time.Time `db:"last_missed_call_at"`
	MissedCallCount  int        `db:"missed_call_count"`
}

// Activity is the folded activity of a lead across its inbox rows
type Activity struct {
	PrimaryInboxID   int64
	LastContactAt    *time.Time
	LastMissedCallAt *time.Time
	MissedCallCount  int
}

// FoldActivity aggregates raw rows per lead: latest timestamp wins, counts are summed.
// The primary inbox id is the row with the latest contact.
func FoldActivity(rows []ActivityRow) map[int64]Activity {
	out := make(map[int64]Activity)
	for _, r := range rows {
		a := out[r.LeadID]
		if a.PrimaryInboxID == 0 {
			a.PrimaryInboxID = r.ID
		}
		if later(r.LastContactAt, a.LastContactAt) {
			a.LastContactAt = r.LastContactAt
			a.PrimaryInboxID = r.ID
		}
		if later(r.LastMissedCallAt, a.LastMissedCallAt) {
			a.LastMissedCallAt = r.LastMissedCallAt
		}
		a.MissedCallCount += r.MissedCallCount
		out[r.LeadID] = a
	}
	return out
}

func later(candidate, current *time.Time) bool {
	if candidate == nil {
		return false
	}
	return current == nil || candidate.After(*current)
}

// LeadCandidate is a lead paired with its folded activity, as ranked by the resolver
type LeadCandidate struct {
	Lead     Lead
	Activity Activity
}

// Recency is the timestamp used to rank candidates
func (c LeadCandidate) Recency() time.Time {
	if c.Activity.LastContactAt != nil {
		return *c.Activity.LastContactAt
	}
	if c.Lead.LastMessageAt != nil {
		return *c.Lead.LastMessageAt
	}
	return c.Lead.CreatedAt
}

// Message directions and channels
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Message represents one inbound or outbound message on a lead
type Message struct {
	ID                int64     `json:"id" db:"id"`
	CustomerID        int64     `json:"customer_id" db:"customer_id"`
	LeadID            int64     `json:"lead_id" db:"lead_id"`
	Direction         string    `json:"direction" db:"direction"`
	Channel           string    `json:"channel" db:"channel"`
	Subject           string    `json:"subject,omitempty" db:"subject"`
	Body              string    `json:"body" db:"body"`
	Provider          string    `json:"provider,omitempty" db:"provider"`
	ProviderMessageID string    `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Status            string    `json:"status,omitempty" db:"status"`
	Error             string    `json:"error,omitempty" db:"error"`
	ToAddress         string    `json:"to_address,omitempty" db:"to_address"`
	FromAddress       string    `json:"from_address,omitempty" db:"from_address"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Task statuses
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
	TaskCancelled = "cancelled"
)

// Task represents a follow-up task attached to a lead
type Task struct {
	ID          int64      `json:"id" db:"id"`
	CustomerID  int64      `json:"customer_id" db:"customer_id"`
	LeadID      int64      `json:"lead_id" db:"lead_id"`
	Type        string     `json:"type" db:"type"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueAt       time.Time  `json:"due_at" db:"due_at"`
	Status      string     `json:"status" db:"status"`
	Priority    string     `json:"priority" db:"priority"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Terminal reports whether the task can no longer change status
func (t Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskCancelled
}

// SendLog is the best-effort audit row written around a provider call
type SendLog struct {
	ID                int64  `json:"id" db:"id"`
	CustomerID        int64  `json:"customer_id" db:"customer_id"`
	LeadID            int64  `json:"lead_id" db:"lead_id"`
	Channel           string `json:"channel" db:"channel"`
	Provider          string `json:"provider" db:"provider"`
	ToAddress         string `json:"to_address" db:"to_address"`
	FromAddress       string `json:"from_address" db:"from_address"`
	Subject           string `json:"subject,omitempty" db:"subject"`
	Body              string `json:"body" db:"body"`
	RequestPayload    []byte `json:"request_payload,omitempty" db:"request_payload"`
	Success           bool   `json:"success" db:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Error             string `json:"error,omitempty" db:"error"`
}
