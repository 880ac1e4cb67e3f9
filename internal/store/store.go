// Package store is the tenant-scoped data-access surface used by the tool runners.
// Every method takes the customer id explicitly and filters or writes by it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/pkg/models"
)

// ErrNotFound is returned when a tenant-scoped row does not exist
var ErrNotFound = errors.New("not found")

// MatchField selects how MatchLeads compares the value
type MatchField string

const (
	MatchEmail      MatchField = "email"
	MatchPhone      MatchField = "phone"
	MatchPhoneLast7 MatchField = "phone_last7"
	MatchName       MatchField = "name"
)

// LeadMatch is one resolver lookup. Value is already normalized for the field:
// lower-cased email, digits-only phone, last seven digits, or raw name text.
type LeadMatch struct {
	Field MatchField
	Value string
	Limit int
}

// LeadFilter narrows ListLeads
type LeadFilter struct {
	// Status is "open", "all", "" or an exact status value.
	Status string
	Source string
	Limit  int
}

// TaskFilter narrows ListTasks. Status is a stored status or empty for all.
type TaskFilter struct {
	LeadID  int64
	Status  string
	Type    string
	Limit   int
	DueDesc bool
}

// MessageFilter narrows ListMessages
type MessageFilter struct {
	LeadID int64
	Since  time.Time
	Limit  int
	// Newest returns the latest Limit rows, newest first.
	Newest bool
}

// TaskUpdate lists the fields to change on a task; nil fields are left alone
type TaskUpdate struct {
	Status      *string
	DueAt       *time.Time
	Description *string
	CompletedAt *time.Time
}

// Empty reports whether the update changes nothing
func (u TaskUpdate) Empty() bool {
	return u.Status == nil && u.DueAt == nil && u.Description == nil && u.CompletedAt == nil
}

// SendLogResult completes a send log after the provider call
type SendLogResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// Store is implemented by the Postgres adapter and the in-memory adapter
type Store interface {
	ListLeads(ctx context.Context, customerID int64, filter LeadFilter) ([]models.Lead, error)
	MatchLeads(ctx context.Context, customerID int64, match LeadMatch) ([]models.Lead, error)
	GetLead(ctx context.Context, customerID, leadID int64) (models.Lead, error)
	LeadActivity(ctx context.Context, customerID int64, leadIDs []int64) ([]models.ActivityRow, error)

	ListTasks(ctx context.Context, customerID int64, filter TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, customerID, taskID int64) (models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, customerID, taskID int64, update TaskUpdate) (models.Task, error)

	ListMessages(ctx context.Context, customerID int64, filter MessageFilter) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) (models.Message, error)

	CustomerSMSNumber(ctx context.Context, customerID int64) (string, error)
	InsertSendLog(ctx context.Context, log models.SendLog) (int64, error)
	CompleteSendLog(ctx context.Context, customerID, logID int64, result SendLogResult) error
}

// Tenant is the isolation boundary for one request
type Tenant struct {
	CustomerID int64
	Data       Store
}

// NewTenant builds a tenant context; a non-positive customer id panics
func NewTenant(customerID int64, data Store) Tenant {
	guardrails.RequireTenant(customerID)
	return Tenant{CustomerID: customerID, Data: data}
}

// ClosedStatuses are excluded by the "open" lead filter
var ClosedStatuses = []string{"closed", "dead", "lost", "won"}
