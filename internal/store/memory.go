package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/pkg/models"
)

// Memory is an in-process Store. It applies the same tenant filters as the Postgres
// adapter and backs tests and the offline ask command.
type Memory struct {
	mu sync.Mutex

	leads     map[int64]models.Lead
	activity  []models.ActivityRow
	tasks     map[int64]models.Task
	messages  map[int64]models.Message
	smsNumber map[int64]string
	sendLogs  map[int64]models.SendLog

	nextID int64
	now    func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		leads:     make(map[int64]models.Lead),
		tasks:     make(map[int64]models.Task),
		messages:  make(map[int64]models.Message),
		smsNumber: make(map[int64]string),
		sendLogs:  make(map[int64]models.SendLog),
		nextID:    1000,
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source for inserted rows
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// AddLead seeds a lead; a zero id is assigned
func (m *Memory) AddLead(l models.Lead) models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == 0 {
		l.ID = m.id()
	}
	m.leads[l.ID] = l
	return l
}

// AddActivity seeds an inbox activity row
func (m *Memory) AddActivity(customerID int64, row models.ActivityRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead, ok := m.leads[row.LeadID]; !ok || lead.CustomerID != customerID {
		return
	}
	if row.ID == 0 {
		row.ID = m.id()
	}
	m.activity = append(m.activity, row)
}

// AddMessage seeds a message
func (m *Memory) AddMessage(msg models.Message) models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == 0 {
		msg.ID = m.id()
	}
	m.messages[msg.ID] = msg
	return msg
}

// AddTask seeds a task
func (m *Memory) AddTask(t models.Task) models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.id()
	}
	m.tasks[t.ID] = t
	return t
}

// SetCustomerSMSNumber sets the sending number of a tenant
func (m *Memory) SetCustomerSMSNumber(customerID int64, number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.smsNumber[customerID] = number
}

// SendLogs returns a copy of the send logs of a tenant, ordered by id
func (m *Memory) SendLogs(customerID int64) []models.SendLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SendLog
	for _, l := range m.sendLogs {
		if l.CustomerID == customerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ListLeads(_ context.Context, customerID int64, filter LeadFilter) ([]models.Lead, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Lead
	for _, l := range m.leads {
		if l.CustomerID != customerID {
			continue
		}
		if !statusMatches(l.Status, filter.Status) {
			continue
		}
		if filter.Source != "" && l.Source != filter.Source {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return limitSlice(out, filter.Limit), nil
}

func statusMatches(status, filter string) bool {
	switch filter {
	case "", "all":
		return true
	case "open":
		for _, closed := range ClosedStatuses {
			if status == closed {
				return false
			}
		}
		return true
	default:
		return status == filter
	}
}

func (m *Memory) MatchLeads(_ context.Context, customerID int64, match LeadMatch) ([]models.Lead, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Lead
	for _, l := range m.leads {
		if l.CustomerID != customerID {
			continue
		}
		if leadMatches(l, match) {
			out = append(out, l)
		}
	}
	sortByLastSeen(out)
	return limitSlice(out, match.Limit), nil
}

// sortByLastSeen orders leads by last message, else creation, newest first
func sortByLastSeen(leads []models.Lead) {
	seen := func(l models.Lead) time.Time {
		if l.LastMessageAt != nil {
			return *l.LastMessageAt
		}
		return l.CreatedAt
	}
	sort.Slice(leads, func(i, j int) bool {
		si, sj := seen(leads[i]), seen(leads[j])
		if !si.Equal(sj) {
			return si.After(sj)
		}
		return leads[i].ID < leads[j].ID
	})
}

func leadMatches(l models.Lead, match LeadMatch) bool {
	switch match.Field {
	case MatchEmail:
		return l.Email != "" && NormalizeEmail(l.Email) == match.Value
	case MatchPhone:
		return l.Phone != "" && NormalizePhone(l.Phone) == match.Value
	case MatchPhoneLast7:
		return l.Phone != "" && Last7(NormalizePhone(l.Phone)) == match.Value
	case MatchName:
		return match.Value != "" && strings.Contains(strings.ToLower(l.Name), strings.ToLower(match.Value))
	}
	return false
}

func (m *Memory) GetLead(_ context.Context, customerID, leadID int64) (models.Lead, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[leadID]
	if !ok || l.CustomerID != customerID {
		return models.Lead{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) LeadActivity(_ context.Context, customerID int64, leadIDs []int64) ([]models.ActivityRow, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[int64]bool, len(leadIDs))
	for _, id := range leadIDs {
		if l, ok := m.leads[id]; ok && l.CustomerID == customerID {
			wanted[id] = true
		}
	}
	var out []models.ActivityRow
	for _, row := range m.activity {
		if wanted[row.LeadID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) ListTasks(_ context.Context, customerID int64, filter TaskFilter) ([]models.Task, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Task
	for _, t := range m.tasks {
		if t.CustomerID != customerID {
			continue
		}
		if filter.LeadID != 0 && t.LeadID != filter.LeadID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			if filter.DueDesc {
				return out[i].DueAt.After(out[j].DueAt)
			}
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	return limitSlice(out, filter.Limit), nil
}

func (m *Memory) GetTask(_ context.Context, customerID, taskID int64) (models.Task, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.CustomerID != customerID {
		return models.Task{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) CreateTask(_ context.Context, task models.Task) (models.Task, error) {
	guardrails.RequireTenant(task.CustomerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.leads[task.LeadID]; !ok || l.CustomerID != task.CustomerID {
		return models.Task{}, ErrNotFound
	}
	task.ID = m.id()
	task.CreatedAt = m.now()
	m.tasks[task.ID] = task
	return task, nil
}

func (m *Memory) UpdateTask(_ context.Context, customerID, taskID int64, update TaskUpdate) (models.Task, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.CustomerID != customerID {
		return models.Task{}, ErrNotFound
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.DueAt != nil {
		t.DueAt = *update.DueAt
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.CompletedAt != nil {
		completed := *update.CompletedAt
		t.CompletedAt = &completed
	}
	m.tasks[taskID] = t
	return t, nil
}

func (m *Memory) ListMessages(_ context.Context, customerID int64, filter MessageFilter) ([]models.Message, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Message
	for _, msg := range m.messages {
		if msg.CustomerID != customerID || msg.LeadID != filter.LeadID {
			continue
		}
		if !filter.Since.IsZero() && msg.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if filter.Newest {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if filter.Newest {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return limitSlice(out, filter.Limit), nil
}

func (m *Memory) InsertMessage(_ context.Context, msg models.Message) (models.Message, error) {
	guardrails.RequireTenant(msg.CustomerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.leads[msg.LeadID]; !ok || l.CustomerID != msg.CustomerID {
		return models.Message{}, ErrNotFound
	}
	msg.ID = m.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *Memory) CustomerSMSNumber(_ context.Context, customerID int64) (string, error) {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.smsNumber[customerID], nil
}

func (m *Memory) InsertSendLog(_ context.Context, log models.SendLog) (int64, error) {
	guardrails.RequireTenant(log.CustomerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	log.ID = m.id()
	m.sendLogs[log.ID] = log
	return log.ID, nil
}

func (m *Memory) CompleteSendLog(_ context.Context, customerID, logID int64, result SendLogResult) error {
	guardrails.RequireTenant(customerID)
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.sendLogs[logID]
	if !ok || l.CustomerID != customerID {
		return ErrNotFound
	}
	l.Success = result.Success
	l.ProviderMessageID = result.ProviderMessageID
	l.Error = result.Error
	m.sendLogs[logID] = l
	return nil
}

func limitSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
