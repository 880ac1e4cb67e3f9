package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/pkg/models"
)

// Querier is the subset of pgxpool.Pool the adapter needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

// Postgres is the pgx-backed Store
type Postgres struct {
	db Querier
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates the adapter over a pool
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

// NewPool opens a pgx connection pool and checks connectivity
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const leadColumns = `id, customer_id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(source, ''), COALESCE(status, ''), COALESCE(language, ''), created_at,
	last_message_at, last_missed_call_at, COALESCE(missed_call_count, 0)`

func scanLead(row pgx.Row) (models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.CustomerID, &l.Name, &l.Email, &l.Phone,
		&l.Source, &l.Status, &l.Language, &l.CreatedAt,
		&l.LastMessageAt, &l.LastMissedCallAt, &l.MissedCallCount)
	return l, err
}

func (p *Postgres) queryLeads(ctx context.Context, sql string, args ...any) ([]models.Lead, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Lead, error) {
		return scanLead(row)
	})
}

func (p *Postgres) ListLeads(ctx context.Context, customerID int64, filter LeadFilter) ([]models.Lead, error) {
	guardrails.RequireTenant(customerID)

	where := []string{"customer_id = $1"}
	args := []any{customerID}
	switch filter.Status {
	case "", "all":
	case "open":
		args = append(args, ClosedStatuses)
		where = append(where, fmt.Sprintf("NOT (COALESCE(status, '') = ANY($%d))", len(args)))
	default:
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC, id ASC LIMIT $%d`,
		leadColumns, strings.Join(where, " AND "), len(args))
	leads, err := p.queryLeads(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

func (p *Postgres) matchOn(condition string, customerID int64, value string, limit int) attempt[[]models.Lead] {
	return attempt[[]models.Lead]{
		name: condition,
		run: func(ctx context.Context) ([]models.Lead, error) {
			sql := fmt.Sprintf(`SELECT %s FROM leads WHERE customer_id = $1 AND %s ORDER BY COALESCE(last_message_at, created_at) DESC, id ASC LIMIT $3`,
				leadColumns, condition)
			return p.queryLeads(ctx, sql, customerID, value, limit)
		},
	}
}

const digitsOnlyPhone = `regexp_replace(COALESCE(phone, ''), '\D', '', 'g')`

func (p *Postgres) MatchLeads(ctx context.Context, customerID int64, match LeadMatch) ([]models.Lead, error) {
	guardrails.RequireTenant(customerID)
	limit := match.Limit
	if limit <= 0 {
		limit = 50
	}

	var attempts []attempt[[]models.Lead]
	switch match.Field {
	case MatchEmail:
		attempts = []attempt[[]models.Lead]{
			p.matchOn("normalized_email = $2", customerID, match.Value, limit),
			p.matchOn("lower(trim(email)) = $2", customerID, match.Value, limit),
		}
	case MatchPhone:
		attempts = []attempt[[]models.Lead]{
			p.matchOn("normalized_phone = $2", customerID, match.Value, limit),
			p.matchOn(digitsOnlyPhone+" = $2", customerID, match.Value, limit),
		}
	case MatchPhoneLast7:
		attempts = []attempt[[]models.Lead]{
			p.matchOn("phone_last7 = $2", customerID, match.Value, limit),
			p.matchOn("right("+digitsOnlyPhone+", 7) = $2", customerID, match.Value, limit),
		}
	case MatchName:
		attempts = []attempt[[]models.Lead]{
			p.matchOn(`name ILIKE $2 ESCAPE '\'`, customerID, "%"+EscapeLike(match.Value)+"%", limit),
		}
	default:
		return nil, fmt.Errorf("unknown match field %q", match.Field)
	}

	leads, err := firstApplicable(ctx, attempts...)
	if err != nil {
		return nil, fmt.Errorf("failed to match leads by %s: %w", match.Field, err)
	}
	return leads, nil
}

func (p *Postgres) GetLead(ctx context.Context, customerID, leadID int64) (models.Lead, error) {
	guardrails.RequireTenant(customerID)
	sql := fmt.Sprintf(`SELECT %s FROM leads WHERE customer_id = $1 AND id = $2`, leadColumns)
	lead, err := scanLead(p.db.QueryRow(ctx, sql, customerID, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Lead{}, ErrNotFound
	}
	if err != nil {
		return models.Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

func (p *Postgres) LeadActivity(ctx context.Context, customerID int64, leadIDs []int64) ([]models.ActivityRow, error) {
	guardrails.RequireTenant(customerID)
	if len(leadIDs) == 0 {
		return nil, nil
	}
	rows, err := p.db.Query(ctx, `
		SELECT id, lead_id, last_contact_at, last_missed_call_at, COALESCE(missed_call_count, 0)
		FROM inbox_leads
		WHERE customer_id = $1 AND lead_id = ANY($2)
	`, customerID, leadIDs)
	if err == nil {
		var out []models.ActivityRow
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ActivityRow, error) {
			var a models.ActivityRow
			err := row.Scan(&a.ID, &a.LeadID, &a.LastContactAt, &a.LastMissedCallAt, &a.MissedCallCount)
			return a, err
		})
		if err == nil {
			return out, nil
		}
	}
	if pgCode(err) == pgUndefinedTable {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to load lead activity: %w", err)
}

const taskColumns = `id, customer_id, lead_id, COALESCE(type, ''), COALESCE(title, ''),
	COALESCE(description, ''), due_at, status, COALESCE(priority, ''), completed_at, created_at`

func scanTask(row pgx.Row) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.CustomerID, &t.LeadID, &t.Type, &t.Title,
		&t.Description, &t.DueAt, &t.Status, &t.Priority, &t.CompletedAt, &t.CreatedAt)
	return t, err
}

func (p *Postgres) ListTasks(ctx context.Context, customerID int64, filter TaskFilter) ([]models.Task, error) {
	guardrails.RequireTenant(customerID)

	where := []string{"customer_id = $1"}
	args := []any{customerID}
	if filter.LeadID != 0 {
		args = append(args, filter.LeadID)
		where = append(where, fmt.Sprintf("lead_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	order := "due_at ASC, id ASC"
	if filter.DueDesc {
		order = "due_at DESC, id ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY %s LIMIT $%d`,
		taskColumns, strings.Join(where, " AND "), order, len(args))
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (p *Postgres) GetTask(ctx context.Context, customerID, taskID int64) (models.Task, error) {
	guardrails.RequireTenant(customerID)
	sql := fmt.Sprintf(`SELECT %s FROM tasks WHERE customer_id = $1 AND id = $2`, taskColumns)
	task, err := scanTask(p.db.QueryRow(ctx, sql, customerID, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (p *Postgres) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	guardrails.RequireTenant(task.CustomerID)
	sql := fmt.Sprintf(`
		INSERT INTO tasks (customer_id, lead_id, type, title, description, due_at, status, priority)
		SELECT $1, l.id, $3, $4, $5, $6, $7, $8 FROM leads l WHERE l.id = $2 AND l.customer_id = $1
		RETURNING %s`, taskColumns)
	created, err := scanTask(p.db.QueryRow(ctx, sql,
		task.CustomerID, task.LeadID, task.Type, task.Title, task.Description, task.DueAt, task.Status, task.Priority))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return created, nil
}

func (p *Postgres) UpdateTask(ctx context.Context, customerID, taskID int64, update TaskUpdate) (models.Task, error) {
	guardrails.RequireTenant(customerID)
	if update.Empty() {
		return p.GetTask(ctx, customerID, taskID)
	}

	args := []any{taskID, customerID}
	var sets []string
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.DueAt != nil {
		add("due_at", *update.DueAt)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}

	sql := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $1 AND customer_id = $2 RETURNING %s`,
		strings.Join(sets, ", "), taskColumns)
	task, err := scanTask(p.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// messageTextVariants lists the expressions tried for the message text, most complete first
var messageTextVariants = []string{
	`COALESCE(NULLIF(body, ''), NULLIF(content, ''), NULLIF("text", ''), NULLIF(email_body, ''), '')`,
	`COALESCE(body, '')`,
	`COALESCE(content, '')`,
	`COALESCE("text", '')`,
}

func (p *Postgres) ListMessages(ctx context.Context, customerID int64, filter MessageFilter) ([]models.Message, error) {
	guardrails.RequireTenant(customerID)

	order := "created_at ASC, id ASC"
	if filter.Newest {
		order = "created_at DESC, id DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	since := filter.Since
	if since.IsZero() {
		since = time.Unix(0, 0)
	}

	attempts := make([]attempt[[]models.Message], 0, len(messageTextVariants))
	for _, expr := range messageTextVariants {
		sql := fmt.Sprintf(`
			SELECT id, customer_id, lead_id, COALESCE(direction, ''), COALESCE(channel, ''),
				COALESCE(subject, ''), %s, created_at
			FROM messages
			WHERE customer_id = $1 AND lead_id = $2 AND created_at >= $3
			ORDER BY %s
			LIMIT $4`, expr, order)
		attempts = append(attempts, attempt[[]models.Message]{
			name: expr,
			run: func(ctx context.Context) ([]models.Message, error) {
				rows, err := p.db.Query(ctx, sql, customerID, filter.LeadID, since, limit)
				if err != nil {
					return nil, err
				}
				return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
					var m models.Message
					err := row.Scan(&m.ID, &m.CustomerID, &m.LeadID, &m.Direction, &m.Channel,
						&m.Subject, &m.Body, &m.CreatedAt)
					return m, err
				})
			},
		})
	}

	msgs, err := firstApplicable(ctx, attempts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (p *Postgres) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	guardrails.RequireTenant(msg.CustomerID)
	err := p.db.QueryRow(ctx, `
		INSERT INTO messages (customer_id, lead_id, direction, channel, subject, body,
			provider, provider_message_id, status, error, to_address, from_address)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12)
		RETURNING id, created_at
	`, msg.CustomerID, msg.LeadID, msg.Direction, msg.Channel, msg.Subject, msg.Body,
		msg.Provider, msg.ProviderMessageID, msg.Status, msg.Error, msg.ToAddress, msg.FromAddress,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

func (p *Postgres) CustomerSMSNumber(ctx context.Context, customerID int64) (string, error) {
	guardrails.RequireTenant(customerID)
	var number string
	err := p.db.QueryRow(ctx, `SELECT COALESCE(telnyx_sms_number, '') FROM customers WHERE id = $1`, customerID).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load customer sms number: %w", err)
	}
	return number, nil
}

func (p *Postgres) InsertSendLog(ctx context.Context, log models.SendLog) (int64, error) {
	guardrails.RequireTenant(log.CustomerID)
	var id int64
	err := p.db.QueryRow(ctx, `
		INSERT INTO send_logs (customer_id, lead_id, channel, provider, to_address, from_address,
			subject, body, request_payload, success)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, false)
		RETURNING id
	`, log.CustomerID, log.LeadID, log.Channel, log.Provider, log.ToAddress, log.FromAddress,
		log.Subject, log.Body, log.RequestPayload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert send log: %w", err)
	}
	return id, nil
}

func (p *Postgres) CompleteSendLog(ctx context.Context, customerID, logID int64, result SendLogResult) error {
	guardrails.RequireTenant(customerID)
	tag, err := p.db.Exec(ctx, `
		UPDATE send_logs
		SET success = $3, provider_message_id = NULLIF($4, ''), error = NULLIF($5, '')
		WHERE id = $1 AND customer_id = $2
	`, logID, customerID, result.Success, result.ProviderMessageID, result.Error)
	if err != nil {
		return fmt.Errorf("failed to complete send log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
