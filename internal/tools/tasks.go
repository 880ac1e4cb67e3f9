package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

const (
	taskListLimit  = 50
	taskTitleLimit = 100
)

// TaskStatus maps the status words the model uses onto stored task statuses.
// "all" and unknown words map to "" (no filter).
func TaskStatus(word string) string {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "open", "pending":
		return models.TaskPending
	case "completed", "done":
		return models.TaskCompleted
	case "canceled", "cancelled":
		return models.TaskCancelled
	}
	return ""
}

func (r *Registry) getTasksTool() Tool {
	return Tool{
		Name:        GetTasks,
		Description: "ONLY for listing follow-up tasks. Do NOT use for cancel, complete or reschedule.",
		Parameters: object(map[string]any{
			"status":  enum("Task status filter", "open", "completed", "canceled", "cancelled", "all"),
			"lead_id": integer("Only tasks of this lead"),
		}),
		Run: r.runGetTasks,
	}
}

func (r *Registry) runGetTasks(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	tasks, err := tenant.Data.ListTasks(ctx, tenant.CustomerID, store.TaskFilter{
		LeadID: args.Int("lead_id"),
		Status: TaskStatus(args.String("status")),
		Limit:  taskListLimit,
	})
	if err != nil {
		return models.Envelope{}, models.NewExternalFailure("Failed to load tasks.", err)
	}

	items := make([]models.Item, len(tasks))
	for i, t := range tasks {
		items[i] = models.NewTaskRow(t)
	}
	return models.Envelope{
		Intent:     GetTasks,
		ResultType: models.ResultTaskList,
		Title:      "Tasks",
		Items:      items,
		AISummary:  TaskListSummary(len(items)),
	}, nil
}

// TaskListSummary describes a get_tasks result
func TaskListSummary(count int) string {
	if count == 0 {
		return "No follow-up tasks match this query."
	}
	return fmt.Sprintf("Found %d follow-up task(s) matching your query.", count)
}

func (r *Registry) createTaskTool() Tool {
	return Tool{
		Name:        CreateTask,
		Description: "Create a follow-up task for a lead.",
		Parameters: object(with(leadSelector(), map[string]any{
			"followup_type":     str("call, sms, email or other"),
			"scheduled_for_iso": str("Due date as ISO 8601 with offset"),
			"note":              str("What the follow-up is about"),
		})),
		Run: r.runCreateTask,
	}
}

func (r *Registry) runCreateTask(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	logger := zerolog.Ctx(ctx)

	res, err := resolveLead(ctx, tenant, args)
	if err != nil {
		return models.Envelope{}, err
	}
	if !res.Found() {
		return models.Envelope{}, models.NewResolutionError("Could not resolve which lead to attach this task to. Please mention the lead's name, email, or phone.")
	}

	now := r.now()
	raw := args.String("scheduled_for_iso")
	due, remapped := r.deps.Policy.DueDate(raw, now)
	if _, ok := r.deps.Policy.Parse(raw); !ok {
		logger.Warn().Bool("provided", raw != "").Time("due_at", due).Msg("No usable task date, using default")
	} else if remapped {
		logger.Warn().Time("due_at", due).Msg("Stale task date remapped")
	}

	taskType := strings.ToLower(args.String("followup_type"))
	if taskType == "" {
		taskType = "general"
	}
	note := args.String("note")

	task, err := tenant.Data.CreateTask(ctx, models.Task{
		CustomerID:  tenant.CustomerID,
		LeadID:      res.LeadID,
		Type:        taskType,
		Title:       taskTitle(note, taskType),
		Description: note,
		DueAt:       due,
		Status:      models.TaskPending,
		Priority:    "normal",
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.Envelope{}, models.NewResolutionError("Lead not found.")
	}
	if err != nil {
		return models.Envelope{}, models.NewExternalFailure("Failed to create task.", err)
	}

	row := models.NewTaskRow(task)
	return models.Envelope{
		Intent:     CreateTask,
		ResultType: models.ResultTaskCreated,
		Title:      "Task created",
		Items:      []models.Item{row},
		AISummary: fmt.Sprintf("Created %s task for lead #%d%s due %s.",
			row.TaskType, row.LeadID, matchedBy(res.MatchReason), r.deps.Policy.FormatLocal(row.DueAt)),
	}, nil
}

func taskTitle(note, taskType string) string {
	if note != "" {
		if utf8.RuneCountInString(note) > taskTitleLimit {
			return string([]rune(note)[:taskTitleLimit]) + "..."
		}
		return note
	}
	runes := []rune(taskType)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + " task"
}

func (r *Registry) updateTaskTool() Tool {
	return Tool{
		Name:        UpdateTask,
		Description: "Update an existing follow-up task: complete, cancel, reopen, reschedule or change its note.",
		Parameters: object(map[string]any{
			"task_id":               integer("Task id when known"),
			"lead_id":               integer("Lead id; the latest-due task of the lead is updated"),
			"lead_name":             str("Lead name when the id is unknown"),
			"followup_type":         str("Restrict to tasks of this type"),
			"new_status":            enum("New status", "open", "completed", "canceled", "cancelled"),
			"new_scheduled_for_iso": str("New due date as ISO 8601 with offset"),
			"note":                  str("New task description"),
		}),
		Run: r.runUpdateTask,
	}
}

func (r *Registry) runUpdateTask(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	logger := zerolog.Ctx(ctx)

	taskID := args.Int("task_id")
	leadID := args.Int("lead_id")
	matchReason := ""

	if name := args.String("lead_name"); taskID == 0 && leadID == 0 && name != "" {
		res, err := resolveLead(ctx, tenant, Args{"lead_name": name})
		if err != nil {
			return models.Envelope{}, err
		}
		if !res.Found() {
			return models.Envelope{}, models.NewResolutionError(fmt.Sprintf("Could not find a lead named %q. Please mention the lead's email, phone, or the task id.", name))
		}
		leadID, matchReason = res.LeadID, res.MatchReason
	}
	if taskID == 0 && leadID == 0 {
		return models.Envelope{}, models.NewValidationError("To update a task, I need either the task id or the lead id / lead name.")
	}

	existing, err := r.locateTask(ctx, tenant, taskID, leadID, strings.ToLower(args.String("followup_type")))
	if err != nil {
		return models.Envelope{}, err
	}

	now := r.now()
	var update store.TaskUpdate

	if raw := args.String("new_scheduled_for_iso"); raw != "" {
		if parsed, ok := r.deps.Policy.Parse(raw); ok {
			due, remapped := r.deps.Policy.RemapStale(parsed, now)
			if remapped {
				logger.Warn().Int64("task_id", existing.ID).Time("due_at", due).Msg("Stale task date remapped")
			}
			update.DueAt = &due
		}
	}

	newStatus := args.String("new_status")
	if newStatus != "" {
		status := TaskStatus(newStatus)
		if status == "" {
			return models.Envelope{}, models.NewValidationError(fmt.Sprintf("Unknown task status %q.", newStatus))
		}
		if existing.Terminal() {
			return models.Envelope{}, models.NewValidationError(fmt.Sprintf("Task #%d is already %s.", existing.ID, existing.Status))
		}
		update.Status = &status
		if status == models.TaskCompleted {
			update.CompletedAt = &now
		}
	}

	if note := args.String("note"); note != "" {
		update.Description = &note
	}

	if update.Empty() {
		return models.Envelope{}, models.NewValidationError("Nothing to update on this task. Provide a new status or a new date.")
	}

	task, err := tenant.Data.UpdateTask(ctx, tenant.CustomerID, existing.ID, update)
	if errors.Is(err, store.ErrNotFound) {
		return models.Envelope{}, models.NewResolutionError("No matching task found to update.")
	}
	if err != nil {
		return models.Envelope{}, models.NewExternalFailure("Failed to update task.", err)
	}

	row := models.NewTaskRow(task)
	parts := []string{fmt.Sprintf("Task #%d for lead #%d", row.ID, row.LeadID)}
	if matchReason != "" {
		parts = append(parts, fmt.Sprintf("(matched by %s)", matchReason))
	}
	if newStatus != "" {
		parts = append(parts, fmt.Sprintf("status set to %q", row.Status))
	}
	if !row.DueAt.IsZero() {
		parts = append(parts, "due "+r.deps.Policy.FormatLocal(row.DueAt))
	}

	return models.Envelope{
		Intent:     UpdateTask,
		ResultType: models.ResultTaskUpdated,
		Title:      "Task updated",
		Items:      []models.Item{row},
		AISummary:  strings.Join(parts, " · "),
	}, nil
}

func (r *Registry) locateTask(ctx context.Context, tenant store.Tenant, taskID, leadID int64, taskType string) (models.Task, error) {
	if taskID != 0 {
		task, err := tenant.Data.GetTask(ctx, tenant.CustomerID, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return models.Task{}, models.NewResolutionError("No matching task found to update.")
		}
		if err != nil {
			return models.Task{}, models.NewExternalFailure("Failed to locate task to update.", err)
		}
		return task, nil
	}

	tasks, err := tenant.Data.ListTasks(ctx, tenant.CustomerID, store.TaskFilter{
		LeadID:  leadID,
		Type:    taskType,
		Limit:   1,
		DueDesc: true,
	})
	if err != nil {
		return models.Task{}, models.NewExternalFailure("Failed to locate task to update.", err)
	}
	if len(tasks) == 0 {
		return models.Task{}, models.NewResolutionError("No matching task found to update.")
	}
	return tasks[0], nil
}
