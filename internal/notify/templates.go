package notify

import (
	"context"
	"fmt"

	"taskBoard/internal/models/notification"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
)

const dueDateLayout = "Jan 2, 2006"

func (d *Dispatcher) NotifyProjectMemberAdded(ctx context.Context, p project.Project, addedBy, recipientID string) (string, bool, error) {
	return d.Notify(ctx, notification.Notification{
		Type:         notification.TypeProjectMemberAdded,
		Title:        "You were added to a project",
		Message:      fmt.Sprintf("%s added you to the project %q", addedBy, p.Title),
		RecipientID:  recipientID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		AddedBy:      addedBy,
	})
}

func (d *Dispatcher) NotifyTaskCreated(ctx context.Context, p project.Project, t task.Task, createdBy, recipientID string) (string, bool, error) {
	return d.Notify(ctx, notification.Notification{
		Type:         notification.TypeTaskCreated,
		Title:        "New task assigned",
		Message:      fmt.Sprintf("%s created the task %q in the project %q", createdBy, t.Title, p.Title),
		RecipientID:  recipientID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		TaskID:       t.ID,
		TaskTitle:    t.Title,
		CreatedBy:    createdBy,
	})
}

// NotifyTaskStatusChanged берёт новый статус из t.
func (d *Dispatcher) NotifyTaskStatusChanged(ctx context.Context, p project.Project, t task.Task, changedBy, recipientID string) (string, bool, error) {
	return d.Notify(ctx, notification.Notification{
		Type:         notification.TypeTaskStatusChanged,
		Title:        "Task status changed",
		Message:      fmt.Sprintf("%s changed the status of the task %q to %q", changedBy, t.Title, t.Status.Label()),
		RecipientID:  recipientID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		TaskID:       t.ID,
		TaskTitle:    t.Title,
		NewStatus:    string(t.Status),
		ChangedBy:    changedBy,
	})
}

func (d *Dispatcher) NotifyTaskDueDate(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error) {
	due := t.DueDate
	if at, ok := t.DueAt(); ok {
		due = at.Format(dueDateLayout)
	}
	return d.Notify(ctx, notification.Notification{
		Type:         notification.TypeTaskDueDate,
		Title:        "Task due soon",
		Message:      fmt.Sprintf("The task %q is due on %s", t.Title, due),
		RecipientID:  recipientID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		TaskID:       t.ID,
		TaskTitle:    t.Title,
		DueDate:      t.DueDate,
	})
}

func (d *Dispatcher) NotifyTaskOverdue(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error) {
	return d.Notify(ctx, notification.Notification{
		Type:         notification.TypeTaskOverdue,
		Title:        "Task overdue",
		Message:      fmt.Sprintf("The task %q is overdue", t.Title),
		RecipientID:  recipientID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		TaskID:       t.ID,
		TaskTitle:    t.Title,
		DueDate:      t.DueDate,
	})
}
