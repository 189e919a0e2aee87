package task

import "taskBoard/internal/models/user"

type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithStatus(status Status) TaskOption {
	if !status.Valid() {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

func WithAssignee(email string) TaskOption {
	email = user.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	return func(task *Task) {
		task.Assignee = email
	}
}

func WithStartDate(date string) TaskOption {
	if _, err := ParseDate(date); err != nil {
		return nil
	}
	return func(task *Task) {
		task.StartDate = date
	}
}

func WithDueDate(date string) TaskOption {
	if _, err := ParseDate(date); err != nil {
		return nil
	}
	return func(task *Task) {
		task.DueDate = date
	}
}

// Apply применяет опции, пропуская nil (невалидные значения).
func (t *Task) Apply(opts ...TaskOption) {
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
}
