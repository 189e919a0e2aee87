package task

import (
	"fmt"
	"strings"
	"time"
)

type Task struct {
	ID          string `json:"id" mapstructure:"-"`
	ProjectID   string `json:"projectId,omitempty" mapstructure:"-"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description" mapstructure:"description"`
	Status      Status `json:"status" mapstructure:"status"`
	Order       int    `json:"order" mapstructure:"order"`
	Assignee    string `json:"assignee" mapstructure:"assignee"`
	StartDate   string `json:"startDate,omitempty" mapstructure:"startDate,omitempty"`
	DueDate     string `json:"dueDate,omitempty" mapstructure:"dueDate,omitempty"`
}

type Status string

const StatusTodo Status = "todo"
const StatusInProgress Status = "inprogress"
const StatusDone Status = "done"

// Statuses перечисляет колонки доски слева направо.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("неизвестный статус %q", raw)
	}
	return s, nil
}

const dateLayout = "2006-01-02"

// ParseDate принимает дату в виде YYYY-MM-DD (полночь UTC) или RFC3339.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("пустая дата")
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("неверный формат даты %q: %w", raw, err)
	}
	return t, nil
}

// DueAt возвращает момент дедлайна; ok=false если дедлайна нет или он не разбирается.
func (t Task) DueAt() (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	due, err := ParseDate(t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return due, true
}

func (t Task) AssignedTo(email string) bool {
	return t.Assignee != "" && strings.EqualFold(t.Assignee, email)
}
