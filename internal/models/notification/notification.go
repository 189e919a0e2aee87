package notification

import "time"

type Notification struct {
	ID           string    `json:"id" mapstructure:"-"`
	Type         Type      `json:"type" mapstructure:"type"`
	Title        string    `json:"title" mapstructure:"title"`
	Message      string    `json:"message" mapstructure:"message"`
	RecipientID  string    `json:"recipientId" mapstructure:"recipientId"`
	Read         bool      `json:"read" mapstructure:"read"`
	Deleted      bool      `json:"deleted" mapstructure:"deleted"`
	CreatedAt    time.Time `json:"createdAt" mapstructure:"createdAt"`
	ProjectID    string    `json:"projectId,omitempty" mapstructure:"projectId"`
	ProjectTitle string    `json:"projectTitle,omitempty" mapstructure:"projectTitle"`
	TaskID       string    `json:"taskId,omitempty" mapstructure:"taskId"`
	TaskTitle    string    `json:"taskTitle,omitempty" mapstructure:"taskTitle"`
	DueDate      string    `json:"dueDate,omitempty" mapstructure:"dueDate"`
	NewStatus    string    `json:"newStatus,omitempty" mapstructure:"newStatus"`
	AddedBy      string    `json:"addedBy,omitempty" mapstructure:"addedBy"`
	CreatedBy    string    `json:"createdBy,omitempty" mapstructure:"createdBy"`
	ChangedBy    string    `json:"changedBy,omitempty" mapstructure:"changedBy"`
}

type Type string

const TypeProjectMemberAdded Type = "project_member_added"
const TypeTaskCreated Type = "task_created"
const TypeTaskStatusChanged Type = "task_status_changed"
const TypeTaskDueDate Type = "task_due_date"
const TypeTaskOverdue Type = "task_overdue"

// DueDateFamily: только эти типы проходят проверку на дубликаты.
func (t Type) DueDateFamily() bool {
	return t == TypeTaskDueDate || t == TypeTaskOverdue
}
