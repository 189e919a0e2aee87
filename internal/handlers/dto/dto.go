package dto

import (
	"taskBoard/internal/board"
	"taskBoard/internal/models/notification"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/service"
)

type ProjectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Members     []string `json:"members"`
}

func (r ProjectRequest) Input() service.ProjectInput {
	return service.ProjectInput{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Members:     r.Members,
	}
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Assignee    string `json:"assignee"`
	StartDate   string `json:"startDate"`
	DueDate     string `json:"dueDate"`
}

func (r CreateTaskRequest) Input() service.TaskInput {
	return service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		Assignee:    r.Assignee,
		StartDate:   r.StartDate,
		DueDate:     r.DueDate,
	}
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// Options превращает заданные поля в опции обновления.
func (r UpdateTaskRequest) Options() []task.TaskOption {
	var opts []task.TaskOption
	if r.Title != nil {
		opts = append(opts, task.WithTitle(*r.Title))
	}
	if r.Description != nil {
		opts = append(opts, task.WithDescription(*r.Description))
	}
	if r.Status != nil {
		opts = append(opts, task.WithStatus(task.Status(*r.Status)))
	}
	if r.Assignee != nil {
		opts = append(opts, task.WithAssignee(*r.Assignee))
	}
	if r.StartDate != nil {
		opts = append(opts, task.WithStartDate(*r.StartDate))
	}
	if r.DueDate != nil {
		opts = append(opts, task.WithDueDate(*r.DueDate))
	}
	return opts
}

type MoveRequest struct {
	TaskID string `json:"taskId"`
	Over   string `json:"over"`
}

func (r MoveRequest) Move() board.Move {
	return board.Move{TaskID: r.TaskID, Over: r.Over}
}

type ColumnResponse struct {
	Status string      `json:"status"`
	Label  string      `json:"label"`
	Tasks  []task.Task `json:"tasks"`
}

type BoardResponse struct {
	ProjectID string           `json:"projectId"`
	Version   uint64           `json:"version"`
	Pending   bool             `json:"pending"`
	Columns   []ColumnResponse `json:"columns"`
}

func FromState(s board.State) BoardResponse {
	resp := BoardResponse{
		ProjectID: s.Board.ProjectID(),
		Version:   s.Version,
		Pending:   s.Pending,
		Columns:   make([]ColumnResponse, 0, len(task.Statuses)),
	}
	for _, status := range task.Statuses {
		tasks := s.Board.Column(status)
		if tasks == nil {
			tasks = []task.Task{}
		}
		resp.Columns = append(resp.Columns, ColumnResponse{
			Status: string(status),
			Label:  status.Label(),
			Tasks:  tasks,
		})
	}
	return resp
}

type MoveResponse struct {
	Board BoardResponse `json:"board"`
	Moved bool          `json:"moved"`
	NoOp  bool          `json:"noop"`
	From  string        `json:"from,omitempty"`
	To    string        `json:"to,omitempty"`
}

func FromMoveResult(r service.MoveResult) MoveResponse {
	resp := MoveResponse{Board: FromState(r.State), NoOp: r.NoOp}
	if r.Transition != nil {
		resp.Moved = true
		resp.From = string(r.Transition.From)
		resp.To = string(r.Transition.To)
	}
	return resp
}

type NotificationsResponse struct {
	Items  []notification.Notification `json:"items"`
	Unread int                         `json:"unread"`
}

type ProjectsResponse struct {
	Items []project.Project `json:"items"`
}
