package board

import (
	"sort"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

// Board - раскладка задач проекта по колонкам. Значение неизменяемо:
// методы возвращают копии, новые доски строят Build и Plan.
type Board struct {
	projectID string
	columns   map[task.Status][]task.Task
}

// Build сортирует задачи по order (стабильно) и раскладывает по статусу.
// Задачи с неизвестным статусом на доску не попадают.
func Build(projectID string, tasks []task.Task) Board {
	sorted := make([]task.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	b := empty(projectID)
	for _, t := range sorted {
		if !t.Status.Valid() {
			logger.Warn("Board: Задача с неизвестным статусом пропущена",
				zap.String("project_id", projectID),
				zap.String("task_id", t.ID),
				zap.String("status", string(t.Status)))
			continue
		}
		t.ProjectID = projectID
		b.columns[t.Status] = append(b.columns[t.Status], t)
	}
	return b
}

func empty(projectID string) Board {
	b := Board{projectID: projectID, columns: make(map[task.Status][]task.Task, len(task.Statuses))}
	for _, s := range task.Statuses {
		b.columns[s] = []task.Task{}
	}
	return b
}

func (b Board) ProjectID() string {
	return b.projectID
}

func (b Board) Column(status task.Status) []task.Task {
	col := b.columns[status]
	out := make([]task.Task, len(col))
	copy(out, col)
	return out
}

// Locate возвращает колонку и позицию задачи.
func (b Board) Locate(taskID string) (task.Status, int, bool) {
	for _, s := range task.Statuses {
		for i, t := range b.columns[s] {
			if t.ID == taskID {
				return s, i, true
			}
		}
	}
	return "", -1, false
}

func (b Board) Task(taskID string) (task.Task, bool) {
	s, i, ok := b.Locate(taskID)
	if !ok {
		return task.Task{}, false
	}
	return b.columns[s][i], true
}

// Tasks - все задачи в порядке колонок.
func (b Board) Tasks() []task.Task {
	var out []task.Task
	for _, s := range task.Statuses {
		out = append(out, b.columns[s]...)
	}
	return out
}

func (b Board) Len() int {
	n := 0
	for _, col := range b.columns {
		n += len(col)
	}
	return n
}

func (b Board) Clone() Board {
	c := Board{projectID: b.projectID, columns: make(map[task.Status][]task.Task, len(b.columns))}
	for s := range b.columns {
		c.columns[s] = b.Column(s)
	}
	return c
}

// DecodeTasks разбирает документы коллекции задач; битые документы пропускаются.
func DecodeTasks(projectID string, docs []repository.Document) []task.Task {
	tasks := make([]task.Task, 0, len(docs))
	for _, doc := range docs {
		var t task.Task
		if err := repository.Decode(doc, &t); err != nil {
			logger.Warn("Board: Не удалось разобрать задачу", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		t.ID = doc.ID
		t.ProjectID = projectID
		tasks = append(tasks, t)
	}
	return tasks
}
