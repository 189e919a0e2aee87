package board

import (
	"errors"

	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"
)

// ErrUnresolved: задачу или колонку назначения не удалось найти, перенос не выполняется.
var ErrUnresolved = errors.New("не удалось определить колонку")

// Move - результат перетаскивания: Over это id задачи, на которую бросили,
// или id колонки, если бросили на пустое место.
type Move struct {
	TaskID string `json:"taskId"`
	Over   string `json:"over"`
}

type Transition struct {
	Board       Board
	Writes      []repository.Write
	Task        task.Task // задача после переноса
	From        task.Status
	To          task.Status
	CrossColumn bool
}

// Plan вычисляет новую доску и набор записей для одного перетаскивания.
// Функция чистая: исходная доска не меняется.
func Plan(b Board, m Move) (Transition, error) {
	from, fromIdx, ok := b.Locate(m.TaskID)
	if !ok {
		return Transition{}, ErrUnresolved
	}

	to, anchorIdx, ok := b.Locate(m.Over)
	if !ok {
		to = task.Status(m.Over)
		if !to.Valid() {
			return Transition{}, ErrUnresolved
		}
		anchorIdx = -1
	}

	next := b.Clone()
	tr := Transition{From: from, To: to, CrossColumn: from != to}

	if !tr.CrossColumn {
		col := next.columns[from]
		newIdx := anchorIdx
		if newIdx < 0 {
			newIdx = len(col) - 1
		}
		next.columns[from] = moveWithin(col, fromIdx, newIdx)
		reindex(next.columns[from])
		tr.Writes = orderWrites(b.projectID, next.columns[from], false)
	} else {
		src := next.columns[from]
		moved := src[fromIdx]
		next.columns[from] = append(src[:fromIdx:fromIdx], src[fromIdx+1:]...)

		moved.Status = to
		dst := next.columns[to]
		if anchorIdx < 0 || anchorIdx > len(dst) {
			anchorIdx = len(dst)
		}
		next.columns[to] = insertAt(dst, anchorIdx, moved)

		reindex(next.columns[from])
		reindex(next.columns[to])
		tr.Writes = append(orderWrites(b.projectID, next.columns[from], false),
			orderWrites(b.projectID, next.columns[to], true)...)
	}

	tr.Board = next
	tr.Task, _ = next.Task(m.TaskID)
	return tr, nil
}

func moveWithin(col []task.Task, from, to int) []task.Task {
	out := make([]task.Task, 0, len(col))
	moved := col[from]
	out = append(out, col[:from]...)
	out = append(out, col[from+1:]...)
	return insertAt(out, to, moved)
}

func insertAt(col []task.Task, idx int, t task.Task) []task.Task {
	out := make([]task.Task, 0, len(col)+1)
	out = append(out, col[:idx]...)
	out = append(out, t)
	return append(out, col[idx:]...)
}

func reindex(col []task.Task) {
	for i := range col {
		col[i].Order = i
	}
}

func orderWrites(projectID string, col []task.Task, withStatus bool) []repository.Write {
	writes := make([]repository.Write, 0, len(col))
	for _, t := range col {
		fields := repository.Fields{"order": t.Order}
		if withStatus {
			fields["status"] = string(t.Status)
		}
		writes = append(writes, repository.Write{Path: repository.TaskPath(projectID, t.ID), Fields: fields})
	}
	return writes
}
