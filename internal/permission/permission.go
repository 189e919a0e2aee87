package permission

import (
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
)

const (
	ReasonOwnerOnlyDone    = "only the project owner may mark a task done"
	ReasonOwnerOrAssignee  = "only the owner or the task's assignee may move this task"
	ReasonOwnerOnlyDelete  = "only the project owner may delete the project"
	ReasonOwnerOnlyEdit    = "only the project owner may edit the project"
	ReasonMembersOnly      = "only project members may change tasks"
	ReasonNotAuthenticated = "sign in required"
)

type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func deny(reason string) Verdict {
	return Verdict{Reason: reason}
}

// CanTransition решает, может ли u перенести t в колонку dest.
// Перестановка внутри колонки проверяется так же, с dest равным текущей колонке.
func CanTransition(u user.Identity, p project.Project, t task.Task, dest task.Status) Verdict {
	owner := u.UID != "" && u.UID == p.OwnerID
	if dest == task.StatusDone && !owner {
		return deny(ReasonOwnerOnlyDone)
	}
	if !owner && !t.AssignedTo(u.Email) {
		return deny(ReasonOwnerOrAssignee)
	}
	return allow()
}

func CanDeleteProject(u user.Identity, p project.Project) Verdict {
	if u.Empty() {
		return deny(ReasonNotAuthenticated)
	}
	if !p.IsOwner(u.UID) {
		return deny(ReasonOwnerOnlyDelete)
	}
	return allow()
}

func CanEditProject(u user.Identity, p project.Project) Verdict {
	if u.Empty() {
		return deny(ReasonNotAuthenticated)
	}
	if !p.IsOwner(u.UID) {
		return deny(ReasonOwnerOnlyEdit)
	}
	return allow()
}

// CanEditTask: создавать, править и удалять задачи может любой участник проекта.
func CanEditTask(u user.Identity, p project.Project) Verdict {
	if u.Empty() {
		return deny(ReasonNotAuthenticated)
	}
	if !p.CanAccess(u) {
		return deny(ReasonMembersOnly)
	}
	return allow()
}
