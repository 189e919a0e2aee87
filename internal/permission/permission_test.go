package permission_test

import (
	"testing"

	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
	"taskBoard/internal/permission"

	"github.com/stretchr/testify/assert"
)

var (
	pm  = user.Identity{UID: "pm-uid", Email: "pm@x.com"}
	dev = user.Identity{UID: "dev-uid", Email: "dev@x.com"}
	qa  = user.Identity{UID: "qa-uid", Email: "qa@x.com"}

	proj = project.Project{ID: "p1", OwnerID: "pm-uid", Members: []string{"pm@x.com", "dev@x.com", "qa@x.com"}}
	t1   = task.Task{ID: "T1", Status: task.StatusTodo, Assignee: "dev@x.com"}
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		user    user.Identity
		dest    task.Status
		allowed bool
		reason  string
	}{
		{name: "owner marks done", user: pm, dest: task.StatusDone, allowed: true},
		{name: "owner moves someone else's task", user: pm, dest: task.StatusInProgress, allowed: true},
		{name: "owner reorders", user: pm, dest: task.StatusTodo, allowed: true},
		{name: "assignee moves own task", user: dev, dest: task.StatusInProgress, allowed: true},
		{name: "assignee reorders own task", user: dev, dest: task.StatusTodo, allowed: true},
		{name: "assignee cannot mark done", user: dev, dest: task.StatusDone, reason: permission.ReasonOwnerOnlyDone},
		{name: "other member cannot move", user: qa, dest: task.StatusInProgress, reason: permission.ReasonOwnerOrAssignee},
		{name: "other member cannot reorder", user: qa, dest: task.StatusTodo, reason: permission.ReasonOwnerOrAssignee},
		{name: "done rule comes first", user: qa, dest: task.StatusDone, reason: permission.ReasonOwnerOnlyDone},
		{name: "assignee email is case-insensitive", user: user.Identity{UID: "dev-uid", Email: "DEV@x.com"}, dest: task.StatusInProgress, allowed: true},
		{name: "anonymous", user: user.Identity{}, dest: task.StatusInProgress, reason: permission.ReasonOwnerOrAssignee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := permission.CanTransition(tt.user, proj, t1, tt.dest)
			assert.Equal(t, tt.allowed, v.Allowed)
			assert.Equal(t, tt.reason, v.Reason)

			// одинаковые входы всегда дают одинаковый ответ
			for i := 0; i < 10; i++ {
				assert.Equal(t, v, permission.CanTransition(tt.user, proj, t1, tt.dest))
			}
		})
	}
}

func TestCanTransition_EmptyOwner(t *testing.T) {
	orphan := project.Project{ID: "p2", Members: []string{"dev@x.com"}}
	v := permission.CanTransition(user.Identity{Email: "x@x.com"}, orphan, t1, task.StatusDone)
	assert.False(t, v.Allowed, "empty uid never matches an empty owner")
}

func TestCanDeleteProject(t *testing.T) {
	assert.True(t, permission.CanDeleteProject(pm, proj).Allowed)
	assert.Equal(t, permission.ReasonOwnerOnlyDelete, permission.CanDeleteProject(dev, proj).Reason)
	assert.Equal(t, permission.ReasonNotAuthenticated, permission.CanDeleteProject(user.Identity{}, proj).Reason)
}

func TestCanEditTask(t *testing.T) {
	assert.True(t, permission.CanEditTask(dev, proj).Allowed)
	assert.True(t, permission.CanEditTask(pm, proj).Allowed)

	outsider := user.Identity{UID: "o", Email: "outsider@x.com"}
	assert.Equal(t, permission.ReasonMembersOnly, permission.CanEditTask(outsider, proj).Reason)
}

func TestCanEditProject(t *testing.T) {
	assert.True(t, permission.CanEditProject(pm, proj).Allowed)
	assert.Equal(t, permission.ReasonOwnerOnlyEdit, permission.CanEditProject(dev, proj).Reason)
}
