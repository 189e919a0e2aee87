package repository

import (
	"fmt"
	"strings"
)

const (
	ProjectsCollection      = "projects"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
	tasksSegment            = "tasks"
)

func ProjectPath(projectID string) string {
	return ProjectsCollection + "/" + projectID
}

func TasksCollection(projectID string) string {
	return ProjectPath(projectID) + "/" + tasksSegment
}

func TaskPath(projectID, taskID string) string {
	return TasksCollection(projectID) + "/" + taskID
}

func NotificationPath(id string) string {
	return NotificationsCollection + "/" + id
}

func UserPath(uid string) string {
	return UsersCollection + "/" + uid
}

// SplitPath делит путь документа на коллекцию и id.
// Путь документа всегда состоит из чётного числа сегментов.
func SplitPath(path string) (collection, id string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

// ValidCollection: путь коллекции состоит из нечётного числа сегментов.
func ValidCollection(collection string) bool {
	segments := strings.Split(strings.Trim(collection, "/"), "/")
	if len(segments)%2 != 1 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

// ProjectIDFromTaskPath извлекает projectId из projects/{projectId}/tasks/{taskId}.
func ProjectIDFromTaskPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 4 && segments[0] == ProjectsCollection && segments[2] == tasksSegment {
		return segments[1]
	}
	return ""
}
