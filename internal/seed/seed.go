// Package seed загружает демонстрационные данные доски из YAML.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Users    []User    `yaml:"users"`
	Projects []Project `yaml:"projects"`
}

type User struct {
	UID   string `yaml:"uid"`
	Email string `yaml:"email"`
}

type Project struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Owner       string   `yaml:"owner"` // uid
	Members     []string `yaml:"members"`
	Tasks       []Task   `yaml:"tasks"`
}

// Task: DueIn задаёт дедлайн относительно момента загрузки ("36h", "-2h")
// и имеет приоритет над DueDate.
type Task struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Assignee    string `yaml:"assignee"`
	DueDate     string `yaml:"dueDate"`
	DueIn       string `yaml:"dueIn"`
}

type Summary struct {
	Users    int
	Projects int
	Tasks    int
}

func Read(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixture{}, fmt.Errorf("разбор фикстуры: %w", err)
	}
	return f, nil
}

func ReadFile(path string) (Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()
	return Read(file)
}

// Apply записывает фикстуру в хранилище. Повторная загрузка перезаписывает
// те же документы, порядок задач в колонке берётся из порядка в файле.
func Apply(ctx context.Context, store repository.DocumentStore, f Fixture, now time.Time) (Summary, error) {
	var sum Summary
	for _, u := range f.Users {
		if u.UID == "" || u.Email == "" {
			return sum, fmt.Errorf("пользователь без uid или email")
		}
		err := store.SetDocument(ctx, repository.UserPath(u.UID), repository.Fields{
			"uid":   u.UID,
			"email": strings.ToLower(strings.TrimSpace(u.Email)),
		})
		if err != nil {
			return sum, fmt.Errorf("пользователь %s: %w", u.UID, err)
		}
		sum.Users++
	}

	for _, fp := range f.Projects {
		if fp.ID == "" || strings.TrimSpace(fp.Title) == "" {
			return sum, fmt.Errorf("проект без id или названия")
		}
		p := project.Project{
			Title:       fp.Title,
			Description: fp.Description,
			OwnerID:     fp.Owner,
			Members:     project.NormalizeMembers(fp.Members),
		}
		fields, err := repository.Encode(p)
		if err != nil {
			return sum, err
		}
		if err := store.SetDocument(ctx, repository.ProjectPath(fp.ID), fields); err != nil {
			return sum, fmt.Errorf("проект %s: %w", fp.ID, err)
		}
		sum.Projects++

		n, err := applyTasks(ctx, store, fp, now)
		sum.Tasks += n
		if err != nil {
			return sum, err
		}
	}

	logger.Info("Seed: Фикстура загружена",
		zap.Int("users", sum.Users),
		zap.Int("projects", sum.Projects),
		zap.Int("tasks", sum.Tasks))
	return sum, nil
}

func applyTasks(ctx context.Context, store repository.DocumentStore, fp Project, now time.Time) (int, error) {
	orders := map[task.Status]int{}
	for i, ft := range fp.Tasks {
		status := task.StatusTodo
		if ft.Status != "" {
			parsed, err := task.ParseStatus(ft.Status)
			if err != nil {
				return i, fmt.Errorf("задача %s: %w", ft.ID, err)
			}
			status = parsed
		}
		due := ft.DueDate
		if ft.DueIn != "" {
			d, err := time.ParseDuration(ft.DueIn)
			if err != nil {
				return i, fmt.Errorf("задача %s: dueIn: %w", ft.ID, err)
			}
			due = now.Add(d).UTC().Format(time.RFC3339)
		} else if due != "" {
			if _, err := task.ParseDate(due); err != nil {
				return i, fmt.Errorf("задача %s: %w", ft.ID, err)
			}
		}

		t := task.Task{
			Title:       ft.Title,
			Description: ft.Description,
			Status:      status,
			Order:       orders[status],
			Assignee:    strings.ToLower(strings.TrimSpace(ft.Assignee)),
			DueDate:     due,
		}
		orders[status]++

		fields, err := repository.Encode(t)
		if err != nil {
			return i, err
		}
		id := ft.ID
		if id == "" {
			id = fmt.Sprintf("task-%d", i+1)
		}
		if err := store.SetDocument(ctx, repository.TaskPath(fp.ID, id), fields); err != nil {
			return i, fmt.Errorf("задача %s: %w", id, err)
		}
	}
	return len(fp.Tasks), nil
}
