package project

import (
	"strings"
	"taskBoard/internal/models/user"
)

type Project struct {
	ID          string   `json:"id" mapstructure:"-"`
	Title       string   `json:"title" mapstructure:"title"`
	Description string   `json:"description" mapstructure:"description"`
	StartDate   string   `json:"startDate,omitempty" mapstructure:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty" mapstructure:"endDate,omitempty"`
	OwnerID     string   `json:"ownerId" mapstructure:"ownerId"`
	Members     []string `json:"members" mapstructure:"members"`
}

// IsOwner: владелец проекта и есть PM.
func (p Project) IsOwner(uid string) bool {
	return uid != "" && p.OwnerID == uid
}

func (p Project) HasMember(email string) bool {
	for _, m := range p.Members {
		if strings.EqualFold(m, email) {
			return true
		}
	}
	return false
}

// CanAccess повторяет правило страницы проекта: участник, владелец
// или проект без списка участников.
func (p Project) CanAccess(u user.Identity) bool {
	return p.IsOwner(u.UID) || p.HasMember(u.Email) || len(p.Members) == 0
}

// AddMember добавляет email, если его ещё нет; возвращает true при добавлении.
func (p *Project) AddMember(email string) bool {
	email = user.NormalizeEmail(email)
	if email == "" || p.HasMember(email) {
		return false
	}
	p.Members = append(p.Members, email)
	return true
}

// NewMembers возвращает участников, которых нет в old.
func (p Project) NewMembers(old []string) []string {
	prev := Project{Members: old}
	var added []string
	for _, m := range p.Members {
		if !prev.HasMember(m) {
			added = append(added, m)
		}
	}
	return added
}

// NormalizeMembers убирает пустые значения и дубликаты без учёта регистра.
func NormalizeMembers(members []string) []string {
	var p Project
	for _, m := range members {
		p.AddMember(m)
	}
	return p.Members
}
