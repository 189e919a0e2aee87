package user

import "strings"

// Identity - текущий пользователь, каким его видит ядро.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

func (i Identity) Empty() bool {
	return i.UID == ""
}

// NormalizeEmail приводит адрес к виду, в котором он хранится в members,
// assignee и users: без пробелов и в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile хранится в users/{uid}.
type Profile struct {
	UID         string `json:"uid" mapstructure:"uid"`
	Email       string `json:"email" mapstructure:"email"`
	DisplayName string `json:"displayName,omitempty" mapstructure:"displayName,omitempty"`
}
