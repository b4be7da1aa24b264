package model

import (
	"strings"
	"time"
)

type Identity struct {
	UserID      int64  `json:"userID"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(i.Role), RoleAdmin)
}

// Name is what the UI shows for the identity.
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return i.Username
}

// IdentityPatch carries a partial profile update; nil fields are left alone.
type IdentityPatch struct {
	Username    *string
	DisplayName *string
	Email       *string
	Role        *string
}

func (i Identity) Merge(patch IdentityPatch) Identity {
	if patch.Username != nil {
		i.Username = *patch.Username
	}
	if patch.DisplayName != nil {
		i.DisplayName = *patch.DisplayName
	}
	if patch.Email != nil {
		i.Email = *patch.Email
	}
	if patch.Role != nil {
		i.Role = *patch.Role
	}
	return i
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Task struct {
	ID              int64      `json:"taskID"`
	Name            string     `json:"taskName"`
	Description     string     `json:"taskDescription,omitempty"`
	AssignedUserIDs []int64    `json:"assignedUserIDs,omitempty"`
	Status          TaskStatus `json:"status"`
	IsDelayed       bool       `json:"isDelayed"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CreatedOn       time.Time  `json:"createdOn"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	UpdatedOn       time.Time  `json:"updatedOn"`
	UpdatedBy       string     `json:"updatedBy,omitempty"`
}

func (t Task) AssignedTo(userID int64) bool {
	for _, id := range t.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type User struct {
	ID          int64     `json:"userID"`
	FirstName   string    `json:"firstName"`
	MiddleName  string    `json:"middleName,omitempty"`
	LastName    string    `json:"lastName"`
	DisplayName string    `json:"displayName,omitempty"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"userRole,omitempty"`
	CreatedOn   time.Time `json:"createdOn"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedOn   time.Time `json:"updatedOn"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

func (u User) Label() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

func (u User) Initials() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return strings.ToUpper(first[:1] + last[:1])
	case first != "":
		return strings.ToUpper(first[:1])
	case u.Username != "":
		return strings.ToUpper(u.Username[:1])
	}
	return ""
}

// Filter is the sparse task filter. Nil pointers and empty strings mean
// "not set" and are never sent to the API.
type Filter struct {
	Status         *TaskStatus `json:"status,omitempty" yaml:"status,omitempty"`
	SearchTerm     string      `json:"searchTerm,omitempty" yaml:"searchTerm,omitempty"`
	SortBy         string      `json:"sortBy,omitempty" yaml:"sortBy,omitempty"`
	SortDescending *bool       `json:"sortDescending,omitempty" yaml:"sortDescending,omitempty"`
	AssignedUserID *int64      `json:"assignedUserID,omitempty" yaml:"assignedUserID,omitempty"`
	IsDelayed      *bool       `json:"isDelayed,omitempty" yaml:"isDelayed,omitempty"`
}

type View struct {
	ID        int64     `yaml:"-"`
	Name      string    `yaml:"name"`
	Filter    Filter    `yaml:"filter"`
	CreatedAt time.Time `yaml:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}
