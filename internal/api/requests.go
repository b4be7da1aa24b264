package api

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdesk/internal/model"
)

const minPasswordLength = 6

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return required("username", "Username")
	}
	if r.Password == "" {
		return required("password", "Password")
	}
	return nil
}

type RegisterRequest struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	CreatedBy  string `json:"createdBy,omitempty"`
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return required("firstName", "First name")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return required("lastName", "Last name")
	}
	if strings.TrimSpace(r.Username) == "" {
		return required("username", "Username")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validatePassword(r.Password, true)
}

type CreateTaskRequest struct {
	TaskName        string     `json:"taskName"`
	TaskDescription string     `json:"taskDescription,omitempty"`
	AssignedUserIDs []int64    `json:"assignedUserIDs,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

func (r CreateTaskRequest) Validate() error {
	if strings.TrimSpace(r.TaskName) == "" {
		return required("taskName", "Task name")
	}
	return nil
}

type UpdateTaskRequest struct {
	TaskName        string           `json:"taskName"`
	TaskDescription string           `json:"taskDescription,omitempty"`
	AssignedUserIDs []int64          `json:"assignedUserIDs,omitempty"`
	Status          model.TaskStatus `json:"status"`
	Deadline        *time.Time       `json:"deadline,omitempty"`
}

func (r UpdateTaskRequest) Validate() error {
	if strings.TrimSpace(r.TaskName) == "" {
		return required("taskName", "Task name")
	}
	if !r.Status.Valid() {
		return &ValidationError{Field: "status", Message: "Status is invalid"}
	}
	return nil
}

type TaskStatusRequest struct {
	CurrentStatus model.TaskStatus `json:"currentStatus"`
}

type CreateUserRequest struct {
	FirstName       string `json:"firstName"`
	MiddleName      string `json:"middleName,omitempty"`
	LastName        string `json:"lastName"`
	DisplayName     string `json:"displayName,omitempty"`
	Username        string `json:"username"`
	UserRole        string `json:"userRole"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
}

func (r CreateUserRequest) Validate() error {
	if err := validateProfile(r.FirstName, r.LastName, r.Username, r.Email); err != nil {
		return err
	}
	if err := validatePassword(r.Password, true); err != nil {
		return err
	}
	if r.ConfirmPassword == "" {
		return required("confirmPassword", "Password confirmation")
	}
	return validateConfirmation(r.Password, r.ConfirmPassword)
}

// UpdateUserRequest leaves the password unchanged when Password is empty.
type UpdateUserRequest struct {
	FirstName       string `json:"firstName"`
	MiddleName      string `json:"middleName,omitempty"`
	LastName        string `json:"lastName"`
	DisplayName     string `json:"displayName,omitempty"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password,omitempty"`
	ConfirmPassword string `json:"-"`
}

func (r UpdateUserRequest) Validate() error {
	if err := validateProfile(r.FirstName, r.LastName, r.Username, r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return nil
	}
	if err := validatePassword(r.Password, false); err != nil {
		return err
	}
	return validateConfirmation(r.Password, r.ConfirmPassword)
}

func validateProfile(firstName, lastName, username, email string) error {
	if strings.TrimSpace(firstName) == "" {
		return required("firstName", "First name")
	}
	if strings.TrimSpace(lastName) == "" {
		return required("lastName", "Last name")
	}
	if strings.TrimSpace(username) == "" {
		return required("username", "Username")
	}
	return validateEmail(email)
}

func validateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return required("email", "Email")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return &ValidationError{Field: "email", Message: "Email is invalid"}
	}
	return nil
}

func validatePassword(password string, mustSet bool) error {
	if password == "" {
		if mustSet {
			return required("password", "Password")
		}
		return nil
	}
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	return nil
}

func validateConfirmation(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

func required(field, label string) error {
	return &ValidationError{Field: field, Message: label + " is required"}
}
