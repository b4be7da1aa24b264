package tui

import (
	"errors"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/Joseda-hg/taskdesk/internal/taskquery"
)

type formKind int

const (
	formLogin formKind = iota
	formRegister
	formTask
	formUser
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldSecret
	fieldChoice
	fieldAssignees
)

type formField struct {
	Key     string
	Label   string
	Value   string
	Kind    fieldKind
	Choices []string
}

type formState struct {
	kind   formKind
	taskID int64
	userID int64
	fields []formField
	index  int

	// assignee picker
	assignees map[int64]bool
	pick      int

	err  string
	busy bool
}

const (
	keyUsername    = "username"
	keyPassword    = "password"
	keyConfirm     = "confirm"
	keyFirstName   = "firstName"
	keyMiddleName  = "middleName"
	keyLastName    = "lastName"
	keyDisplayName = "displayName"
	keyEmail       = "email"
	keyRole        = "role"
	keyName        = "name"
	keyDescription = "description"
	keyStatus      = "status"
	keyAssignees   = "assignees"
	keyDate        = "date"
	keyTime        = "time"
)

func newLoginForm(username string) *formState {
	return &formState{
		kind: formLogin,
		fields: []formField{
			{Key: keyUsername, Label: "Username", Value: username},
			{Key: keyPassword, Label: "Password", Kind: fieldSecret},
		},
	}
}

func newRegisterForm() *formState {
	return &formState{
		kind: formRegister,
		fields: []formField{
			{Key: keyFirstName, Label: "First name"},
			{Key: keyMiddleName, Label: "Middle name"},
			{Key: keyLastName, Label: "Last name"},
			{Key: keyUsername, Label: "Username"},
			{Key: keyEmail, Label: "Email"},
			{Key: keyPassword, Label: "Password", Kind: fieldSecret},
		},
	}
}

func statusChoices() []string {
	labels := make([]string, 0, len(model.TaskStatuses))
	for _, status := range model.TaskStatuses {
		labels = append(labels, status.String())
	}
	return labels
}

// newTaskForm builds the task editor. A nil task opens an empty create form;
// new tasks get their status from the API so the status field is edit only.
func newTaskForm(task *model.Task) *formState {
	form := &formState{kind: formTask, assignees: make(map[int64]bool)}
	form.fields = []formField{
		{Key: keyName, Label: "Name"},
		{Key: keyDescription, Label: "Description"},
	}
	if task != nil {
		form.fields = append(form.fields, formField{Key: keyStatus, Label: "Status (space/←→)", Kind: fieldChoice, Choices: statusChoices(), Value: task.Status.String()})
	}
	form.fields = append(form.fields,
		formField{Key: keyAssignees, Label: "Assignees (space/←→)", Kind: fieldAssignees},
		formField{Key: keyDate, Label: "Deadline date (YYYY-MM-DD)"},
		formField{Key: keyTime, Label: "Deadline time (HH:MM)"},
	)
	if task == nil {
		return form
	}

	form.taskID = task.ID
	form.set(keyName, task.Name)
	form.set(keyDescription, task.Description)
	for _, id := range task.AssignedUserIDs {
		form.assignees[id] = true
	}
	date, clock := taskquery.DecomposeDeadline(task.Deadline)
	form.set(keyDate, date)
	form.set(keyTime, clock)
	return form
}

// newUserForm builds the account editor. withRole exposes the role picker,
// which only admins get.
func newUserForm(user *model.User, withRole bool) *formState {
	form := &formState{
		kind: formUser,
		fields: []formField{
			{Key: keyFirstName, Label: "First name"},
			{Key: keyMiddleName, Label: "Middle name"},
			{Key: keyLastName, Label: "Last name"},
			{Key: keyDisplayName, Label: "Display name"},
			{Key: keyUsername, Label: "Username"},
			{Key: keyEmail, Label: "Email"},
		},
	}
	if withRole {
		form.fields = append(form.fields, formField{Key: keyRole, Label: "Role (space/←→)", Kind: fieldChoice, Choices: []string{model.RoleUser, model.RoleAdmin}, Value: model.RoleUser})
	}
	passwordLabel := "Password"
	if user != nil {
		passwordLabel = "New password (optional)"
	}
	form.fields = append(form.fields,
		formField{Key: keyPassword, Label: passwordLabel, Kind: fieldSecret},
		formField{Key: keyConfirm, Label: "Confirm password", Kind: fieldSecret},
	)
	if user == nil {
		return form
	}

	form.userID = user.ID
	form.set(keyFirstName, user.FirstName)
	form.set(keyMiddleName, user.MiddleName)
	form.set(keyLastName, user.LastName)
	form.set(keyDisplayName, user.DisplayName)
	form.set(keyUsername, user.Username)
	form.set(keyEmail, user.Email)
	if withRole && user.Role != "" {
		form.set(keyRole, strings.ToLower(user.Role))
	}
	return form
}

func (f *formState) field(key string) *formField {
	for i := range f.fields {
		if f.fields[i].Key == key {
			return &f.fields[i]
		}
	}
	return nil
}

func (f *formState) has(key string) bool {
	return f.field(key) != nil
}

func (f *formState) value(key string) string {
	if field := f.field(key); field != nil {
		return field.Value
	}
	return ""
}

func (f *formState) text(key string) string {
	return strings.TrimSpace(f.value(key))
}

func (f *formState) set(key, value string) {
	if field := f.field(key); field != nil {
		field.Value = value
	}
}

func (f *formState) title() string {
	switch f.kind {
	case formLogin:
		return "Log in (ctrl-r register)"
	case formRegister:
		return "Register (ctrl-r back to login)"
	case formTask:
		if f.taskID != 0 {
			return "Edit Task"
		}
		return "New Task"
	default:
		if f.userID != 0 {
			return "Edit User"
		}
		return "New User"
	}
}

func (f *formState) assigneeIDs() []int64 {
	return sortedIDs(f.assignees)
}

func (f *formState) createTaskRequest() (api.CreateTaskRequest, error) {
	deadline, err := taskquery.ComposeDeadline(f.text(keyDate), f.text(keyTime))
	if err != nil {
		return api.CreateTaskRequest{}, deadlineError(err)
	}
	req := api.CreateTaskRequest{
		TaskName:        f.text(keyName),
		TaskDescription: f.text(keyDescription),
		AssignedUserIDs: f.assigneeIDs(),
		Deadline:        deadline,
	}
	return req, req.Validate()
}

func (f *formState) updateTaskRequest() (api.UpdateTaskRequest, error) {
	deadline, err := taskquery.ComposeDeadline(f.text(keyDate), f.text(keyTime))
	if err != nil {
		return api.UpdateTaskRequest{}, deadlineError(err)
	}
	status, err := model.ParseTaskStatus(f.value(keyStatus))
	if err != nil {
		return api.UpdateTaskRequest{}, &api.ValidationError{Field: keyStatus, Message: "Status is invalid"}
	}
	req := api.UpdateTaskRequest{
		TaskName:        f.text(keyName),
		TaskDescription: f.text(keyDescription),
		AssignedUserIDs: f.assigneeIDs(),
		Status:          status,
		Deadline:        deadline,
	}
	return req, req.Validate()
}

func deadlineError(err error) error {
	if errors.Is(err, taskquery.ErrSkippedTime) {
		return &api.ValidationError{Field: keyTime, Message: "Deadline time is skipped by a clock change on that date"}
	}
	if errors.Is(err, taskquery.ErrInvalidTime) {
		return &api.ValidationError{Field: keyTime, Message: "Deadline time must look like 14:30"}
	}
	return &api.ValidationError{Field: keyDate, Message: "Deadline date must look like 2024-12-31"}
}

func (f *formState) loginRequest() api.LoginRequest {
	return api.LoginRequest{Username: f.text(keyUsername), Password: f.value(keyPassword)}
}

func (f *formState) registerRequest() api.RegisterRequest {
	return api.RegisterRequest{
		FirstName:  f.text(keyFirstName),
		MiddleName: f.text(keyMiddleName),
		LastName:   f.text(keyLastName),
		Username:   f.text(keyUsername),
		Email:      f.text(keyEmail),
		Password:   f.value(keyPassword),
	}
}

func (f *formState) createUserRequest() api.CreateUserRequest {
	role := f.text(keyRole)
	if role == "" {
		role = model.RoleUser
	}
	return api.CreateUserRequest{
		FirstName:       f.text(keyFirstName),
		MiddleName:      f.text(keyMiddleName),
		LastName:        f.text(keyLastName),
		DisplayName:     f.text(keyDisplayName),
		Username:        f.text(keyUsername),
		UserRole:        role,
		Email:           f.text(keyEmail),
		Password:        f.value(keyPassword),
		ConfirmPassword: f.value(keyConfirm),
	}
}

func (f *formState) updateUserRequest() api.UpdateUserRequest {
	return api.UpdateUserRequest{
		FirstName:       f.text(keyFirstName),
		MiddleName:      f.text(keyMiddleName),
		LastName:        f.text(keyLastName),
		DisplayName:     f.text(keyDisplayName),
		Username:        f.text(keyUsername),
		Email:           f.text(keyEmail),
		Password:        f.value(keyPassword),
		ConfirmPassword: f.value(keyConfirm),
	}
}

func cycleChoice(choices []string, current string, delta int) string {
	if len(choices) == 0 {
		return current
	}
	index := 0
	for i, choice := range choices {
		if strings.EqualFold(choice, strings.TrimSpace(current)) {
			index = i
			break
		}
	}
	index = (index + delta + len(choices)) % len(choices)
	return choices[index]
}
