package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/model"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(len(u.form.fields)+4, max(8, maxY-2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewForm, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	view.Title = u.form.title()
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetViewOnTop(viewForm)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, u.displayValue(field))
	}
	fmt.Fprintln(view)
	switch {
	case u.form.busy:
		fmt.Fprint(view, "  working...")
	case u.form.err != "":
		fmt.Fprintf(view, "  %s", u.form.err)
	}

	current := u.form.fields[u.form.index]
	label := current.Label + ": "
	cursorX := len([]rune(label)) + len([]rune(u.displayValue(current))) + 2
	view.SetCursor(cursorX, u.form.index)
}

func (u *UI) displayValue(field formField) string {
	switch field.Kind {
	case fieldSecret:
		return strings.Repeat("*", len([]rune(field.Value)))
	case fieldAssignees:
		value := formatAssignees(u.form.assigneeIDs(), u.usersByID)
		if candidate := u.assigneeCandidate(); candidate != nil {
			mark := "+"
			if u.form.assignees[candidate.ID] {
				mark = "-"
			}
			value = fmt.Sprintf("%s [%s%s]", value, mark, candidate.Label())
		}
		return value
	default:
		return field.Value
	}
}

func (u *UI) assigneeCandidate() *model.User {
	if u.form == nil || len(u.users) == 0 {
		return nil
	}
	index := clampIndex(u.form.pick, len(u.users))
	return &u.users[index]
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	if ui.form.busy {
		return true
	}
	ui.editField(key, ch, mod)
	ui.renderForm(view)
	return true
}

// editField applies one keystroke to the focused field.
func (u *UI) editField(key gocui.Key, ch rune, mod gocui.Modifier) {
	field := &u.form.fields[u.form.index]

	switch field.Kind {
	case fieldChoice:
		switch {
		case key == gocui.KeyArrowRight || key == gocui.KeySpace || ch == ' ':
			field.Value = cycleChoice(field.Choices, field.Value, 1)
		case key == gocui.KeyArrowLeft:
			field.Value = cycleChoice(field.Choices, field.Value, -1)
		}
		return
	case fieldAssignees:
		switch {
		case key == gocui.KeyArrowRight:
			u.form.pick = min(u.form.pick+1, len(u.users)-1)
		case key == gocui.KeyArrowLeft:
			u.form.pick = max(u.form.pick-1, 0)
		case key == gocui.KeySpace || ch == ' ':
			if candidate := u.assigneeCandidate(); candidate != nil {
				if u.form.assignees[candidate.ID] {
					delete(u.form.assignees, candidate.ID)
				} else {
					u.form.assignees[candidate.ID] = true
				}
			}
		}
		return
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

// cancelForm closes the form. The login form stays up while nobody is
// signed in; the register form falls back to it.
func (u *UI) cancelForm(_ *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}
	switch u.form.kind {
	case formLogin:
		return nil
	case formRegister:
		u.form = newLoginForm(u.lastUsername)
		return nil
	}
	u.closeForm(u.form)
	return nil
}

func (u *UI) toggleRegister(_ *gocui.Gui, _ *gocui.View) error {
	if u.form == nil || u.form.busy {
		return nil
	}
	switch u.form.kind {
	case formLogin:
		u.form = newRegisterForm()
	case formRegister:
		u.form = newLoginForm(u.lastUsername)
	}
	return nil
}

// closeForm removes form if it is still the open one.
func (u *UI) closeForm(form *formState) {
	if u.form != form {
		return
	}
	u.form = nil
	u.closeView(viewForm)
}

func (u *UI) submitForm(_ *gocui.Gui, _ *gocui.View) error {
	form := u.form
	if form == nil || form.busy {
		return nil
	}
	form.err = ""

	switch form.kind {
	case formLogin:
		u.submitLogin(form)
	case formRegister:
		u.submitRegister(form)
	case formTask:
		u.submitTask(form)
	case formUser:
		u.submitUser(form)
	}
	return nil
}

func (u *UI) submitLogin(form *formState) {
	req := form.loginRequest()
	if err := req.Validate(); err != nil {
		form.err = api.Message(err, "Login failed. Please try again.")
		return
	}
	form.busy = true
	u.async(func() func() {
		identity, err := u.session.Login(u.ctx, req.Username, req.Password)
		return func() {
			form.busy = false
			if err != nil {
				form.err = api.Message(err, "Login failed. Please try again.")
				form.set(keyPassword, "")
				return
			}
			u.status = fmt.Sprintf("Signed in as %s", identity.Name())
		}
	})
}

func (u *UI) submitRegister(form *formState) {
	req := form.registerRequest()
	if err := req.Validate(); err != nil {
		form.err = api.Message(err, "Registration failed. Please try again.")
		return
	}
	form.busy = true
	u.async(func() func() {
		err := u.client.Register(u.ctx, req)
		return func() {
			form.busy = false
			if err != nil {
				form.err = api.Message(err, "Registration failed. Please try again.")
				return
			}
			if u.form != form {
				return
			}
			u.lastUsername = req.Username
			u.form = newLoginForm(req.Username)
			u.form.index = 1
			u.form.err = "Registration successful. Please log in."
		}
	})
}

func (u *UI) submitTask(form *formState) {
	if form.taskID == 0 {
		req, err := form.createTaskRequest()
		if err != nil {
			form.err = api.Message(err, "Invalid task")
			return
		}
		form.busy = true
		u.async(func() func() {
			task, err := u.client.CreateTask(u.ctx, req)
			return func() { u.taskSaved(form, task, err, "created") }
		})
		return
	}

	req, err := form.updateTaskRequest()
	if err != nil {
		form.err = api.Message(err, "Invalid task")
		return
	}
	form.busy = true
	taskID := form.taskID
	u.async(func() func() {
		task, err := u.client.UpdateTask(u.ctx, taskID, req)
		return func() { u.taskSaved(form, task, err, "updated") }
	})
}

func (u *UI) taskSaved(form *formState, task model.Task, err error, verb string) {
	form.busy = false
	if err != nil {
		u.logger.Printf("tui: save task: %v", err)
		form.err = api.Message(err, "Error saving task")
		return
	}
	u.closeForm(form)
	u.status = fmt.Sprintf("Task %q %s", task.Name, verb)
	u.loadTasks()
}

func (u *UI) submitUser(form *formState) {
	if form.userID == 0 {
		req := form.createUserRequest()
		if err := req.Validate(); err != nil {
			form.err = api.Message(err, "Invalid user")
			return
		}
		form.busy = true
		u.async(func() func() {
			user, err := u.client.CreateUser(u.ctx, req)
			return func() { u.userSaved(form, user, err, "created") }
		})
		return
	}

	req := form.updateUserRequest()
	if err := req.Validate(); err != nil {
		form.err = api.Message(err, "Invalid user")
		return
	}
	form.busy = true
	userID := form.userID
	self := u.identity != nil && u.identity.UserID == userID
	u.async(func() func() {
		user, err := u.client.UpdateUser(u.ctx, userID, req)
		if err == nil && self {
			err = u.session.UpdateCurrentUser(u.ctx, profilePatch(user))
		}
		return func() { u.userSaved(form, user, err, "updated") }
	})
}

func (u *UI) userSaved(form *formState, user model.User, err error, verb string) {
	form.busy = false
	if err != nil {
		u.logger.Printf("tui: save user: %v", err)
		form.err = api.Message(err, "Error saving user")
		return
	}
	u.closeForm(form)
	u.status = fmt.Sprintf("User %s %s", user.Label(), verb)
	u.loadUsers()
}

// profilePatch is the part of an updated account that the session
// identity mirrors.
func profilePatch(user model.User) model.IdentityPatch {
	username := user.Username
	displayName := user.Label()
	email := user.Email
	return model.IdentityPatch{
		Username:    &username,
		DisplayName: &displayName,
		Email:       &email,
	}
}
