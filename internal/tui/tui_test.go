package tui

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/apitest"
	"github.com/Joseda-hg/taskdesk/internal/db"
	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/Joseda-hg/taskdesk/internal/session"
	"github.com/Joseda-hg/taskdesk/internal/taskquery"
	"github.com/jesseduffield/gocui"
)

type testEnv struct {
	ui     *UI
	server *apitest.Server
	store  *db.Store
	admin  model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := apitest.NewServer(t)
	admin := server.AddUser(model.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		Email:     "ada@example.com",
		Role:      model.RoleAdmin,
	}, "secret1")

	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	store := db.NewStore(conn)

	logger := log.New(io.Discard, "", 0)
	probe, err := api.NewClient(server.APIURL(), nil, logger)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	jar, err := api.NewSessionJar(context.Background(), store, probe.BaseURL(), logger)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	client, err := api.NewClient(server.APIURL(), &http.Client{Jar: jar, Timeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	sess := session.New(client, store, jar, logger)
	ui := newUI(client, sess, store, logger)
	t.Cleanup(ui.watchSession())
	<-sess.Start(context.Background())

	return &testEnv{ui: ui, server: server, store: store, admin: admin}
}

func (e *testEnv) login(t *testing.T, username, password string) {
	t.Helper()
	if e.ui.form == nil || e.ui.form.kind != formLogin {
		t.Fatalf("expected login form, got %+v", e.ui.form)
	}
	e.ui.form.set(keyUsername, username)
	e.ui.form.set(keyPassword, password)
	if err := e.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}
	if e.ui.identity == nil {
		t.Fatalf("expected to be signed in, form error %q", e.ui.form.err)
	}
}

func TestStartWithoutSessionShowsLoginForm(t *testing.T) {
	env := newTestEnv(t)

	if env.ui.form == nil || env.ui.form.kind != formLogin {
		t.Fatalf("expected login form, got %+v", env.ui.form)
	}
	if env.ui.phase != session.PhaseConfirmed {
		t.Fatalf("expected confirmed phase, got %s", env.ui.phase)
	}
}

func TestLoginLoadsBoard(t *testing.T) {
	env := newTestEnv(t)
	env.server.AddTask(model.Task{Name: "Write report", AssignedUserIDs: []int64{env.admin.ID}, Status: model.StatusToDo})
	env.server.AddTask(model.Task{Name: "Ship it", Status: model.StatusCompleted})
	bob := env.server.AddUser(model.User{FirstName: "Bob", LastName: "Ray", Username: "bob", Email: "bob@example.com"}, "secret2")

	env.login(t, "ada", "secret1")

	if env.ui.form != nil {
		t.Fatalf("expected login form to close")
	}
	if len(env.ui.todo) != 1 || len(env.ui.completed) != 1 {
		t.Fatalf("expected 1 todo and 1 completed task, got %d and %d", len(env.ui.todo), len(env.ui.completed))
	}
	visible := env.ui.visibleUsers()
	if len(visible) != 1 || visible[0].ID != bob.ID {
		t.Fatalf("expected only bob in users pane, got %+v", visible)
	}
}

func TestLoginFailureKeepsForm(t *testing.T) {
	env := newTestEnv(t)
	env.ui.form.set(keyUsername, "ada")
	env.ui.form.set(keyPassword, "wrong-password")

	if err := env.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}
	if env.ui.identity != nil {
		t.Fatalf("expected to stay signed out")
	}
	if env.ui.form == nil || env.ui.form.err != "Invalid username or password" {
		t.Fatalf("expected server message on form, got %+v", env.ui.form)
	}
	if env.ui.form.value(keyPassword) != "" {
		t.Fatalf("expected password to be cleared")
	}
}

func TestRegisterReturnsToLogin(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ui.toggleRegister(nil, nil); err != nil {
		t.Fatalf("toggle register: %v", err)
	}
	form := env.ui.form
	form.set(keyFirstName, "Grace")
	form.set(keyLastName, "Hopper")
	form.set(keyUsername, "grace")
	form.set(keyEmail, "grace@example.com")
	form.set(keyPassword, "cobol60")

	if err := env.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit register: %v", err)
	}
	if env.ui.form == nil || env.ui.form.kind != formLogin {
		t.Fatalf("expected login form after registering, got %+v", env.ui.form)
	}
	if env.ui.form.value(keyUsername) != "grace" {
		t.Fatalf("expected username to be prefilled, got %q", env.ui.form.value(keyUsername))
	}
	if env.ui.form.err != "Registration successful. Please log in." {
		t.Fatalf("unexpected message %q", env.ui.form.err)
	}

	env.login(t, "grace", "cobol60")
}

func TestToggleTaskStates(t *testing.T) {
	env := newTestEnv(t)
	task := env.server.AddTask(model.Task{Name: "Toggle status", AssignedUserIDs: []int64{env.admin.ID}, Status: model.StatusToDo})
	env.login(t, "ada", "secret1")

	t.Run("toggle in progress", func(t *testing.T) {
		env.ui.setFocus(nil, viewTodo)
		if err := env.ui.toggleInProgress(nil, nil); err != nil {
			t.Fatalf("toggle in progress: %v", err)
		}
		updated, _ := env.server.Task(task.ID)
		if updated.Status != model.StatusInProgress {
			t.Fatalf("expected in progress, got %s", updated.Status)
		}
		if len(env.ui.inProgress) != 1 || len(env.ui.todo) != 0 {
			t.Fatalf("expected task in the in progress pane")
		}

		env.ui.setFocus(nil, viewInProgress)
		if err := env.ui.toggleInProgress(nil, nil); err != nil {
			t.Fatalf("toggle in progress back: %v", err)
		}
		updated, _ = env.server.Task(task.ID)
		if updated.Status != model.StatusToDo {
			t.Fatalf("expected to do, got %s", updated.Status)
		}
	})

	t.Run("toggle completed", func(t *testing.T) {
		env.ui.setFocus(nil, viewTodo)
		if err := env.ui.toggleCompleted(nil, nil); err != nil {
			t.Fatalf("toggle completed: %v", err)
		}
		updated, _ := env.server.Task(task.ID)
		if updated.Status != model.StatusCompleted {
			t.Fatalf("expected completed, got %s", updated.Status)
		}
		if len(env.ui.completed) != 1 {
			t.Fatalf("expected task in the completed pane")
		}

		env.ui.setFocus(nil, viewCompleted)
		if err := env.ui.toggleCompleted(nil, nil); err != nil {
			t.Fatalf("toggle completed back: %v", err)
		}
		updated, _ = env.server.Task(task.ID)
		if updated.Status != model.StatusToDo {
			t.Fatalf("expected to do, got %s", updated.Status)
		}
	})
}

func TestStaleReloadIsDropped(t *testing.T) {
	ui := newUI(nil, nil, nil, log.New(io.Discard, "", 0))

	stale := ui.reloads.Begin()
	fresh := ui.reloads.Begin()
	ui.applyTasks(fresh, []model.Task{{ID: 1, Name: "fresh"}}, nil)
	ui.applyTasks(stale, []model.Task{{ID: 2, Name: "stale"}, {ID: 3, Name: "stale"}}, nil)

	if len(ui.todo) != 1 || ui.todo[0].Name != "fresh" {
		t.Fatalf("expected the fresh snapshot to win, got %+v", ui.todo)
	}
}

func TestTaskFormComposesDeadline(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada", "secret1")

	env.ui.setFocus(nil, viewTodo)
	if err := env.ui.add(nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	form := env.ui.form
	if form == nil || form.kind != formTask {
		t.Fatalf("expected task form, got %+v", form)
	}
	if form.has(keyStatus) {
		t.Fatalf("new tasks should not expose a status field")
	}
	form.set(keyName, "Quarterly review")
	form.set(keyDate, "2030-01-02")
	form.set(keyTime, "14:30")

	for i, field := range form.fields {
		if field.Key == keyAssignees {
			form.index = i
		}
	}
	env.ui.editField(gocui.KeySpace, 0, gocui.ModNone)

	if err := env.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.ui.form != nil {
		t.Fatalf("expected form to close, error %q", form.err)
	}

	created, ok := env.server.Task(1)
	if !ok {
		t.Fatalf("expected task to be created")
	}
	want, _ := taskquery.ComposeDeadline("2030-01-02", "14:30")
	if created.Deadline == nil || !created.Deadline.Equal(*want) {
		t.Fatalf("expected deadline %s, got %v", want, created.Deadline)
	}
	if len(created.AssignedUserIDs) != 1 || created.AssignedUserIDs[0] != env.admin.ID {
		t.Fatalf("expected ada to be assigned, got %v", created.AssignedUserIDs)
	}
	if len(env.ui.todo) != 1 {
		t.Fatalf("expected board to reload, got %d todo tasks", len(env.ui.todo))
	}
}

func TestTaskFormRejectsBadTime(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada", "secret1")

	if err := env.ui.add(nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	env.ui.form.set(keyName, "Bad time")
	env.ui.form.set(keyDate, "2030-01-02")
	env.ui.form.set(keyTime, "25:99")

	if err := env.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.ui.form == nil || env.ui.form.err != "Deadline time must look like 14:30" {
		t.Fatalf("expected deadline error, got %+v", env.ui.form)
	}
	if _, ok := env.server.LastRequest(http.MethodPost, "/task"); ok {
		t.Fatalf("expected no create request")
	}
}

func TestDeadlineErrorNamesSkippedTime(t *testing.T) {
	err := deadlineError(taskquery.ErrSkippedTime)
	var validation *api.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validation.Field != keyTime || validation.Message != "Deadline time is skipped by a clock change on that date" {
		t.Fatalf("unexpected validation error %+v", validation)
	}
}

func TestEditTaskPrefillsForm(t *testing.T) {
	env := newTestEnv(t)
	deadline, _ := taskquery.ComposeDeadline("2031-05-06", "09:15")
	env.server.AddTask(model.Task{Name: "Prefill", AssignedUserIDs: []int64{env.admin.ID}, Status: model.StatusToDo, Deadline: deadline})
	env.login(t, "ada", "secret1")

	env.ui.setFocus(nil, viewTodo)
	if err := env.ui.edit(nil, nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	form := env.ui.form
	if form == nil || form.taskID == 0 {
		t.Fatalf("expected edit form, got %+v", form)
	}
	if form.value(keyDate) != "2031-05-06" || form.value(keyTime) != "09:15" {
		t.Fatalf("unexpected deadline fields %q %q", form.value(keyDate), form.value(keyTime))
	}
	if form.value(keyStatus) != "To Do" {
		t.Fatalf("unexpected status %q", form.value(keyStatus))
	}
	if !form.assignees[env.admin.ID] {
		t.Fatalf("expected ada to be preselected")
	}
}

func TestProfileEditUpdatesSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada", "secret1")

	if err := env.ui.editProfile(nil, nil); err != nil {
		t.Fatalf("edit profile: %v", err)
	}
	if env.ui.form == nil || env.ui.form.userID != env.admin.ID {
		t.Fatalf("expected own user form, got %+v", env.ui.form)
	}
	env.ui.form.set(keyDisplayName, "Countess")
	env.ui.form.set(keyEmail, "countess@example.com")

	if err := env.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.ui.form != nil {
		t.Fatalf("expected form to close")
	}

	current := env.ui.session.CurrentUser()
	if current == nil || current.DisplayName != "Countess" || current.Email != "countess@example.com" {
		t.Fatalf("expected session identity to follow the profile, got %+v", current)
	}
	if env.ui.identity == nil || env.ui.identity.DisplayName != "Countess" {
		t.Fatalf("expected ui identity to follow the session, got %+v", env.ui.identity)
	}
}

func TestNonAdminCannotManageOtherUsers(t *testing.T) {
	env := newTestEnv(t)
	env.server.AddUser(model.User{FirstName: "Bob", LastName: "Ray", Username: "bob", Email: "bob@example.com"}, "secret2")
	env.login(t, "bob", "secret2")

	env.ui.setFocus(nil, viewUsers)
	if err := env.ui.add(nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if env.ui.form != nil || env.ui.status != "Admin access required" {
		t.Fatalf("expected admin gate on add, status %q", env.ui.status)
	}

	env.ui.status = ""
	if err := env.ui.edit(nil, nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if env.ui.form != nil || env.ui.status != "Admin access required" {
		t.Fatalf("expected admin gate on edit, status %q", env.ui.status)
	}

	env.ui.status = ""
	if err := env.ui.remove(nil, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if env.ui.confirm != nil || env.ui.status != "Admin access required" {
		t.Fatalf("expected admin gate on delete, status %q", env.ui.status)
	}
}

func TestAdminCreatesUser(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada", "secret1")

	env.ui.setFocus(nil, viewUsers)
	if err := env.ui.add(nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	form := env.ui.form
	form.set(keyFirstName, "Linus")
	form.set(keyLastName, "T")
	form.set(keyUsername, "linus")
	form.set(keyEmail, "linus@example.com")
	form.set(keyPassword, "kernel1")
	form.set(keyConfirm, "kernel1")

	if err := env.ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.ui.form != nil {
		t.Fatalf("expected form to close, error %q", form.err)
	}
	visible := env.ui.visibleUsers()
	if len(visible) != 1 || visible[0].Username != "linus" || visible[0].Role != model.RoleUser {
		t.Fatalf("expected linus as a regular user, got %+v", visible)
	}
}

func TestDeleteTaskNeedsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	task := env.server.AddTask(model.Task{Name: "Doomed", AssignedUserIDs: []int64{env.admin.ID}, Status: model.StatusToDo})
	env.login(t, "ada", "secret1")

	env.ui.setFocus(nil, viewTodo)
	if err := env.ui.remove(nil, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if env.ui.confirm == nil {
		t.Fatalf("expected confirmation prompt")
	}
	if _, ok := env.server.Task(task.ID); !ok {
		t.Fatalf("task deleted before confirmation")
	}

	if err := env.ui.acceptConfirm(nil, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, ok := env.server.Task(task.ID); ok {
		t.Fatalf("expected task to be deleted")
	}
	if len(env.ui.todo) != 0 {
		t.Fatalf("expected board to reload")
	}
}

func TestSaveAndApplyView(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada", "secret1")

	if err := env.ui.cycleStatusFilter(nil, nil); err != nil {
		t.Fatalf("cycle status: %v", err)
	}
	if err := env.ui.toggleMine(nil, nil); err != nil {
		t.Fatalf("toggle mine: %v", err)
	}
	want := env.ui.filter

	if err := env.ui.startSaveView(nil, nil); err != nil {
		t.Fatalf("start save view: %v", err)
	}
	env.ui.prompt.value = "My open work"
	if err := env.ui.submitPrompt(nil, nil); err != nil {
		t.Fatalf("submit prompt: %v", err)
	}
	if env.ui.activeView == nil || env.ui.activeView.Name != "My open work" {
		t.Fatalf("expected saved view to be active, got %+v", env.ui.activeView)
	}
	if len(env.ui.views) != 1 {
		t.Fatalf("expected 1 saved view, got %d", len(env.ui.views))
	}

	if err := env.ui.clearFilters(nil, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if env.ui.activeView != nil || env.ui.filter.Status != nil {
		t.Fatalf("expected filters to clear")
	}

	env.ui.setFocus(nil, viewViews)
	if err := env.ui.activate(nil, nil); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if env.ui.filter.Status == nil || *env.ui.filter.Status != *want.Status {
		t.Fatalf("expected status filter to be restored, got %+v", env.ui.filter)
	}
	if env.ui.filter.AssignedUserID == nil || *env.ui.filter.AssignedUserID != env.admin.ID {
		t.Fatalf("expected assignee filter to be restored, got %+v", env.ui.filter)
	}

	request, ok := env.server.LastRequest(http.MethodGet, "/task")
	if !ok || request.Query.Get("assignedUserID") == "" {
		t.Fatalf("expected applied view to reach the API, got %+v", request)
	}
}

func TestLogoutShowsLoginForm(t *testing.T) {
	env := newTestEnv(t)
	env.server.AddTask(model.Task{Name: "Private", AssignedUserIDs: []int64{env.admin.ID}, Status: model.StatusToDo})
	env.login(t, "ada", "secret1")

	if err := env.ui.logout(nil, nil); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if env.ui.identity != nil {
		t.Fatalf("expected to be signed out")
	}
	if env.ui.form == nil || env.ui.form.kind != formLogin || env.ui.form.value(keyUsername) != "ada" {
		t.Fatalf("expected prefilled login form, got %+v", env.ui.form)
	}
	if len(env.ui.todo) != 0 || len(env.ui.users) != 0 {
		t.Fatalf("expected board to be cleared")
	}
}

func TestSplitByStatus(t *testing.T) {
	todo, inProgress, completed := splitByStatus([]model.Task{
		{ID: 1, Status: model.StatusToDo},
		{ID: 2, Status: model.StatusInProgress},
		{ID: 3, Status: model.StatusCompleted},
		{ID: 4, Status: model.StatusUnAssigned},
	})
	if len(todo) != 2 || len(inProgress) != 1 || len(completed) != 1 {
		t.Fatalf("unexpected split %d/%d/%d", len(todo), len(inProgress), len(completed))
	}
}

func TestFilterUsers(t *testing.T) {
	users := []model.User{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Username: "ada", Email: "ada@example.com"},
		{ID: 2, FirstName: "Bob", LastName: "Ray", Username: "bob", Email: "bob@example.com"},
		{ID: 3, FirstName: "Carol", LastName: "Lovell", DisplayName: "CJ", Username: "carol", Email: "cj@example.com"},
	}

	got := FilterUsers(users, "LOVE", 0)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected matches %+v", got)
	}
	got = FilterUsers(users, "", 2)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("expected everyone but bob, got %+v", got)
	}
	got = FilterUsers(users, "cj", 0)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected display name match, got %+v", got)
	}
}

func TestStatusFilterCycles(t *testing.T) {
	var current *model.TaskStatus
	seen := 0
	for {
		current = nextStatusFilter(current)
		if current == nil {
			break
		}
		seen++
	}
	if seen != len(model.TaskStatuses) {
		t.Fatalf("expected to visit every status, visited %d", seen)
	}
}
