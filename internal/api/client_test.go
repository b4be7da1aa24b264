package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Joseda-hg/taskdesk/internal/apitest"
	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// loggedInClient returns a client with a session for a fresh admin account.
func loggedInClient(t *testing.T) (*apitest.Server, *Client, model.Identity) {
	t.Helper()
	server := apitest.NewServer(t)
	server.AddUser(model.User{FirstName: "Ada", LastName: "Byron", Username: "ada", Email: "ada@example.com", Role: model.RoleAdmin}, "secret1")

	client := newClient(t, server.APIURL(), newMemStorage())
	identity, err := client.Login(context.Background(), LoginRequest{Username: "ada", Password: "secret1"})
	require.NoError(t, err)
	return server, client, identity
}

func newClient(t *testing.T, baseURL string, storage Storage) *Client {
	t.Helper()
	probe, err := NewClient(baseURL, nil, quietLogger())
	require.NoError(t, err)
	jar, err := NewSessionJar(context.Background(), storage, probe.BaseURL(), quietLogger())
	require.NoError(t, err)
	client, err := NewClient(baseURL, &http.Client{Jar: jar, Timeout: 5 * time.Second}, quietLogger())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAbsoluteURL(t *testing.T) {
	_, err := NewClient("localhost/api", nil, nil)
	require.Error(t, err)

	client, err := NewClient("http://localhost:5000/api/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/api", client.BaseURL().Path)
	assert.Equal(t, "http://localhost:5000/api/task/3", client.endpoint("task/3", nil))
}

func TestLoginReturnsServerIdentity(t *testing.T) {
	_, _, identity := loggedInClient(t)
	assert.Equal(t, "ada", identity.Username)
	assert.Equal(t, "Ada Byron", identity.DisplayName)
	assert.True(t, identity.IsAdmin())
}

func TestBusinessErrorCarriesServerMessage(t *testing.T) {
	server := apitest.NewServer(t)
	client := newClient(t, server.APIURL(), newMemStorage())

	_, err := client.Login(context.Background(), LoginRequest{Username: "nobody", Password: "whatever"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "Invalid username or password", Message(err, "Login failed"))
}

func TestNon2xxWithoutEnvelopeFallsBack(t *testing.T) {
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer raw.Close()

	client, err := NewClient(raw.URL+"/api", nil, quietLogger())
	require.NoError(t, err)

	_, err = client.ListTasks(context.Background(), model.Filter{})
	require.Error(t, err)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Could not load tasks", Message(err, "Could not load tasks"))
}

func TestTransportErrorFallsBack(t *testing.T) {
	server := apitest.NewServer(t)
	client := newClient(t, server.APIURL(), newMemStorage())

	server.FailNext(http.MethodGet, "/auth/current-user", 0, "")
	_, err := client.CurrentUser(context.Background())
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
	assert.Equal(t, "Something went wrong", Message(err, "Something went wrong"))
}

func TestSuccessWithoutDataIsErrNoData(t *testing.T) {
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":null}`)
	}))
	defer raw.Close()

	client, err := NewClient(raw.URL, nil, quietLogger())
	require.NoError(t, err)
	_, err = client.GetTask(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRequestsCarryRequestID(t *testing.T) {
	seen := make(chan string, 1)
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(requestIDHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	}))
	defer raw.Close()

	client, err := NewClient(raw.URL+"/api", nil, quietLogger())
	require.NoError(t, err)
	_, err = client.ListUsers(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(<-seen)
	assert.NoError(t, err)
}

func TestListTasksSendsSparseQuery(t *testing.T) {
	server, client, _ := loggedInClient(t)
	deadline := time.Now().Add(48 * time.Hour)
	server.AddTask(model.Task{Name: "Quarterly report", Status: model.StatusToDo, Deadline: &deadline})
	server.AddTask(model.Task{Name: "Water plants", Status: model.StatusToDo})

	descending := false
	tasks, err := client.ListTasks(context.Background(), model.Filter{
		SearchTerm:     "report",
		SortBy:         "deadline",
		SortDescending: &descending,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Quarterly report", tasks[0].Name)

	req, ok := server.LastRequest(http.MethodGet, "/task")
	require.True(t, ok)
	assert.Equal(t, "report", req.Query.Get("searchTerm"))
	assert.Equal(t, "deadline", req.Query.Get("sortBy"))
	assert.Equal(t, "false", req.Query.Get("sortDescending"))
	assert.Len(t, req.Query, 3)
	_, hasStatus := req.Query["status"]
	assert.False(t, hasStatus)
}

func TestTaskLifecycle(t *testing.T) {
	server, client, identity := loggedInClient(t)
	ctx := context.Background()

	created, err := client.CreateTask(ctx, CreateTaskRequest{TaskName: "Write docs", AssignedUserIDs: []int64{identity.UserID}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusToDo, created.Status)

	moved, err := client.UpdateTaskStatus(ctx, created.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, moved.Status)

	req, ok := server.LastRequest(http.MethodPatch, "/task/1/status")
	require.True(t, ok)
	assert.JSONEq(t, `{"currentStatus":1}`, string(req.Body))

	updated, err := client.UpdateTask(ctx, created.ID, UpdateTaskRequest{TaskName: "Write better docs", Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, "Write better docs", updated.Name)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	mine, err := client.ListTasksByUser(ctx, identity.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 0, "update cleared the assignees")

	require.NoError(t, client.DeleteTask(ctx, created.ID))
	_, err = client.GetTask(ctx, created.ID)
	assert.Equal(t, "Task not found", Message(err, ""))
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	server, client, _ := loggedInClient(t)
	ctx := context.Background()
	before := len(server.Requests())

	_, err := client.CreateTask(ctx, CreateTaskRequest{TaskName: "   "})
	assert.Equal(t, "Task name is required", Message(err, ""))

	_, err = client.UpdateTaskStatus(ctx, 1, model.TaskStatus(9))
	assert.Equal(t, "Status is invalid", Message(err, ""))

	err = client.Register(ctx, RegisterRequest{FirstName: "B", LastName: "C", Username: "bc", Email: "not-an-email", Password: "secret1"})
	assert.Equal(t, "Email is invalid", Message(err, ""))

	_, err = client.CreateUser(ctx, CreateUserRequest{FirstName: "B", LastName: "C", Username: "bc", Email: "bc@example.com", Password: "secret1", ConfirmPassword: "secret2"})
	assert.Equal(t, "Passwords do not match", Message(err, ""))

	_, err = client.UpdateUser(ctx, 1, UpdateUserRequest{FirstName: "B", LastName: "C", Username: "bc", Email: "bc@example.com", Password: "abc", ConfirmPassword: "abc"})
	assert.Equal(t, "Password must be at least 6 characters", Message(err, ""))

	assert.Len(t, server.Requests(), before)
}

func TestUserManagement(t *testing.T) {
	server, client, _ := loggedInClient(t)
	ctx := context.Background()

	created, err := client.CreateUser(ctx, CreateUserRequest{
		FirstName:       "Grace",
		LastName:        "Hopper",
		Username:        "grace",
		Email:           "grace@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, created.Role)

	_, err = client.CreateUser(ctx, CreateUserRequest{
		FirstName:       "Grace",
		LastName:        "Again",
		Username:        "grace",
		Email:           "other@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	assert.Equal(t, "Username or email already exists", Message(err, ""))

	updated, err := client.UpdateUser(ctx, created.ID, UpdateUserRequest{
		FirstName:   "Grace",
		LastName:    "Hopper",
		DisplayName: "Amazing Grace",
		Username:    "grace",
		Email:       "grace@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Amazing Grace", updated.DisplayName)

	users, err := client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, client.DeleteUser(ctx, created.ID))
	_, ok := server.User(created.ID)
	assert.False(t, ok)
}

func TestRegisterThenLogin(t *testing.T) {
	server := apitest.NewServer(t)
	client := newClient(t, server.APIURL(), newMemStorage())
	ctx := context.Background()

	req := RegisterRequest{FirstName: "Lin", LastName: "Qi", Username: "lin", Email: "lin@example.com", Password: "secret1"}
	require.NoError(t, client.Register(ctx, req))
	assert.Equal(t, "Username or email already exists", Message(client.Register(ctx, req), ""))

	identity, err := client.Login(ctx, LoginRequest{Username: "lin", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, identity.Role)
}

func TestNonAdminIsForbidden(t *testing.T) {
	server := apitest.NewServer(t)
	server.AddUser(model.User{FirstName: "Pat", LastName: "Doe", Username: "pat", Email: "pat@example.com"}, "secret1")
	client := newClient(t, server.APIURL(), newMemStorage())
	ctx := context.Background()

	_, err := client.Login(ctx, LoginRequest{Username: "pat", Password: "secret1"})
	require.NoError(t, err)

	err = client.DeleteUser(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Admin access required", Message(err, ""))
}
