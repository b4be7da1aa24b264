// Package apitest runs an in-memory stand-in for the remote task API so the
// client, session and UI code can be tested end to end.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/gorilla/mux"
)

const SessionCookie = "taskdesk_session"

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

type userRecord struct {
	user         model.User
	passwordHash []byte
}

type failure struct {
	status  int
	message string
}

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	users      map[int64]*userRecord
	tasks      map[int64]model.Task
	nextUserID int64
	nextTaskID int64
	secret     []byte
	requests   []Request
	failures   map[string]failure
	gates      map[string]chan struct{}
	now        func() time.Time
}

func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:      make(map[int64]*userRecord),
		tasks:      make(map[int64]model.Task),
		nextUserID: 1,
		nextTaskID: 1,
		secret:     []byte("apitest-signing-key"),
		failures:   make(map[string]failure),
		gates:      make(map[string]chan struct{}),
		now:        time.Now,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// APIURL is the base URL clients should be configured with.
func (s *Server) APIURL() string {
	return s.Server.URL + "/api"
}

func (s *Server) AddUser(user model.User, password string) model.User {
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextUserID
	s.nextUserID++
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedOn = s.now()
	user.UpdatedOn = user.CreatedOn
	s.users[user.ID] = &userRecord{user: user, passwordHash: hash}
	return user
}

func (s *Server) AddTask(task model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.nextTaskID
	s.nextTaskID++
	if task.CreatedOn.IsZero() {
		task.CreatedOn = s.now()
	}
	task.UpdatedOn = task.CreatedOn
	task.IsDelayed = s.delayed(task)
	s.tasks[task.ID] = task
	return task
}

func (s *Server) Task(id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	return task, ok
}

func (s *Server) User(id int64) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[id]
	if !ok {
		return model.User{}, false
	}
	return record.user, true
}

// Requests returns every request received so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request for method and path.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// FailNext makes the next request for method and path answer with status
// and an envelope carrying message. A zero status drops the connection.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

// Hold blocks requests for method and path until the returned release
// function is called.
func (s *Server) Hold(method, path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[method+" "+path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, method+" "+path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/logout", s.logout).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/current-user", s.authenticated(s.currentUser)).Methods(http.MethodGet)

	apiRouter.HandleFunc("/task", s.authenticated(s.listTasks)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/task", s.authenticated(s.createTask)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/task/user/{id:[0-9]+}", s.authenticated(s.listTasksByUser)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/task/{id:[0-9]+}", s.authenticated(s.getTask)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/task/{id:[0-9]+}", s.authenticated(s.updateTask)).Methods(http.MethodPut)
	apiRouter.HandleFunc("/task/{id:[0-9]+}/status", s.authenticated(s.updateTaskStatus)).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/task/{id:[0-9]+}", s.authenticated(s.deleteTask)).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/user", s.authenticated(s.listUsers)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/user", s.authenticated(s.createUser)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/user/{id:[0-9]+}", s.authenticated(s.getUser)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/user/{id:[0-9]+}", s.authenticated(s.updateUser)).Methods(http.MethodPut)
	apiRouter.HandleFunc("/user/{id:[0-9]+}", s.authenticated(s.deleteUser)).Methods(http.MethodDelete)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = readAll(r)
		}
		path := strings.TrimPrefix(r.URL.Path, "/api")
		key := r.Method + " " + path

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: path, Query: r.URL.Query(), Body: body})
		fail, failing := s.failures[key]
		delete(s.failures, key)
		gate := s.gates[key]
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if failing {
			if fail.status == 0 {
				hijackAndClose(w)
				return
			}
			writeEnvelope(w, fail.status, false, nil, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Data    any    `json:"data,omitempty"`
		Message string `json:"message,omitempty"`
	}{Success: success, Data: data, Message: message})
}

func writeOK(w http.ResponseWriter, data any, message string) {
	writeEnvelope(w, http.StatusOK, true, data, message)
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, false, nil, message)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func identityOf(user model.User) model.Identity {
	return model.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.Label(),
		Email:       user.Email,
		Role:        user.Role,
	}
}

func (s *Server) delayed(task model.Task) bool {
	if task.Deadline == nil || task.Status == model.StatusCompleted || task.Status == model.StatusDeleted {
		return false
	}
	return task.Deadline.Before(s.now())
}

func (s *Server) sortedTasks(keep func(model.Task) bool) []model.Task {
	result := []model.Task{}
	for _, task := range s.tasks {
		task.IsDelayed = s.delayed(task)
		if keep(task) {
			result = append(result, task)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func sortTasks(tasks []model.Task, sortBy string, descending bool) {
	less := func(a, b model.Task) bool {
		switch sortBy {
		case "deadline":
			return deadlineValue(a).Before(deadlineValue(b))
		case "name":
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case "status":
			return a.Status < b.Status
		case "updated":
			return a.UpdatedOn.Before(b.UpdatedOn)
		default:
			if a.CreatedOn.Equal(b.CreatedOn) {
				return a.ID < b.ID
			}
			return a.CreatedOn.Before(b.CreatedOn)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if descending {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func deadlineValue(task model.Task) time.Time {
	if task.Deadline == nil {
		return time.Time{}
	}
	return *task.Deadline
}

func (s *Server) String() string {
	return fmt.Sprintf("apitest.Server(%s)", s.APIURL())
}
