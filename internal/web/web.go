package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/Joseda-hg/taskdesk/internal/session"
	"github.com/Joseda-hg/taskdesk/internal/taskquery"
	"github.com/gorilla/mux"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"deadline": taskquery.FormatDeadline,
	"assignees": func(ids []int64, users map[int64]model.User) string {
		if len(ids) == 0 {
			return "nobody"
		}
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			if user, ok := users[id]; ok {
				names = append(names, user.Label())
			} else {
				names = append(names, "#"+strconv.FormatInt(id, 10))
			}
		}
		return strings.Join(names, ", ")
	},
}

var (
	indexTemplate = template.Must(template.New("index.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/index.tmpl"))
	taskTemplate  = template.Must(template.New("task.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/task.tmpl"))
)

var errSignedOut = errors.New("not signed in; log in from the terminal first")

// Server is the read-only dashboard. It talks to the remote API with the
// terminal's session, so it only shows data while someone is signed in.
type Server struct {
	client  *api.Client
	session *session.Store
	logger  *log.Logger
}

func NewServer(client *api.Client, sess *session.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{client: client, session: sess, logger: logger}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id:[0-9]+}", s.taskHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", s.apiTasksHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id:[0-9]+}", s.apiTaskHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/session", s.apiSessionHandler).Methods(http.MethodGet)
	return r
}

type indexData struct {
	Identity *model.Identity
	Filter   string
	Query    string
	Tasks    []model.Task
	Users    map[int64]model.User
	Error    string
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	data := indexData{
		Identity: s.session.CurrentUser(),
		Query:    filter.SearchTerm,
		Filter:   taskquery.BuildListQuery(filter).Encode(),
	}
	if data.Identity == nil {
		data.Error = errSignedOut.Error()
		s.render(w, indexTemplate, data)
		return
	}

	tasks, err := s.client.ListTasks(r.Context(), filter)
	if err != nil {
		s.logger.Printf("web: list tasks: %v", err)
		data.Error = api.Message(err, "Error loading tasks")
		s.render(w, indexTemplate, data)
		return
	}
	data.Tasks = tasks
	data.Users = s.users(r)
	s.render(w, indexTemplate, data)
}

func (s *Server) taskHandler(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsLoggedIn() {
		writeError(w, http.StatusUnauthorized, errSignedOut)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	task, err := s.client.GetTask(r.Context(), id)
	if err != nil {
		writeAPIError(w, err, "Error loading task")
		return
	}

	data := struct {
		Task  model.Task
		Users map[int64]model.User
	}{Task: task, Users: s.users(r)}
	s.render(w, taskTemplate, data)
}

func (s *Server) apiTasksHandler(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsLoggedIn() {
		writeError(w, http.StatusUnauthorized, errSignedOut)
		return
	}
	filter, err := filterFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tasks, err := s.client.ListTasks(r.Context(), filter)
	if err != nil {
		writeAPIError(w, err, "Error loading tasks")
		return
	}
	writeJSON(w, tasks)
}

func (s *Server) apiTaskHandler(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsLoggedIn() {
		writeError(w, http.StatusUnauthorized, errSignedOut)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	task, err := s.client.GetTask(r.Context(), id)
	if err != nil {
		writeAPIError(w, err, "Error loading task")
		return
	}
	writeJSON(w, task)
}

func (s *Server) apiSessionHandler(w http.ResponseWriter, _ *http.Request) {
	state := s.session.State()
	payload := struct {
		Phase    string          `json:"phase"`
		LoggedIn bool            `json:"loggedIn"`
		Identity *model.Identity `json:"identity"`
	}{Phase: state.Phase.String(), LoggedIn: state.LoggedIn(), Identity: state.Identity}
	writeJSON(w, payload)
}

// users is best effort: pages still render with raw ids when it fails.
func (s *Server) users(r *http.Request) map[int64]model.User {
	users, err := s.client.ListUsers(r.Context())
	if err != nil {
		s.logger.Printf("web: list users: %v", err)
		return nil
	}
	byID := make(map[int64]model.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Printf("web: render %s: %v", tmpl.Name(), err)
	}
}

// filterFromRequest reads the same sparse parameters the remote API takes.
// "q" is accepted as a short form of searchTerm.
func filterFromRequest(r *http.Request) (model.Filter, error) {
	values := r.URL.Query()
	var filter model.Filter

	if value := strings.TrimSpace(values.Get("status")); value != "" {
		status, err := model.ParseTaskStatus(value)
		if err != nil {
			return model.Filter{}, err
		}
		filter.Status = &status
	}

	filter.SearchTerm = strings.TrimSpace(values.Get("searchTerm"))
	if filter.SearchTerm == "" {
		filter.SearchTerm = strings.TrimSpace(values.Get("q"))
	}
	filter.SortBy = strings.TrimSpace(values.Get("sortBy"))

	if value := strings.TrimSpace(values.Get("sortDescending")); value != "" {
		descending, err := strconv.ParseBool(value)
		if err != nil {
			return model.Filter{}, errors.New("sortDescending must be true or false")
		}
		filter.SortDescending = &descending
	}
	if value := strings.TrimSpace(values.Get("assignedUserID")); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return model.Filter{}, errors.New("assignedUserID must be a number")
		}
		filter.AssignedUserID = &id
	}
	if value := strings.TrimSpace(values.Get("isDelayed")); value != "" {
		delayed, err := strconv.ParseBool(value)
		if err != nil {
			return model.Filter{}, errors.New("isDelayed must be true or false")
		}
		filter.IsDelayed = &delayed
	}
	return filter, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}

// writeAPIError passes the remote status through for API errors and maps
// everything else to 502.
func writeAPIError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusBadGateway
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 {
		status = apiErr.StatusCode
	}
	writeError(w, status, errors.New(api.Message(err, fallback)))
}
