package apitest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdesk/internal/model"
)

type taskPayload struct {
	TaskName        string            `json:"taskName"`
	TaskDescription string            `json:"taskDescription"`
	AssignedUserIDs []int64           `json:"assignedUserIDs"`
	Status          *model.TaskStatus `json:"status"`
	Deadline        *time.Time        `json:"deadline"`
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, _ model.User) {
	query := r.URL.Query()
	status, hasStatus := intParam(query.Get("status"))
	assigned, hasAssigned := intParam(query.Get("assignedUserID"))
	delayed, delayedErr := strconv.ParseBool(query.Get("isDelayed"))
	term := strings.ToLower(query.Get("searchTerm"))

	s.mu.Lock()
	tasks := s.sortedTasks(func(task model.Task) bool {
		if hasStatus && int64(task.Status) != status {
			return false
		}
		if hasAssigned && !task.AssignedTo(assigned) {
			return false
		}
		if delayedErr == nil && task.IsDelayed != delayed {
			return false
		}
		if term != "" && !strings.Contains(strings.ToLower(task.Name+" "+task.Description), term) {
			return false
		}
		return true
	})
	s.mu.Unlock()

	descending := query.Get("sortDescending") != "false"
	sortTasks(tasks, query.Get("sortBy"), descending)
	writeOK(w, tasks, "")
}

func (s *Server) listTasksByUser(w http.ResponseWriter, r *http.Request, _ model.User) {
	userID := pathID(r)
	s.mu.Lock()
	tasks := s.sortedTasks(func(task model.Task) bool { return task.AssignedTo(userID) })
	s.mu.Unlock()
	writeOK(w, tasks, "")
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, _ model.User) {
	task, ok := s.Task(pathID(r))
	if !ok {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeOK(w, task, "")
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, user model.User) {
	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.TaskName) == "" {
		writeFail(w, http.StatusBadRequest, "Task name is required")
		return
	}

	status := model.StatusToDo
	if len(payload.AssignedUserIDs) == 0 {
		status = model.StatusUnAssigned
	}
	task := s.AddTask(model.Task{
		Name:            payload.TaskName,
		Description:     payload.TaskDescription,
		AssignedUserIDs: payload.AssignedUserIDs,
		Status:          status,
		Deadline:        payload.Deadline,
		CreatedBy:       user.Username,
	})
	writeOK(w, task, "Task created")
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, user model.User) {
	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.TaskName) == "" {
		writeFail(w, http.StatusBadRequest, "Task name is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[pathID(r)]
	if !ok {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	task.Name = payload.TaskName
	task.Description = payload.TaskDescription
	task.AssignedUserIDs = payload.AssignedUserIDs
	task.Deadline = payload.Deadline
	if payload.Status != nil {
		task.Status = *payload.Status
	}
	task.UpdatedOn = s.now()
	task.UpdatedBy = user.Username
	task.IsDelayed = s.delayed(task)
	s.tasks[task.ID] = task
	writeOK(w, task, "Task updated")
}

func (s *Server) updateTaskStatus(w http.ResponseWriter, r *http.Request, user model.User) {
	var payload struct {
		CurrentStatus *model.TaskStatus `json:"currentStatus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.CurrentStatus == nil || !payload.CurrentStatus.Valid() {
		writeFail(w, http.StatusBadRequest, "Invalid status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[pathID(r)]
	if !ok {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	task.Status = *payload.CurrentStatus
	task.UpdatedOn = s.now()
	task.UpdatedBy = user.Username
	task.IsDelayed = s.delayed(task)
	s.tasks[task.ID] = task
	writeOK(w, task, "Task status updated")
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, _ model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.tasks[id]; !ok {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	delete(s.tasks, id)
	writeOK(w, nil, "Task deleted")
}

type userPayload struct {
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	UserRole    string `json:"userRole"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request, _ model.User) {
	s.mu.Lock()
	users := make([]model.User, 0, len(s.users))
	for id := int64(1); id < s.nextUserID; id++ {
		if record, ok := s.users[id]; ok {
			users = append(users, record.user)
		}
	}
	s.mu.Unlock()
	writeOK(w, users, "")
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, _ model.User) {
	user, ok := s.User(pathID(r))
	if !ok {
		writeFail(w, http.StatusNotFound, "User not found")
		return
	}
	writeOK(w, user, "")
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, caller model.User) {
	if caller.Role != model.RoleAdmin {
		writeFail(w, http.StatusForbidden, "Admin access required")
		return
	}
	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if s.taken(payload.Username, payload.Email, 0) {
		writeFail(w, http.StatusConflict, "Username or email already exists")
		return
	}
	user := s.AddUser(model.User{
		FirstName:   payload.FirstName,
		MiddleName:  payload.MiddleName,
		LastName:    payload.LastName,
		DisplayName: payload.DisplayName,
		Username:    payload.Username,
		Email:       payload.Email,
		Role:        payload.UserRole,
		CreatedBy:   caller.Username,
	}, payload.Password)
	writeOK(w, user, "User created")
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, caller model.User) {
	id := pathID(r)
	if caller.Role != model.RoleAdmin && caller.ID != id {
		writeFail(w, http.StatusForbidden, "Admin access required")
		return
	}
	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if s.taken(payload.Username, payload.Email, id) {
		writeFail(w, http.StatusConflict, "Username or email already exists")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[id]
	if !ok {
		writeFail(w, http.StatusNotFound, "User not found")
		return
	}
	record.user.FirstName = payload.FirstName
	record.user.MiddleName = payload.MiddleName
	record.user.LastName = payload.LastName
	record.user.DisplayName = payload.DisplayName
	record.user.Username = payload.Username
	record.user.Email = payload.Email
	record.user.UpdatedOn = s.now()
	record.user.UpdatedBy = caller.Username
	if payload.Password != "" {
		if hash, err := hashPassword(payload.Password); err == nil {
			record.passwordHash = hash
		}
	}
	writeOK(w, record.user, "User updated")
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, caller model.User) {
	if caller.Role != model.RoleAdmin {
		writeFail(w, http.StatusForbidden, "Admin access required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.users[id]; !ok {
		writeFail(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.users, id)
	writeOK(w, nil, "User deleted")
}

func intParam(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
