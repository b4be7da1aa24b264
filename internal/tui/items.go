package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/Joseda-hg/taskdesk/internal/taskquery"
)

// splitByStatus spreads a task snapshot over the three board panes.
// Unassigned and deleted tasks land in the To Do pane.
func splitByStatus(tasks []model.Task) (todo, inProgress, completed []model.Task) {
	todo = make([]model.Task, 0, len(tasks))
	inProgress = make([]model.Task, 0, len(tasks))
	completed = make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		switch task.Status {
		case model.StatusInProgress:
			inProgress = append(inProgress, task)
		case model.StatusCompleted:
			completed = append(completed, task)
		default:
			todo = append(todo, task)
		}
	}
	return todo, inProgress, completed
}

func formatTaskSummary(task model.Task, users map[int64]model.User) string {
	marker := " "
	if task.IsDelayed {
		marker = "!"
	}
	parts := []string{task.Name}
	if task.Status != model.StatusToDo && task.Status != model.StatusInProgress && task.Status != model.StatusCompleted {
		parts = append(parts, task.Status.String())
	}
	if task.Deadline != nil {
		parts = append(parts, "due "+taskquery.FormatDeadline(task.Deadline))
	}
	if initials := formatAssigneeInitials(task.AssignedUserIDs, users); initials != "" {
		parts = append(parts, initials)
	}
	return fmt.Sprintf("%s %s", marker, strings.Join(parts, " | "))
}

func formatAssigneeInitials(ids []int64, users map[int64]model.User) string {
	initials := make([]string, 0, len(ids))
	for _, id := range ids {
		if user, ok := users[id]; ok {
			initials = append(initials, user.Initials())
		} else {
			initials = append(initials, fmt.Sprintf("#%d", id))
		}
	}
	return strings.Join(initials, ",")
}

func formatAssignees(ids []int64, users map[int64]model.User) string {
	if len(ids) == 0 {
		return "nobody"
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if user, ok := users[id]; ok {
			names = append(names, user.Label())
		} else {
			names = append(names, fmt.Sprintf("#%d", id))
		}
	}
	return strings.Join(names, ", ")
}

func formatUserSummary(user model.User) string {
	role := ""
	if strings.EqualFold(user.Role, model.RoleAdmin) {
		role = " [admin]"
	}
	return fmt.Sprintf("%s (%s)%s", user.Label(), user.Username, role)
}

// FilterUsers returns the users matching term on first, last, display or
// user name or email, leaving out excludeID. Results keep the input order.
func FilterUsers(users []model.User, term string, excludeID int64) []model.User {
	needle := strings.ToLower(strings.TrimSpace(term))
	result := make([]model.User, 0, len(users))
	for _, user := range users {
		if user.ID == excludeID {
			continue
		}
		if needle == "" {
			result = append(result, user)
			continue
		}
		haystack := strings.ToLower(strings.Join([]string{
			user.FirstName,
			user.LastName,
			user.DisplayName,
			user.Username,
			user.Email,
		}, "\x00"))
		if strings.Contains(haystack, needle) {
			result = append(result, user)
		}
	}
	return result
}

func indexUsers(users []model.User) map[int64]model.User {
	byID := make(map[int64]model.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id, on := range set {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func describeFilter(filter model.Filter, users map[int64]model.User) string {
	status := "any"
	if filter.Status != nil {
		status = filter.Status.String()
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = taskquery.DefaultSortBy
	}
	direction := "asc"
	if taskquery.SortDescending(filter) {
		direction = "desc"
	}
	delayed := "any"
	if filter.IsDelayed != nil {
		delayed = "no"
		if *filter.IsDelayed {
			delayed = "yes"
		}
	}
	assignee := "any"
	if filter.AssignedUserID != nil {
		if user, ok := users[*filter.AssignedUserID]; ok {
			assignee = user.Label()
		} else {
			assignee = fmt.Sprintf("#%d", *filter.AssignedUserID)
		}
	}
	return fmt.Sprintf("Status: %s | Sort: %s %s | Delayed: %s | Assignee: %s", status, sortBy, direction, delayed, assignee)
}

func nextStatusFilter(current *model.TaskStatus) *model.TaskStatus {
	if current == nil {
		first := model.TaskStatuses[0]
		return &first
	}
	for i, status := range model.TaskStatuses {
		if status == *current && i+1 < len(model.TaskStatuses) {
			next := model.TaskStatuses[i+1]
			return &next
		}
	}
	return nil
}

// nextDelayedFilter cycles any -> delayed -> on time -> any.
func nextDelayedFilter(current *bool) *bool {
	if current == nil {
		v := true
		return &v
	}
	if *current {
		v := false
		return &v
	}
	return nil
}
