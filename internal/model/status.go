package model

import (
	"fmt"
	"strconv"
	"strings"
)

type TaskStatus int

const (
	StatusToDo TaskStatus = iota
	StatusInProgress
	StatusCompleted
	StatusUnAssigned
	StatusDeleted
)

var TaskStatuses = []TaskStatus{StatusToDo, StatusInProgress, StatusCompleted, StatusUnAssigned, StatusDeleted}

func (s TaskStatus) Valid() bool {
	return s >= StatusToDo && s <= StatusDeleted
}

func (s TaskStatus) String() string {
	switch s {
	case StatusToDo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusUnAssigned:
		return "Unassigned"
	case StatusDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// ParseTaskStatus accepts the numeric wire value or a label, case and
// space insensitive ("inprogress", "In Progress", "1").
func ParseTaskStatus(value string) (TaskStatus, error) {
	trimmed := strings.TrimSpace(value)
	if n, err := strconv.Atoi(trimmed); err == nil {
		status := TaskStatus(n)
		if !status.Valid() {
			return 0, fmt.Errorf("invalid status %d", n)
		}
		return status, nil
	}

	key := strings.ToLower(strings.ReplaceAll(trimmed, " ", ""))
	for _, status := range TaskStatuses {
		if strings.ToLower(strings.ReplaceAll(status.String(), " ", "")) == key {
			return status, nil
		}
	}
	return 0, fmt.Errorf("invalid status %q", value)
}
