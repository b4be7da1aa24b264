package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/Joseda-hg/taskdesk/internal/taskquery"
)

func (c *Client) ListTasks(ctx context.Context, filter model.Filter) ([]model.Task, error) {
	tasks := []model.Task{}
	if err := c.do(ctx, http.MethodGet, "task", taskquery.BuildListQuery(filter), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) ListTasksByUser(ctx context.Context, userID int64) ([]model.Task, error) {
	tasks := []model.Task{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("task/user/%d", userID), nil, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, taskID int64) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("task/%d", taskID), nil, nil, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (model.Task, error) {
	if err := req.Validate(); err != nil {
		return model.Task{}, err
	}
	var task model.Task
	if err := c.do(ctx, http.MethodPost, "task", nil, req, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID int64, req UpdateTaskRequest) (model.Task, error) {
	if err := req.Validate(); err != nil {
		return model.Task{}, err
	}
	var task model.Task
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("task/%d", taskID), nil, req, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) UpdateTaskStatus(ctx context.Context, taskID int64, status model.TaskStatus) (model.Task, error) {
	if !status.Valid() {
		return model.Task{}, &ValidationError{Field: "status", Message: "Status is invalid"}
	}
	var task model.Task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("task/%d/status", taskID), nil, TaskStatusRequest{CurrentStatus: status}, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("task/%d", taskID), nil, nil, nil)
}
