package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Joseda-hg/taskdesk/internal/model"
)

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := c.do(ctx, http.MethodGet, "user", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("user/%d", userID), nil, nil, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (model.User, error) {
	if req.UserRole == "" {
		req.UserRole = model.RoleUser
	}
	if err := req.Validate(); err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := c.do(ctx, http.MethodPost, "user", nil, req, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) (model.User, error) {
	if err := req.Validate(); err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("user/%d", userID), nil, req, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("user/%d", userID), nil, nil, nil)
}
