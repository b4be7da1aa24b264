package api

import (
	"context"
	"net/http"

	"github.com/Joseda-hg/taskdesk/internal/model"
)

func (c *Client) Login(ctx context.Context, req LoginRequest) (model.Identity, error) {
	if err := req.Validate(); err != nil {
		return model.Identity{}, err
	}
	var identity model.Identity
	if err := c.do(ctx, http.MethodPost, "auth/login", nil, req, &identity); err != nil {
		return model.Identity{}, err
	}
	return identity, nil
}

// Register creates an account; the caller still has to log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "auth/register", nil, req, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "auth/logout", nil, struct{}{}, nil)
}

// CurrentUser asks the API who the session cookie belongs to.
func (c *Client) CurrentUser(ctx context.Context) (model.Identity, error) {
	var identity model.Identity
	if err := c.do(ctx, http.MethodGet, "auth/current-user", nil, nil, &identity); err != nil {
		return model.Identity{}, err
	}
	return identity, nil
}
