package gateway

import (
	"context"
	"log/slog"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token string    `json:"token" validate:"required"`
	User  loginUser `json:"user"`
}

type StaffUser struct {
	Name  string
	Email string
}

// Login exchanges staff credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, email string, password string) (StaffUser, error) {
	var resp loginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return StaffUser{}, err
	}

	err = c.tokens.SetToken(ctx, resp.Token)
	if err != nil {
		return StaffUser{}, NewRequestFailedError("Failed to store session token", err)
	}

	c.logger.InfoContext(ctx, "logged in", slog.String("email", resp.User.Email))

	return StaffUser{Name: resp.User.Name, Email: resp.User.Email}, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.ClearToken(ctx)
}
