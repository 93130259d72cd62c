package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/defensoria-civil/divorcios/internal/auth"
)

// User is a console operator account as managed by the backend.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      auth.Role `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt string    `json:"created_at"`
}

// CreateUserRequest creates a new operator account.
type CreateUserRequest struct {
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"full_name,omitempty"`
	Role     auth.Role `json:"role"`
}

// UpdateUserRequest carries the mutable account fields; nil fields are
// left untouched backend-side.
type UpdateUserRequest struct {
	Email    *string    `json:"email,omitempty"`
	FullName *string    `json:"full_name,omitempty"`
	Role     *auth.Role `json:"role,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

// ListUsers fetches all operator accounts.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/", nil, true, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser registers a new operator account.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/", req, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser modifies an existing account.
func (c *Client) UpdateUser(ctx context.Context, userID int, req UpdateUserRequest) (*User, error) {
	var user User
	path := fmt.Sprintf("/api/users/%d", userID)
	if err := c.doJSON(ctx, http.MethodPatch, path, req, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID int) error {
	path := fmt.Sprintf("/api/users/%d", userID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, true, nil)
}
