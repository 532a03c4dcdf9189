package handler

import (
	"context"
	"time"
)

// BackendHandler is everything the LDAP handler needs from a user store.
type BackendHandler interface {
	// Bind validates the credentials of a principal. Any error means the
	// credentials were not accepted.
	Bind(ctx context.Context, req BindRequest) error
	// ListUsers returns the users visible to a search, in backend order.
	ListUsers(ctx context.Context, req ListUsersRequest) ([]User, error)
}

type BindRequest struct {
	Name     string
	Password string
}

// ListUsersRequest is empty for now: searches are not filtered.
type ListUsersRequest struct{}

// User is a directory user as stored by a backend.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	FirstName    string
	LastName     string
	CreationDate time.Time
}
