// Package backend defines the auth and database collaborator the HTTP handlers
// talk to, along with the per-request client that implements it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/showcase/internal/profiles"
)

// Operation names used in errors and log records.
const (
	OpGetUser        = "auth.get_user"
	OpSignOut        = "auth.sign_out"
	OpExchangeCode   = "auth.exchange_code_for_session"
	OpDeleteIdentity = "auth.admin.delete_user"
	OpSelectProfile  = "profiles.select"
	OpInsertProfile  = "profiles.insert"
	OpDeleteProfile  = "profiles.delete"
)

// ErrNoSession reports that the request carries no resolvable session user.
var ErrNoSession = errors.New("backend: no session")

// Error is the typed failure returned by every Client operation.
type Error struct {
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, status int, message string, cause error) *Error {
	return &Error{Op: op, Message: message, Status: status, Err: cause}
}

// User is the authenticated identity as seen by the handlers.
type User struct {
	ID    string
	Email string
}

// Session is the result of a successful code exchange.
type Session struct {
	User      User
	ExpiresAt time.Time
}

// Credentials binds a client to a single request: cookies are read from
// Request and session changes are written to Writer.
type Credentials struct {
	Request *http.Request
	Writer  http.ResponseWriter
}

// Client is the per-request view of the auth and database backend.
type Client interface {
	GetUser(ctx context.Context) (User, error)
	SignOut(ctx context.Context) error
	ExchangeCodeForSession(ctx context.Context, code string) (Session, error)
	DeleteIdentity(ctx context.Context, userID string) error
	SelectProfile(ctx context.Context, userID string) (profiles.Profile, bool, error)
	InsertProfile(ctx context.Context, profile profiles.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
}

// ClientFactory creates a Client bound to the request credentials.
type ClientFactory interface {
	ForRequest(credentials Credentials) (Client, error)
}
