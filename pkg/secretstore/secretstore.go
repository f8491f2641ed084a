package secretstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Priority orders backend stores. Lower values are consulted first.
type Priority int

const (
	PriorityUser Priority = iota + 1
	PriorityApplication
	PriorityAWS
	PriorityAzure
	PriorityGCP
)

// Priorities lists every known priority in ascending order
var Priorities = []Priority{PriorityUser, PriorityApplication, PriorityAWS, PriorityAzure, PriorityGCP}

// String returns the scope name used in configuration and on the command line
func (p Priority) String() string {
	switch p {
	case PriorityUser:
		return "USER"
	case PriorityApplication:
		return "APP"
	case PriorityAWS:
		return "AWS"
	case PriorityAzure:
		return "AZURE"
	case PriorityGCP:
		return "GCP"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// IsLocal reports whether the priority belongs to a local vault scope
func (p Priority) IsLocal() bool {
	return p == PriorityUser || p == PriorityApplication
}

// ParsePriority converts a scope name into a Priority. Matching is case-insensitive.
func ParsePriority(name string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "USER", "USR":
		return PriorityUser, nil
	case "APP", "APPLICATION":
		return PriorityApplication, nil
	case "AWS":
		return PriorityAWS, nil
	case "AZURE":
		return PriorityAzure, nil
	case "GCP":
		return PriorityGCP, nil
	}
	return 0, fmt.Errorf("unknown scope %q (expected one of user, app, aws, azure, gcp)", name)
}

// Store is a backend that holds secrets.
//
// Implementations are the closed set of local vault and remote secret manager
// adapters in internal/providers.
type Store interface {
	// Name identifies the store in logs and errors
	Name() string

	// Priority is the ordinal used for ordering and scope matching
	Priority() Priority

	// Get returns the secret stored under key, or def when it is absent or empty
	Get(ctx context.Context, key, def string) string

	// Set creates or overwrites the secret stored under key
	Set(ctx context.Context, key, value string) error

	// Delete removes the secret stored under key
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their secret names
type Lister interface {
	Names(ctx context.Context, includeHidden bool) ([]string, error)
}

// Tag marks how a local vault entry is treated when its store is opened
type Tag string

const (
	TagNone   Tag = "-"
	TagEnv    Tag = "ENV"
	TagHidden Tag = "HIDDEN"
)

// ParseTag maps a stored tag string onto a Tag. Unknown values are TagNone.
func ParseTag(s string) Tag {
	switch Tag(strings.ToUpper(strings.TrimSpace(s))) {
	case TagEnv:
		return TagEnv
	case TagHidden:
		return TagHidden
	default:
		return TagNone
	}
}

// StoreError reports a store that could not be built or an operation that failed
type StoreError struct {
	Store   string // Store name, e.g. "User_Local_Store"
	Op      string // Operation: "open", "create", "get", "set", "delete", "connect"
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	if e.Store != "" {
		b.WriteString(e.Store)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError for the given store and operation
func NewStoreError(store, op, message string, err error) *StoreError {
	return &StoreError{Store: store, Op: op, Message: message, Err: err}
}

// IsStoreError reports whether err or anything it wraps is a StoreError
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
