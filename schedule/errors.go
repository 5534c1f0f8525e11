package schedule

import (
	"errors"

	"github.com/amonks/taskgraph/internal/validation"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is, so callers can translate it (404/400/403/409).
var (
	// ErrNotFound indicates a task or dependency is missing or soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates the request itself is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPermissionDenied indicates the actor may not act on the workspace.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflict indicates the request clashes with the current graph.
	ErrConflict = errors.New("conflict")
)

// kindError is a specific failure that unwraps to its kind.
type kindError struct {
	kind    error
	message string
}

func (e *kindError) Error() string {
	return e.message
}

func (e *kindError) Unwrap() error {
	return e.kind
}

func newKindError(kind error, message string) error {
	return &kindError{kind: kind, message: message}
}

// NewError returns an error with the given message that matches kind. It
// lets collaborators report failures the same way the engine does.
func NewError(kind error, message string) error {
	return newKindError(kind, message)
}

var (
	// ErrTaskNotFound is returned when a task doesn't exist or is deleted.
	ErrTaskNotFound = newKindError(ErrNotFound, "task not found")

	// ErrDependencyNotFound is returned when a dependency doesn't exist or is deleted.
	ErrDependencyNotFound = newKindError(ErrNotFound, "dependency not found")

	// ErrSelfDependency is returned when a task would depend on itself.
	ErrSelfDependency = newKindError(ErrInvalidArgument, "task cannot depend on itself")

	// ErrCrossWorkspace is returned when the two tasks live in different workspaces.
	ErrCrossWorkspace = newKindError(ErrInvalidArgument, "tasks belong to different workspaces")

	// ErrCrossProject is returned when the two tasks live in different projects.
	ErrCrossProject = newKindError(ErrInvalidArgument, "tasks belong to different projects")

	// ErrInvalidDependencyType is returned for an unknown dependency type.
	ErrInvalidDependencyType = newKindError(ErrInvalidArgument, "invalid dependency type")

	// ErrInvalidStatus is returned for an unknown status.
	ErrInvalidStatus = newKindError(ErrInvalidArgument, "invalid status")

	// ErrInvalidDateRange is returned when a start date falls after the due date.
	ErrInvalidDateRange = newKindError(ErrInvalidArgument, "start date must not be after due date")

	// ErrNotMember is returned when the actor is not a member of the workspace.
	ErrNotMember = newKindError(ErrPermissionDenied, "actor is not a member of the workspace")

	// ErrDuplicateDependency is returned when the same edge is already active.
	ErrDuplicateDependency = newKindError(ErrConflict, "dependency already exists")

	// ErrCircularDependency is returned when an edge would close a cycle.
	ErrCircularDependency = newKindError(ErrConflict, "circular dependency")
)

// KindOf returns the error kind err matches, or nil if it matches none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidArgument, ErrPermissionDenied, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func invalidStatusError(value string) error {
	return validation.FormatInvalidValueError(ErrInvalidStatus, Status(value), ValidStatuses())
}

func invalidDependencyTypeError(value string) error {
	return validation.FormatInvalidValueError(ErrInvalidDependencyType, DependencyType(value), ValidDependencyTypes())
}
