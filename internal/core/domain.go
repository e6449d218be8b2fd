package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleAccountant Role = "accountant"
)

const (
	MaxDescriptionLength = 200
	MaxNotesLength       = 500
)

type (
	// Role is one of the closed set of dashboard roles.
	Role string

	// Actor is the authenticated identity performing an operation.
	Actor struct {
		ID   int64
		Role Role
	}

	ExpenseRecord struct {
		ID          int64
		AuthorID    int64 // Manager who recorded it
		ProjectID   int64
		Amount      Money
		Description string
		Notes       string
		RecordedAt  time.Time
	}

	// ProjectSummary aggregates the expenses of one project.
	ProjectSummary struct {
		ProjectID int64
		Count     int64
		Total     Money
	}

	Project struct {
		ID          int64
		ClientID    int64
		Description string
		DueDate     time.Time // zero when the project has no due date
		Status      string
	}
)

// ParseRole matches s against the known roles ignoring case and surrounding
// whitespace. Unknown roles report false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner, true
	case RoleManager:
		return RoleManager, true
	case RoleAccountant:
		return RoleAccountant, true
	default:
		return "", false
	}
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// Is reports whether the actor holds role r. Unknown roles never match.
func (a Actor) Is(r Role) bool {
	role, ok := ParseRole(string(a.Role))
	return ok && role == r
}

// Validate checks the fields supplied by the caller. ID and RecordedAt are
// owned by the store and are not inspected.
func (e ExpenseRecord) Validate() error {
	if e.ProjectID <= 0 {
		return InvalidInput("projectId", "is required and must be a positive integer")
	}
	if strings.TrimSpace(e.Description) == "" {
		return InvalidInput("description", "cannot be empty")
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return InvalidInput("description", "too long (max 200 characters)")
	}
	if utf8.RuneCountInString(e.Notes) > MaxNotesLength {
		return InvalidInput("notes", "too long (max 500 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return nil
}
