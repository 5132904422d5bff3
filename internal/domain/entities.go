// Package domain defines the business logic for the tracker service.
package domain

import "time"

// ActivityStatus is the board column an activity sits in.
type ActivityStatus string

const (
	StatusTodo       ActivityStatus = "todo"
	StatusInProgress ActivityStatus = "in_progress"
	StatusReview     ActivityStatus = "review"
	StatusDone       ActivityStatus = "done"
)

// Valid reports whether s is one of the four known statuses.
func (s ActivityStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// User is a person who can be assigned to activities.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Project groups activities.
type Project struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Activity is a task belonging to a project, with a time span and a status.
// No ordering between StartDate and EndDate is enforced.
type Activity struct {
	ID          string
	ProjectID   string
	Name        string
	Description *string
	StartDate   time.Time
	EndDate     time.Time
	Status      ActivityStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActivityAssignment links a user to an activity. The same pair may be
// linked more than once; rows are not deduplicated.
type ActivityAssignment struct {
	ID         string
	ActivityID string
	UserID     string
	CreatedAt  time.Time
}

// ActivityDependency is a directed edge: ActivityID depends on
// DependsOnActivityID. Edges are stored as given; cycles are not checked.
type ActivityDependency struct {
	ID                  string
	ActivityID          string
	DependsOnActivityID string
	CreatedAt           time.Time
}

// ProjectPatch lists the optional fields of a project update. Nil pointers
// leave the field untouched. DescriptionSet distinguishes an explicit null
// (clear the description) from an omitted field.
type ProjectPatch struct {
	Name           *string
	Description    *string
	DescriptionSet bool
}

// ActivityPatch lists the optional fields of an activity update, with the
// same null-versus-omitted convention as ProjectPatch.
type ActivityPatch struct {
	Name           *string
	Description    *string
	DescriptionSet bool
	StartDate      *time.Time
	EndDate        *time.Time
	Status         *ActivityStatus
}
