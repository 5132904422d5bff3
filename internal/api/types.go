package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"example.com/tracker/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field names as they appear on the wire.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	e := verrs[0]
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return e.Field() + " must be a valid email address"
	case "min":
		return e.Field() + " must be non-empty"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	}
	return e.Field() + " is invalid"
}

// NullableString distinguishes a JSON null from an omitted key in patch
// bodies: Set is true whenever the key appeared, Value is nil for null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records presence before decoding the value.
func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// CreateUserRequest is the payload for POST /v1/users.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CreateProjectRequest is the payload for POST /v1/projects.
type CreateProjectRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

// UpdateProjectRequest is the payload for PATCH /v1/projects/{id}. Omitted
// fields are untouched; a null description clears the stored value.
type UpdateProjectRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1"`
	Description NullableString `json:"description"`
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	ProjectID   string    `json:"project_id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	Status      string    `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
}

// UpdateActivityRequest is the payload for PATCH /v1/activities/{id}.
type UpdateActivityRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1"`
	Description NullableString `json:"description"`
	StartDate   *time.Time     `json:"start_date"`
	EndDate     *time.Time     `json:"end_date"`
	Status      *string        `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
}

// UpdateActivityStatusRequest is the payload for PUT /v1/activities/{id}/status.
type UpdateActivityStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress review done"`
}

// AssignUserRequest is the payload for POST /v1/activities/{id}/assignments.
type AssignUserRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateDependencyRequest is the payload for POST /v1/activities/{id}/dependencies.
type CreateDependencyRequest struct {
	DependsOnActivityID string `json:"depends_on_activity_id" validate:"required"`
}

// UserView exposes a user row.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectView exposes a project row.
type ProjectView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActivityView exposes an activity row.
type ActivityView struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignmentView exposes an assignment row.
type AssignmentView struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// DependencyView exposes a dependency edge.
type DependencyView struct {
	ID                  string    `json:"id"`
	ActivityID          string    `json:"activity_id"`
	DependsOnActivityID string    `json:"depends_on_activity_id"`
	CreatedAt           time.Time `json:"created_at"`
}

func toUserView(u domain.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toProjectView(p domain.Project) ProjectView {
	return ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:          a.ID,
		ProjectID:   a.ProjectID,
		Name:        a.Name,
		Description: a.Description,
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAssignmentView(a domain.ActivityAssignment) AssignmentView {
	return AssignmentView{ID: a.ID, ActivityID: a.ActivityID, UserID: a.UserID, CreatedAt: a.CreatedAt}
}

func toDependencyView(d domain.ActivityDependency) DependencyView {
	return DependencyView{
		ID:                  d.ID,
		ActivityID:          d.ActivityID,
		DependsOnActivityID: d.DependsOnActivityID,
		CreatedAt:           d.CreatedAt,
	}
}
