package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository captures persistence operations for the tracker entities.
// Get methods return (nil, nil) when the row does not exist; Update methods
// return (nil, nil) when the id matched no row.
type Repository interface {
	CreateUser(ctx context.Context, user User) error
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (*User, error)

	CreateProject(ctx context.Context, project Project) error
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	UpdateProject(ctx context.Context, id string, patch ProjectPatch, now time.Time) (*Project, error)

	CreateActivity(ctx context.Context, activity Activity) error
	ListProjectActivities(ctx context.Context, projectID string) ([]Activity, error)
	GetActivity(ctx context.Context, id string) (*Activity, error)
	UpdateActivity(ctx context.Context, id string, patch ActivityPatch, now time.Time) (*Activity, error)
	UpdateActivityStatus(ctx context.Context, id string, status ActivityStatus, now time.Time) (*Activity, error)

	CreateAssignment(ctx context.Context, assignment ActivityAssignment) error
	ListAssignments(ctx context.Context, activityID string) ([]ActivityAssignment, error)

	CreateDependency(ctx context.Context, dependency ActivityDependency) error
	ListDependencies(ctx context.Context, activityID string) ([]ActivityDependency, error)
}

// Service orchestrates tracker workflows. Each operation performs its
// existence checks as independent reads before the single write; the
// check-then-act sequence is intentionally not wrapped in a transaction.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateUserInput captures the payload for CreateUser.
type CreateUserInput struct {
	Name  string
	Email string
}

// CreateProjectInput captures the payload for CreateProject.
type CreateProjectInput struct {
	Name        string
	Description *string
}

// CreateActivityInput captures the payload for CreateActivity. A zero
// Status defaults to StatusTodo.
type CreateActivityInput struct {
	ProjectID   string
	Name        string
	Description *string
	StartDate   time.Time
	EndDate     time.Time
	Status      ActivityStatus
}

// CreateUser inserts a user with a generated id.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	user := User{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Email:     input.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateProject inserts a project with both timestamps set to now.
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (*Project, error) {
	now := time.Now().UTC()
	project := Project{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	return s.repo.ListProjects(ctx)
}

// UpdateProject applies the provided fields and refreshes updated_at. An
// empty patch still refreshes updated_at.
func (s *Service) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error) {
	project, err := s.repo.UpdateProject(ctx, id, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project with id %s: %w", id, ErrProjectNotFound)
	}
	return project, nil
}

// CreateActivity inserts an activity after verifying the parent project
// exists. Status defaults to todo when omitted.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, error) {
	project, err := s.repo.GetProject(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project with id %s: %w", input.ProjectID, ErrProjectNotFound)
	}

	status := input.Status
	if status == "" {
		status = StatusTodo
	}

	now := time.Now().UTC()
	activity := Activity{
		ID:          uuid.NewString(),
		ProjectID:   input.ProjectID,
		Name:        input.Name,
		Description: input.Description,
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate.UTC(),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListProjectActivities returns the activities of a project. A project id
// that does not resolve yields an empty slice, not an error; the list paths
// deliberately skip the existence check the create paths perform.
func (s *Service) ListProjectActivities(ctx context.Context, projectID string) ([]Activity, error) {
	return s.repo.ListProjectActivities(ctx, projectID)
}

// UpdateActivity applies the provided fields and refreshes updated_at.
func (s *Service) UpdateActivity(ctx context.Context, id string, patch ActivityPatch) (*Activity, error) {
	activity, err := s.repo.UpdateActivity(ctx, id, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("activity with id %s: %w", id, ErrActivityNotFound)
	}
	return activity, nil
}

// UpdateActivityStatus sets only the status and refreshes updated_at. It is
// the sole mutation issued by board-style drag interactions, so it must not
// require any other field. Transitions are unrestricted, including no-ops.
func (s *Service) UpdateActivityStatus(ctx context.Context, id string, status ActivityStatus) (*Activity, error) {
	activity, err := s.repo.UpdateActivityStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("activity with id %s: %w", id, ErrActivityNotFound)
	}
	return activity, nil
}

// AssignUserToActivity links a user to an activity after verifying both
// sides exist. Duplicate links are permitted.
func (s *Service) AssignUserToActivity(ctx context.Context, activityID, userID string) (*ActivityAssignment, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user with id %s: %w", userID, ErrUserNotFound)
	}

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("activity with id %s: %w", activityID, ErrActivityNotFound)
	}

	assignment := ActivityAssignment{
		ID:         uuid.NewString(),
		ActivityID: activityID,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListActivityAssignments returns the assignment rows for an activity.
// Unknown activity ids yield an empty slice.
func (s *Service) ListActivityAssignments(ctx context.Context, activityID string) ([]ActivityAssignment, error) {
	return s.repo.ListAssignments(ctx, activityID)
}

// CreateActivityDependency records a directed edge between two activities.
// Self-loops are rejected before any lookup, so the identical-id case fails
// the same way whether or not the id resolves. Cycles spanning more than
// one edge are not detected.
func (s *Service) CreateActivityDependency(ctx context.Context, activityID, dependsOnActivityID string) (*ActivityDependency, error) {
	if activityID == dependsOnActivityID {
		return nil, ErrSelfDependency
	}

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("activity with id %s: %w", activityID, ErrActivityNotFound)
	}

	dependsOn, err := s.repo.GetActivity(ctx, dependsOnActivityID)
	if err != nil {
		return nil, err
	}
	if dependsOn == nil {
		return nil, fmt.Errorf("activity with id %s: %w", dependsOnActivityID, ErrActivityNotFound)
	}

	dependency := ActivityDependency{
		ID:                  uuid.NewString(),
		ActivityID:          activityID,
		DependsOnActivityID: dependsOnActivityID,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.repo.CreateDependency(ctx, dependency); err != nil {
		return nil, err
	}
	return &dependency, nil
}

// ListActivityDependencies returns the dependency rows whose dependent side
// matches activityID. Unknown ids yield an empty slice.
func (s *Service) ListActivityDependencies(ctx context.Context, activityID string) ([]ActivityDependency, error) {
	return s.repo.ListDependencies(ctx, activityID)
}
