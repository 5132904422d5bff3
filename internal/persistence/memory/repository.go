// Package memory stores tracker entities in memory for local development
// and handler tests. Semantics mirror the Postgres repository, including
// insertion-order listing and patch application.
package memory

import (
	"context"
	"sync"
	"time"

	"example.com/tracker/internal/domain"
)

// Repository is an in-memory implementation of domain.Repository.
type Repository struct {
	mu           sync.RWMutex
	users        []domain.User
	projects     []domain.Project
	activities   []domain.Activity
	assignments  []domain.ActivityAssignment
	dependencies []domain.ActivityDependency
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// CreateUser implements domain.Repository.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user)
	return nil
}

// ListUsers implements domain.Repository.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

// GetUser implements domain.Repository.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

// CreateProject implements domain.Repository.
func (r *Repository) CreateProject(ctx context.Context, project domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects = append(r.projects, project)
	return nil
}

// ListProjects implements domain.Repository.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Project, len(r.projects))
	copy(out, r.projects)
	return out, nil
}

// GetProject implements domain.Repository.
func (r *Repository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.projects {
		if p.ID == id {
			project := p
			return &project, nil
		}
	}
	return nil, nil
}

// UpdateProject implements domain.Repository.
func (r *Repository) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch, now time.Time) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.projects {
		if r.projects[i].ID != id {
			continue
		}
		if patch.Name != nil {
			r.projects[i].Name = *patch.Name
		}
		if patch.DescriptionSet {
			r.projects[i].Description = patch.Description
		}
		r.projects[i].UpdatedAt = now
		project := r.projects[i]
		return &project, nil
	}
	return nil, nil
}

// CreateActivity implements domain.Repository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, activity)
	return nil
}

// ListProjectActivities implements domain.Repository.
func (r *Repository) ListProjectActivities(ctx context.Context, projectID string) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for _, a := range r.activities {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetActivity implements domain.Repository.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.activities {
		if a.ID == id {
			activity := a
			return &activity, nil
		}
	}
	return nil, nil
}

// UpdateActivity implements domain.Repository.
func (r *Repository) UpdateActivity(ctx context.Context, id string, patch domain.ActivityPatch, now time.Time) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.activities {
		if r.activities[i].ID != id {
			continue
		}
		if patch.Name != nil {
			r.activities[i].Name = *patch.Name
		}
		if patch.DescriptionSet {
			r.activities[i].Description = patch.Description
		}
		if patch.StartDate != nil {
			r.activities[i].StartDate = patch.StartDate.UTC()
		}
		if patch.EndDate != nil {
			r.activities[i].EndDate = patch.EndDate.UTC()
		}
		if patch.Status != nil {
			r.activities[i].Status = *patch.Status
		}
		r.activities[i].UpdatedAt = now
		activity := r.activities[i]
		return &activity, nil
	}
	return nil, nil
}

// UpdateActivityStatus implements domain.Repository.
func (r *Repository) UpdateActivityStatus(ctx context.Context, id string, status domain.ActivityStatus, now time.Time) (*domain.Activity, error) {
	st := status
	return r.UpdateActivity(ctx, id, domain.ActivityPatch{Status: &st}, now)
}

// CreateAssignment implements domain.Repository.
func (r *Repository) CreateAssignment(ctx context.Context, assignment domain.ActivityAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = append(r.assignments, assignment)
	return nil
}

// ListAssignments implements domain.Repository.
func (r *Repository) ListAssignments(ctx context.Context, activityID string) ([]domain.ActivityAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ActivityAssignment, 0)
	for _, a := range r.assignments {
		if a.ActivityID == activityID {
			out = append(out, a)
		}
	}
	return out, nil
}

// CreateDependency implements domain.Repository.
func (r *Repository) CreateDependency(ctx context.Context, dependency domain.ActivityDependency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dependencies = append(r.dependencies, dependency)
	return nil
}

// ListDependencies implements domain.Repository.
func (r *Repository) ListDependencies(ctx context.Context, activityID string) ([]domain.ActivityDependency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ActivityDependency, 0)
	for _, d := range r.dependencies {
		if d.ActivityID == activityID {
			out = append(out, d)
		}
	}
	return out, nil
}

var _ domain.Repository = (*Repository)(nil)
