// Package postgres provides pgx-backed persistence for the tracker entities
// and their outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/events"
	"example.com/tracker/internal/observability"
)

// Repository provides Postgres-backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, project_id, name, description, start_date, end_date, status::text, created_at, updated_at`

// CreateUser inserts a user row.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	const stmt = `INSERT INTO users (user_id, name, email, created_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, stmt, user.ID, user.Name, user.Email, user.CreatedAt); err != nil {
		return err
	}
	observability.RecordRowPersisted("user", user.CreatedAt)
	return nil
}

// ListUsers returns every user row. No explicit ordering is applied.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, name, email, created_at FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches a user by id, returning nil when absent.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT user_id, name, email, created_at FROM users WHERE user_id=$1`, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateProject inserts a project row.
func (r *Repository) CreateProject(ctx context.Context, project domain.Project) error {
	const stmt = `INSERT INTO projects (project_id, name, description, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.pool.Exec(ctx, stmt, project.ID, project.Name, project.Description, project.CreatedAt, project.UpdatedAt); err != nil {
		return err
	}
	observability.RecordRowPersisted("project", project.CreatedAt)
	return nil
}

// ListProjects returns every project row. No explicit ordering is applied.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT project_id, name, description, created_at, updated_at FROM projects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject fetches a project by id, returning nil when absent.
func (r *Repository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT project_id, name, description, created_at, updated_at FROM projects WHERE project_id=$1`, id)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProject applies only the fields present in patch and always refreshes
// updated_at. Returns nil when the id matched no row.
func (r *Repository) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch, now time.Time) (*domain.Project, error) {
	set := []string{"updated_at = $1"}
	args := []interface{}{now}

	if patch.Name != nil {
		args = append(args, *patch.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.DescriptionSet {
		args = append(args, patch.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE project_id = $%d
        RETURNING project_id, name, description, created_at, updated_at`, strings.Join(set, ", "), len(args))

	row := r.pool.QueryRow(ctx, query, args...)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// CreateActivity persists the activity and records an activity.created outbox
// event inside a single transaction.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO activities (activity_id, project_id, name, description, start_date, end_date, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		activity.ID,
		activity.ProjectID,
		activity.Name,
		activity.Description,
		activity.StartDate,
		activity.EndDate,
		string(activity.Status),
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, activity, "activity.created", events.ActivityCreated{
		ActivityID: activity.ID,
		ProjectID:  activity.ProjectID,
		Name:       activity.Name,
		Status:     string(activity.Status),
		StartDate:  activity.StartDate,
		EndDate:    activity.EndDate,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordRowPersisted("activity", activity.CreatedAt)
	return nil
}

// ListProjectActivities returns the activities whose project_id matches. An
// unknown project id yields an empty slice; existence is not checked here.
func (r *Repository) ListProjectActivities(ctx context.Context, projectID string) ([]domain.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE project_id=$1`, activityColumns)
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// GetActivity fetches an activity by id, returning nil when absent.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE activity_id=$1`, activityColumns)
	a, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// UpdateActivity applies only the fields present in patch and always
// refreshes updated_at. A status change also records an outbox event.
// Returns nil when the id matched no row.
func (r *Repository) UpdateActivity(ctx context.Context, id string, patch domain.ActivityPatch, now time.Time) (*domain.Activity, error) {
	set := []string{"updated_at = $1"}
	args := []interface{}{now}

	if patch.Name != nil {
		args = append(args, *patch.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.DescriptionSet {
		args = append(args, patch.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}
	if patch.StartDate != nil {
		args = append(args, patch.StartDate.UTC())
		set = append(set, fmt.Sprintf("start_date = $%d", len(args)))
	}
	if patch.EndDate != nil {
		args = append(args, patch.EndDate.UTC())
		set = append(set, fmt.Sprintf("end_date = $%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE activities SET %s WHERE activity_id = $%d
        RETURNING %s`, strings.Join(set, ", "), len(args), activityColumns)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	a, err := scanActivity(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
			tx.Rollback(ctx)
			return nil, nil
		}
		return nil, err
	}

	if patch.Status != nil {
		if err = insertOutbox(ctx, tx, a, "activity.status_changed", events.ActivityStatusChanged{
			ActivityID: a.ID,
			ProjectID:  a.ProjectID,
			Status:     string(a.Status),
			OccurredAt: a.UpdatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateActivityStatus sets only the status, refreshes updated_at, and
// records the status change in the outbox. Returns nil when the id matched
// no row.
func (r *Repository) UpdateActivityStatus(ctx context.Context, id string, status domain.ActivityStatus, now time.Time) (*domain.Activity, error) {
	st := status
	return r.UpdateActivity(ctx, id, domain.ActivityPatch{Status: &st}, now)
}

// CreateAssignment inserts an assignment row. Duplicates are allowed.
func (r *Repository) CreateAssignment(ctx context.Context, assignment domain.ActivityAssignment) error {
	const stmt = `INSERT INTO activity_assignments (assignment_id, activity_id, user_id, created_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, stmt, assignment.ID, assignment.ActivityID, assignment.UserID, assignment.CreatedAt); err != nil {
		return err
	}
	observability.RecordRowPersisted("assignment", assignment.CreatedAt)
	return nil
}

// ListAssignments returns the assignment rows for an activity.
func (r *Repository) ListAssignments(ctx context.Context, activityID string) ([]domain.ActivityAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT assignment_id, activity_id, user_id, created_at FROM activity_assignments WHERE activity_id=$1`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]domain.ActivityAssignment, 0)
	for rows.Next() {
		var a domain.ActivityAssignment
		if err := rows.Scan(&a.ID, &a.ActivityID, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CreateDependency inserts a dependency edge.
func (r *Repository) CreateDependency(ctx context.Context, dependency domain.ActivityDependency) error {
	const stmt = `INSERT INTO activity_dependencies (dependency_id, activity_id, depends_on_activity_id, created_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, stmt, dependency.ID, dependency.ActivityID, dependency.DependsOnActivityID, dependency.CreatedAt); err != nil {
		return err
	}
	observability.RecordRowPersisted("dependency", dependency.CreatedAt)
	return nil
}

// ListDependencies returns the dependency rows whose dependent side matches.
func (r *Repository) ListDependencies(ctx context.Context, activityID string) ([]domain.ActivityDependency, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT dependency_id, activity_id, depends_on_activity_id, created_at FROM activity_dependencies WHERE activity_id=$1`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dependencies := make([]domain.ActivityDependency, 0)
	for rows.Next() {
		var d domain.ActivityDependency
		if err := rows.Scan(&d.ID, &d.ActivityID, &d.DependsOnActivityID, &d.CreatedAt); err != nil {
			return nil, err
		}
		dependencies = append(dependencies, d)
	}
	return dependencies, rows.Err()
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	var status string
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Description, &a.StartDate, &a.EndDate, &status, &a.CreatedAt, &a.UpdatedAt)
	a.Status = domain.ActivityStatus(status)
	return a, err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.PartitionKeyFn(activity),
		body,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	PartitionKeyFn func(domain.Activity) string
}

var eventCatalog = map[string]EventMetadata{
	"activity.created": {
		Topic: "activity_events",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.ProjectID
		},
	},
	"activity.status_changed": {
		Topic: "activity_status_changed",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.ID
		},
	},
}
