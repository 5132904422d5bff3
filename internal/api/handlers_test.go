package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/persistence/memory"
)

func newTestRouter() http.Handler {
	service := domain.NewService(memory.NewRepository())
	handler := NewHandler(service, zerolog.Nop())
	router := chi.NewRouter()
	handler.Routes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func errType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	decodeBody(t, rr, &payload)
	return payload["type"]
}

func TestHealthcheck(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var payload struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	decodeBody(t, rr, &payload)
	if payload.Status != "ok" {
		t.Fatalf("expected status ok got %q", payload.Status)
	}
	if payload.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}
}

func TestCreateProjectAndList(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodPost, "/v1/projects", `{"name":"Relaunch","description":"Q4 site"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var created ProjectView
	decodeBody(t, rr, &created)
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}
	if created.Description == nil || *created.Description != "Q4 site" {
		t.Fatalf("unexpected description %v", created.Description)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected created_at == updated_at, got %v / %v", created.CreatedAt, created.UpdatedAt)
	}

	rr = do(t, router, http.MethodGet, "/v1/projects", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var projects []ProjectView
	decodeBody(t, rr, &projects)
	if len(projects) != 1 || projects[0].ID != created.ID {
		t.Fatalf("unexpected projects %+v", projects)
	}
}

func TestListProjectsEmptyStore(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodGet, "/v1/projects", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var projects []ProjectView
	decodeBody(t, rr, &projects)
	if len(projects) != 0 {
		t.Fatalf("expected empty list got %+v", projects)
	}
}

func TestCreateUserValidation(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodPost, "/v1/users", `{"name":"","email":"dana@example.com"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if errType(t, rr) != "validation_failed" {
		t.Fatalf("unexpected error type %q", errType(t, rr))
	}

	rr = do(t, router, http.MethodPost, "/v1/users", `{"name":"Dana","email":"not-an-email"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	rr = do(t, router, http.MethodPost, "/v1/users", `{"name":"Dana","email":"dana@example.com"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateActivityUnknownProject(t *testing.T) {
	router := newTestRouter()

	body := `{"project_id":"ghost","name":"A","start_date":"2026-09-01T09:00:00Z","end_date":"2026-09-03T17:00:00Z"}`
	rr := do(t, router, http.MethodPost, "/v1/activities", body)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
	if errType(t, rr) != "not_found" {
		t.Fatalf("unexpected error type %q", errType(t, rr))
	}
}

func createProject(t *testing.T, router http.Handler, name string) ProjectView {
	t.Helper()
	rr := do(t, router, http.MethodPost, "/v1/projects", `{"name":"`+name+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var project ProjectView
	decodeBody(t, rr, &project)
	return project
}

func createActivity(t *testing.T, router http.Handler, projectID, name string) ActivityView {
	t.Helper()
	body := `{"project_id":"` + projectID + `","name":"` + name + `","start_date":"2026-09-01T09:00:00Z","end_date":"2026-09-05T17:00:00Z"}`
	rr := do(t, router, http.MethodPost, "/v1/activities", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create activity: expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var activity ActivityView
	decodeBody(t, rr, &activity)
	return activity
}

func createUser(t *testing.T, router http.Handler, name, email string) UserView {
	t.Helper()
	rr := do(t, router, http.MethodPost, "/v1/users", `{"name":"`+name+`","email":"`+email+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var user UserView
	decodeBody(t, rr, &user)
	return user
}

func TestCreateActivityDefaultsStatus(t *testing.T) {
	router := newTestRouter()
	project := createProject(t, router, "P")

	activity := createActivity(t, router, project.ID, "A1")
	if activity.Status != "todo" {
		t.Fatalf("expected default status todo got %q", activity.Status)
	}
}

func TestUpdateProjectNullClearsDescription(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodPost, "/v1/projects", `{"name":"P","description":"keep"}`)
	var project ProjectView
	decodeBody(t, rr, &project)

	// Omitted description is untouched.
	rr = do(t, router, http.MethodPatch, "/v1/projects/"+project.ID, `{"name":"P2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var updated ProjectView
	decodeBody(t, rr, &updated)
	if updated.Name != "P2" {
		t.Fatalf("expected renamed project got %q", updated.Name)
	}
	if updated.Description == nil || *updated.Description != "keep" {
		t.Fatalf("description should be untouched, got %v", updated.Description)
	}

	// Explicit null clears.
	rr = do(t, router, http.MethodPatch, "/v1/projects/"+project.ID, `{"description":null}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &updated)
	if updated.Description != nil {
		t.Fatalf("description should be cleared, got %q", *updated.Description)
	}
}

func TestUpdateProjectNotFound(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodPatch, "/v1/projects/ghost", `{"name":"X"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestUpdateActivityStatusValidation(t *testing.T) {
	router := newTestRouter()
	project := createProject(t, router, "P")
	activity := createActivity(t, router, project.ID, "A")

	rr := do(t, router, http.MethodPut, "/v1/activities/"+activity.ID+"/status", `{"status":"blocked"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status got %d", rr.Code)
	}
	if errType(t, rr) != "validation_failed" {
		t.Fatalf("unexpected error type %q", errType(t, rr))
	}

	rr = do(t, router, http.MethodPut, "/v1/activities/"+activity.ID+"/status", `{"status":"in_progress"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var updated ActivityView
	decodeBody(t, rr, &updated)
	if updated.Status != "in_progress" {
		t.Fatalf("expected in_progress got %q", updated.Status)
	}
	if updated.Name != activity.Name || !updated.StartDate.Equal(activity.StartDate) {
		t.Fatal("status update must leave other fields untouched")
	}
}

func TestSelfDependencyRejected(t *testing.T) {
	router := newTestRouter()
	project := createProject(t, router, "P")
	activity := createActivity(t, router, project.ID, "A")

	rr := do(t, router, http.MethodPost, "/v1/activities/"+activity.ID+"/dependencies",
		`{"depends_on_activity_id":"`+activity.ID+`"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
	if errType(t, rr) != "invalid_argument" {
		t.Fatalf("unexpected error type %q", errType(t, rr))
	}
}

func TestDependencyRoundTrip(t *testing.T) {
	router := newTestRouter()
	project := createProject(t, router, "P")
	a1 := createActivity(t, router, project.ID, "A1")
	a2 := createActivity(t, router, project.ID, "A2")

	rr := do(t, router, http.MethodPost, "/v1/activities/"+a2.ID+"/dependencies",
		`{"depends_on_activity_id":"`+a1.ID+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, router, http.MethodGet, "/v1/activities/"+a2.ID+"/dependencies", "")
	var deps []DependencyView
	decodeBody(t, rr, &deps)
	if len(deps) != 1 || deps[0].DependsOnActivityID != a1.ID {
		t.Fatalf("unexpected dependencies %+v", deps)
	}
}

func TestAssignmentsAllowDuplicates(t *testing.T) {
	router := newTestRouter()
	project := createProject(t, router, "P")
	activity := createActivity(t, router, project.ID, "A")
	user := createUser(t, router, "Dana", "dana@example.com")

	body := `{"user_id":"` + user.ID + `"}`
	for i := 0; i < 2; i++ {
		rr := do(t, router, http.MethodPost, "/v1/activities/"+activity.ID+"/assignments", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := do(t, router, http.MethodGet, "/v1/activities/"+activity.ID+"/assignments", "")
	var assignments []AssignmentView
	decodeBody(t, rr, &assignments)
	if len(assignments) != 2 {
		t.Fatalf("expected two assignment rows got %d", len(assignments))
	}
	if assignments[0].ID == assignments[1].ID {
		t.Fatal("assignment rows must be distinct")
	}
}

func TestAssignmentUnknownUser(t *testing.T) {
	router := newTestRouter()
	project := createProject(t, router, "P")
	activity := createActivity(t, router, project.ID, "A")

	rr := do(t, router, http.MethodPost, "/v1/activities/"+activity.ID+"/assignments", `{"user_id":"ghost"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	var payload map[string]string
	decodeBody(t, rr, &payload)
	if !strings.Contains(payload["detail"], "ghost") {
		t.Fatalf("detail should name the offending id, got %q", payload["detail"])
	}
}

func TestListAssignmentsUnknownActivity(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodGet, "/v1/activities/ghost/assignments", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var assignments []AssignmentView
	decodeBody(t, rr, &assignments)
	if len(assignments) != 0 {
		t.Fatalf("expected empty list got %+v", assignments)
	}
}

func TestPatchBodyDistinguishesNullFromOmitted(t *testing.T) {
	var req UpdateProjectRequest
	if err := json.Unmarshal([]byte(`{"name":"X"}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.Description.Set {
		t.Fatal("omitted description must not be marked set")
	}

	req = UpdateProjectRequest{}
	if err := json.Unmarshal([]byte(`{"description":null}`), &req); err != nil {
		t.Fatal(err)
	}
	if !req.Description.Set || req.Description.Value != nil {
		t.Fatalf("explicit null must be set with nil value: %+v", req.Description)
	}

	req = UpdateProjectRequest{}
	if err := json.Unmarshal([]byte(`{"description":"text"}`), &req); err != nil {
		t.Fatal(err)
	}
	if !req.Description.Set || req.Description.Value == nil || *req.Description.Value != "text" {
		t.Fatalf("explicit value must round-trip: %+v", req.Description)
	}
}

func TestMalformedBody(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodPost, "/v1/projects", `{"name":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if errType(t, rr) != "invalid_request" {
		t.Fatalf("unexpected error type %q", errType(t, rr))
	}
}
