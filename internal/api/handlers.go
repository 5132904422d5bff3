// Package api exposes the HTTP surface of the tracker service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"example.com/tracker/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	log     zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, log zerolog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Routes wires endpoints to the router. Reads are GET and have no side
// effects; every write is a POST, PATCH, or PUT.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.healthcheck)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.createUser)
		r.Get("/users", h.listUsers)

		r.Post("/projects", h.createProject)
		r.Get("/projects", h.listProjects)
		r.Patch("/projects/{projectID}", h.updateProject)
		r.Get("/projects/{projectID}/activities", h.listProjectActivities)

		r.Post("/activities", h.createActivity)
		r.Patch("/activities/{activityID}", h.updateActivity)
		r.Put("/activities/{activityID}/status", h.updateActivityStatus)

		r.Post("/activities/{activityID}/assignments", h.assignUser)
		r.Get("/activities/{activityID}/assignments", h.listAssignments)
		r.Post("/activities/{activityID}/dependencies", h.createDependency)
		r.Get("/activities/{activityID}/dependencies", h.listDependencies)
	})
}

// healthcheck reports a static status token plus the current server time.
func (h *Handler) healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), domain.CreateUserInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(*user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	project, err := h.service.CreateProject(r.Context(), domain.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectView(*project))
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, toProjectView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := domain.ProjectPatch{
		Name:           req.Name,
		Description:    req.Description.Value,
		DescriptionSet: req.Description.Set,
	}
	project, err := h.service.UpdateProject(r.Context(), chi.URLParam(r, "projectID"), patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(*project))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if !h.decode(w, r, &req) {
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      domain.ActivityStatus(req.Status),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) listProjectActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.service.ListProjectActivities(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	views := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	var req UpdateActivityRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := domain.ActivityPatch{
		Name:           req.Name,
		Description:    req.Description.Value,
		DescriptionSet: req.Description.Set,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if req.Status != nil {
		status := domain.ActivityStatus(*req.Status)
		patch.Status = &status
	}

	activity, err := h.service.UpdateActivity(r.Context(), chi.URLParam(r, "activityID"), patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) updateActivityStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateActivityStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	activity, err := h.service.UpdateActivityStatus(r.Context(), chi.URLParam(r, "activityID"), domain.ActivityStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) assignUser(w http.ResponseWriter, r *http.Request) {
	var req AssignUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	assignment, err := h.service.AssignUserToActivity(r.Context(), chi.URLParam(r, "activityID"), req.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentView(*assignment))
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.ListActivityAssignments(r.Context(), chi.URLParam(r, "activityID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	views := make([]AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, toAssignmentView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createDependency(w http.ResponseWriter, r *http.Request) {
	var req CreateDependencyRequest
	if !h.decode(w, r, &req) {
		return
	}

	dependency, err := h.service.CreateActivityDependency(r.Context(), chi.URLParam(r, "activityID"), req.DependsOnActivityID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDependencyView(*dependency))
}

func (h *Handler) listDependencies(w http.ResponseWriter, r *http.Request) {
	dependencies, err := h.service.ListActivityDependencies(r.Context(), chi.URLParam(r, "activityID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	views := make([]DependencyView, 0, len(dependencies))
	for _, d := range dependencies {
		views = append(views, toDependencyView(d))
	}
	writeJSON(w, http.StatusOK, views)
}

// decode parses and validates the request body, writing the error response
// itself when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationMessage(err))
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrSelfDependency):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		// Store failures are terminal for the call: log and resurface.
		h.log.Error().Err(err).Msg("store operation failed")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
