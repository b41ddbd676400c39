package project

import (
	"encoding/json"
	"errors"
	"net/http"

	"boardsync/internal/project/model"
	"boardsync/internal/project/service"
	"boardsync/middleware"
	"boardsync/pkg/logger"
)

type Handler struct {
	Service *service.ProjectService
}

func NewHandler(svc *service.ProjectService) *Handler {
	return &Handler{Service: svc}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps the service error classes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrPollClosed), errors.Is(err, service.ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		logger.Sugar.Errorf("Unhandled service error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	var req model.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project, err := h.Service.CreateProject(userID, req.Title, req.ThumbnailURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, project)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	projects, err := h.Service.ListProjects(userID)
	if err != nil {
		logger.Sugar.Errorf("Error listing projects: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, projects)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		http.Error(w, "Missing projectId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	project, err := h.Service.GetProject(projectID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, project)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" || req.Identifier == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	project, err := h.Service.AddMember(req.ProjectID, userID, req.Identifier, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, project)
}

func (h *Handler) SaveBoardData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.SaveBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	project, err := h.Service.SaveBoardData(userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, project)
}

func (h *Handler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	poll, err := h.Service.CreatePoll(req.ProjectID, userID, req.Question, req.Options, req.MultiSelect)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, poll)
}

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" || req.PollID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OptionIndex == nil {
		http.Error(w, "optionIndex is required", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	poll, err := h.Service.Vote(req.ProjectID, req.PollID, userID, *req.OptionIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, poll)
}

func (h *Handler) SetPollStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PollStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" || req.PollID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	poll, err := h.Service.SetPollActive(req.ProjectID, req.PollID, userID, req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, poll)
}

func (h *Handler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := r.URL.Query().Get("projectId")
	pollID := r.URL.Query().Get("pollId")
	if projectID == "" || pollID == "" {
		http.Error(w, "Missing projectId or pollId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	project, err := h.Service.DeletePoll(projectID, pollID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, project)
}
