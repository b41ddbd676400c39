package router

import (
	"database/sql"
	"encoding/json"
	"net/http"

	projectHandler "boardsync/internal/project"
	"boardsync/internal/project/model"
	"boardsync/internal/project/repository"
	"boardsync/internal/project/service"
	"boardsync/internal/ticket"
	"boardsync/middleware"
	"boardsync/pkg/logger"
	"boardsync/socket"
)

func Setup(db *sql.DB, hub *socket.Hub, tickets *ticket.Store) http.Handler {
	mux := http.NewServeMux()

	repo := repository.NewProjectRepository(db)
	svc := service.NewProjectService(repo, hub)
	handler := projectHandler.NewHandler(svc)
	auth := middleware.AuthMiddleware

	// WebSocket. A one-time ticket takes precedence over a JWT so the token
	// never has to appear in the URL.
	wsJWT := auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(hub, svc, w, r, userID)
	}))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if token := r.URL.Query().Get("ticket"); token != "" {
			userID, err := tickets.Redeem(r.Context(), token)
			if err != nil {
				http.Error(w, "Unauthorized: Invalid or expired ticket", http.StatusUnauthorized)
				return
			}
			socket.ServeWs(hub, svc, w, r, userID)
			return
		}
		wsJWT.ServeHTTP(w, r)
	})

	mux.Handle("/api/ws-ticket", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID := r.Context().Value(middleware.UserIDKey).(string)
		token, err := tickets.Issue(r.Context(), userID)
		if err != nil {
			logger.Sugar.Errorf("Failed to issue ws ticket: %v", err)
			http.Error(w, "Failed to issue ticket", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.TicketResponse{Ticket: token})
	})))

	// REST API
	mux.Handle("/api/projects", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handler.CreateProject(w, r)
		default:
			handler.ListProjects(w, r)
		}
	})))
	mux.Handle("/api/projects/get", auth(http.HandlerFunc(handler.GetProject)))
	mux.Handle("/api/projects/members", auth(http.HandlerFunc(handler.AddMember)))
	mux.Handle("/api/projects/data", auth(http.HandlerFunc(handler.SaveBoardData)))
	mux.Handle("/api/projects/polls", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			handler.DeletePoll(w, r)
		default:
			handler.CreatePoll(w, r)
		}
	})))
	mux.Handle("/api/projects/polls/vote", auth(http.HandlerFunc(handler.Vote)))
	mux.Handle("/api/projects/polls/status", auth(http.HandlerFunc(handler.SetPollStatus)))

	return middleware.CORSMiddleware(mux)
}
