package main

import (
	"net/http"
	"os"

	"boardsync/config/database"
	"boardsync/internal/announce"
	"boardsync/internal/ticket"
	"boardsync/pkg/logger"
	"boardsync/router"
	"boardsync/socket"

	"github.com/joho/godotenv"
)

func main() {
	logger.Init()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	tickets, err := ticket.NewStore(redisURL)
	if err != nil {
		logger.Sugar.Fatalf("Failed to connect to redis: %v", err)
	}
	defer tickets.Close()

	// The hub owns every project's presence and board channels. Node events
	// are mirrored into the announcements feed best-effort.
	hub := socket.NewHub(announce.NewSink(db))
	go hub.Run()
	defer hub.Close()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Sugar.Infof("boardsync listening on %s", addr)
	if err := http.ListenAndServe(addr, router.Setup(db, hub, tickets)); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
