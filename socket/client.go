package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"boardsync/internal/project/model"
	"boardsync/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the frontend dev server
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	ProjectID string
	UserID    string
	Role      string
	Send      chan []byte
}

// ServeWs runs the membership gate, upgrades the connection and hands the
// client to the hub. The hub itself never sees an unauthorized subscriber.
func ServeWs(hub *Hub, gate MembershipGate, w http.ResponseWriter, r *http.Request, userID string) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		http.Error(w, "Missing projectId parameter", http.StatusBadRequest)
		return
	}

	access, role, err := gate.Resolve(projectID, userID)
	if err != nil {
		logger.Sugar.Warnf("Connection rejected: project %s not found: %v", projectID, err)
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	if access == model.AccessDenied {
		logger.Sugar.Warnf("Connection rejected: user %s has no access to project %s", userID, projectID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:       hub,
		Conn:      conn,
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		Send:      make(chan []byte, 256),
	}

	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Set server-authoritative fields to prevent spoofing.
		msg.ProjectID = c.ProjectID
		msg.UserID = c.UserID

		switch msg.Type {
		case CursorType:
			var cursor model.CursorEvent
			if err := json.Unmarshal(msg.Payload, &cursor); err != nil {
				logger.Sugar.Warnf("Dropping malformed cursor event from %s: %v", c.UserID, err)
				continue
			}
		case NodeType:
			var event model.NodeEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil || !event.Valid() {
				logger.Sugar.Warnf("Dropping malformed node event from %s", c.UserID)
				continue
			}
			// Viewers can watch and point, not mutate the board.
			if c.Role == model.RoleViewer {
				logger.Sugar.Warnf("Permission denied: viewer %s tried to mutate project %s", c.UserID, c.ProjectID)
				continue
			}
		default:
			logger.Sugar.Warnf("Dropping message of unknown type %q from %s", msg.Type, c.UserID)
			continue
		}

		c.Hub.Broadcast <- msg
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Send ping every 30s
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
