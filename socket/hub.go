package socket

import (
	"encoding/json"
	"sync"
	"time"

	"boardsync/internal/project/model"
	"boardsync/pkg/logger"
)

const (
	CursorType   = "CURSOR"          // User moved their cursor on the board
	NodeType     = "NODE"            // Board element added/updated/deleted
	PollType     = "POLL_UPDATE"     // Poll created, voted on, toggled or deleted
	PresenceType = "PRESENCE_UPDATE" // A user joined or left the project
)

// Channel kinds. Every project has one channel of each kind.
const (
	ChannelCursors = "cursors"
	ChannelBoard   = "board"
)

// TopicFor maps a logical (project, channel-kind) pair to its transport topic.
func TopicFor(projectID, kind string) string {
	return "project." + projectID + "." + kind
}

type WSMessage struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload"`
}

type UserStatus struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

// AuditSink receives node events best-effort. A failure is the hub's to log,
// never the publisher's.
type AuditSink interface {
	Record(projectID, userID string, event model.NodeEvent) error
}

// MembershipGate decides whether an actor may join a project's channels.
// Authorization happens before a subscribe ever reaches the hub.
type MembershipGate interface {
	Resolve(projectID, actorID string) (model.Access, string, error)
}

type Hub struct {
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client

	sink AuditSink

	mu       sync.Mutex
	topics   map[string]map[*Client]bool
	presence map[string]map[string]UserStatus // projectID -> userID -> status
	done     chan struct{}
}

func NewHub(sink AuditSink) *Hub {
	return &Hub{
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		sink:       sink,
		topics:     make(map[string]map[*Client]bool),
		presence:   make(map[string]map[string]UserStatus),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			// Both channels of the project; subscribing twice is a no-op.
			h.subscribe(TopicFor(client.ProjectID, ChannelCursors), client)
			h.subscribe(TopicFor(client.ProjectID, ChannelBoard), client)
			if h.presence[client.ProjectID] == nil {
				h.presence[client.ProjectID] = make(map[string]UserStatus)
			}
			h.presence[client.ProjectID][client.UserID] = UserStatus{UserID: client.UserID, LastSeen: time.Now()}
			h.mu.Unlock()

			h.broadcastPresenceUpdate(client.ProjectID)

		case client := <-h.Unregister:
			h.mu.Lock()
			registered := h.unsubscribe(TopicFor(client.ProjectID, ChannelCursors), client)
			h.unsubscribe(TopicFor(client.ProjectID, ChannelBoard), client)
			if registered {
				close(client.Send)
				delete(h.presence[client.ProjectID], client.UserID)
				if len(h.presence[client.ProjectID]) == 0 {
					delete(h.presence, client.ProjectID)
					logger.Sugar.Infof("Closed empty project channels: %s", client.ProjectID)
				}
			}
			remaining := h.presence[client.ProjectID] != nil
			h.mu.Unlock()

			// Tell the remaining users someone left, only if anyone is left.
			if registered && remaining {
				h.broadcastPresenceUpdate(client.ProjectID)
			}

		case msg := <-h.Broadcast:
			h.fanOut(msg)

		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.topics {
				for client := range clients {
					client.Conn.Close()
				}
			}
			h.topics = make(map[string]map[*Client]bool)
			h.presence = make(map[string]map[string]UserStatus)
			h.mu.Unlock()
			return
		}
	}
}

// Close tears the subscriber registry down and stops the run loop.
func (h *Hub) Close() {
	close(h.done)
}

// Publish hands a message to the run loop for fan-out. Safe to call from any
// goroutine.
func (h *Hub) Publish(msg WSMessage) {
	h.Broadcast <- msg
}

// fanOut delivers the message unchanged to every subscriber of the target
// channel, the sender included. Echo-suppression, if wanted, is the caller's
// problem.
func (h *Hub) fanOut(msg WSMessage) {
	topic := TopicFor(msg.ProjectID, channelKindFor(msg.Type))

	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		return
	}

	// Snapshot the subscriber set so no I/O happens under the lock.
	h.mu.Lock()
	clientsToSend := make([]*Client, 0, len(h.topics[topic]))
	for client := range h.topics[topic] {
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	for _, client := range clientsToSend {
		select {
		case client.Send <- payload:
		default:
			// Lagging subscriber; drop the message rather than block the hub.
			logger.Sugar.Warnf("Client %s's send buffer is full, dropping message", client.UserID)
		}
	}

	if msg.Type == NodeType && h.sink != nil {
		var event model.NodeEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return
		}
		go func() {
			if err := h.sink.Record(msg.ProjectID, msg.UserID, event); err != nil {
				logger.Sugar.Warnf("Audit sink failed for project %s: %v", msg.ProjectID, err)
			}
		}()
	}
}

func channelKindFor(msgType string) string {
	switch msgType {
	case NodeType, PollType:
		return ChannelBoard
	default:
		return ChannelCursors
	}
}

// subscribe and unsubscribe require h.mu held. A channel exists from the
// first subscribe to the last unsubscribe.
func (h *Hub) subscribe(topic string, client *Client) {
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
}

func (h *Hub) unsubscribe(topic string, client *Client) bool {
	clients, ok := h.topics[topic]
	if !ok || !clients[client] {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.topics, topic)
	}
	return true
}

func (h *Hub) broadcastPresenceUpdate(projectID string) {
	h.mu.Lock()
	statuses := make([]UserStatus, 0, len(h.presence[projectID]))
	for _, status := range h.presence[projectID] {
		statuses = append(statuses, status)
	}
	h.mu.Unlock()

	payload, err := json.Marshal(statuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence update: %v", err)
		return
	}
	h.fanOut(WSMessage{Type: PresenceType, ProjectID: projectID, Payload: payload})
}
