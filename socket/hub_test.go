package socket_test

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boardsync/internal/project/repository"
	"boardsync/internal/project/service"
	"boardsync/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var projectColumns = []string{
	"id", "owner_id", "title", "thumbnail_url", "collaborator_ids", "member_roles", "polls",
	"flowchart_data", "mindmap_data", "timeline_data", "created_at", "updated_at",
}

// expectProjectLoad queues the membership-gate query ServeWs triggers on
// each connection attempt.
func expectProjectLoad(mock sqlmock.Sqlmock, projectID, ownerID, collaborators, roles string) {
	mock.ExpectQuery(`SELECT (.+) FROM projects WHERE id = \$1`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(projectColumns).AddRow(
			projectID, ownerID, "Board", "", collaborators, roles, `[]`,
			"", "", "", time.Now(), time.Now()))
}

func setupHubServer(t *testing.T) (*socket.Hub, sqlmock.Sqlmock, string) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gate := service.NewProjectService(repository.NewProjectRepository(db), nil)
	hub := socket.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Close)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// For simplicity, tests pass the user ID directly.
		userID := r.URL.Query().Get("user_id")
		socket.ServeWs(hub, gate, w, r, userID)
	}))
	t.Cleanup(server.Close)

	return hub, mock, "ws" + strings.TrimPrefix(server.URL, "http")
}

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) socket.WSMessage {
	t.Helper()
	var msg socket.WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func readPresence(t *testing.T, conn *websocket.Conn) []socket.UserStatus {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, socket.PresenceType, msg.Type)
	var statuses []socket.UserStatus
	require.NoError(t, json.Unmarshal(msg.Payload, &statuses))
	return statuses
}

func TestHubFanOutIsScopedToProjectChannels(t *testing.T) {
	_, mock, wsURL := setupHubServer(t)

	expectProjectLoad(mock, "p1", "user1", `["user2"]`, `{}`)
	expectProjectLoad(mock, "p1", "user1", `["user2"]`, `{}`)
	expectProjectLoad(mock, "q1", "user3", `[]`, `{}`)

	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=p1&user_id=user1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()
	assert.Len(t, readPresence(t, conn1), 1)

	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=p1&user_id=user2", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()
	assert.Len(t, readPresence(t, conn2), 2)
	assert.Len(t, readPresence(t, conn1), 2)

	conn3, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=q1&user_id=user3", nil)
	require.NoError(t, err, "Client 3 failed to connect")
	defer conn3.Close()
	assert.Len(t, readPresence(t, conn3), 1)

	// Cursor event from client 2 reaches every subscriber of p1's cursors
	// channel, sender included. Client 3 is on a different project.
	cursorPayload := `{"x":10.5,"y":20.25,"color":"#ff0000"}`
	msgBytes, _ := json.Marshal(socket.WSMessage{
		Type:    socket.CursorType,
		Payload: json.RawMessage(cursorPayload),
	})
	require.NoError(t, conn2.WriteMessage(websocket.TextMessage, msgBytes))

	got := readMessage(t, conn1)
	assert.Equal(t, socket.CursorType, got.Type)
	assert.Equal(t, "user2", got.UserID, "broadcast carries the server-authoritative sender")
	assert.JSONEq(t, cursorPayload, string(got.Payload))

	echo := readMessage(t, conn2)
	assert.Equal(t, socket.CursorType, echo.Type, "fan-out is origin-agnostic: the sender hears itself")

	// A malformed node event is dropped; the following valid one is not.
	badNode, _ := json.Marshal(socket.WSMessage{
		Type:    socket.NodeType,
		Payload: json.RawMessage(`{"type":"BOGUS","nodeId":"n1"}`),
	})
	require.NoError(t, conn2.WriteMessage(websocket.TextMessage, badNode))

	nodePayload := `{"type":"ADD","nodeId":"n1","data":{"label":"Start","x":1,"y":2}}`
	goodNode, _ := json.Marshal(socket.WSMessage{
		Type:    socket.NodeType,
		Payload: json.RawMessage(nodePayload),
	})
	require.NoError(t, conn2.WriteMessage(websocket.TextMessage, goodNode))

	got = readMessage(t, conn1)
	assert.Equal(t, socket.NodeType, got.Type)
	assert.JSONEq(t, nodePayload, string(got.Payload))
	_ = readMessage(t, conn2) // sender's echo of the node event

	// Client 3 saw its own roster and nothing else.
	conn3.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn3.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout(), "client on another project must not receive p1 traffic")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViewersCannotMutateTheBoard(t *testing.T) {
	_, mock, wsURL := setupHubServer(t)

	expectProjectLoad(mock, "p1", "owner1", `["viewer1"]`, `{"viewer1":"VIEWER"}`)
	expectProjectLoad(mock, "p1", "owner1", `["viewer1"]`, `{"viewer1":"VIEWER"}`)

	owner, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=p1&user_id=owner1", nil)
	require.NoError(t, err)
	defer owner.Close()
	readPresence(t, owner)

	viewer, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=p1&user_id=viewer1", nil)
	require.NoError(t, err)
	defer viewer.Close()
	readPresence(t, viewer)
	readPresence(t, owner)

	node, _ := json.Marshal(socket.WSMessage{
		Type:    socket.NodeType,
		Payload: json.RawMessage(`{"type":"DELETE","nodeId":"n1","data":{}}`),
	})
	require.NoError(t, viewer.WriteMessage(websocket.TextMessage, node))

	cursor, _ := json.Marshal(socket.WSMessage{
		Type:    socket.CursorType,
		Payload: json.RawMessage(`{"x":1,"y":2,"color":"#00ff00"}`),
	})
	require.NoError(t, viewer.WriteMessage(websocket.TextMessage, cursor))

	// The node event was swallowed; the cursor event is the next delivery.
	got := readMessage(t, owner)
	assert.Equal(t, socket.CursorType, got.Type)
	assert.Equal(t, "viewer1", got.UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollUpdatesReachBoardSubscribers(t *testing.T) {
	hub, mock, wsURL := setupHubServer(t)

	expectProjectLoad(mock, "p1", "user1", `[]`, `{}`)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=p1&user_id=user1", nil)
	require.NoError(t, err)
	defer conn.Close()
	readPresence(t, conn)

	// The service publishes poll mutations through the same entry point.
	pollPayload := `{"id":"poll1","question":"Q","options":["A","B"],"votes":{"user1":[0]},"active":true}`
	hub.Publish(socket.WSMessage{
		Type:      socket.PollType,
		ProjectID: "p1",
		UserID:    "user1",
		Payload:   json.RawMessage(pollPayload),
	})

	got := readMessage(t, conn)
	assert.Equal(t, socket.PollType, got.Type)
	assert.JSONEq(t, pollPayload, string(got.Payload))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionRejectedWithoutMembership(t *testing.T) {
	_, mock, wsURL := setupHubServer(t)

	expectProjectLoad(mock, "p1", "user1", `[]`, `{}`)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws?projectId=p1&user_id=mallory", nil)
	require.Error(t, err, "outsiders must not reach the subscriber registry")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}
