package model

import (
	"time"
)

// Role tags are free-form strings; these two are the ones the product uses.
const (
	RoleEditor = "EDITOR"
	RoleViewer = "VIEWER"
)

// Access is the result of the membership gate for one actor on one project.
type Access string

const (
	AccessOwner        Access = "OWNER"
	AccessCollaborator Access = "COLLABORATOR"
	AccessDenied       Access = "DENIED"
)

type Poll struct {
	ID          string             `json:"id"`
	Question    string             `json:"question"`
	Options     []string           `json:"options"`
	Votes       map[string]VoteSet `json:"votes"`
	CreatedBy   string             `json:"createdBy"`
	CreatedAt   time.Time          `json:"createdAt"`
	Active      bool               `json:"active"`
	MultiSelect bool               `json:"multiSelect"`
}

type Project struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	Title           string            `json:"title"`
	ThumbnailURL    string            `json:"thumbnailUrl,omitempty"`
	CollaboratorIDs []string          `json:"collaboratorIds"`
	MemberRoles     map[string]string `json:"memberRoles"`
	Polls           []Poll            `json:"polls"`
	FlowchartData   string            `json:"flowchartData,omitempty"`
	MindmapData     string            `json:"mindmapData,omitempty"`
	TimelineData    string            `json:"timelineData,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// AccessFor classifies one actor: owner match wins, then collaborator
// membership, otherwise denied.
func (p *Project) AccessFor(userID string) Access {
	if p.OwnerID == userID {
		return AccessOwner
	}
	for _, id := range p.CollaboratorIDs {
		if id == userID {
			return AccessCollaborator
		}
	}
	return AccessDenied
}

// PollByID returns a pointer into p.Polls so callers can mutate in place.
func (p *Project) PollByID(pollID string) *Poll {
	for i := range p.Polls {
		if p.Polls[i].ID == pollID {
			return &p.Polls[i]
		}
	}
	return nil
}

type CreateProjectRequest struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type AddMemberRequest struct {
	ProjectID  string `json:"projectId"`
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
}

type CreatePollRequest struct {
	ProjectID   string   `json:"projectId"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	MultiSelect bool     `json:"multiSelect"`
}

type VoteRequest struct {
	ProjectID   string `json:"projectId"`
	PollID      string `json:"pollId"`
	OptionIndex *int   `json:"optionIndex"`
}

type PollStatusRequest struct {
	ProjectID string `json:"projectId"`
	PollID    string `json:"pollId"`
	// Nil means toggle, otherwise the flag is set to the given value.
	Active *bool `json:"active"`
}

type SaveBoardRequest struct {
	ProjectID     string  `json:"projectId"`
	FlowchartData *string `json:"flowchartData"`
	MindmapData   *string `json:"mindmapData"`
	TimelineData  *string `json:"timelineData"`
}

type TicketResponse struct {
	Ticket string `json:"ticket"`
}

// CursorEvent is a transient presence update; it is republished verbatim and
// never persisted.
type CursorEvent struct {
	UserID    string  `json:"userId"`
	ProjectID string  `json:"projectId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
}

// Node mutation kinds.
const (
	NodeAdd    = "ADD"
	NodeUpdate = "UPDATE"
	NodeDelete = "DELETE"
)

// NodeEvent describes one mutation of a board element. The data payload is
// open-ended; its effect on board state is persisted by the board save path.
type NodeEvent struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"projectId"`
	NodeID    string         `json:"nodeId"`
	Data      map[string]any `json:"data"`
}

// Valid reports whether the event names a known mutation kind and a node.
func (e *NodeEvent) Valid() bool {
	switch e.Type {
	case NodeAdd, NodeUpdate, NodeDelete:
		return e.NodeID != ""
	}
	return false
}
