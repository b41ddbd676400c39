// Package announce writes board activity into the announcements feed.
// Everything here is best-effort: a failed insert is logged by the caller
// and never fails the operation that produced the event.
package announce

import (
	"database/sql"
	"fmt"

	"boardsync/internal/project/model"
	"boardsync/pkg/logger"

	"github.com/google/uuid"
)

type Sink struct {
	DB *sql.DB
}

func NewSink(db *sql.DB) *Sink {
	return &Sink{DB: db}
}

// Record folds one node event into an announcement row.
func (s *Sink) Record(projectID, userID string, event model.NodeEvent) error {
	verb := "changed"
	switch event.Type {
	case model.NodeAdd:
		verb = "added"
	case model.NodeUpdate:
		verb = "updated"
	case model.NodeDelete:
		verb = "removed"
	}
	content := fmt.Sprintf("%s %s node %s", userID, verb, event.NodeID)

	_, err := s.DB.Exec(`INSERT INTO announcements (id, project_id, title, content, author_name, date)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.NewString(), projectID, "Board activity", content, userID)
	if err != nil {
		logger.Sugar.Warnf("Failed to record announcement for project %s: %v", projectID, err)
	}
	return err
}
