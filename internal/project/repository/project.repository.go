package repository

import (
	"database/sql"
	"encoding/json"

	"boardsync/internal/project/model"
	"boardsync/pkg/logger"
)

type ProjectRepository struct {
	DB *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{DB: db}
}

const projectColumns = `id, owner_id, title, thumbnail_url, collaborator_ids, member_roles, polls,
		flowchart_data, mindmap_data, timeline_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*model.Project, error) {
	var p model.Project
	var collaborators, roles, polls []byte
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.ThumbnailURL, &collaborators, &roles, &polls,
		&p.FlowchartData, &p.MindmapData, &p.TimelineData, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(collaborators, &p.CollaboratorIDs); err != nil {
		logger.Sugar.Warnf("Bad collaborator_ids for project %s: %v", p.ID, err)
	}
	if err := json.Unmarshal(roles, &p.MemberRoles); err != nil {
		logger.Sugar.Warnf("Bad member_roles for project %s: %v", p.ID, err)
	}
	if err := json.Unmarshal(polls, &p.Polls); err != nil {
		logger.Sugar.Warnf("Bad polls for project %s: %v", p.ID, err)
	}
	if p.CollaboratorIDs == nil {
		p.CollaboratorIDs = []string{}
	}
	if p.MemberRoles == nil {
		p.MemberRoles = map[string]string{}
	}
	if p.Polls == nil {
		p.Polls = []model.Poll{}
	}
	return &p, nil
}

func (r *ProjectRepository) GetByID(projectID string) (*model.Project, error) {
	row := r.DB.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	p, err := scanProject(row)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to load project %s: %v", projectID, err)
	}
	return p, err
}

func (r *ProjectRepository) Create(p *model.Project) error {
	collaborators, roles, polls := marshalEmbedded(p)
	_, err := r.DB.Exec(`INSERT INTO projects
		(id, owner_id, title, thumbnail_url, collaborator_ids, member_roles, polls,
		 flowchart_data, mindmap_data, timeline_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.OwnerID, p.Title, p.ThumbnailURL, collaborators, roles, polls,
		p.FlowchartData, p.MindmapData, p.TimelineData, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create project %s: %v", p.ID, err)
	}
	return err
}

// Save writes back every mutable field of the project in one statement, so a
// caller holding the per-project lock persists its mutation atomically.
func (r *ProjectRepository) Save(p *model.Project) error {
	collaborators, roles, polls := marshalEmbedded(p)
	_, err := r.DB.Exec(`UPDATE projects SET title = $1, thumbnail_url = $2, collaborator_ids = $3,
		member_roles = $4, polls = $5, flowchart_data = $6, mindmap_data = $7, timeline_data = $8,
		updated_at = NOW() WHERE id = $9`,
		p.Title, p.ThumbnailURL, collaborators, roles, polls,
		p.FlowchartData, p.MindmapData, p.TimelineData, p.ID)
	if err != nil {
		logger.Sugar.Errorf("Failed to save project %s: %v", p.ID, err)
	}
	return err
}

func (r *ProjectRepository) ListByUser(userID string) ([]model.Project, error) {
	member, _ := json.Marshal([]string{userID})
	rows, err := r.DB.Query(`SELECT `+projectColumns+` FROM projects
		WHERE owner_id = $1 OR collaborator_ids @> $2 ORDER BY updated_at DESC`,
		userID, string(member))
	if err != nil {
		logger.Sugar.Errorf("Failed to list projects for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			continue
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// FindUserID resolves a human-entered identifier to a canonical user id.
// Display name is tried first, then email or the id itself. Returns
// sql.ErrNoRows when nothing matches.
func (r *ProjectRepository) FindUserID(identifier string) (string, error) {
	var userID string
	err := r.DB.QueryRow(`SELECT id FROM users WHERE display_name = $1`, identifier).Scan(&userID)
	if err == sql.ErrNoRows {
		err = r.DB.QueryRow(`SELECT id FROM users WHERE email = $1 OR id = $1`, identifier).Scan(&userID)
	}
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to resolve user %q: %v", identifier, err)
	}
	return userID, err
}

// lib/pq wants jsonb parameters as strings, not []byte.
func marshalEmbedded(p *model.Project) (string, string, string) {
	collaborators, _ := json.Marshal(p.CollaboratorIDs)
	roles, _ := json.Marshal(p.MemberRoles)
	polls, _ := json.Marshal(p.Polls)
	return string(collaborators), string(roles), string(polls)
}
