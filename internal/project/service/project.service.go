package service

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"boardsync/internal/project/model"
	"boardsync/internal/project/repository"
	"boardsync/socket"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ProjectService struct {
	Repo *repository.ProjectRepository
	Hub  *socket.Hub

	// Serializes mutations per project so concurrent votes on one poll
	// cannot drop each other's writes. Cross-project calls never contend.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewProjectService(repo *repository.ProjectRepository, hub *socket.Hub) *ProjectService {
	return &ProjectService{
		Repo:  repo,
		Hub:   hub,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *ProjectService) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}

func (s *ProjectService) load(projectID string) (*model.Project, error) {
	project, err := s.Repo.GetByID(projectID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) CreateProject(ownerID, title, thumbnailURL string) (*model.Project, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrBadRequest)
	}

	now := time.Now()
	project := &model.Project{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           title,
		ThumbnailURL:    thumbnailURL,
		CollaboratorIDs: []string{},
		MemberRoles:     map[string]string{},
		Polls:           []model.Poll{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(project); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: project id already exists", ErrConflict)
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) GetProject(projectID, actorID string) (*model.Project, error) {
	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if project.AccessFor(actorID) == model.AccessDenied {
		return nil, fmt.Errorf("%w: user %s on project %s", ErrDenied, actorID, projectID)
	}
	return project, nil
}

func (s *ProjectService) ListProjects(userID string) ([]model.Project, error) {
	return s.Repo.ListByUser(userID)
}

// CanAccess is the membership gate: owner id match wins, collaborator
// membership second, everything else is denied.
func (s *ProjectService) CanAccess(projectID, actorID string) (model.Access, error) {
	access, _, err := s.Resolve(projectID, actorID)
	return access, err
}

// Resolve implements socket.MembershipGate: access level plus the actor's
// role tag in one project load. Owners and untagged collaborators edit.
func (s *ProjectService) Resolve(projectID, actorID string) (model.Access, string, error) {
	project, err := s.load(projectID)
	if err != nil {
		return model.AccessDenied, "", err
	}
	access := project.AccessFor(actorID)
	if access == model.AccessDenied {
		return access, "", nil
	}
	role := project.MemberRoles[actorID]
	if access == model.AccessOwner || role == "" {
		role = model.RoleEditor
	}
	return access, role, nil
}

// AddMember resolves a human-entered identifier via the identity lookup,
// adds the user idempotently and always overwrites their role tag.
func (s *ProjectService) AddMember(projectID, actorID, identifier, role string) (*model.Project, error) {
	if role == "" {
		role = model.RoleEditor
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the owner can add members", ErrDenied)
	}

	memberID, err := s.Repo.FindUserID(identifier)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, identifier)
	}
	if err != nil {
		return nil, err
	}

	if project.AccessFor(memberID) == model.AccessDenied {
		project.CollaboratorIDs = append(project.CollaboratorIDs, memberID)
	}
	project.MemberRoles[memberID] = role

	if err := s.Repo.Save(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) CreatePoll(projectID, creatorID, question string, options []string, multiSelect bool) (*model.Poll, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrBadRequest)
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: a poll needs at least two options", ErrBadRequest)
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}

	poll := model.Poll{
		ID:          uuid.NewString(),
		Question:    question,
		Options:     options,
		Votes:       map[string]model.VoteSet{},
		CreatedBy:   creatorID,
		CreatedAt:   time.Now(),
		Active:      true,
		MultiSelect: multiSelect,
	}
	project.Polls = append(project.Polls, poll)

	if err := s.Repo.Save(project); err != nil {
		return nil, err
	}
	s.broadcastPoll(projectID, creatorID, &poll)
	return &poll, nil
}

// Vote records one voter's choice. Single-select replaces the voter's whole
// selection; multi-select toggles the option. An emptied selection removes
// the voter's entry, the ledger never stores empty sets.
func (s *ProjectService) Vote(projectID, pollID, voterID string, optionIndex int) (*model.Poll, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	poll := project.PollByID(pollID)
	if poll == nil {
		return nil, fmt.Errorf("%w: poll %s", ErrNotFound, pollID)
	}
	if !poll.Active {
		return nil, fmt.Errorf("%w: poll %s", ErrPollClosed, pollID)
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return nil, fmt.Errorf("%w: option index %d out of range", ErrBadRequest, optionIndex)
	}

	if poll.Votes == nil {
		poll.Votes = map[string]model.VoteSet{}
	}
	selection := poll.Votes[voterID]

	if poll.MultiSelect {
		if selection.Has(optionIndex) {
			selection = selection.Without(optionIndex)
		} else {
			selection = append(selection, optionIndex)
		}
	} else {
		selection = model.VoteSet{optionIndex}
	}

	if len(selection) == 0 {
		delete(poll.Votes, voterID)
	} else {
		poll.Votes[voterID] = selection
	}

	if err := s.Repo.Save(project); err != nil {
		return nil, err
	}
	s.broadcastPoll(projectID, voterID, poll)
	return poll, nil
}

// SetPollActive sets the flag; active == nil toggles it.
func (s *ProjectService) SetPollActive(projectID, pollID, actorID string, active *bool) (*model.Poll, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	poll := project.PollByID(pollID)
	if poll == nil {
		return nil, fmt.Errorf("%w: poll %s", ErrNotFound, pollID)
	}

	if active == nil {
		poll.Active = !poll.Active
	} else {
		poll.Active = *active
	}

	if err := s.Repo.Save(project); err != nil {
		return nil, err
	}
	s.broadcastPoll(projectID, actorID, poll)
	return poll, nil
}

func (s *ProjectService) DeletePoll(projectID, pollID, actorID string) (*model.Project, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}

	kept := project.Polls[:0]
	removed := false
	for _, poll := range project.Polls {
		if poll.ID == pollID {
			removed = true
			continue
		}
		kept = append(kept, poll)
	}
	if !removed {
		return nil, fmt.Errorf("%w: poll %s", ErrNotFound, pollID)
	}
	project.Polls = kept

	if err := s.Repo.Save(project); err != nil {
		return nil, err
	}
	s.broadcastPoll(projectID, actorID, &model.Poll{ID: pollID})
	return project, nil
}

// SaveBoardData persists whichever tool blobs the request carries. This is
// the durability path for node events; the blobs are opaque to the server
// and last write wins.
func (s *ProjectService) SaveBoardData(actorID string, req model.SaveBoardRequest) (*model.Project, error) {
	lock := s.projectLock(req.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.load(req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.AccessFor(actorID) == model.AccessDenied {
		return nil, fmt.Errorf("%w: user %s on project %s", ErrDenied, actorID, req.ProjectID)
	}

	if req.FlowchartData != nil {
		project.FlowchartData = *req.FlowchartData
	}
	if req.MindmapData != nil {
		project.MindmapData = *req.MindmapData
	}
	if req.TimelineData != nil {
		project.TimelineData = *req.TimelineData
	}

	if err := s.Repo.Save(project); err != nil {
		return nil, err
	}
	return project, nil
}

// broadcastPoll pushes the updated poll onto the project's board channel so
// open clients see results without refetching.
func (s *ProjectService) broadcastPoll(projectID, userID string, poll *model.Poll) {
	if s.Hub == nil {
		return
	}
	payload, _ := json.Marshal(poll)
	s.Hub.Publish(socket.WSMessage{
		Type:      socket.PollType,
		ProjectID: projectID,
		UserID:    userID,
		Payload:   payload,
	})
}
