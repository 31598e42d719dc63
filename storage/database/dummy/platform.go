package dummydb

import (
	"context"

	"github.com/edulab/publication/core/publication"
)

type membershipProvider struct {
	data *PlatformData
}

var _ publication.MembershipProvider = (*membershipProvider)(nil) // interface compliance check

func NewMembershipProvider(db *DB) *membershipProvider {
	return &membershipProvider{data: db.platform}
}

func (p *membershipProvider) GroupsForUser(_ context.Context, _, userID, _ int) ([]int, error) {
	p.data.RLock()
	defer p.data.RUnlock()
	return p.data.UserGroups[userID], nil
}

func (p *membershipProvider) Groups(_ context.Context, courseID, _ int) ([]int, error) {
	p.data.RLock()
	defer p.data.RUnlock()
	return p.data.Groups[courseID], nil
}

func (p *membershipProvider) GroupMembers(_ context.Context, _, groupID int) ([]int, error) {
	p.data.RLock()
	defer p.data.RUnlock()
	return p.data.Members[groupID], nil
}

func (p *membershipProvider) EnrolledUserIDs(_ context.Context, courseID int) ([]int, error) {
	p.data.RLock()
	defer p.data.RUnlock()
	return p.data.Enrolled[courseID], nil
}

func (p *membershipProvider) UserAddress(_ context.Context, userID int) (string, error) {
	p.data.RLock()
	defer p.data.RUnlock()

	if addr, ok := p.data.Addresses[userID]; ok {
		return addr, nil
	}
	return "", publication.ErrNotFound
}

func (p *membershipProvider) GraderAddresses(_ context.Context, courseID int) ([]string, error) {
	p.data.RLock()
	defer p.data.RUnlock()
	return p.data.Graders[courseID], nil
}

type importSource struct {
	data *PlatformData
}

var _ publication.ImportSource = (*importSource)(nil) // interface compliance check

func NewImportSource(db *DB) *importSource {
	return &importSource{data: db.platform}
}

func (s *importSource) Assignment(_ context.Context, id int) (publication.Assignment, error) {
	s.data.RLock()
	defer s.data.RUnlock()

	if asg, ok := s.data.Assignments[id]; ok {
		return asg, nil
	}
	return publication.Assignment{}, publication.ErrNotFound
}

func (s *importSource) Submissions(_ context.Context, assignmentID int) ([]publication.ImportedSubmission, error) {
	s.data.RLock()
	defer s.data.RUnlock()
	return s.data.Submissions[assignmentID], nil
}

type completionTracker struct {
	data *PlatformData
}

var _ publication.CompletionTracker = (*completionTracker)(nil) // interface compliance check

func NewCompletionTracker(db *DB) *completionTracker {
	return &completionTracker{data: db.platform}
}

func (t *completionTracker) UpdateState(_ context.Context, publicationID, userID int, state publication.CompletionState) error {
	t.data.Lock()
	defer t.data.Unlock()
	t.data.Completion[[2]int{publicationID, userID}] = state
	return nil
}
