package publication

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// In-memory fakes backing the package tests; the real adapters live in
// storage/database.

type fakeRepo struct {
	seq       int
	instances map[int]Instance
}

func newFakeRepo() *fakeRepo { return &fakeRepo{instances: make(map[int]Instance)} }

func (r *fakeRepo) CreateInstance(_ context.Context, inst Instance) (Instance, error) {
	r.seq++
	inst.ID = r.seq
	r.instances[inst.ID] = inst
	return inst, nil
}

func (r *fakeRepo) GetInstance(_ context.Context, id int) (Instance, error) {
	if inst, ok := r.instances[id]; ok {
		return inst, nil
	}
	return Instance{}, ErrNotFound
}

func (r *fakeRepo) QueryInstancesByCourse(_ context.Context, courseID int) ([]Instance, error) {
	return r.query(func(inst Instance) bool { return inst.CourseID == courseID }), nil
}

func (r *fakeRepo) QueryInstancesByImportSource(_ context.Context, importFrom int) ([]Instance, error) {
	return r.query(func(inst Instance) bool {
		return inst.Mode == ModeImport && inst.ImportFrom == importFrom
	}), nil
}

func (r *fakeRepo) query(match func(Instance) bool) []Instance {
	res := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		if match(inst) {
			res = append(res, inst)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *fakeRepo) UpdateInstance(_ context.Context, inst Instance) (Instance, error) {
	if _, ok := r.instances[inst.ID]; !ok {
		return Instance{}, ErrNotFound
	}
	r.instances[inst.ID] = inst
	return inst, nil
}

func (r *fakeRepo) DeleteInstance(_ context.Context, id int) error {
	if _, ok := r.instances[id]; !ok {
		return ErrNotFound
	}
	delete(r.instances, id)
	return nil
}

type fakeFileRepo struct {
	seq   int
	files map[int]SubmissionFile
	votes map[int]map[int]Approval // fileRecordID -> userID -> vote
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		files: make(map[int]SubmissionFile),
		votes: make(map[int]map[int]Approval),
	}
}

func (r *fakeFileRepo) QueryFiles(_ context.Context, publicationID, ownerID int) ([]SubmissionFile, error) {
	res := make([]SubmissionFile, 0)
	for _, f := range r.files {
		if f.PublicationID == publicationID && f.OwnerID == ownerID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TimeModified.Before(res[j].TimeModified) })
	return res, nil
}

func (r *fakeFileRepo) CountFiles(ctx context.Context, publicationID, ownerID int) (int, error) {
	files, _ := r.QueryFiles(ctx, publicationID, ownerID)
	return len(files), nil
}

func (r *fakeFileRepo) GetFile(_ context.Context, publicationID int, fileID string) (SubmissionFile, error) {
	for _, f := range r.files {
		if f.PublicationID == publicationID && f.FileID == fileID {
			return f, nil
		}
	}
	return SubmissionFile{}, ErrFileNotFound
}

func (r *fakeFileRepo) GetFileByID(_ context.Context, id int) (SubmissionFile, error) {
	if f, ok := r.files[id]; ok {
		return f, nil
	}
	return SubmissionFile{}, ErrFileNotFound
}

func (r *fakeFileRepo) UpsertFile(_ context.Context, f SubmissionFile) (SubmissionFile, error) {
	for id, existing := range r.files {
		if existing.PublicationID == f.PublicationID &&
			existing.OwnerID == f.OwnerID && existing.FileID == f.FileID {
			f.ID = id
			f.StudentApproval = existing.StudentApproval
			f.TeacherApproval = existing.TeacherApproval
			f.Blocked = existing.Blocked
			r.files[id] = f
			return f, nil
		}
	}
	r.seq++
	f.ID = r.seq
	r.files[f.ID] = f
	return f, nil
}

func (r *fakeFileRepo) DeleteFile(_ context.Context, id int) error {
	if _, ok := r.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(r.files, id)
	return nil
}

func (r *fakeFileRepo) SetStudentApproval(_ context.Context, id int, a Approval) error {
	f, ok := r.files[id]
	if !ok {
		return ErrFileNotFound
	}
	f.StudentApproval = a
	r.files[id] = f
	return nil
}

func (r *fakeFileRepo) SetTeacherApproval(_ context.Context, id int, a Approval) error {
	f, ok := r.files[id]
	if !ok {
		return ErrFileNotFound
	}
	f.TeacherApproval = a
	r.files[id] = f
	return nil
}

func (r *fakeFileRepo) QueryVotes(_ context.Context, fileRecordID int) ([]Vote, error) {
	byUser := r.votes[fileRecordID]
	votes := make([]Vote, 0, len(byUser))
	for userID, a := range byUser {
		votes = append(votes, Vote{UserID: userID, Approval: a})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].UserID < votes[j].UserID })
	return votes, nil
}

func (r *fakeFileRepo) SetVote(_ context.Context, fileRecordID, userID int, a Approval) error {
	if _, ok := r.files[fileRecordID]; !ok {
		return ErrFileNotFound
	}
	if r.votes[fileRecordID] == nil {
		r.votes[fileRecordID] = make(map[int]Approval)
	}
	r.votes[fileRecordID][userID] = a
	return nil
}

func (r *fakeFileRepo) QueryPendingTeacherApproval(_ context.Context, publicationID int) ([]SubmissionFile, error) {
	res := make([]SubmissionFile, 0)
	for _, f := range r.files {
		if f.PublicationID == publicationID && !f.IsResource() &&
			f.TeacherApproval == ApprovalPending && !f.Blocked {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

type fakeOverrideRepo struct {
	seq       int
	overrides map[string]Override
}

func newFakeOverrideRepo() *fakeOverrideRepo {
	return &fakeOverrideRepo{overrides: make(map[string]Override)}
}

func overrideKey(publicationID int, actor Submitter) string {
	return fmt.Sprintf("%d/%d/%d", publicationID, actor.Kind, actor.ID)
}

func (r *fakeOverrideRepo) GetOverride(_ context.Context, publicationID int, actor Submitter) (Override, error) {
	if o, ok := r.overrides[overrideKey(publicationID, actor)]; ok {
		return o, nil
	}
	return Override{}, ErrOverrideNotFound
}

func (r *fakeOverrideRepo) QueryOverrides(_ context.Context, publicationID int) ([]Override, error) {
	res := make([]Override, 0)
	for _, o := range r.overrides {
		if o.PublicationID == publicationID {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *fakeOverrideRepo) SaveOverride(_ context.Context, o Override) (Override, error) {
	key := overrideKey(o.PublicationID, o.Actor())
	if existing, ok := r.overrides[key]; ok {
		o.ID = existing.ID
		o.CreatedAt = existing.CreatedAt
	} else {
		r.seq++
		o.ID = r.seq
	}
	r.overrides[key] = o
	return o, nil
}

func (r *fakeOverrideRepo) DeleteOverride(_ context.Context, publicationID int, actor Submitter) error {
	key := overrideKey(publicationID, actor)
	if _, ok := r.overrides[key]; !ok {
		return ErrOverrideNotFound
	}
	delete(r.overrides, key)
	return nil
}

type fakeMembers struct {
	groups     []int         // course group ids, ordered
	userGroups map[int][]int // userID -> group ids, membership order
	members    map[int][]int // groupID -> user ids
	enrolled   []int
	addresses  map[int]string
	graders    []string
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		userGroups: make(map[int][]int),
		members:    make(map[int][]int),
		addresses:  make(map[int]string),
	}
}

func (m *fakeMembers) GroupsForUser(_ context.Context, _, userID, _ int) ([]int, error) {
	return m.userGroups[userID], nil
}

func (m *fakeMembers) Groups(_ context.Context, _, _ int) ([]int, error) {
	return m.groups, nil
}

func (m *fakeMembers) GroupMembers(_ context.Context, _, groupID int) ([]int, error) {
	return m.members[groupID], nil
}

func (m *fakeMembers) EnrolledUserIDs(_ context.Context, _ int) ([]int, error) {
	return m.enrolled, nil
}

func (m *fakeMembers) UserAddress(_ context.Context, userID int) (string, error) {
	if addr, ok := m.addresses[userID]; ok {
		return addr, nil
	}
	return "", ErrNotFound
}

func (m *fakeMembers) GraderAddresses(_ context.Context, _ int) ([]string, error) {
	return m.graders, nil
}

type fakeImportSource struct {
	asg  Assignment
	subs []ImportedSubmission
}

func (s *fakeImportSource) Assignment(_ context.Context, id int) (Assignment, error) {
	if s.asg.ID != id {
		return Assignment{}, ErrNotFound
	}
	return s.asg, nil
}

func (s *fakeImportSource) Submissions(_ context.Context, _ int) ([]ImportedSubmission, error) {
	return s.subs, nil
}

type fakeTracker struct {
	states map[string]CompletionState
}

func newFakeTracker() *fakeTracker { return &fakeTracker{states: make(map[string]CompletionState)} }

func (t *fakeTracker) UpdateState(_ context.Context, publicationID, userID int, state CompletionState) error {
	t.states[fmt.Sprintf("%d/%d", publicationID, userID)] = state
	return nil
}

func (t *fakeTracker) state(publicationID, userID int) CompletionState {
	return t.states[fmt.Sprintf("%d/%d", publicationID, userID)]
}

type testDeps struct {
	repo      *fakeRepo
	files     *fakeFileRepo
	overrides *fakeOverrideRepo
	members   *fakeMembers
	importSrc *fakeImportSource
	tracker   *fakeTracker
}

func newTestService() (*Service, *testDeps) {
	deps := &testDeps{
		repo:      newFakeRepo(),
		files:     newFakeFileRepo(),
		overrides: newFakeOverrideRepo(),
		members:   newFakeMembers(),
		importSrc: &fakeImportSource{},
		tracker:   newFakeTracker(),
	}
	svc := NewService(
		deps.repo, deps.files, deps.overrides,
		deps.members, deps.importSrc, deps.tracker,
		nil, nil, nil,
	)
	return svc, deps
}

// at builds a deterministic timestamp for fixtures.
func at(day, hour int) time.Time {
	return time.Date(2021, time.March, day, hour, 0, 0, 0, time.UTC)
}
