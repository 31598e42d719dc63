package publication

import (
	"context"
	"time"

	"github.com/edulab/publication/core"
)

type (
	// Repository persists publication instances.
	Repository interface {
		CreateInstance(ctx context.Context, inst Instance) (Instance, error)
		GetInstance(ctx context.Context, id int) (Instance, error)
		QueryInstancesByCourse(ctx context.Context, courseID int) ([]Instance, error)
		QueryInstancesByImportSource(ctx context.Context, importFrom int) ([]Instance, error)
		UpdateInstance(ctx context.Context, inst Instance) (Instance, error)
		DeleteInstance(ctx context.Context, id int) error
	}

	// FileRepository persists submission-file records and group approval votes.
	FileRepository interface {
		// QueryFiles returns all file records of (publicationID, ownerID)
		// ordered by TimeModified ascending.
		QueryFiles(ctx context.Context, publicationID, ownerID int) ([]SubmissionFile, error)
		CountFiles(ctx context.Context, publicationID, ownerID int) (int, error)
		GetFile(ctx context.Context, publicationID int, fileID string) (SubmissionFile, error)
		GetFileByID(ctx context.Context, id int) (SubmissionFile, error)
		// UpsertFile inserts or, when (publicationID, ownerID, fileID) exists,
		// updates the record in place.
		UpsertFile(ctx context.Context, f SubmissionFile) (SubmissionFile, error)
		DeleteFile(ctx context.Context, id int) error
		SetStudentApproval(ctx context.Context, id int, a Approval) error
		SetTeacherApproval(ctx context.Context, id int, a Approval) error
		// QueryVotes returns the standing group-member votes for a file record.
		QueryVotes(ctx context.Context, fileRecordID int) ([]Vote, error)
		SetVote(ctx context.Context, fileRecordID, userID int, a Approval) error
		QueryPendingTeacherApproval(ctx context.Context, publicationID int) ([]SubmissionFile, error)
	}

	// OverrideRepository persists per-user/per-group schedule overrides.
	// At most one override exists per (publication, actor); SaveOverride upserts.
	OverrideRepository interface {
		GetOverride(ctx context.Context, publicationID int, actor Submitter) (Override, error)
		QueryOverrides(ctx context.Context, publicationID int) ([]Override, error)
		SaveOverride(ctx context.Context, o Override) (Override, error)
		DeleteOverride(ctx context.Context, publicationID int, actor Submitter) error
	}

	// MembershipProvider is the platform's group-membership surface.
	MembershipProvider interface {
		// GroupsForUser returns the user's group ids under a grouping
		// (groupingID 0 = all groups) in membership order.
		GroupsForUser(ctx context.Context, courseID, userID, groupingID int) ([]int, error)
		Groups(ctx context.Context, courseID, groupingID int) ([]int, error)
		// GroupMembers returns the user ids of a group; for GrouplessID it
		// returns the enrolled users without any group.
		GroupMembers(ctx context.Context, courseID, groupID int) ([]int, error)
		EnrolledUserIDs(ctx context.Context, courseID int) ([]int, error)
		UserAddress(ctx context.Context, userID int) (string, error)
		GraderAddresses(ctx context.Context, courseID int) ([]string, error)
	}

	// ImportSource is the external assignment activity files are imported from.
	ImportSource interface {
		Assignment(ctx context.Context, id int) (Assignment, error)
		Submissions(ctx context.Context, assignmentID int) ([]ImportedSubmission, error)
	}

	// CompletionTracker receives computed completion states.
	CompletionTracker interface {
		UpdateState(ctx context.Context, publicationID, userID int, state CompletionState) error
	}

	// Service implements the publication workflows on top of the
	// repositories and platform ports. It keeps no state between calls.
	Service struct {
		repo       Repository
		files      FileRepository
		overrides  OverrideRepository
		members    MembershipProvider
		importSrc  ImportSource
		completion CompletionTracker
		mailSvc    core.EmailService
		log        core.Logger
		conf       *core.Config

		nowFunc func() time.Time // mockable
	}
)

func NewService(
	repo Repository,
	files FileRepository,
	overrides OverrideRepository,
	members MembershipProvider,
	importSrc ImportSource,
	completion CompletionTracker,
	mailSvc core.EmailService,
	log core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		files:      files,
		overrides:  overrides,
		members:    members,
		importSrc:  importSrc,
		completion: completion,
		mailSvc:    mailSvc,
		log:        log,
		conf:       conf,
		nowFunc:    time.Now,
	}
}

// Create validates and persists a new instance. Import-mode instances get an
// immediate import plus completion evaluation, matching the platform's
// module-created hook.
func (svc *Service) Create(ctx context.Context, ni NewInstance) (Instance, error) {
	now := svc.nowFunc().UTC()
	inst := Instance{
		CourseID:              ni.CourseID,
		Name:                  ni.Name,
		Mode:                  ni.Mode,
		ImportFrom:            ni.ImportFrom,
		GroupingID:            ni.GroupingID,
		ObtainStudentApproval: ni.ObtainStudentApproval,
		ObtainTeacherApproval: ni.ObtainTeacherApproval,
		GroupApproval:         ni.GroupApproval,
		AllowSubmissionsFrom:  ni.AllowSubmissionsFrom,
		DueDate:               ni.DueDate,
		ApprovalFrom:          ni.ApprovalFrom,
		ApprovalTo:            ni.ApprovalTo,
		NotifyFileChange:      ni.NotifyFileChange,
		NotifyStatusChange:    ni.NotifyStatusChange,
		CompletionUpload:      ni.CompletionUpload,
		CompletionSubmission:  ni.CompletionSubmission,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	inst, err := svc.repo.CreateInstance(ctx, inst)
	if err != nil {
		return Instance{}, err
	}
	if inst.Mode == ModeImport {
		if err := svc.HandleImportTrigger(ctx, inst.ID); err != nil {
			return inst, err
		}
	}
	return inst, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Instance, error) {
	return svc.repo.GetInstance(ctx, id)
}

func (svc *Service) QueryByCourse(ctx context.Context, courseID int) ([]Instance, error) {
	return svc.repo.QueryInstancesByCourse(ctx, courseID)
}

func (svc *Service) Update(ctx context.Context, id int, ui UpdateInstance) (Instance, error) {
	inst, err := svc.repo.GetInstance(ctx, id)
	if err != nil {
		return Instance{}, err
	}
	if ui.Name != "" {
		inst.Name = core.CleanString(ui.Name)
	}
	if ui.ObtainStudentApproval != nil {
		inst.ObtainStudentApproval = *ui.ObtainStudentApproval
	}
	if ui.ObtainTeacherApproval != nil {
		inst.ObtainTeacherApproval = *ui.ObtainTeacherApproval
	}
	if ui.GroupApproval != nil {
		inst.GroupApproval = *ui.GroupApproval
	}
	if ui.AllowSubmissionsFrom != nil {
		inst.AllowSubmissionsFrom = *ui.AllowSubmissionsFrom
	}
	if ui.DueDate != nil {
		inst.DueDate = *ui.DueDate
	}
	if ui.ApprovalFrom != nil {
		inst.ApprovalFrom = *ui.ApprovalFrom
	}
	if ui.ApprovalTo != nil {
		inst.ApprovalTo = *ui.ApprovalTo
	}
	if ui.NotifyFileChange != nil {
		inst.NotifyFileChange = *ui.NotifyFileChange
	}
	if ui.NotifyStatusChange != nil {
		inst.NotifyStatusChange = *ui.NotifyStatusChange
	}
	if ui.CompletionUpload != nil {
		inst.CompletionUpload = *ui.CompletionUpload
	}
	if ui.CompletionSubmission != nil {
		inst.CompletionSubmission = *ui.CompletionSubmission
	}
	inst.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateInstance(ctx, inst)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteInstance(ctx, id)
}
