package publication

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// FileApprovalState derives the per-axis approval of a file, applying the
// automatic pass for axes whose requirement flag is off.
func (svc *Service) FileApprovalState(inst Instance, f SubmissionFile) (student, teacher Approval) {
	student, teacher = f.StudentApproval, f.TeacherApproval
	if !inst.ObtainStudentApproval {
		student = ApprovalApproved
	}
	if !inst.ObtainTeacherApproval {
		teacher = ApprovalApproved
	}
	return student, teacher
}

// Released reports whether a file may be shown to other course members:
// both axes approved and the file not blocked by a teacher.
func (svc *Service) Released(inst Instance, student, teacher Approval, f SubmissionFile) bool {
	return student == ApprovalApproved && teacher == ApprovalApproved && !f.Blocked
}

// ReleasedFiles collects the files visible to every course member, across
// all submitters: both axes approved and not blocked. Group submitters go
// through the consensus fold for the student axis. Resources are excluded;
// they have their own visibility rule.
func (svc *Service) ReleasedFiles(ctx context.Context, inst Instance) ([]SubmissionFile, error) {
	subs, err := svc.ListSubmitters(ctx, inst)
	if err != nil {
		return nil, err
	}

	released := make([]SubmissionFile, 0)
	for _, sub := range subs {
		set, err := svc.FilesFor(ctx, inst, sub)
		if err != nil {
			return nil, err
		}
		for _, f := range set.Files {
			student, teacher := svc.FileApprovalState(inst, f)
			if sub.Kind == ActorGroup && inst.ObtainStudentApproval {
				student, _, err = svc.GroupApprovalState(ctx, inst, f.ID)
				if err != nil {
					return nil, err
				}
			}
			if svc.Released(inst, student, teacher, f) {
				released = append(released, f)
			}
		}
	}
	sort.SliceStable(released, func(i, j int) bool {
		return released[i].TimeModified.Before(released[j].TimeModified)
	})
	return released, nil
}

// GroupApprovalState folds every group member's standing vote for one file
// record into a consensus state. Members without a vote count as pending.
func (svc *Service) GroupApprovalState(ctx context.Context, inst Instance, fileRecordID int) (Approval, []Vote, error) {
	if !inst.ObtainStudentApproval || inst.GroupApproval == GroupApprovalAutomatic {
		return ApprovalApproved, nil, nil
	}

	f, err := svc.files.GetFileByID(ctx, fileRecordID)
	if err != nil {
		return ApprovalPending, nil, err
	}
	if f.PublicationID != inst.ID {
		return ApprovalPending, nil, ErrFileNotFound
	}

	memberIDs, err := svc.members.GroupMembers(ctx, inst.CourseID, f.OwnerID)
	if err != nil {
		return ApprovalPending, nil, errors.Wrap(err, "listing group members")
	}
	stored, err := svc.files.QueryVotes(ctx, fileRecordID)
	if err != nil {
		return ApprovalPending, nil, errors.Wrap(err, "querying votes")
	}
	byUser := make(map[int]Approval, len(stored))
	for _, v := range stored {
		byUser[v.UserID] = v.Approval
	}

	votes := make([]Vote, 0, len(memberIDs))
	var approved, rejected int
	for _, id := range memberIDs {
		a := byUser[id] // pending unless voted
		votes = append(votes, Vote{UserID: id, Approval: a})
		switch a {
		case ApprovalApproved:
			approved++
		case ApprovalRejected:
			rejected++
		}
	}

	var consensus Approval
	switch inst.GroupApproval {
	case GroupApprovalSingle:
		// one approval suffices, but an explicit rejection always wins
		switch {
		case rejected > 0:
			consensus = ApprovalRejected
		case approved > 0:
			consensus = ApprovalApproved
		default:
			consensus = ApprovalPending
		}
	case GroupApprovalAll:
		switch {
		case rejected > 0:
			consensus = ApprovalRejected
		case approved == len(votes) && len(votes) > 0:
			consensus = ApprovalApproved
		default:
			consensus = ApprovalPending
		}
	}
	return consensus, votes, nil
}

// GroupApproval looks a file up by its blob reference and folds the group votes.
func (svc *Service) GroupApproval(ctx context.Context, inst Instance, fileID string) (Approval, []Vote, error) {
	f, err := svc.files.GetFile(ctx, inst.ID, fileID)
	if err != nil {
		return ApprovalPending, nil, err
	}
	return svc.GroupApprovalState(ctx, inst, f.ID)
}

// CombinedStatus folds all non-resource files of a submitter into one status.
// Rejection dominates pending, pending dominates approved; an empty file area
// is its own state.
func (svc *Service) CombinedStatus(ctx context.Context, inst Instance, sub Submitter) (CombinedStatus, error) {
	set, err := svc.FilesFor(ctx, inst, sub)
	if err != nil {
		return StatusNoFiles, err
	}

	var hasApproved, hasRejected, hasPending bool
	for _, f := range set.Files {
		student, teacher := svc.FileApprovalState(inst, f)
		if sub.Kind == ActorGroup && inst.ObtainStudentApproval {
			student, _, err = svc.GroupApprovalState(ctx, inst, f.ID)
			if err != nil {
				return StatusNoFiles, err
			}
		}

		switch {
		case student == ApprovalRejected || teacher == ApprovalRejected:
			hasRejected = true
		case student == ApprovalApproved && teacher == ApprovalApproved:
			hasApproved = true
		default:
			hasPending = true
		}
	}

	switch {
	case hasRejected:
		return StatusRejected, nil
	case hasPending:
		return StatusPending, nil
	case hasApproved:
		return StatusApproved, nil
	default:
		return StatusNoFiles, nil
	}
}

// CombinedStatusForUser folds a user's submitters (several in team mode)
// with the same dominance order as the per-file fold.
func (svc *Service) CombinedStatusForUser(ctx context.Context, inst Instance, userID int) (CombinedStatus, error) {
	subs, err := svc.SubmittersForUser(ctx, inst, userID)
	if err != nil {
		if errors.Cause(err) == ErrNoSubmitter {
			return StatusNoFiles, nil
		}
		return StatusNoFiles, err
	}

	status := StatusNoFiles
	for _, sub := range subs {
		s, err := svc.CombinedStatus(ctx, inst, sub)
		if err != nil {
			return StatusNoFiles, err
		}
		switch {
		case s == StatusRejected:
			return StatusRejected, nil
		case s == StatusPending:
			status = StatusPending
		case s == StatusApproved && status == StatusNoFiles:
			status = StatusApproved
		}
	}
	return status, nil
}

// SetStudentApproval records a student's vote for a file they own (through
// their submitter). The write is refused outside the effective approval
// window and for files not owned by one of the caller's submitters.
func (svc *Service) SetStudentApproval(ctx context.Context, inst Instance, userID int, fileID string, a Approval) error {
	f, err := svc.files.GetFile(ctx, inst.ID, fileID)
	if err != nil {
		return err
	}
	if f.IsResource() {
		return ErrFileNotFound
	}

	subs, err := svc.SubmittersForUser(ctx, inst, userID)
	if err != nil {
		return err
	}
	var owner *Submitter
	for i, sub := range subs {
		if sub.ID == f.OwnerID {
			owner = &subs[i]
			break
		}
	}
	if owner == nil {
		return ErrFileNotFound
	}

	sched, err := svc.ResolveSchedule(ctx, inst, *owner)
	if err != nil {
		return err
	}
	if !inst.ObtainStudentApproval || !sched.ApprovalOpen(svc.nowFunc()) {
		return ErrApprovalClosed
	}

	if owner.Kind == ActorGroup {
		err = svc.files.SetVote(ctx, f.ID, userID, a)
	} else {
		err = svc.files.SetStudentApproval(ctx, f.ID, a)
	}
	if err != nil {
		return err
	}

	if inst.NotifyStatusChange {
		svc.notifyGraders(ctx, inst, f, a)
	}
	return nil
}

// SetTeacherApproval records a teacher's decision for a file. Not gated by
// the student approval window.
func (svc *Service) SetTeacherApproval(ctx context.Context, inst Instance, fileID string, a Approval) error {
	f, err := svc.files.GetFile(ctx, inst.ID, fileID)
	if err != nil {
		return err
	}
	if f.IsResource() {
		return ErrFileNotFound
	}
	if err := svc.files.SetTeacherApproval(ctx, f.ID, a); err != nil {
		return err
	}
	if inst.NotifyStatusChange {
		svc.notifyOwner(ctx, inst, f, a)
	}
	return nil
}

// PendingTeacherApprovals counts the files still awaiting a teacher decision.
func (svc *Service) PendingTeacherApprovals(ctx context.Context, inst Instance) (int, error) {
	if !inst.ObtainTeacherApproval {
		return 0, nil
	}
	files, err := svc.files.QueryPendingTeacherApproval(ctx, inst.ID)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}
