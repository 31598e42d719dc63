package publication

import (
	"context"

	"github.com/pkg/errors"
)

// UploadCompletion evaluates the "student has uploaded a file" rule.
// Import modes auto-complete: file presence is not under the user's control.
func (svc *Service) UploadCompletion(ctx context.Context, inst Instance, userID int) (CompletionState, error) {
	if !inst.CompletionUpload {
		return CompletionUnknown, nil
	}
	if inst.Mode != ModeUpload {
		return CompletionComplete, nil
	}
	n, err := svc.files.CountFiles(ctx, inst.ID, userID)
	if err != nil {
		return CompletionUnknown, err
	}
	if n > 0 {
		return CompletionComplete, nil
	}
	return CompletionIncomplete, nil
}

// SubmissionCompletion evaluates the "submission arrived from the import
// source" rule. In team mode the user's candidate groups are checked in
// membership order and the first group holding a file completes the rule;
// the remaining groups are not merged in.
func (svc *Service) SubmissionCompletion(ctx context.Context, inst Instance, userID int) (CompletionState, error) {
	if !inst.CompletionSubmission {
		return CompletionUnknown, nil
	}
	if inst.Mode == ModeUpload {
		return CompletionComplete, nil
	}

	asg, err := svc.teamAssignment(ctx, inst)
	if err != nil {
		return CompletionUnknown, err
	}

	if !asg.TeamSubmission {
		n, err := svc.files.CountFiles(ctx, inst.ID, userID)
		if err != nil {
			return CompletionUnknown, err
		}
		if n > 0 {
			return CompletionComplete, nil
		}
		return CompletionIncomplete, nil
	}

	groupIDs, err := svc.candidateGroupIDs(ctx, inst, asg, userID)
	if err != nil {
		if errors.Cause(err) == ErrNoSubmitter {
			// groupless user under a group-required source: defined outcome
			return CompletionIncomplete, nil
		}
		return CompletionUnknown, err
	}
	for _, groupID := range groupIDs {
		n, err := svc.files.CountFiles(ctx, inst.ID, groupID)
		if err != nil {
			return CompletionUnknown, err
		}
		if n > 0 {
			return CompletionComplete, nil
		}
	}
	return CompletionIncomplete, nil
}

// HandleImportTrigger is the inbound message for the module-created hook and
// manual re-imports: import files, then push completion for everyone.
func (svc *Service) HandleImportTrigger(ctx context.Context, publicationID int) error {
	inst, err := svc.repo.GetInstance(ctx, publicationID)
	if err != nil {
		return err
	}
	if inst.Mode != ModeImport {
		return nil
	}
	if err := svc.ImportFiles(ctx, inst); err != nil {
		return err
	}
	return svc.pushCompletionAll(ctx, inst)
}

// HandleAssessableSubmitted is the inbound message for the import source's
// submission event: re-import every publication fed by that assignment.
func (svc *Service) HandleAssessableSubmitted(ctx context.Context, assignmentID int) error {
	insts, err := svc.repo.QueryInstancesByImportSource(ctx, assignmentID)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		if err := svc.ImportFiles(ctx, inst); err != nil {
			return err
		}
		if err := svc.pushCompletionAll(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

// HandleMembershipChange is the inbound message for group-membership events:
// re-evaluate the submission rule for the affected user across the course's
// team-import publications.
func (svc *Service) HandleMembershipChange(ctx context.Context, courseID, userID int) error {
	insts, err := svc.repo.QueryInstancesByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		if inst.Mode != ModeImport || !inst.CompletionSubmission {
			continue
		}
		asg, err := svc.teamAssignment(ctx, inst)
		if err != nil {
			return err
		}
		if !asg.TeamSubmission {
			continue
		}
		state, err := svc.SubmissionCompletion(ctx, inst, userID)
		if err != nil {
			return err
		}
		if err := svc.completion.UpdateState(ctx, inst.ID, userID, state); err != nil {
			return errors.Wrap(err, "updating completion state")
		}
	}
	return nil
}

// ImportFiles pulls the import source's submissions into the file area.
// Team submissions are keyed by group id; their per-user duplicate rows are
// skipped, matching the source's storage layout.
func (svc *Service) ImportFiles(ctx context.Context, inst Instance) error {
	if inst.Mode != ModeImport {
		return nil
	}
	asg, err := svc.teamAssignment(ctx, inst)
	if err != nil {
		return err
	}
	subs, err := svc.importSrc.Submissions(ctx, inst.ImportFrom)
	if err != nil {
		return errors.Wrap(err, "querying source submissions")
	}

	var imported int
	for _, sub := range subs {
		if asg.TeamSubmission && sub.UserID != 0 {
			// files live in the group-keyed row (group 0 for groupless users)
			continue
		}
		ownerID := sub.UserID
		if asg.TeamSubmission {
			ownerID = sub.GroupID
		}
		for _, sf := range sub.Files {
			_, err := svc.files.UpsertFile(ctx, SubmissionFile{
				PublicationID: inst.ID,
				OwnerID:       ownerID,
				FileID:        sf.FileID,
				Filename:      sf.Filename,
				Filepath:      sf.Filepath,
				TimeModified:  sf.TimeModified,
			})
			if err != nil {
				return errors.Wrap(err, "upserting imported file")
			}
			imported++
		}
	}

	if imported > 0 && inst.NotifyFileChange {
		svc.notifyFileChange(ctx, inst, imported)
	}
	return nil
}

// pushCompletionAll recomputes both rules for every enrolled user and hands
// the states to the platform's completion tracker.
func (svc *Service) pushCompletionAll(ctx context.Context, inst Instance) error {
	if !inst.CompletionUpload && !inst.CompletionSubmission {
		return nil
	}
	userIDs, err := svc.members.EnrolledUserIDs(ctx, inst.CourseID)
	if err != nil {
		return errors.Wrap(err, "listing enrolled users")
	}
	for _, userID := range userIDs {
		if err := svc.pushCompletion(ctx, inst, userID); err != nil {
			return err
		}
	}
	return nil
}

// pushCompletion recomputes one user's completion state and hands it to the
// platform's tracker; instances with no completion rule enabled are skipped.
func (svc *Service) pushCompletion(ctx context.Context, inst Instance, userID int) error {
	state, err := svc.SubmissionCompletion(ctx, inst, userID)
	if err != nil {
		return err
	}
	if state == CompletionUnknown {
		if state, err = svc.UploadCompletion(ctx, inst, userID); err != nil {
			return err
		}
	}
	if state == CompletionUnknown {
		return nil
	}
	if err := svc.completion.UpdateState(ctx, inst.ID, userID, state); err != nil {
		return errors.Wrap(err, "updating completion state")
	}
	return nil
}
