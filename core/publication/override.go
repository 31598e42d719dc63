package publication

import (
	"context"

	"github.com/pkg/errors"
)

// ResolveSchedule computes the effective dates for one actor. Each field
// group (submission, approval) falls back to the instance default unless the
// actor's override enables it and carries a set value. Approval-window dates
// are meaningless when student approval is not required and come back zero.
// Resolution is a pure read; a missing override is the common case.
func (svc *Service) ResolveSchedule(ctx context.Context, inst Instance, actor Submitter) (Schedule, error) {
	sched := Schedule{
		AllowSubmissionsFrom: inst.AllowSubmissionsFrom,
		DueDate:              inst.DueDate,
		ApprovalFrom:         inst.ApprovalFrom,
		ApprovalTo:           inst.ApprovalTo,
	}

	ovr, err := svc.overrides.GetOverride(ctx, inst.ID, actor)
	switch {
	case err == nil:
		if ovr.SubmissionOverride {
			if !ovr.AllowSubmissionsFrom.IsZero() {
				sched.AllowSubmissionsFrom = ovr.AllowSubmissionsFrom
			}
			if !ovr.DueDate.IsZero() {
				sched.DueDate = ovr.DueDate
			}
		}
		if ovr.ApprovalOverride {
			if !ovr.ApprovalFrom.IsZero() {
				sched.ApprovalFrom = ovr.ApprovalFrom
			}
			if !ovr.ApprovalTo.IsZero() {
				sched.ApprovalTo = ovr.ApprovalTo
			}
		}
	case errors.Cause(err) == ErrOverrideNotFound:
		// no override, instance defaults apply
	default:
		return Schedule{}, err
	}

	if !inst.ObtainStudentApproval {
		sched.ApprovalFrom, sched.ApprovalTo = noTime, noTime
	}
	return sched, nil
}

// GetOverride fetches the single override of (publication, actor).
func (svc *Service) GetOverride(ctx context.Context, publicationID int, actor Submitter) (Override, error) {
	return svc.overrides.GetOverride(ctx, publicationID, actor)
}

// QueryOverrides lists a publication's overrides.
func (svc *Service) QueryOverrides(ctx context.Context, publicationID int) ([]Override, error) {
	return svc.overrides.QueryOverrides(ctx, publicationID)
}

// SaveOverride upserts the override of (publication, actor); at most one
// override per actor exists.
func (svc *Service) SaveOverride(ctx context.Context, publicationID int, no NewOverride) (Override, error) {
	now := svc.nowFunc().UTC()
	o := Override{
		PublicationID:        publicationID,
		UserID:               no.UserID,
		GroupID:              no.GroupID,
		SubmissionOverride:   no.SubmissionOverride,
		ApprovalOverride:     no.ApprovalOverride,
		AllowSubmissionsFrom: no.AllowSubmissionsFrom,
		DueDate:              no.DueDate,
		ApprovalFrom:         no.ApprovalFrom,
		ApprovalTo:           no.ApprovalTo,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return svc.overrides.SaveOverride(ctx, o)
}

// DeleteOverride removes the override of (publication, actor).
func (svc *Service) DeleteOverride(ctx context.Context, publicationID int, actor Submitter) error {
	return svc.overrides.DeleteOverride(ctx, publicationID, actor)
}
