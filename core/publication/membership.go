package publication

import (
	"context"

	"github.com/pkg/errors"
)

// teamAssignment resolves the import source of an instance; the zero
// Assignment is returned for upload mode.
func (svc *Service) teamAssignment(ctx context.Context, inst Instance) (Assignment, error) {
	if inst.Mode != ModeImport {
		return Assignment{}, nil
	}
	asg, err := svc.importSrc.Assignment(ctx, inst.ImportFrom)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "resolving import source")
	}
	return asg, nil
}

// ListSubmitters returns every logical submitter of an instance: each
// enrolled user in upload/individual-import modes, each group of the import
// source's grouping in team mode (plus the groupless cohort unless the
// source requires group membership).
func (svc *Service) ListSubmitters(ctx context.Context, inst Instance) ([]Submitter, error) {
	asg, err := svc.teamAssignment(ctx, inst)
	if err != nil {
		return nil, err
	}

	if !asg.TeamSubmission {
		userIDs, err := svc.members.EnrolledUserIDs(ctx, inst.CourseID)
		if err != nil {
			return nil, errors.Wrap(err, "listing enrolled users")
		}
		subs := make([]Submitter, 0, len(userIDs))
		for _, id := range userIDs {
			subs = append(subs, Submitter{Kind: ActorUser, ID: id})
		}
		return subs, nil
	}

	groupIDs, err := svc.members.Groups(ctx, inst.CourseID, asg.TeamSubmissionGroupingID)
	if err != nil {
		return nil, errors.Wrap(err, "listing groups")
	}
	subs := make([]Submitter, 0, len(groupIDs)+1)
	for _, id := range groupIDs {
		subs = append(subs, Submitter{Kind: ActorGroup, ID: id})
	}
	if !asg.RequireGroup {
		subs = append(subs, Submitter{Kind: ActorGroup, ID: GrouplessID})
	}
	return subs, nil
}

// SubmittersForUser maps a user to their submitter identities. In team mode
// a user in several groups of the grouping maps to all of them; a groupless
// user falls back to the reserved group 0, or has no submitter at all when
// the import source requires group membership (ErrNoSubmitter).
func (svc *Service) SubmittersForUser(ctx context.Context, inst Instance, userID int) ([]Submitter, error) {
	asg, err := svc.teamAssignment(ctx, inst)
	if err != nil {
		return nil, err
	}
	if !asg.TeamSubmission {
		return []Submitter{{Kind: ActorUser, ID: userID}}, nil
	}

	groupIDs, err := svc.candidateGroupIDs(ctx, inst, asg, userID)
	if err != nil {
		return nil, err
	}
	subs := make([]Submitter, 0, len(groupIDs))
	for _, id := range groupIDs {
		subs = append(subs, Submitter{Kind: ActorGroup, ID: id})
	}
	return subs, nil
}

// candidateGroupIDs returns the user's group ids under the submission
// grouping, in membership order, applying the group-0 fallback rule.
func (svc *Service) candidateGroupIDs(ctx context.Context, inst Instance, asg Assignment, userID int) ([]int, error) {
	groupIDs, err := svc.members.GroupsForUser(ctx, inst.CourseID, userID, asg.TeamSubmissionGroupingID)
	if err != nil {
		return nil, errors.Wrap(err, "listing user groups")
	}
	if len(groupIDs) == 0 {
		if asg.RequireGroup {
			return nil, ErrNoSubmitter
		}
		groupIDs = []int{GrouplessID}
	}
	return groupIDs, nil
}
