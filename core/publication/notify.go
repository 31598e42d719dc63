package publication

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/edulab/publication/core"
)

// Notification delivery is best-effort: failures are logged, never surfaced
// to the triggering request.

func (svc *Service) notifyGraders(ctx context.Context, inst Instance, f SubmissionFile, a Approval) {
	if svc.mailSvc == nil {
		return
	}
	addrs, err := svc.members.GraderAddresses(ctx, inst.CourseID)
	if err != nil {
		svc.log.Warn(fmt.Sprintf("notify: resolving grader addresses: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      toMailAddresses(addrs),
		Subject: fmt.Sprintf("%s: %s %s", inst.Name, f.Filename, a),
		BodyStr: fmt.Sprintf("A student marked %q as %s in %q.", f.Filename, a, inst.Name),
	})
}

func (svc *Service) notifyOwner(ctx context.Context, inst Instance, f SubmissionFile, a Approval) {
	if svc.mailSvc == nil {
		return
	}
	var userIDs []int
	asg, err := svc.teamAssignment(ctx, inst)
	if err == nil && asg.TeamSubmission {
		userIDs, err = svc.members.GroupMembers(ctx, inst.CourseID, f.OwnerID)
	} else if err == nil {
		userIDs = []int{f.OwnerID}
	}
	if err != nil {
		svc.log.Warn(fmt.Sprintf("notify: resolving file owner: %v", err), err)
		return
	}

	addrs := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		addr, err := svc.members.UserAddress(ctx, id)
		if err != nil {
			svc.log.Warn(fmt.Sprintf("notify: resolving user %d address: %v", id, err), err)
			continue
		}
		addrs = append(addrs, addr)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      toMailAddresses(addrs),
		Subject: fmt.Sprintf("%s: %s %s", inst.Name, f.Filename, a),
		BodyStr: fmt.Sprintf("A teacher marked %q as %s in %q.", f.Filename, a, inst.Name),
	})
}

func (svc *Service) notifyFileChange(ctx context.Context, inst Instance, count int) {
	if svc.mailSvc == nil {
		return
	}
	addrs, err := svc.members.GraderAddresses(ctx, inst.CourseID)
	if err != nil {
		svc.log.Warn(fmt.Sprintf("notify: resolving grader addresses: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      toMailAddresses(addrs),
		Subject: fmt.Sprintf("%s: files changed", inst.Name),
		BodyStr: fmt.Sprintf("%d file(s) were imported into %q.", count, inst.Name),
	})
}

func toMailAddresses(addrs []string) []mail.Address {
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, mail.Address{Address: a})
	}
	return out
}
