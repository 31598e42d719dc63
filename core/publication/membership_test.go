package publication

import (
	"context"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestListSubmitters(t *testing.T) {
	ctx := context.Background()

	t.Run("upload mode lists enrolled users", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeUpload})
		deps.members.enrolled = []int{3, 1, 2}

		got, err := svc.ListSubmitters(ctx, inst)
		if err != nil {
			t.Fatalf("ListSubmitters() error = %v", err)
		}
		want := []Submitter{
			{Kind: ActorUser, ID: 3}, {Kind: ActorUser, ID: 1}, {Kind: ActorUser, ID: 2},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ListSubmitters() = %v, want %v", got, want)
		}
	})

	t.Run("team mode lists grouping groups plus groupless cohort", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true, TeamSubmissionGroupingID: 5}
		deps.members.groups = []int{10, 20}

		got, err := svc.ListSubmitters(ctx, inst)
		if err != nil {
			t.Fatalf("ListSubmitters() error = %v", err)
		}
		want := []Submitter{
			{Kind: ActorGroup, ID: 10}, {Kind: ActorGroup, ID: 20}, {Kind: ActorGroup, ID: GrouplessID},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ListSubmitters() = %v, want %v", got, want)
		}
	})

	t.Run("group requirement drops the groupless cohort", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true, RequireGroup: true}
		deps.members.groups = []int{10, 20}

		got, err := svc.ListSubmitters(ctx, inst)
		if err != nil {
			t.Fatalf("ListSubmitters() error = %v", err)
		}
		want := []Submitter{{Kind: ActorGroup, ID: 10}, {Kind: ActorGroup, ID: 20}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ListSubmitters() = %v, want %v", got, want)
		}
	})
}

func TestSubmittersForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("individual import maps user to itself", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7}

		got, err := svc.SubmittersForUser(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmittersForUser() error = %v", err)
		}
		want := []Submitter{{Kind: ActorUser, ID: 42}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("SubmittersForUser() = %v, want %v", got, want)
		}
	})

	t.Run("multi-group user maps to all their groups", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
		deps.members.userGroups[42] = []int{20, 10}

		got, err := svc.SubmittersForUser(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmittersForUser() error = %v", err)
		}
		// membership order is preserved
		want := []Submitter{{Kind: ActorGroup, ID: 20}, {Kind: ActorGroup, ID: 10}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("SubmittersForUser() = %v, want %v", got, want)
		}
	})

	t.Run("groupless user falls back to group zero", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}

		got, err := svc.SubmittersForUser(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmittersForUser() error = %v", err)
		}
		want := []Submitter{{Kind: ActorGroup, ID: GrouplessID}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("SubmittersForUser() = %v, want %v", got, want)
		}
	})

	t.Run("groupless user under group requirement has no submitter", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true, RequireGroup: true}

		_, err := svc.SubmittersForUser(ctx, inst, 42)
		if errors.Cause(err) != ErrNoSubmitter {
			t.Errorf("SubmittersForUser() error = %v, want %v", err, ErrNoSubmitter)
		}
	})
}
