package publication

import (
	"context"
	"testing"
	"time"
)

func TestFilesFor(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeUpload})
	me := Submitter{Kind: ActorUser, ID: 42}

	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: me.ID, FileID: "f-2", Filename: "later.pdf",
		Filepath: "/", TimeModified: at(3, 0),
	})
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: me.ID, FileID: "f-1", Filename: "earlier.pdf",
		Filepath: "/", TimeModified: at(1, 0),
	})
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: me.ID, FileID: "r-1", Filename: "handout.pdf",
		Filepath: ResourcesPath, TimeModified: at(2, 0),
	})
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 7, FileID: "f-3", Filename: "other.pdf",
		Filepath: "/", TimeModified: at(9, 0),
	})

	set, err := svc.FilesFor(ctx, inst, me)
	if err != nil {
		t.Fatalf("FilesFor() error = %v", err)
	}
	if len(set.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(set.Files))
	}
	if set.Files[0].Filename != "earlier.pdf" || set.Files[1].Filename != "later.pdf" {
		t.Errorf("Files order = %q, %q; want ascending by TimeModified",
			set.Files[0].Filename, set.Files[1].Filename)
	}
	if len(set.Resources) != 1 || set.Resources[0].Filename != "handout.pdf" {
		t.Errorf("Resources = %v, want the handout only", set.Resources)
	}
	if !set.LastModified.Equal(at(3, 0)) {
		t.Errorf("LastModified = %v, want %v", set.LastModified, at(3, 0))
	}
}

func TestFilesForUserMergesGroups(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
	deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
	deps.members.userGroups[42] = []int{10, 20}

	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 20, FileID: "f-b", Filename: "b.pdf",
		Filepath: "/", TimeModified: at(1, 0),
	})
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 10, FileID: "f-a", Filename: "a.pdf",
		Filepath: "/", TimeModified: at(2, 0),
	})

	set, err := svc.FilesForUser(ctx, inst, 42)
	if err != nil {
		t.Fatalf("FilesForUser() error = %v", err)
	}
	if len(set.Files) != 2 {
		t.Fatalf("len(Files) = %d, want both groups' files", len(set.Files))
	}
	// merged list re-sorted across groups
	if set.Files[0].Filename != "b.pdf" || set.Files[1].Filename != "a.pdf" {
		t.Errorf("Files order = %q, %q; want ascending by TimeModified across groups",
			set.Files[0].Filename, set.Files[1].Filename)
	}
	if !set.LastModified.Equal(at(2, 0)) {
		t.Errorf("LastModified = %v, want max across groups", set.LastModified)
	}
}

func TestRegisterUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("generates a blob reference and pushes completion", func(t *testing.T) {
		svc, deps := newTestService()
		svc.nowFunc = func() time.Time { return at(5, 12) }
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, CompletionUpload: true,
			AllowSubmissionsFrom: at(1, 0), DueDate: at(10, 0),
		})

		f, err := svc.RegisterUpload(ctx, inst, 42, NewFile{Filename: "essay.pdf"})
		if err != nil {
			t.Fatalf("RegisterUpload() error = %v", err)
		}
		if f.FileID == "" {
			t.Error("FileID = empty, want a generated reference")
		}
		if f.OwnerID != 42 || f.Filepath != "/" || !f.TimeModified.Equal(at(5, 12)) {
			t.Errorf("unexpected file: %+v", f)
		}
		if got := deps.tracker.state(inst.ID, 42); got != CompletionComplete {
			t.Errorf("completion state = %v, want %v", got, CompletionComplete)
		}
	})

	t.Run("past due date fails", func(t *testing.T) {
		svc, deps := newTestService()
		svc.nowFunc = func() time.Time { return at(11, 0) }
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, DueDate: at(10, 0),
		})

		if _, err := svc.RegisterUpload(ctx, inst, 42, NewFile{Filename: "late.pdf"}); err != ErrSubmissionClosed {
			t.Errorf("RegisterUpload() error = %v, want %v", err, ErrSubmissionClosed)
		}
	})

	t.Run("submission override reopens the window", func(t *testing.T) {
		svc, deps := newTestService()
		svc.nowFunc = func() time.Time { return at(11, 0) }
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, DueDate: at(10, 0),
		})
		_, _ = deps.overrides.SaveOverride(ctx, Override{
			PublicationID: inst.ID, UserID: 42, SubmissionOverride: true, DueDate: at(12, 0),
		})

		if _, err := svc.RegisterUpload(ctx, inst, 42, NewFile{Filename: "extended.pdf"}); err != nil {
			t.Errorf("RegisterUpload() error = %v, want accepted under override", err)
		}
	})

	t.Run("import mode refuses uploads", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})

		if _, err := svc.RegisterUpload(ctx, inst, 42, NewFile{Filename: "nope.pdf"}); err != ErrSubmissionClosed {
			t.Errorf("RegisterUpload() error = %v, want %v", err, ErrSubmissionClosed)
		}
	})
}

func TestFilesForUserNoSubmitter(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
	deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true, RequireGroup: true}

	set, err := svc.FilesForUser(ctx, inst, 42)
	if err != nil {
		t.Fatalf("FilesForUser() error = %v, want empty set without error", err)
	}
	if len(set.Files) != 0 || len(set.Resources) != 0 {
		t.Errorf("set = %+v, want empty", set)
	}
}
