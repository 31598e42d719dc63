package publication

import (
	"context"
	"testing"
)

func TestUploadCompletion(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		mode      Mode
		enabled   bool
		fileCount int
		want      CompletionState
	}{
		{name: "rule disabled", mode: ModeUpload, enabled: false, fileCount: 3, want: CompletionUnknown},
		{name: "upload with files", mode: ModeUpload, enabled: true, fileCount: 1, want: CompletionComplete},
		{name: "upload without files", mode: ModeUpload, enabled: true, fileCount: 0, want: CompletionIncomplete},
		{name: "import mode auto-completes", mode: ModeImport, enabled: true, fileCount: 0, want: CompletionComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService()
			inst, _ := deps.repo.CreateInstance(ctx, Instance{
				CourseID: 1, Mode: tt.mode, ImportFrom: 7, CompletionUpload: tt.enabled,
			})
			deps.importSrc.asg = Assignment{ID: 7}
			for i := 0; i < tt.fileCount; i++ {
				_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
					PublicationID: inst.ID, OwnerID: 42, FileID: "f-" + string(rune('a'+i)),
					Filename: "essay.pdf", Filepath: "/", TimeModified: at(1, i),
				})
			}

			got, err := svc.UploadCompletion(ctx, inst, 42)
			if err != nil {
				t.Fatalf("UploadCompletion() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UploadCompletion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmissionCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("rule disabled", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7}

		got, err := svc.SubmissionCompletion(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmissionCompletion() error = %v", err)
		}
		if got != CompletionUnknown {
			t.Errorf("SubmissionCompletion() = %v, want %v", got, CompletionUnknown)
		}
	})

	t.Run("upload mode auto-completes", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, CompletionSubmission: true,
		})

		got, err := svc.SubmissionCompletion(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmissionCompletion() error = %v", err)
		}
		if got != CompletionComplete {
			t.Errorf("SubmissionCompletion() = %v, want %v", got, CompletionComplete)
		}
	})

	t.Run("individual import needs the user's own file", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
		})
		deps.importSrc.asg = Assignment{ID: 7}
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 42, FileID: "f-1",
			Filename: "essay.pdf", Filepath: "/", TimeModified: at(1, 0),
		})

		got, _ := svc.SubmissionCompletion(ctx, inst, 42)
		if got != CompletionComplete {
			t.Errorf("SubmissionCompletion(owner) = %v, want %v", got, CompletionComplete)
		}
		got, _ = svc.SubmissionCompletion(ctx, inst, 7)
		if got != CompletionIncomplete {
			t.Errorf("SubmissionCompletion(other) = %v, want %v", got, CompletionIncomplete)
		}
	})

	t.Run("team mode completes on the first candidate group with files", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
		})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
		deps.members.userGroups[42] = []int{10, 20}
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 20, FileID: "f-1",
			Filename: "report.pdf", Filepath: "/", TimeModified: at(1, 0),
		})

		got, err := svc.SubmissionCompletion(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmissionCompletion() error = %v", err)
		}
		if got != CompletionComplete {
			t.Errorf("SubmissionCompletion() = %v, want %v", got, CompletionComplete)
		}
	})

	t.Run("team mode groupless fallback reads group zero", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
		})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: GrouplessID, FileID: "f-1",
			Filename: "report.pdf", Filepath: "/", TimeModified: at(1, 0),
		})

		got, _ := svc.SubmissionCompletion(ctx, inst, 42)
		if got != CompletionComplete {
			t.Errorf("SubmissionCompletion() = %v, want %v", got, CompletionComplete)
		}
	})

	t.Run("groupless user under group requirement is incomplete", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
		})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true, RequireGroup: true}

		got, err := svc.SubmissionCompletion(ctx, inst, 42)
		if err != nil {
			t.Fatalf("SubmissionCompletion() error = %v", err)
		}
		if got != CompletionIncomplete {
			t.Errorf("SubmissionCompletion() = %v, want %v", got, CompletionIncomplete)
		}
	})
}

func TestImportFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("individual submissions are keyed by user", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7}
		deps.importSrc.subs = []ImportedSubmission{
			{ID: 1, UserID: 42, Files: []ImportedFile{
				{FileID: "f-1", Filename: "a.pdf", Filepath: "/", TimeModified: at(1, 0)},
			}},
		}

		if err := svc.ImportFiles(ctx, inst); err != nil {
			t.Fatalf("ImportFiles() error = %v", err)
		}
		files, _ := deps.files.QueryFiles(ctx, inst.ID, 42)
		if len(files) != 1 || files[0].FileID != "f-1" {
			t.Errorf("files = %v, want the imported record", files)
		}
	})

	t.Run("team submissions use the group row and skip per-user rows", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
		shared := []ImportedFile{
			{FileID: "f-1", Filename: "report.pdf", Filepath: "/", TimeModified: at(1, 0)},
		}
		deps.importSrc.subs = []ImportedSubmission{
			{ID: 1, GroupID: 10, Files: shared},
			{ID: 2, UserID: 42, GroupID: 10, Files: shared}, // duplicate per-user row
		}

		if err := svc.ImportFiles(ctx, inst); err != nil {
			t.Fatalf("ImportFiles() error = %v", err)
		}
		groupFiles, _ := deps.files.QueryFiles(ctx, inst.ID, 10)
		if len(groupFiles) != 1 {
			t.Errorf("len(group files) = %d, want 1", len(groupFiles))
		}
		userFiles, _ := deps.files.QueryFiles(ctx, inst.ID, 42)
		if len(userFiles) != 0 {
			t.Errorf("len(user files) = %d, want per-user rows skipped", len(userFiles))
		}
	})

	t.Run("re-import keeps approvals of existing records", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{CourseID: 1, Mode: ModeImport, ImportFrom: 7})
		deps.importSrc.asg = Assignment{ID: 7}
		deps.importSrc.subs = []ImportedSubmission{
			{ID: 1, UserID: 42, Files: []ImportedFile{
				{FileID: "f-1", Filename: "a.pdf", Filepath: "/", TimeModified: at(1, 0)},
			}},
		}
		if err := svc.ImportFiles(ctx, inst); err != nil {
			t.Fatalf("first ImportFiles() error = %v", err)
		}
		f, _ := deps.files.GetFile(ctx, inst.ID, "f-1")
		_ = deps.files.SetTeacherApproval(ctx, f.ID, ApprovalApproved)

		deps.importSrc.subs[0].Files[0].TimeModified = at(2, 0)
		if err := svc.ImportFiles(ctx, inst); err != nil {
			t.Fatalf("second ImportFiles() error = %v", err)
		}
		got, _ := deps.files.GetFile(ctx, inst.ID, "f-1")
		if got.TeacherApproval != ApprovalApproved {
			t.Errorf("TeacherApproval = %v, want kept across re-import", got.TeacherApproval)
		}
		if !got.TimeModified.Equal(at(2, 0)) {
			t.Errorf("TimeModified = %v, want refreshed", got.TimeModified)
		}
	})
}

func TestHandleImportTrigger(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	inst, _ := deps.repo.CreateInstance(ctx, Instance{
		CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
	})
	deps.importSrc.asg = Assignment{ID: 7}
	deps.importSrc.subs = []ImportedSubmission{
		{ID: 1, UserID: 1, Files: []ImportedFile{
			{FileID: "f-1", Filename: "a.pdf", Filepath: "/", TimeModified: at(1, 0)},
		}},
	}
	deps.members.enrolled = []int{1, 2}

	if err := svc.HandleImportTrigger(ctx, inst.ID); err != nil {
		t.Fatalf("HandleImportTrigger() error = %v", err)
	}
	if got := deps.tracker.state(inst.ID, 1); got != CompletionComplete {
		t.Errorf("state(user 1) = %v, want %v", got, CompletionComplete)
	}
	if got := deps.tracker.state(inst.ID, 2); got != CompletionIncomplete {
		t.Errorf("state(user 2) = %v, want %v", got, CompletionIncomplete)
	}
}

func TestHandleAssessableSubmitted(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	fed, _ := deps.repo.CreateInstance(ctx, Instance{
		CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
	})
	other, _ := deps.repo.CreateInstance(ctx, Instance{
		CourseID: 1, Mode: ModeImport, ImportFrom: 8, CompletionSubmission: true,
	})
	deps.importSrc.asg = Assignment{ID: 7}
	deps.importSrc.subs = []ImportedSubmission{
		{ID: 1, UserID: 1, Files: []ImportedFile{
			{FileID: "f-1", Filename: "a.pdf", Filepath: "/", TimeModified: at(1, 0)},
		}},
	}
	deps.members.enrolled = []int{1}

	if err := svc.HandleAssessableSubmitted(ctx, 7); err != nil {
		t.Fatalf("HandleAssessableSubmitted() error = %v", err)
	}
	if files, _ := deps.files.QueryFiles(ctx, fed.ID, 1); len(files) != 1 {
		t.Errorf("len(fed instance files) = %d, want 1", len(files))
	}
	if files, _ := deps.files.QueryFiles(ctx, other.ID, 1); len(files) != 0 {
		t.Errorf("len(other instance files) = %d, want untouched", len(files))
	}
}

func TestHandleMembershipChange(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	inst, _ := deps.repo.CreateInstance(ctx, Instance{
		CourseID: 1, Mode: ModeImport, ImportFrom: 7, CompletionSubmission: true,
	})
	deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 10, FileID: "f-1",
		Filename: "report.pdf", Filepath: "/", TimeModified: at(1, 0),
	})

	// user joins group 10
	deps.members.userGroups[42] = []int{10}
	if err := svc.HandleMembershipChange(ctx, 1, 42); err != nil {
		t.Fatalf("HandleMembershipChange() error = %v", err)
	}
	if got := deps.tracker.state(inst.ID, 42); got != CompletionComplete {
		t.Errorf("state after join = %v, want %v", got, CompletionComplete)
	}

	// user leaves; falls back to the empty groupless cohort
	delete(deps.members.userGroups, 42)
	if err := svc.HandleMembershipChange(ctx, 1, 42); err != nil {
		t.Fatalf("HandleMembershipChange() error = %v", err)
	}
	if got := deps.tracker.state(inst.ID, 42); got != CompletionIncomplete {
		t.Errorf("state after leave = %v, want %v", got, CompletionIncomplete)
	}
}
