package publication

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestApprovalRawMapping(t *testing.T) {
	tests := []struct {
		name    string
		student null.Uint8
		teacher null.Uint8
		wantS   Approval
		wantT   Approval
	}{
		{name: "both unset", wantS: ApprovalPending, wantT: ApprovalPending},
		{name: "student approved", student: null.Uint8From(1), wantS: ApprovalApproved, wantT: ApprovalPending},
		{name: "student rejected", student: null.Uint8From(0), wantS: ApprovalRejected, wantT: ApprovalPending},
		{name: "teacher approved", teacher: null.Uint8From(1), wantS: ApprovalPending, wantT: ApprovalApproved},
		{name: "teacher rejected", teacher: null.Uint8From(2), wantS: ApprovalPending, wantT: ApprovalRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StudentApprovalFromRaw(tt.student); got != tt.wantS {
				t.Errorf("StudentApprovalFromRaw() = %v, want %v", got, tt.wantS)
			}
			if got := TeacherApprovalFromRaw(tt.teacher); got != tt.wantT {
				t.Errorf("TeacherApprovalFromRaw() = %v, want %v", got, tt.wantT)
			}
			// round trip
			if got := StudentApprovalFromRaw(StudentApprovalRaw(tt.wantS)); got != tt.wantS {
				t.Errorf("student round trip = %v, want %v", got, tt.wantS)
			}
			if got := TeacherApprovalFromRaw(TeacherApprovalRaw(tt.wantT)); got != tt.wantT {
				t.Errorf("teacher round trip = %v, want %v", got, tt.wantT)
			}
		})
	}
}

func TestFileApprovalStateAutoPass(t *testing.T) {
	svc, _ := newTestService()
	f := SubmissionFile{StudentApproval: ApprovalPending, TeacherApproval: ApprovalPending}

	// upload instance requiring only teacher approval: student axis passes automatically
	inst := Instance{Mode: ModeUpload, ObtainTeacherApproval: true}
	student, teacher := svc.FileApprovalState(inst, f)
	if student != ApprovalApproved {
		t.Errorf("student = %v, want auto-approved", student)
	}
	if teacher != ApprovalPending {
		t.Errorf("teacher = %v, want pending", teacher)
	}

	inst = Instance{Mode: ModeUpload, ObtainStudentApproval: true}
	student, teacher = svc.FileApprovalState(inst, f)
	if student != ApprovalPending {
		t.Errorf("student = %v, want pending", student)
	}
	if teacher != ApprovalApproved {
		t.Errorf("teacher = %v, want auto-approved", teacher)
	}
}

func groupFixture(t *testing.T, votes map[int]Approval) (*Service, *testDeps, Instance, SubmissionFile) {
	t.Helper()
	svc, deps := newTestService()
	inst, err := deps.repo.CreateInstance(context.Background(), Instance{
		CourseID:              1,
		Mode:                  ModeImport,
		ImportFrom:            7,
		ObtainStudentApproval: true,
	})
	if err != nil {
		t.Fatalf("creating instance: %v", err)
	}
	deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
	deps.members.members[10] = []int{1, 2, 3}
	deps.members.userGroups[1] = []int{10}
	deps.members.userGroups[2] = []int{10}
	deps.members.userGroups[3] = []int{10}

	f, err := deps.files.UpsertFile(context.Background(), SubmissionFile{
		PublicationID: inst.ID, OwnerID: 10, FileID: "f-1", Filename: "report.pdf",
		Filepath: "/", TimeModified: at(1, 10),
	})
	if err != nil {
		t.Fatalf("creating file: %v", err)
	}
	for userID, a := range votes {
		if err := deps.files.SetVote(context.Background(), f.ID, userID, a); err != nil {
			t.Fatalf("setting vote: %v", err)
		}
	}
	return svc, deps, inst, f
}

func TestGroupApprovalState(t *testing.T) {
	tests := []struct {
		name   string
		policy GroupApprovalPolicy
		votes  map[int]Approval
		want   Approval
	}{
		{
			name:   "single: one approval suffices",
			policy: GroupApprovalSingle,
			votes:  map[int]Approval{1: ApprovalApproved},
			want:   ApprovalApproved,
		},
		{
			name:   "single: rejection wins over approval",
			policy: GroupApprovalSingle,
			votes:  map[int]Approval{1: ApprovalApproved, 2: ApprovalRejected},
			want:   ApprovalRejected,
		},
		{
			name:   "single: no votes is pending",
			policy: GroupApprovalSingle,
			votes:  nil,
			want:   ApprovalPending,
		},
		{
			name:   "all: every member approved",
			policy: GroupApprovalAll,
			votes:  map[int]Approval{1: ApprovalApproved, 2: ApprovalApproved, 3: ApprovalApproved},
			want:   ApprovalApproved,
		},
		{
			name:   "all: one pending member blocks approval",
			policy: GroupApprovalAll,
			votes:  map[int]Approval{1: ApprovalApproved, 2: ApprovalApproved},
			want:   ApprovalPending,
		},
		{
			name:   "all: one rejection rejects",
			policy: GroupApprovalAll,
			votes:  map[int]Approval{1: ApprovalApproved, 2: ApprovalRejected, 3: ApprovalApproved},
			want:   ApprovalRejected,
		},
		{
			name:   "automatic: no vote collection",
			policy: GroupApprovalAutomatic,
			votes:  map[int]Approval{1: ApprovalRejected},
			want:   ApprovalApproved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, inst, f := groupFixture(t, tt.votes)
			inst.GroupApproval = tt.policy

			got, votes, err := svc.GroupApprovalState(context.Background(), inst, f.ID)
			if err != nil {
				t.Fatalf("GroupApprovalState() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GroupApprovalState() = %v, want %v", got, tt.want)
			}
			if tt.policy != GroupApprovalAutomatic && len(votes) != 3 {
				t.Errorf("len(votes) = %d, want one per member", len(votes))
			}
		})
	}
}

func TestGroupApprovalStateNotRequired(t *testing.T) {
	svc, _, inst, f := groupFixture(t, map[int]Approval{1: ApprovalRejected})
	inst.ObtainStudentApproval = false
	inst.GroupApproval = GroupApprovalAll

	got, votes, err := svc.GroupApprovalState(context.Background(), inst, f.ID)
	if err != nil {
		t.Fatalf("GroupApprovalState() error = %v", err)
	}
	if got != ApprovalApproved {
		t.Errorf("GroupApprovalState() = %v, want auto-approved", got)
	}
	if votes != nil {
		t.Errorf("votes = %v, want none collected", votes)
	}
}

func TestCombinedStatus(t *testing.T) {
	ctx := context.Background()

	newUploadInstance := func(t *testing.T, deps *testDeps, obtainStudent, obtainTeacher bool) Instance {
		t.Helper()
		inst, err := deps.repo.CreateInstance(ctx, Instance{
			CourseID:              1,
			Mode:                  ModeUpload,
			ObtainStudentApproval: obtainStudent,
			ObtainTeacherApproval: obtainTeacher,
		})
		if err != nil {
			t.Fatalf("creating instance: %v", err)
		}
		return inst
	}
	addFile := func(t *testing.T, deps *testDeps, inst Instance, owner int, fileID string, s, a Approval) {
		t.Helper()
		_, err := deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: owner, FileID: fileID,
			Filename: fileID + ".pdf", Filepath: "/", TimeModified: at(1, 10),
			StudentApproval: s, TeacherApproval: a,
		})
		if err != nil {
			t.Fatalf("creating file: %v", err)
		}
	}
	me := Submitter{Kind: ActorUser, ID: 42}

	t.Run("no files", func(t *testing.T) {
		svc, deps := newTestService()
		inst := newUploadInstance(t, deps, true, true)
		got, err := svc.CombinedStatus(ctx, inst, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got != StatusNoFiles {
			t.Errorf("CombinedStatus() = %v, want %v", got, StatusNoFiles)
		}
	})

	t.Run("teacher pending holds overall pending", func(t *testing.T) {
		// upload, teacher approval required, student axis auto-approves
		svc, deps := newTestService()
		inst := newUploadInstance(t, deps, false, true)
		addFile(t, deps, inst, me.ID, "f-1", ApprovalPending, ApprovalPending)

		got, err := svc.CombinedStatus(ctx, inst, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got != StatusPending {
			t.Errorf("CombinedStatus() = %v, want %v", got, StatusPending)
		}
	})

	t.Run("rejection dominates regardless of order", func(t *testing.T) {
		svc, deps := newTestService()
		inst := newUploadInstance(t, deps, true, true)
		addFile(t, deps, inst, me.ID, "f-approved", ApprovalApproved, ApprovalApproved)
		addFile(t, deps, inst, me.ID, "f-rejected", ApprovalRejected, ApprovalApproved)

		got, err := svc.CombinedStatus(ctx, inst, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got != StatusRejected {
			t.Errorf("CombinedStatus() = %v, want %v", got, StatusRejected)
		}

		// same files, reversed insertion order
		svc2, deps2 := newTestService()
		inst2 := newUploadInstance(t, deps2, true, true)
		addFile(t, deps2, inst2, me.ID, "f-rejected", ApprovalRejected, ApprovalApproved)
		addFile(t, deps2, inst2, me.ID, "f-approved", ApprovalApproved, ApprovalApproved)

		got2, err := svc2.CombinedStatus(ctx, inst2, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got2 != StatusRejected {
			t.Errorf("CombinedStatus() = %v, want %v", got2, StatusRejected)
		}
	})

	t.Run("student axis never rejects when approval not required", func(t *testing.T) {
		svc, deps := newTestService()
		inst := newUploadInstance(t, deps, false, false)
		addFile(t, deps, inst, me.ID, "f-1", ApprovalRejected, ApprovalPending)

		got, err := svc.CombinedStatus(ctx, inst, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got != StatusApproved {
			t.Errorf("CombinedStatus() = %v, want %v (both axes auto)", got, StatusApproved)
		}
	})

	t.Run("all approved", func(t *testing.T) {
		svc, deps := newTestService()
		inst := newUploadInstance(t, deps, true, true)
		addFile(t, deps, inst, me.ID, "f-1", ApprovalApproved, ApprovalApproved)
		addFile(t, deps, inst, me.ID, "f-2", ApprovalApproved, ApprovalApproved)

		got, err := svc.CombinedStatus(ctx, inst, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got != StatusApproved {
			t.Errorf("CombinedStatus() = %v, want %v", got, StatusApproved)
		}
	})

	t.Run("resources are excluded from the fold", func(t *testing.T) {
		svc, deps := newTestService()
		inst := newUploadInstance(t, deps, true, true)
		_, err := deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: me.ID, FileID: "r-1",
			Filename: "handout.pdf", Filepath: ResourcesPath, TimeModified: at(1, 9),
		})
		if err != nil {
			t.Fatalf("creating resource: %v", err)
		}
		got, err := svc.CombinedStatus(ctx, inst, me)
		if err != nil {
			t.Fatalf("CombinedStatus() error = %v", err)
		}
		if got != StatusNoFiles {
			t.Errorf("CombinedStatus() = %v, want %v", got, StatusNoFiles)
		}
	})
}

func TestReleasedFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("individual mode: approved unblocked files only", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload,
			ObtainStudentApproval: true, ObtainTeacherApproval: true,
		})
		deps.members.enrolled = []int{1, 2}

		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 1, FileID: "f-ok", Filename: "ok.pdf",
			Filepath: "/", TimeModified: at(2, 0),
			StudentApproval: ApprovalApproved, TeacherApproval: ApprovalApproved,
		})
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 2, FileID: "f-early", Filename: "early.pdf",
			Filepath: "/", TimeModified: at(1, 0),
			StudentApproval: ApprovalApproved, TeacherApproval: ApprovalApproved,
		})
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 1, FileID: "f-pending", Filename: "pending.pdf",
			Filepath: "/", TimeModified: at(3, 0),
			StudentApproval: ApprovalApproved,
		})
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 2, FileID: "f-blocked", Filename: "blocked.pdf",
			Filepath: "/", TimeModified: at(4, 0),
			StudentApproval: ApprovalApproved, TeacherApproval: ApprovalApproved, Blocked: true,
		})
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 1, FileID: "r-1", Filename: "handout.pdf",
			Filepath: ResourcesPath, TimeModified: at(5, 0),
		})

		files, err := svc.ReleasedFiles(ctx, inst)
		if err != nil {
			t.Fatalf("ReleasedFiles() error = %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("len(files) = %d, want 2", len(files))
		}
		if files[0].FileID != "f-early" || files[1].FileID != "f-ok" {
			t.Errorf("files = %q, %q; want f-early, f-ok in time order",
				files[0].FileID, files[1].FileID)
		}
	})

	t.Run("team mode folds the group consensus", func(t *testing.T) {
		svc, deps, inst, f := groupFixture(t, map[int]Approval{1: ApprovalApproved})
		inst.GroupApproval = GroupApprovalSingle
		deps.members.groups = []int{10}

		files, err := svc.ReleasedFiles(ctx, inst)
		if err != nil {
			t.Fatalf("ReleasedFiles() error = %v", err)
		}
		if len(files) != 1 || files[0].FileID != f.FileID {
			t.Fatalf("files = %v, want the consensus-approved file", files)
		}

		// a rejection by any member pulls the file back
		if err := deps.files.SetVote(ctx, f.ID, 2, ApprovalRejected); err != nil {
			t.Fatalf("setting vote: %v", err)
		}
		files, err = svc.ReleasedFiles(ctx, inst)
		if err != nil {
			t.Fatalf("ReleasedFiles() error = %v", err)
		}
		if len(files) != 0 {
			t.Errorf("files = %v, want none after a rejection", files)
		}
	})
}

func TestSetStudentApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("individual vote inside open window", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, ObtainStudentApproval: true,
		})
		f, _ := deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 42, FileID: "f-1", Filepath: "/",
			Filename: "essay.odt", TimeModified: at(1, 10),
		})

		if err := svc.SetStudentApproval(ctx, inst, 42, "f-1", ApprovalApproved); err != nil {
			t.Fatalf("SetStudentApproval() error = %v", err)
		}
		got, _ := deps.files.GetFileByID(ctx, f.ID)
		if got.StudentApproval != ApprovalApproved {
			t.Errorf("StudentApproval = %v, want %v", got.StudentApproval, ApprovalApproved)
		}
	})

	t.Run("write outside window is refused", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, ObtainStudentApproval: true,
			ApprovalTo: at(1, 0),
		})
		f, _ := deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 42, FileID: "f-1", Filepath: "/",
			Filename: "essay.odt", TimeModified: at(1, 10),
		})
		svc.nowFunc = func() time.Time { return at(2, 0) } // one day past ApprovalTo

		if err := svc.SetStudentApproval(ctx, inst, 42, "f-1", ApprovalApproved); err != ErrApprovalClosed {
			t.Fatalf("SetStudentApproval() error = %v, want %v", err, ErrApprovalClosed)
		}
		got, _ := deps.files.GetFileByID(ctx, f.ID)
		if got.StudentApproval != ApprovalPending {
			t.Errorf("StudentApproval = %v, want unchanged", got.StudentApproval)
		}
	})

	t.Run("approval override reopens the window", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, ObtainStudentApproval: true,
			ApprovalTo: at(1, 0),
		})
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 42, FileID: "f-1", Filepath: "/",
			Filename: "essay.odt", TimeModified: at(1, 10),
		})
		_, err := deps.overrides.SaveOverride(ctx, Override{
			PublicationID: inst.ID, UserID: 42,
			ApprovalOverride: true, ApprovalTo: at(9, 0),
		})
		if err != nil {
			t.Fatalf("saving override: %v", err)
		}
		svc.nowFunc = func() time.Time { return at(2, 0) }

		if err := svc.SetStudentApproval(ctx, inst, 42, "f-1", ApprovalApproved); err != nil {
			t.Fatalf("SetStudentApproval() error = %v", err)
		}
	})

	t.Run("file of another submitter is not found", func(t *testing.T) {
		svc, deps := newTestService()
		inst, _ := deps.repo.CreateInstance(ctx, Instance{
			CourseID: 1, Mode: ModeUpload, ObtainStudentApproval: true,
		})
		_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
			PublicationID: inst.ID, OwnerID: 7, FileID: "f-1", Filepath: "/",
			Filename: "essay.odt", TimeModified: at(1, 10),
		})

		if err := svc.SetStudentApproval(ctx, inst, 42, "f-1", ApprovalApproved); err != ErrFileNotFound {
			t.Errorf("SetStudentApproval() error = %v, want %v", err, ErrFileNotFound)
		}
	})

	t.Run("team mode records a member vote", func(t *testing.T) {
		svc, deps, inst, f := func() (*Service, *testDeps, Instance, SubmissionFile) {
			svc, deps := newTestService()
			inst, _ := deps.repo.CreateInstance(context.Background(), Instance{
				CourseID: 1, Mode: ModeImport, ImportFrom: 7, ObtainStudentApproval: true,
				GroupApproval: GroupApprovalSingle,
			})
			deps.importSrc.asg = Assignment{ID: 7, TeamSubmission: true}
			deps.members.userGroups[2] = []int{10}
			deps.members.members[10] = []int{1, 2}
			f, _ := deps.files.UpsertFile(context.Background(), SubmissionFile{
				PublicationID: inst.ID, OwnerID: 10, FileID: "f-1", Filepath: "/",
				Filename: "report.pdf", TimeModified: at(1, 10),
			})
			return svc, deps, inst, f
		}()

		if err := svc.SetStudentApproval(ctx, inst, 2, "f-1", ApprovalApproved); err != nil {
			t.Fatalf("SetStudentApproval() error = %v", err)
		}
		votes, _ := deps.files.QueryVotes(ctx, f.ID)
		if len(votes) != 1 || votes[0].UserID != 2 || votes[0].Approval != ApprovalApproved {
			t.Errorf("votes = %v, want single approved vote by user 2", votes)
		}
		// the file row itself is untouched in team mode
		got, _ := deps.files.GetFileByID(ctx, f.ID)
		if got.StudentApproval != ApprovalPending {
			t.Errorf("file StudentApproval = %v, want pending", got.StudentApproval)
		}
	})
}

func TestPendingTeacherApprovals(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService()
	inst, _ := deps.repo.CreateInstance(ctx, Instance{
		CourseID: 1, Mode: ModeUpload, ObtainTeacherApproval: true,
	})
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 1, FileID: "f-1", Filepath: "/",
		Filename: "a.pdf", TimeModified: at(1, 10),
	})
	f2, _ := deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 2, FileID: "f-2", Filepath: "/",
		Filename: "b.pdf", TimeModified: at(1, 11),
	})
	_, _ = deps.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID, OwnerID: 3, FileID: "r-1", Filepath: ResourcesPath,
		Filename: "handout.pdf", TimeModified: at(1, 12),
	})
	_ = deps.files.SetTeacherApproval(ctx, f2.ID, ApprovalApproved)

	n, err := svc.PendingTeacherApprovals(ctx, inst)
	if err != nil {
		t.Fatalf("PendingTeacherApprovals() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PendingTeacherApprovals() = %d, want 1", n)
	}

	inst.ObtainTeacherApproval = false
	if n, _ = svc.PendingTeacherApprovals(ctx, inst); n != 0 {
		t.Errorf("PendingTeacherApprovals() = %d, want 0 when not required", n)
	}
}
