package publication

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound         = errors.New("publication not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrOverrideNotFound = errors.New("override not found")
	ErrNoSubmitter      = errors.New("no valid submitter for user")
	ErrApprovalClosed   = errors.New("approval window is closed")
	ErrSubmissionClosed = errors.New("submission window is closed")
)

// Mode determines where a publication's files come from.
type Mode int

const (
	// ModeUpload lets students upload their own files.
	ModeUpload Mode = iota
	// ModeImport pulls files from an external assignment activity.
	// Whether the unit of submission is the user or their group is read
	// from the assignment's team-submission setting.
	ModeImport
)

// GroupApprovalPolicy collapses group members' votes into one group-level state.
type GroupApprovalPolicy int

const (
	// GroupApprovalAutomatic skips vote collection; the group axis is approved.
	GroupApprovalAutomatic GroupApprovalPolicy = iota
	// GroupApprovalSingle: one approving member suffices, unless someone rejected.
	GroupApprovalSingle
	// GroupApprovalAll: every member must approve.
	GroupApprovalAll
)

// Approval is the per-axis (student or teacher) state of a file.
type Approval int

const (
	ApprovalPending Approval = iota
	ApprovalApproved
	ApprovalRejected
)

func (a Approval) String() string {
	switch a {
	case ApprovalApproved:
		return "approved"
	case ApprovalRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// The two approval columns keep their historical raw encodings; the mapping
// lives here and nowhere else:
//
//	column           NULL      raw 0     raw 1     raw 2
//	studentapproval  pending   rejected  approved  -
//	teacherapproval  pending   -         approved  rejected
const (
	rawStudentRejected uint8 = 0
	rawStudentApproved uint8 = 1
	rawTeacherApproved uint8 = 1
	rawTeacherRejected uint8 = 2
)

// StudentApprovalFromRaw translates a raw studentapproval column value.
func StudentApprovalFromRaw(raw null.Uint8) Approval {
	if !raw.Valid {
		return ApprovalPending
	}
	if raw.Uint8 == rawStudentApproved {
		return ApprovalApproved
	}
	return ApprovalRejected
}

// StudentApprovalRaw translates an Approval back to its raw column value.
func StudentApprovalRaw(a Approval) null.Uint8 {
	switch a {
	case ApprovalApproved:
		return null.Uint8From(rawStudentApproved)
	case ApprovalRejected:
		return null.Uint8From(rawStudentRejected)
	default:
		return null.Uint8{}
	}
}

// TeacherApprovalFromRaw translates a raw teacherapproval column value.
func TeacherApprovalFromRaw(raw null.Uint8) Approval {
	if !raw.Valid {
		return ApprovalPending
	}
	if raw.Uint8 == rawTeacherApproved {
		return ApprovalApproved
	}
	return ApprovalRejected
}

// TeacherApprovalRaw translates an Approval back to its raw column value.
func TeacherApprovalRaw(a Approval) null.Uint8 {
	switch a {
	case ApprovalApproved:
		return null.Uint8From(rawTeacherApproved)
	case ApprovalRejected:
		return null.Uint8From(rawTeacherRejected)
	default:
		return null.Uint8{}
	}
}

// CombinedStatus is the folded approval state of all of a submitter's files.
type CombinedStatus int

const (
	StatusNoFiles CombinedStatus = iota
	StatusApproved
	StatusRejected
	StatusPending
)

func (s CombinedStatus) String() string {
	switch s {
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusPending:
		return "pending"
	default:
		return "nofiles"
	}
}

// CompletionState mirrors the platform's activity completion states.
type CompletionState int

const (
	CompletionUnknown CompletionState = iota
	CompletionIncomplete
	CompletionComplete
)

func (s CompletionState) String() string {
	switch s {
	case CompletionComplete:
		return "complete"
	case CompletionIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// ActorKind discriminates the two kinds of submitters.
type ActorKind int

const (
	ActorUser ActorKind = iota
	ActorGroup
)

// Submitter is the logical unit owning files under the approval workflow:
// a user in upload/individual-import modes, a group in team mode.
// GrouplessID (group 0) is the reserved cohort for users without a group.
type Submitter struct {
	Kind ActorKind `json:"kind"`
	ID   int       `json:"id"`
}

// GrouplessID is the reserved owner id for submissions of users without a group.
const GrouplessID = 0

// noTime is the unset date value.
var noTime time.Time

// ResourcesPath marks auxiliary files excluded from the approval workflow.
const ResourcesPath = "/resources/"

// Instance is one publication activity's configuration.
type Instance struct {
	ID                    int                 `json:"id"`
	CourseID              int                 `json:"course_id"`
	Name                  string              `json:"name"`
	Mode                  Mode                `json:"mode"`
	ImportFrom            int                 `json:"import_from"` // external assignment id, ModeImport only
	GroupingID            int                 `json:"grouping_id"`
	ObtainStudentApproval bool                `json:"obtain_student_approval"`
	ObtainTeacherApproval bool                `json:"obtain_teacher_approval"`
	GroupApproval         GroupApprovalPolicy `json:"group_approval"`
	AllowSubmissionsFrom  time.Time           `json:"allow_submissions_from"`
	DueDate               time.Time           `json:"due_date"`
	ApprovalFrom          time.Time           `json:"approval_from"`
	ApprovalTo            time.Time           `json:"approval_to"`
	NotifyFileChange      bool                `json:"notify_file_change"`
	NotifyStatusChange    bool                `json:"notify_status_change"`
	CompletionUpload      bool                `json:"completion_upload"`
	CompletionSubmission  bool                `json:"completion_submission"`
	CreatedAt             time.Time           `json:"created_at"` // UTC
	UpdatedAt             time.Time           `json:"updated_at"` // UTC
}

// SubmissionFile is one stored file's metadata record.
// OwnerID is a user id in individual modes and a group id in team mode
// (GrouplessID for the groupless cohort).
type SubmissionFile struct {
	ID              int       `json:"id"`
	PublicationID   int       `json:"publication_id"`
	OwnerID         int       `json:"owner_id"`
	FileID          string    `json:"file_id"` // blob-store reference
	Filename        string    `json:"filename"`
	Filepath        string    `json:"filepath"`
	TimeModified    time.Time `json:"time_modified"`
	StudentApproval Approval  `json:"student_approval"`
	TeacherApproval Approval  `json:"teacher_approval"`
	Blocked         bool      `json:"blocked"`
}

// IsResource reports whether the file sits under the reserved resources path.
func (f SubmissionFile) IsResource() bool {
	return f.Filepath == ResourcesPath
}

// FileSet is a submitter's aggregated file area.
type FileSet struct {
	Files        []SubmissionFile `json:"files"` // ordered by TimeModified ascending
	Resources    []SubmissionFile `json:"resources"`
	LastModified time.Time        `json:"last_modified"`
}

// Schedule is the effective set of dates for one actor after override resolution.
type Schedule struct {
	AllowSubmissionsFrom time.Time `json:"allow_submissions_from"`
	DueDate              time.Time `json:"due_date"`
	ApprovalFrom         time.Time `json:"approval_from"`
	ApprovalTo           time.Time `json:"approval_to"`
}

// SubmissionOpen reports whether files may be submitted at `now`.
// Zero bounds do not constrain.
func (s Schedule) SubmissionOpen(now time.Time) bool {
	if !s.AllowSubmissionsFrom.IsZero() && now.Before(s.AllowSubmissionsFrom) {
		return false
	}
	if !s.DueDate.IsZero() && now.After(s.DueDate) {
		return false
	}
	return true
}

// ApprovalOpen reports whether student approval may be given at `now`.
// Zero bounds do not constrain.
func (s Schedule) ApprovalOpen(now time.Time) bool {
	if !s.ApprovalFrom.IsZero() && now.Before(s.ApprovalFrom) {
		return false
	}
	if !s.ApprovalTo.IsZero() && now.After(s.ApprovalTo) {
		return false
	}
	return true
}

// Override replaces parts of an instance's schedule for one user or one group.
// Exactly one of UserID/GroupID is set; the other is 0. The submission and
// approval field groups are overridden independently via their flags.
type Override struct {
	ID                   int       `json:"id"`
	PublicationID        int       `json:"publication_id"`
	UserID               int       `json:"user_id"`
	GroupID              int       `json:"group_id"`
	SubmissionOverride   bool      `json:"submission_override"`
	ApprovalOverride     bool      `json:"approval_override"`
	AllowSubmissionsFrom time.Time `json:"allow_submissions_from"`
	DueDate              time.Time `json:"due_date"`
	ApprovalFrom         time.Time `json:"approval_from"`
	ApprovalTo           time.Time `json:"approval_to"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
}

// Actor returns the submitter this override is scoped to.
func (o Override) Actor() Submitter {
	if o.GroupID != 0 {
		return Submitter{Kind: ActorGroup, ID: o.GroupID}
	}
	return Submitter{Kind: ActorUser, ID: o.UserID}
}

// Vote is one group member's standing approval for a shared file.
type Vote struct {
	UserID   int      `json:"user_id"`
	Approval Approval `json:"approval"`
}

// Assignment is the slice of the external import source this module reads.
type Assignment struct {
	ID                       int
	TeamSubmission           bool
	TeamSubmissionGroupingID int
	RequireGroup             bool // prevent submissions when not in a group
}

// ImportedFile is one file pulled from the import source.
type ImportedFile struct {
	FileID       string
	Filename     string
	Filepath     string
	TimeModified time.Time
}

// ImportedSubmission is one submission of the import source.
// Team submissions carry GroupID (GrouplessID for groupless users) and may
// additionally carry per-user rows which are skipped on import.
type ImportedSubmission struct {
	ID      int
	UserID  int
	GroupID int
	Files   []ImportedFile
}
