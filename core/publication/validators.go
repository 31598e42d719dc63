package publication

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edulab/publication/core"
)

var validate *validator.Validate

// InitValidators registers this package's validation rules.
func InitValidators(v *validator.Validate, translator ut.Translator) {
	validate = v

	core.RegisterCustomTranslation(v, translator, importFromTag, importFromText)
	v.RegisterStructValidation(newInstanceStructValidation, NewInstance{})
}

var (
	importFromTag  = "importfrom"
	importFromText = "an import source is required in import mode"
)

func newInstanceStructValidation(sl validator.StructLevel) {
	ni := sl.Current().Interface().(NewInstance)
	if ni.Mode == ModeImport && ni.ImportFrom == 0 {
		sl.ReportError(ni.ImportFrom, "import_from", "ImportFrom", importFromTag, "")
	}
}

// NewInstance contains information needed to create a new Instance.
type NewInstance struct {
	CourseID              int                 `json:"course_id" validate:"required"`
	Name                  string              `json:"name" validate:"required"`
	Mode                  Mode                `json:"mode" validate:"min=0,max=1"`
	ImportFrom            int                 `json:"import_from"`
	GroupingID            int                 `json:"grouping_id"`
	ObtainStudentApproval bool                `json:"obtain_student_approval"`
	ObtainTeacherApproval bool                `json:"obtain_teacher_approval"`
	GroupApproval         GroupApprovalPolicy `json:"group_approval" validate:"min=0,max=2"`
	AllowSubmissionsFrom  time.Time           `json:"allow_submissions_from"`
	DueDate               time.Time           `json:"due_date" validate:"aftertime=AllowSubmissionsFrom"`
	ApprovalFrom          time.Time           `json:"approval_from"`
	ApprovalTo            time.Time           `json:"approval_to" validate:"aftertime=ApprovalFrom"`
	NotifyFileChange      bool                `json:"notify_file_change"`
	NotifyStatusChange    bool                `json:"notify_status_change"`
	CompletionUpload      bool                `json:"completion_upload"`
	CompletionSubmission  bool                `json:"completion_submission"`
}

func (ni *NewInstance) Validate() error {
	ni.Name = core.CleanString(ni.Name)
	return validate.Struct(ni)
}

// UpdateInstance defines what may be modified on an existing Instance.
type UpdateInstance struct {
	Name                  string               `json:"name"`
	ObtainStudentApproval *bool                `json:"obtain_student_approval"`
	ObtainTeacherApproval *bool                `json:"obtain_teacher_approval"`
	GroupApproval         *GroupApprovalPolicy `json:"group_approval" validate:"omitempty,min=0,max=2"`
	AllowSubmissionsFrom  *time.Time           `json:"allow_submissions_from"`
	DueDate               *time.Time           `json:"due_date"`
	ApprovalFrom          *time.Time           `json:"approval_from"`
	ApprovalTo            *time.Time           `json:"approval_to"`
	NotifyFileChange      *bool                `json:"notify_file_change"`
	NotifyStatusChange    *bool                `json:"notify_status_change"`
	CompletionUpload      *bool                `json:"completion_upload"`
	CompletionSubmission  *bool                `json:"completion_submission"`
}

func (ui *UpdateInstance) Validate() error { return validate.Struct(ui) }

// NewFile contains the metadata needed to register an uploaded file.
// FileID may be left empty; a blob reference is generated in that case.
type NewFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename" validate:"required"`
	Filepath string `json:"filepath"`
}

func (nf *NewFile) Validate() error {
	nf.Filename = core.CleanString(nf.Filename)
	return validate.Struct(nf)
}

// NewOverride contains information needed to save an Override (upsert).
type NewOverride struct {
	UserID               int       `json:"user_id"`
	GroupID              int       `json:"group_id"`
	SubmissionOverride   bool      `json:"submission_override"`
	ApprovalOverride     bool      `json:"approval_override"`
	AllowSubmissionsFrom time.Time `json:"allow_submissions_from"`
	DueDate              time.Time `json:"due_date" validate:"aftertime=AllowSubmissionsFrom"`
	ApprovalFrom         time.Time `json:"approval_from"`
	ApprovalTo           time.Time `json:"approval_to" validate:"aftertime=ApprovalFrom"`
}

func (no *NewOverride) Validate() error {
	if err := validate.Struct(no); err != nil {
		return err
	}
	// scoped to exactly one of user/group
	if (no.UserID == 0) == (no.GroupID == 0) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "user_id", Error: "exactly one of user_id or group_id must be set",
		})
	}
	return nil
}
