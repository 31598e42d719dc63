package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edulab/publication/core/publication"
)

type publicationRepository struct {
	db *sqlx.DB
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *sqlx.DB) *publicationRepository {
	return &publicationRepository{db: db}
}

type publicationRow struct {
	ID                    int       `db:"id"`
	CourseID              int       `db:"course_id"`
	Name                  string    `db:"name"`
	Mode                  int       `db:"mode"`
	ImportFrom            int       `db:"import_from"`
	GroupingID            int       `db:"grouping_id"`
	ObtainStudentApproval bool      `db:"obtain_student_approval"`
	ObtainTeacherApproval bool      `db:"obtain_teacher_approval"`
	GroupApproval         int       `db:"group_approval"`
	AllowSubmissionsFrom  null.Time `db:"allow_submissions_from"`
	DueDate               null.Time `db:"due_date"`
	ApprovalFrom          null.Time `db:"approval_from"`
	ApprovalTo            null.Time `db:"approval_to"`
	NotifyFileChange      bool      `db:"notify_file_change"`
	NotifyStatusChange    bool      `db:"notify_status_change"`
	CompletionUpload      bool      `db:"completion_upload"`
	CompletionSubmission  bool      `db:"completion_submission"`
	CreatedAt             null.Time `db:"created_at"`
	UpdatedAt             null.Time `db:"updated_at"`
}

func (repo publicationRepository) row(inst publication.Instance) publicationRow {
	return publicationRow{
		ID:                    inst.ID,
		CourseID:              inst.CourseID,
		Name:                  inst.Name,
		Mode:                  int(inst.Mode),
		ImportFrom:            inst.ImportFrom,
		GroupingID:            inst.GroupingID,
		ObtainStudentApproval: inst.ObtainStudentApproval,
		ObtainTeacherApproval: inst.ObtainTeacherApproval,
		GroupApproval:         int(inst.GroupApproval),
		AllowSubmissionsFrom:  null.NewTime(inst.AllowSubmissionsFrom.UTC(), !inst.AllowSubmissionsFrom.IsZero()),
		DueDate:               null.NewTime(inst.DueDate.UTC(), !inst.DueDate.IsZero()),
		ApprovalFrom:          null.NewTime(inst.ApprovalFrom.UTC(), !inst.ApprovalFrom.IsZero()),
		ApprovalTo:            null.NewTime(inst.ApprovalTo.UTC(), !inst.ApprovalTo.IsZero()),
		NotifyFileChange:      inst.NotifyFileChange,
		NotifyStatusChange:    inst.NotifyStatusChange,
		CompletionUpload:      inst.CompletionUpload,
		CompletionSubmission:  inst.CompletionSubmission,
		CreatedAt:             null.NewTime(inst.CreatedAt.UTC(), !inst.CreatedAt.IsZero()),
		UpdatedAt:             null.NewTime(inst.UpdatedAt.UTC(), !inst.UpdatedAt.IsZero()),
	}
}

func (repo publicationRepository) unrow(row publicationRow) publication.Instance {
	return publication.Instance{
		ID:                    row.ID,
		CourseID:              row.CourseID,
		Name:                  row.Name,
		Mode:                  publication.Mode(row.Mode),
		ImportFrom:            row.ImportFrom,
		GroupingID:            row.GroupingID,
		ObtainStudentApproval: row.ObtainStudentApproval,
		ObtainTeacherApproval: row.ObtainTeacherApproval,
		GroupApproval:         publication.GroupApprovalPolicy(row.GroupApproval),
		AllowSubmissionsFrom:  row.AllowSubmissionsFrom.Time,
		DueDate:               row.DueDate.Time,
		ApprovalFrom:          row.ApprovalFrom.Time,
		ApprovalTo:            row.ApprovalTo.Time,
		NotifyFileChange:      row.NotifyFileChange,
		NotifyStatusChange:    row.NotifyStatusChange,
		CompletionUpload:      row.CompletionUpload,
		CompletionSubmission:  row.CompletionSubmission,
		CreatedAt:             row.CreatedAt.Time,
		UpdatedAt:             row.UpdatedAt.Time,
	}
}

func (repo publicationRepository) unrowSlice(rows []publicationRow) []publication.Instance {
	insts := make([]publication.Instance, 0, len(rows))
	for _, row := range rows {
		insts = append(insts, repo.unrow(row))
	}
	return insts
}

// trapNoRowsErr maps psql "no rows" err to publication.ErrNotFound
func (repo publicationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return publication.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo publicationRepository) CreateInstance(ctx context.Context, inst publication.Instance) (publication.Instance, error) {
	const query = `
INSERT INTO publication (
	course_id, name, mode, import_from, grouping_id,
	obtain_student_approval, obtain_teacher_approval, group_approval,
	allow_submissions_from, due_date, approval_from, approval_to,
	notify_file_change, notify_status_change, completion_upload, completion_submission,
	created_at, updated_at
) VALUES (
	:course_id, :name, :mode, :import_from, :grouping_id,
	:obtain_student_approval, :obtain_teacher_approval, :group_approval,
	:allow_submissions_from, :due_date, :approval_from, :approval_to,
	:notify_file_change, :notify_status_change, :completion_upload, :completion_submission,
	:created_at, :updated_at
) RETURNING id`

	stmt, err := repo.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return publication.Instance{}, errors.Wrap(err, "preparing insert")
	}
	defer func() { _ = stmt.Close() }()

	if err = stmt.GetContext(ctx, &inst.ID, repo.row(inst)); err != nil {
		return publication.Instance{}, errors.Wrap(err, "inserting publication")
	}
	return inst, nil
}

func (repo publicationRepository) GetInstance(ctx context.Context, id int) (publication.Instance, error) {
	var row publicationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM publication WHERE id = $1`, id); err != nil {
		return publication.Instance{}, repo.trapNoRowsErr(err, "getting publication")
	}
	return repo.unrow(row), nil
}

func (repo publicationRepository) QueryInstancesByCourse(ctx context.Context, courseID int) ([]publication.Instance, error) {
	var rows []publicationRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM publication WHERE course_id = $1 ORDER BY id`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course publications")
	}
	return repo.unrowSlice(rows), nil
}

func (repo publicationRepository) QueryInstancesByImportSource(ctx context.Context, importFrom int) ([]publication.Instance, error) {
	var rows []publicationRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM publication WHERE mode = $1 AND import_from = $2 ORDER BY id`,
		int(publication.ModeImport), importFrom)
	if err != nil {
		return nil, errors.Wrap(err, "querying fed publications")
	}
	return repo.unrowSlice(rows), nil
}

func (repo publicationRepository) UpdateInstance(ctx context.Context, inst publication.Instance) (publication.Instance, error) {
	const query = `
UPDATE publication SET
	name = :name,
	obtain_student_approval = :obtain_student_approval,
	obtain_teacher_approval = :obtain_teacher_approval,
	group_approval = :group_approval,
	allow_submissions_from = :allow_submissions_from,
	due_date = :due_date,
	approval_from = :approval_from,
	approval_to = :approval_to,
	notify_file_change = :notify_file_change,
	notify_status_change = :notify_status_change,
	completion_upload = :completion_upload,
	completion_submission = :completion_submission,
	updated_at = :updated_at
WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, repo.row(inst))
	if err != nil {
		return publication.Instance{}, errors.Wrap(err, "updating publication")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return publication.Instance{}, publication.ErrNotFound
	}
	return inst, nil
}

func (repo publicationRepository) DeleteInstance(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM publication WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting publication")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return publication.ErrNotFound
	}
	return nil
}
