package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edulab/publication/core/publication"
)

type fileRepository struct {
	db *sqlx.DB
}

var _ publication.FileRepository = (*fileRepository)(nil) // interface compliance check

func NewFileRepository(db *sqlx.DB) *fileRepository {
	return &fileRepository{db: db}
}

type fileRow struct {
	ID              int        `db:"id"`
	PublicationID   int        `db:"publication_id"`
	OwnerID         int        `db:"owner_id"`
	FileID          string     `db:"file_id"`
	Filename        string     `db:"filename"`
	Filepath        string     `db:"filepath"`
	TimeModified    null.Time  `db:"time_modified"`
	StudentApproval null.Uint8 `db:"student_approval"`
	TeacherApproval null.Uint8 `db:"teacher_approval"`
	Blocked         bool       `db:"blocked"`
}

func (repo fileRepository) unrow(row fileRow) publication.SubmissionFile {
	return publication.SubmissionFile{
		ID:              row.ID,
		PublicationID:   row.PublicationID,
		OwnerID:         row.OwnerID,
		FileID:          row.FileID,
		Filename:        row.Filename,
		Filepath:        row.Filepath,
		TimeModified:    row.TimeModified.Time,
		StudentApproval: publication.StudentApprovalFromRaw(row.StudentApproval),
		TeacherApproval: publication.TeacherApprovalFromRaw(row.TeacherApproval),
		Blocked:         row.Blocked,
	}
}

func (repo fileRepository) unrowSlice(rows []fileRow) []publication.SubmissionFile {
	files := make([]publication.SubmissionFile, 0, len(rows))
	for _, row := range rows {
		files = append(files, repo.unrow(row))
	}
	return files
}

func (repo fileRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return publication.ErrFileNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo fileRepository) QueryFiles(ctx context.Context, publicationID, ownerID int) ([]publication.SubmissionFile, error) {
	var rows []fileRow
	err := repo.db.SelectContext(ctx, &rows, `
SELECT * FROM publication_file
WHERE publication_id = $1 AND owner_id = $2
ORDER BY time_modified, id`, publicationID, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying files")
	}
	return repo.unrowSlice(rows), nil
}

func (repo fileRepository) CountFiles(ctx context.Context, publicationID, ownerID int) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `
SELECT COUNT(*) FROM publication_file
WHERE publication_id = $1 AND owner_id = $2`, publicationID, ownerID)
	if err != nil {
		return 0, errors.Wrap(err, "counting files")
	}
	return n, nil
}

func (repo fileRepository) GetFile(ctx context.Context, publicationID int, fileID string) (publication.SubmissionFile, error) {
	var row fileRow
	err := repo.db.GetContext(ctx, &row, `
SELECT * FROM publication_file
WHERE publication_id = $1 AND file_id = $2`, publicationID, fileID)
	if err != nil {
		return publication.SubmissionFile{}, repo.trapNoRowsErr(err, "getting file")
	}
	return repo.unrow(row), nil
}

func (repo fileRepository) GetFileByID(ctx context.Context, id int) (publication.SubmissionFile, error) {
	var row fileRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM publication_file WHERE id = $1`, id)
	if err != nil {
		return publication.SubmissionFile{}, repo.trapNoRowsErr(err, "getting file")
	}
	return repo.unrow(row), nil
}

func (repo fileRepository) UpsertFile(ctx context.Context, f publication.SubmissionFile) (publication.SubmissionFile, error) {
	// approvals and the blocked flag survive re-imports of an existing record
	var row fileRow
	err := repo.db.GetContext(ctx, &row, `
INSERT INTO publication_file (publication_id, owner_id, file_id, filename, filepath, time_modified)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (publication_id, owner_id, file_id) DO UPDATE
	SET filename = EXCLUDED.filename,
	    filepath = EXCLUDED.filepath,
	    time_modified = EXCLUDED.time_modified
RETURNING *`,
		f.PublicationID, f.OwnerID, f.FileID, f.Filename, f.Filepath, f.TimeModified.UTC())
	if err != nil {
		return publication.SubmissionFile{}, errors.Wrap(err, "upserting file")
	}
	return repo.unrow(row), nil
}

func (repo fileRepository) DeleteFile(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM publication_file WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting file")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return publication.ErrFileNotFound
	}
	return nil
}

func (repo fileRepository) SetStudentApproval(ctx context.Context, id int, a publication.Approval) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE publication_file SET student_approval = $1 WHERE id = $2`,
		publication.StudentApprovalRaw(a), id)
	if err != nil {
		return errors.Wrap(err, "setting student approval")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return publication.ErrFileNotFound
	}
	return nil
}

func (repo fileRepository) SetTeacherApproval(ctx context.Context, id int, a publication.Approval) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE publication_file SET teacher_approval = $1 WHERE id = $2`,
		publication.TeacherApprovalRaw(a), id)
	if err != nil {
		return errors.Wrap(err, "setting teacher approval")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return publication.ErrFileNotFound
	}
	return nil
}

func (repo fileRepository) QueryVotes(ctx context.Context, fileRecordID int) ([]publication.Vote, error) {
	var rows []struct {
		UserID   int        `db:"user_id"`
		Approval null.Uint8 `db:"approval"`
	}
	err := repo.db.SelectContext(ctx, &rows, `
SELECT user_id, approval FROM publication_groupapproval
WHERE file_record_id = $1
ORDER BY user_id`, fileRecordID)
	if err != nil {
		return nil, errors.Wrap(err, "querying votes")
	}
	votes := make([]publication.Vote, 0, len(rows))
	for _, row := range rows {
		votes = append(votes, publication.Vote{
			UserID:   row.UserID,
			Approval: publication.StudentApprovalFromRaw(row.Approval),
		})
	}
	return votes, nil
}

func (repo fileRepository) SetVote(ctx context.Context, fileRecordID, userID int, a publication.Approval) error {
	_, err := repo.db.ExecContext(ctx, `
INSERT INTO publication_groupapproval (file_record_id, user_id, approval)
VALUES ($1, $2, $3)
ON CONFLICT (file_record_id, user_id) DO UPDATE SET approval = EXCLUDED.approval`,
		fileRecordID, userID, publication.StudentApprovalRaw(a))
	return errors.Wrap(err, "setting vote")
}

func (repo fileRepository) QueryPendingTeacherApproval(ctx context.Context, publicationID int) ([]publication.SubmissionFile, error) {
	var rows []fileRow
	err := repo.db.SelectContext(ctx, &rows, `
SELECT * FROM publication_file
WHERE publication_id = $1
  AND teacher_approval IS NULL
  AND filepath <> $2
  AND NOT blocked
ORDER BY id`, publicationID, publication.ResourcesPath)
	if err != nil {
		return nil, errors.Wrap(err, "querying pending approvals")
	}
	return repo.unrowSlice(rows), nil
}
