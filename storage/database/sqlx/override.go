package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edulab/publication/core/publication"
)

type overrideRepository struct {
	db *sqlx.DB
}

var _ publication.OverrideRepository = (*overrideRepository)(nil) // interface compliance check

func NewOverrideRepository(db *sqlx.DB) *overrideRepository {
	return &overrideRepository{db: db}
}

type overrideRow struct {
	ID                   int       `db:"id"`
	PublicationID        int       `db:"publication_id"`
	UserID               int       `db:"user_id"`
	GroupID              int       `db:"group_id"`
	SubmissionOverride   bool      `db:"submission_override"`
	ApprovalOverride     bool      `db:"approval_override"`
	AllowSubmissionsFrom null.Time `db:"allow_submissions_from"`
	DueDate              null.Time `db:"due_date"`
	ApprovalFrom         null.Time `db:"approval_from"`
	ApprovalTo           null.Time `db:"approval_to"`
	CreatedAt            null.Time `db:"created_at"`
	UpdatedAt            null.Time `db:"updated_at"`
}

func (repo overrideRepository) unrow(row overrideRow) publication.Override {
	return publication.Override{
		ID:                   row.ID,
		PublicationID:        row.PublicationID,
		UserID:               row.UserID,
		GroupID:              row.GroupID,
		SubmissionOverride:   row.SubmissionOverride,
		ApprovalOverride:     row.ApprovalOverride,
		AllowSubmissionsFrom: row.AllowSubmissionsFrom.Time,
		DueDate:              row.DueDate.Time,
		ApprovalFrom:         row.ApprovalFrom.Time,
		ApprovalTo:           row.ApprovalTo.Time,
		CreatedAt:            row.CreatedAt.Time,
		UpdatedAt:            row.UpdatedAt.Time,
	}
}

// actorIDs splits a submitter into the (user_id, group_id) column pair.
func actorIDs(actor publication.Submitter) (userID, groupID int) {
	if actor.Kind == publication.ActorGroup {
		return 0, actor.ID
	}
	return actor.ID, 0
}

func (repo overrideRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return publication.ErrOverrideNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo overrideRepository) GetOverride(ctx context.Context, publicationID int, actor publication.Submitter) (publication.Override, error) {
	userID, groupID := actorIDs(actor)
	var row overrideRow
	err := repo.db.GetContext(ctx, &row, `
SELECT * FROM publication_overrides
WHERE publication_id = $1 AND user_id = $2 AND group_id = $3`,
		publicationID, userID, groupID)
	if err != nil {
		return publication.Override{}, repo.trapNoRowsErr(err, "getting override")
	}
	return repo.unrow(row), nil
}

func (repo overrideRepository) QueryOverrides(ctx context.Context, publicationID int) ([]publication.Override, error) {
	var rows []overrideRow
	err := repo.db.SelectContext(ctx, &rows, `
SELECT * FROM publication_overrides
WHERE publication_id = $1
ORDER BY id`, publicationID)
	if err != nil {
		return nil, errors.Wrap(err, "querying overrides")
	}
	overrides := make([]publication.Override, 0, len(rows))
	for _, row := range rows {
		overrides = append(overrides, repo.unrow(row))
	}
	return overrides, nil
}

func (repo overrideRepository) SaveOverride(ctx context.Context, o publication.Override) (publication.Override, error) {
	var row overrideRow
	err := repo.db.GetContext(ctx, &row, `
INSERT INTO publication_overrides (
	publication_id, user_id, group_id, submission_override, approval_override,
	allow_submissions_from, due_date, approval_from, approval_to, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (publication_id, user_id, group_id) DO UPDATE
	SET submission_override = EXCLUDED.submission_override,
	    approval_override = EXCLUDED.approval_override,
	    allow_submissions_from = EXCLUDED.allow_submissions_from,
	    due_date = EXCLUDED.due_date,
	    approval_from = EXCLUDED.approval_from,
	    approval_to = EXCLUDED.approval_to,
	    updated_at = EXCLUDED.updated_at
RETURNING *`,
		o.PublicationID, o.UserID, o.GroupID, o.SubmissionOverride, o.ApprovalOverride,
		null.NewTime(o.AllowSubmissionsFrom.UTC(), !o.AllowSubmissionsFrom.IsZero()),
		null.NewTime(o.DueDate.UTC(), !o.DueDate.IsZero()),
		null.NewTime(o.ApprovalFrom.UTC(), !o.ApprovalFrom.IsZero()),
		null.NewTime(o.ApprovalTo.UTC(), !o.ApprovalTo.IsZero()),
		o.UpdatedAt.UTC())
	if err != nil {
		return publication.Override{}, errors.Wrap(err, "saving override")
	}
	return repo.unrow(row), nil
}

func (repo overrideRepository) DeleteOverride(ctx context.Context, publicationID int, actor publication.Submitter) error {
	userID, groupID := actorIDs(actor)
	res, err := repo.db.ExecContext(ctx, `
DELETE FROM publication_overrides
WHERE publication_id = $1 AND user_id = $2 AND group_id = $3`,
		publicationID, userID, groupID)
	if err != nil {
		return errors.Wrap(err, "deleting override")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return publication.ErrOverrideNotFound
	}
	return nil
}
