package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/edulab/publication/core/publication"
)

// Platform adapters over the shared LMS tables. Everything here is read-only
// except the completion tracker.

type membershipProvider struct {
	db *sqlx.DB
}

var _ publication.MembershipProvider = (*membershipProvider)(nil) // interface compliance check

func NewMembershipProvider(db *sqlx.DB) *membershipProvider {
	return &membershipProvider{db: db}
}

func (p membershipProvider) GroupsForUser(ctx context.Context, courseID, userID, groupingID int) ([]int, error) {
	var ids []int
	err := p.db.SelectContext(ctx, &ids, `
SELECT g.id
FROM course_group g
JOIN course_group_member m ON m.group_id = g.id
WHERE g.course_id = $1
  AND m.user_id = $2
  AND ($3 = 0 OR g.id IN (SELECT group_id FROM course_grouping_group WHERE grouping_id = $3))
ORDER BY m.time_added, g.id`, courseID, userID, groupingID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user groups")
	}
	return ids, nil
}

func (p membershipProvider) Groups(ctx context.Context, courseID, groupingID int) ([]int, error) {
	var ids []int
	err := p.db.SelectContext(ctx, &ids, `
SELECT id FROM course_group
WHERE course_id = $1
  AND ($2 = 0 OR id IN (SELECT group_id FROM course_grouping_group WHERE grouping_id = $2))
ORDER BY id`, courseID, groupingID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return ids, nil
}

func (p membershipProvider) GroupMembers(ctx context.Context, courseID, groupID int) ([]int, error) {
	var (
		ids []int
		err error
	)
	if groupID == publication.GrouplessID {
		// the groupless cohort: enrolled students without any group membership
		err = p.db.SelectContext(ctx, &ids, `
SELECT e.user_id
FROM course_enrolment e
WHERE e.course_id = $1
  AND e.role = 'student'
  AND e.user_id NOT IN (
	SELECT m.user_id FROM course_group_member m
	JOIN course_group g ON g.id = m.group_id
	WHERE g.course_id = $1)
ORDER BY e.user_id`, courseID)
	} else {
		err = p.db.SelectContext(ctx, &ids, `
SELECT user_id FROM course_group_member
WHERE group_id = $1
ORDER BY user_id`, groupID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying group members")
	}
	return ids, nil
}

func (p membershipProvider) EnrolledUserIDs(ctx context.Context, courseID int) ([]int, error) {
	var ids []int
	err := p.db.SelectContext(ctx, &ids, `
SELECT user_id FROM course_enrolment
WHERE course_id = $1 AND role = 'student'
ORDER BY user_id`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolments")
	}
	return ids, nil
}

func (p membershipProvider) UserAddress(ctx context.Context, userID int) (string, error) {
	var email string
	err := p.db.GetContext(ctx, &email, `SELECT email FROM app_user WHERE id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", publication.ErrNotFound
		}
		return "", errors.Wrap(err, "querying user address")
	}
	return email, nil
}

func (p membershipProvider) GraderAddresses(ctx context.Context, courseID int) ([]string, error) {
	var emails []string
	err := p.db.SelectContext(ctx, &emails, `
SELECT u.email
FROM app_user u
JOIN course_enrolment e ON e.user_id = u.id
WHERE e.course_id = $1 AND e.role = 'teacher'
ORDER BY u.email`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying grader addresses")
	}
	return emails, nil
}

type importSource struct {
	db *sqlx.DB
}

var _ publication.ImportSource = (*importSource)(nil) // interface compliance check

func NewImportSource(db *sqlx.DB) *importSource {
	return &importSource{db: db}
}

func (s importSource) Assignment(ctx context.Context, id int) (publication.Assignment, error) {
	var row struct {
		ID                       int  `db:"id"`
		TeamSubmission           bool `db:"team_submission"`
		TeamSubmissionGroupingID int  `db:"team_submission_grouping_id"`
		RequireGroup             bool `db:"require_group"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT * FROM assignment WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return publication.Assignment{}, publication.ErrNotFound
		}
		return publication.Assignment{}, errors.Wrap(err, "querying assignment")
	}
	return publication.Assignment{
		ID:                       row.ID,
		TeamSubmission:           row.TeamSubmission,
		TeamSubmissionGroupingID: row.TeamSubmissionGroupingID,
		RequireGroup:             row.RequireGroup,
	}, nil
}

func (s importSource) Submissions(ctx context.Context, assignmentID int) ([]publication.ImportedSubmission, error) {
	var rows []struct {
		SubmissionID int       `db:"submission_id"`
		UserID       int       `db:"user_id"`
		GroupID      int       `db:"group_id"`
		FileID       string    `db:"file_id"`
		Filename     string    `db:"filename"`
		Filepath     string    `db:"filepath"`
		TimeModified time.Time `db:"time_modified"`
	}
	err := s.db.SelectContext(ctx, &rows, `
SELECT s.id AS submission_id, s.user_id, s.group_id,
       f.file_id, f.filename, f.filepath, f.time_modified
FROM assignment_submission s
JOIN assignment_submission_file f ON f.submission_id = s.id
WHERE s.assignment_id = $1 AND s.status = 'submitted'
ORDER BY s.id, f.file_id`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	var subs []publication.ImportedSubmission
	for _, row := range rows {
		if len(subs) == 0 || subs[len(subs)-1].ID != row.SubmissionID {
			subs = append(subs, publication.ImportedSubmission{
				ID:      row.SubmissionID,
				UserID:  row.UserID,
				GroupID: row.GroupID,
			})
		}
		last := &subs[len(subs)-1]
		last.Files = append(last.Files, publication.ImportedFile{
			FileID:       row.FileID,
			Filename:     row.Filename,
			Filepath:     row.Filepath,
			TimeModified: row.TimeModified,
		})
	}
	return subs, nil
}

type completionTracker struct {
	db *sqlx.DB
}

var _ publication.CompletionTracker = (*completionTracker)(nil) // interface compliance check

func NewCompletionTracker(db *sqlx.DB) *completionTracker {
	return &completionTracker{db: db}
}

func (t completionTracker) UpdateState(ctx context.Context, publicationID, userID int, state publication.CompletionState) error {
	_, err := t.db.ExecContext(ctx, `
INSERT INTO activity_completion (publication_id, user_id, state, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (publication_id, user_id) DO UPDATE
	SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		publicationID, userID, int(state))
	return errors.Wrap(err, "updating completion state")
}
