package dummydb

import (
	"context"
	"sort"

	"github.com/edulab/publication/core/publication"
)

type fileRepository struct {
	db *fileTable
}

var _ publication.FileRepository = (*fileRepository)(nil) // interface compliance check

func NewFileRepository(db *DB) *fileRepository {
	return &fileRepository{db: db.file}
}

func (repo *fileRepository) query(match func(publication.SubmissionFile) bool) []publication.SubmissionFile {
	files := make([]publication.SubmissionFile, 0)
	for _, f := range repo.db.table {
		if match(*f) {
			files = append(files, *f)
		}
	}
	return files
}

func (repo *fileRepository) QueryFiles(_ context.Context, publicationID, ownerID int) ([]publication.SubmissionFile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	files := repo.query(func(f publication.SubmissionFile) bool {
		return f.PublicationID == publicationID && f.OwnerID == ownerID
	})
	sort.Slice(files, func(i, j int) bool { return files[i].TimeModified.Before(files[j].TimeModified) })
	return files, nil
}

func (repo *fileRepository) CountFiles(ctx context.Context, publicationID, ownerID int) (int, error) {
	files, _ := repo.QueryFiles(ctx, publicationID, ownerID)
	return len(files), nil
}

func (repo *fileRepository) GetFile(_ context.Context, publicationID int, fileID string) (publication.SubmissionFile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, f := range repo.db.table {
		if f.PublicationID == publicationID && f.FileID == fileID {
			return *f, nil
		}
	}
	return publication.SubmissionFile{}, publication.ErrFileNotFound
}

func (repo *fileRepository) GetFileByID(_ context.Context, id int) (publication.SubmissionFile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.table[id]; ok {
		return *f, nil
	}
	return publication.SubmissionFile{}, publication.ErrFileNotFound
}

func (repo *fileRepository) UpsertFile(_ context.Context, f publication.SubmissionFile) (publication.SubmissionFile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, existing := range repo.db.table {
		if existing.PublicationID == f.PublicationID &&
			existing.OwnerID == f.OwnerID && existing.FileID == f.FileID {
			f.ID = id
			f.StudentApproval = existing.StudentApproval
			f.TeacherApproval = existing.TeacherApproval
			f.Blocked = existing.Blocked
			repo.db.table[id] = &f
			return f, nil
		}
	}
	repo.db.seq++
	f.ID = repo.db.seq
	repo.db.table[f.ID] = &f
	return f, nil
}

func (repo *fileRepository) DeleteFile(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return publication.ErrFileNotFound
	}
	delete(repo.db.table, id)
	delete(repo.db.votes, id)
	return nil
}

func (repo *fileRepository) SetStudentApproval(_ context.Context, id int, a publication.Approval) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	f, ok := repo.db.table[id]
	if !ok {
		return publication.ErrFileNotFound
	}
	f.StudentApproval = a
	return nil
}

func (repo *fileRepository) SetTeacherApproval(_ context.Context, id int, a publication.Approval) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	f, ok := repo.db.table[id]
	if !ok {
		return publication.ErrFileNotFound
	}
	f.TeacherApproval = a
	return nil
}

func (repo *fileRepository) QueryVotes(_ context.Context, fileRecordID int) ([]publication.Vote, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	byUser := repo.db.votes[fileRecordID]
	votes := make([]publication.Vote, 0, len(byUser))
	for userID, a := range byUser {
		votes = append(votes, publication.Vote{UserID: userID, Approval: a})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].UserID < votes[j].UserID })
	return votes, nil
}

func (repo *fileRepository) SetVote(_ context.Context, fileRecordID, userID int, a publication.Approval) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[fileRecordID]; !ok {
		return publication.ErrFileNotFound
	}
	if repo.db.votes[fileRecordID] == nil {
		repo.db.votes[fileRecordID] = make(map[int]publication.Approval)
	}
	repo.db.votes[fileRecordID][userID] = a
	return nil
}

func (repo *fileRepository) QueryPendingTeacherApproval(_ context.Context, publicationID int) ([]publication.SubmissionFile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	files := repo.query(func(f publication.SubmissionFile) bool {
		return f.PublicationID == publicationID && !f.IsResource() &&
			f.TeacherApproval == publication.ApprovalPending && !f.Blocked
	})
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}
