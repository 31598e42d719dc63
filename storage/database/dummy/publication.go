package dummydb

import (
	"context"
	"sort"

	"github.com/edulab/publication/core/publication"
)

type publicationRepository struct {
	db *publicationTable
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *DB) *publicationRepository {
	return &publicationRepository{db: db.publication}
}

func (repo *publicationRepository) query(match func(publication.Instance) bool) []publication.Instance {
	insts := make([]publication.Instance, 0, len(repo.db.table))
	for _, inst := range repo.db.table {
		if match(*inst) {
			insts = append(insts, *inst)
		}
	}
	sort.Slice(insts, func(i, j int) bool { return insts[i].ID < insts[j].ID })
	return insts
}

func (repo *publicationRepository) CreateInstance(_ context.Context, inst publication.Instance) (publication.Instance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	inst.ID = repo.db.seq
	repo.db.table[inst.ID] = &inst
	return inst, nil
}

func (repo *publicationRepository) GetInstance(_ context.Context, id int) (publication.Instance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if inst, ok := repo.db.table[id]; ok {
		return *inst, nil
	}
	return publication.Instance{}, publication.ErrNotFound
}

func (repo *publicationRepository) QueryInstancesByCourse(_ context.Context, courseID int) ([]publication.Instance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(func(inst publication.Instance) bool { return inst.CourseID == courseID }), nil
}

func (repo *publicationRepository) QueryInstancesByImportSource(_ context.Context, importFrom int) ([]publication.Instance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(func(inst publication.Instance) bool {
		return inst.Mode == publication.ModeImport && inst.ImportFrom == importFrom
	}), nil
}

func (repo *publicationRepository) UpdateInstance(_ context.Context, inst publication.Instance) (publication.Instance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[inst.ID]; !ok {
		return publication.Instance{}, publication.ErrNotFound
	}
	repo.db.table[inst.ID] = &inst
	return inst, nil
}

func (repo *publicationRepository) DeleteInstance(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return publication.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
