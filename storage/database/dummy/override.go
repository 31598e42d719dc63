package dummydb

import (
	"context"
	"sort"

	"github.com/edulab/publication/core/publication"
)

type overrideRepository struct {
	db *overrideTable
}

var _ publication.OverrideRepository = (*overrideRepository)(nil) // interface compliance check

func NewOverrideRepository(db *DB) *overrideRepository {
	return &overrideRepository{db: db.override}
}

func (repo *overrideRepository) find(publicationID int, actor publication.Submitter) *publication.Override {
	for _, o := range repo.db.table {
		if o.PublicationID == publicationID && o.Actor() == actor {
			return o
		}
	}
	return nil
}

func (repo *overrideRepository) GetOverride(_ context.Context, publicationID int, actor publication.Submitter) (publication.Override, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if o := repo.find(publicationID, actor); o != nil {
		return *o, nil
	}
	return publication.Override{}, publication.ErrOverrideNotFound
}

func (repo *overrideRepository) QueryOverrides(_ context.Context, publicationID int) ([]publication.Override, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	overrides := make([]publication.Override, 0)
	for _, o := range repo.db.table {
		if o.PublicationID == publicationID {
			overrides = append(overrides, *o)
		}
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].ID < overrides[j].ID })
	return overrides, nil
}

func (repo *overrideRepository) SaveOverride(_ context.Context, o publication.Override) (publication.Override, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing := repo.find(o.PublicationID, o.Actor()); existing != nil {
		o.ID = existing.ID
		o.CreatedAt = existing.CreatedAt
	} else {
		repo.db.seq++
		o.ID = repo.db.seq
	}
	repo.db.table[o.ID] = &o
	return o, nil
}

func (repo *overrideRepository) DeleteOverride(_ context.Context, publicationID int, actor publication.Submitter) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	o := repo.find(publicationID, actor)
	if o == nil {
		return publication.ErrOverrideNotFound
	}
	delete(repo.db.table, o.ID)
	return nil
}
