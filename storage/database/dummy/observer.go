package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/optioeducation/optio/core/observer"
)

type observerRepository struct {
	db *observerTable
}

var _ observer.Repository = (*observerRepository)(nil) // interface compliance check

func NewObserverRepository(db *DB) observer.Repository {
	return &observerRepository{db: db.observer}
}

func matchesLink(l observer.Link, filter observer.LinkFilter) bool {
	if filter.ID != "" && l.ID != filter.ID {
		return false
	}
	if filter.StudentID != "" && l.StudentID != filter.StudentID {
		return false
	}
	if filter.ObserverID != "" && l.ObserverID != filter.ObserverID {
		return false
	}
	if filter.Status != "" && l.Status != filter.Status {
		return false
	}
	if filter.Token != "" && l.Token != filter.Token {
		return false
	}
	return true
}

func (repo *observerRepository) CreateLink(ctx context.Context, l observer.Link) (observer.Link, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.links {
		if existing.StudentID == l.StudentID && existing.ObserverEmail == l.ObserverEmail &&
			existing.Status != observer.StatusRevoked {
			return observer.Link{}, observer.ErrLinkExists
		}
	}
	l.ID = uuid.New().String()
	repo.db.links[l.ID] = &l
	return l, nil
}

func (repo *observerRepository) GetLink(ctx context.Context, filter observer.LinkFilter) (observer.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, l := range repo.db.links {
		if matchesLink(*l, filter) {
			return *l, nil
		}
	}
	return observer.Link{}, observer.ErrNotFound
}

func (repo *observerRepository) QueryLinks(ctx context.Context, filter observer.LinkFilter) ([]observer.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var links []observer.Link
	for _, l := range repo.db.links {
		if matchesLink(*l, filter) {
			links = append(links, *l)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].CreatedAt.After(links[j].CreatedAt) })
	return links, nil
}

func (repo *observerRepository) UpdateLink(ctx context.Context, l observer.Link) (observer.Link, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.links[l.ID]
	if !ok {
		return observer.Link{}, observer.ErrNotFound
	}
	if l.ObserverID != "" {
		orig.ObserverID = l.ObserverID
	}
	if l.Status != "" {
		orig.Status = l.Status
	}
	orig.RespondedAt = l.RespondedAt
	return *orig, nil
}
