package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/learning"
)

type learningRepository struct {
	db *learningTable
}

var _ learning.Repository = (*learningRepository)(nil) // interface compliance check

func NewLearningRepository(db *DB) learning.Repository {
	return &learningRepository{db: db.learning}
}

func (repo *learningRepository) CreateEvent(ctx context.Context, evt learning.Event) (learning.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	evt.ID = uuid.New().String()
	repo.db.events = append(repo.db.events, evt)
	return evt, nil
}

func (repo *learningRepository) QueryEvents(ctx context.Context, filter learning.EventFilter, page core.DBPage) ([]learning.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var events []learning.Event
	for _, evt := range repo.db.events {
		if filter.UserID != "" && evt.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && evt.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && evt.OccurredAt.Before(filter.Since) {
			continue
		}
		events = append(events, evt)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.After(events[j].OccurredAt) })

	if page.Offset > 0 {
		if page.Offset >= len(events) {
			return nil, nil
		}
		events = events[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(events) {
		events = events[:page.Limit]
	}
	return events, nil
}
