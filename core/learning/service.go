package learning

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
)

var ErrNotFound = errors.New("learning event not found")

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		// QueryEvents returns events newest first.
		QueryEvents(ctx context.Context, filter EventFilter, page core.DBPage) ([]Event, error)
	}

	Service interface {
		Record(ctx context.Context, userID, typ, ref string, metadata interface{}) (Event, error)
		HistoryOf(ctx context.Context, userID string, page core.DBPage) ([]Event, error)
		RecentOf(ctx context.Context, userID string, since time.Time) ([]Event, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Record(ctx context.Context, userID, typ, ref string, metadata interface{}) (Event, error) {
	evt := Event{
		UserID:     userID,
		Type:       typ,
		Ref:        ref,
		OccurredAt: time.Now().UTC(),
	}
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return Event{}, errors.Wrap(err, "marshalling event metadata")
		}
		evt.Metadata = data
	}
	return svc.repo.CreateEvent(ctx, evt)
}

func (svc *service) HistoryOf(ctx context.Context, userID string, page core.DBPage) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, EventFilter{UserID: userID}, page)
}

func (svc *service) RecentOf(ctx context.Context, userID string, since time.Time) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, EventFilter{UserID: userID, Since: since}, core.DBPage{})
}
