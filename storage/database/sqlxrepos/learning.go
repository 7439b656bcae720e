package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/learning"
)

type eventRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Type       string    `db:"type"`
	Ref        string    `db:"ref"`
	Metadata   []byte    `db:"metadata"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (r eventRow) event() learning.Event {
	return learning.Event{
		ID:         r.ID,
		UserID:     r.UserID,
		Type:       r.Type,
		Ref:        r.Ref,
		Metadata:   json.RawMessage(r.Metadata),
		OccurredAt: r.OccurredAt.UTC(),
	}
}

type learningRepository struct {
	db *sqlx.DB
}

var _ learning.Repository = (*learningRepository)(nil) // interface compliance check

func NewLearningRepository(db *sqlx.DB) *learningRepository {
	return &learningRepository{db: db}
}

func (repo learningRepository) CreateEvent(ctx context.Context, evt learning.Event) (learning.Event, error) {
	evt.ID = uuid.New().String()
	var metadata []byte
	if evt.Metadata != nil {
		metadata = evt.Metadata
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO learning_event (id, user_id, type, ref, metadata, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		evt.ID, evt.UserID, evt.Type, evt.Ref, metadata, evt.OccurredAt,
	)
	if err != nil {
		return learning.Event{}, errors.Wrap(err, "inserting learning event")
	}
	return evt, nil
}

func (repo learningRepository) QueryEvents(ctx context.Context, filter learning.EventFilter, page core.DBPage) ([]learning.Event, error) {
	var b condBuilder
	if filter.UserID != "" {
		b.add("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		b.add("type = ?", filter.Type)
	}
	if !filter.Since.IsZero() {
		b.add("occurred_at >= ?", filter.Since)
	}

	query := `SELECT * FROM learning_event` + b.where() + ` ORDER BY occurred_at DESC` + pageClause(page, &b.args)
	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, errors.Wrap(err, "querying learning events")
	}
	events := make([]learning.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.event())
	}
	return events, nil
}
