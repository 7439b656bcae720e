package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core/observer"
)

type linkRow struct {
	ID            string         `db:"id"`
	StudentID     string         `db:"student_id"`
	ObserverID    sql.NullString `db:"observer_id"`
	ObserverEmail string         `db:"observer_email"`
	Status        string         `db:"status"`
	Token         string         `db:"token"`
	CreatedAt     time.Time      `db:"created_at"`
	RespondedAt   sql.NullTime   `db:"responded_at"`
}

func (r linkRow) link() observer.Link {
	l := observer.Link{
		ID:            r.ID,
		StudentID:     r.StudentID,
		ObserverID:    r.ObserverID.String,
		ObserverEmail: r.ObserverEmail,
		Status:        r.Status,
		Token:         r.Token,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.RespondedAt.Valid {
		l.RespondedAt = r.RespondedAt.Time.UTC()
	}
	return l
}

type observerRepository struct {
	db *sqlx.DB
}

var _ observer.Repository = (*observerRepository)(nil) // interface compliance check

func NewObserverRepository(db *sqlx.DB) *observerRepository {
	return &observerRepository{db: db}
}

func (repo observerRepository) CreateLink(ctx context.Context, l observer.Link) (observer.Link, error) {
	l.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO observer_link (id, student_id, observer_email, status, token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.StudentID, l.ObserverEmail, l.Status, l.Token, l.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "observer_link_live_idx") {
			return observer.Link{}, observer.ErrLinkExists
		}
		return observer.Link{}, errors.Wrap(err, "inserting observer link")
	}
	return l, nil
}

func linkConds(filter observer.LinkFilter) condBuilder {
	var b condBuilder
	if filter.ID != "" {
		b.add("id = ?", filter.ID)
	}
	if filter.StudentID != "" {
		b.add("student_id = ?", filter.StudentID)
	}
	if filter.ObserverID != "" {
		b.add("observer_id = ?", filter.ObserverID)
	}
	if filter.Status != "" {
		b.add("status = ?", filter.Status)
	}
	if filter.Token != "" {
		b.add("token = ?", filter.Token)
	}
	return b
}

func (repo observerRepository) GetLink(ctx context.Context, filter observer.LinkFilter) (observer.Link, error) {
	b := linkConds(filter)
	if len(b.conds) == 0 {
		return observer.Link{}, observer.ErrNotFound
	}

	var row linkRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM observer_link`+b.where()+` ORDER BY created_at DESC LIMIT 1`, b.args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return observer.Link{}, observer.ErrNotFound
		}
		return observer.Link{}, errors.Wrap(err, "getting observer link")
	}
	return row.link(), nil
}

func (repo observerRepository) QueryLinks(ctx context.Context, filter observer.LinkFilter) ([]observer.Link, error) {
	b := linkConds(filter)
	var rows []linkRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM observer_link`+b.where()+` ORDER BY created_at DESC`, b.args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying observer links")
	}
	links := make([]observer.Link, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.link())
	}
	return links, nil
}

func (repo observerRepository) UpdateLink(ctx context.Context, l observer.Link) (observer.Link, error) {
	var observerID interface{}
	if l.ObserverID != "" {
		observerID = l.ObserverID
	}
	var row linkRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE observer_link SET observer_id = $1, status = $2, responded_at = $3 WHERE id = $4 RETURNING *`,
		observerID, l.Status, nullTime(l.RespondedAt), l.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return observer.Link{}, observer.ErrNotFound
		}
		return observer.Link{}, errors.Wrap(err, "updating observer link")
	}
	return row.link(), nil
}
