package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/credit"
)

type ledgerRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      string    `db:"kind"`
	Delta     int       `db:"delta"`
	Reason    string    `db:"reason"`
	Ref       string    `db:"ref"`
	Note      string    `db:"note"`
	CreatedAt time.Time `db:"created_at"`
}

func (r ledgerRow) entry() credit.LedgerEntry {
	e := credit.LedgerEntry(r)
	e.CreatedAt = e.CreatedAt.UTC()
	return e
}

type creditRepository struct {
	db *sqlx.DB
}

var _ credit.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(db *sqlx.DB) *creditRepository {
	return &creditRepository{db: db}
}

func (repo creditRepository) AppendLedgerEntry(ctx context.Context, entry credit.LedgerEntry) (credit.LedgerEntry, error) {
	entry.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO credit_ledger (id, user_id, kind, delta, reason, ref, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.Kind, entry.Delta, entry.Reason, entry.Ref, entry.Note, entry.CreatedAt,
	)
	if err != nil {
		return credit.LedgerEntry{}, errors.Wrap(err, "inserting ledger entry")
	}
	return entry, nil
}

func (repo creditRepository) SumLedger(ctx context.Context, userID, kind string) (int, error) {
	var sum int
	err := repo.db.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(delta), 0) FROM credit_ledger WHERE user_id = $1 AND kind = $2`, userID, kind)
	if err != nil {
		return 0, errors.Wrap(err, "summing ledger")
	}
	return sum, nil
}

func (repo creditRepository) QueryLedger(ctx context.Context, filter credit.EntryFilter, page core.DBPage) ([]credit.LedgerEntry, error) {
	var b condBuilder
	if filter.UserID != "" {
		b.add("user_id = ?", filter.UserID)
	}
	if filter.Kind != "" {
		b.add("kind = ?", filter.Kind)
	}
	if filter.Reason != "" {
		b.add("reason = ?", filter.Reason)
	}
	if filter.Ref != "" {
		b.add("ref = ?", filter.Ref)
	}
	if !filter.Since.IsZero() {
		b.add("created_at >= ?", filter.Since)
	}

	query := `SELECT * FROM credit_ledger` + b.where() + ` ORDER BY created_at DESC` + pageClause(page, &b.args)
	var rows []ledgerRow
	if err := repo.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, errors.Wrap(err, "querying ledger")
	}
	entries := make([]credit.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}
