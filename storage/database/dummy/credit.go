package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/credit"
)

type creditRepository struct {
	db *creditTable
}

var _ credit.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(db *DB) credit.Repository {
	return &creditRepository{db: db.credit}
}

func (repo *creditRepository) AppendLedgerEntry(ctx context.Context, entry credit.LedgerEntry) (credit.LedgerEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = uuid.New().String()
	repo.db.entries = append(repo.db.entries, entry)
	return entry, nil
}

func (repo *creditRepository) SumLedger(ctx context.Context, userID, kind string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sum int
	for _, e := range repo.db.entries {
		if e.UserID == userID && e.Kind == kind {
			sum += e.Delta
		}
	}
	return sum, nil
}

func (repo *creditRepository) QueryLedger(ctx context.Context, filter credit.EntryFilter, page core.DBPage) ([]credit.LedgerEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []credit.LedgerEntry
	for _, e := range repo.db.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.Reason != "" && e.Reason != filter.Reason {
			continue
		}
		if filter.Ref != "" && e.Ref != filter.Ref {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })

	if page.Offset > 0 {
		if page.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(entries) {
		entries = entries[:page.Limit]
	}
	return entries, nil
}
