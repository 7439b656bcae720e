package credit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
)

var (
	// errors
	ErrNotFound     = errors.New("ledger entry not found")
	ErrInvalidKind  = errors.New("invalid ledger kind")
	ErrZeroDelta    = errors.New("delta cannot be zero")
	ErrAlreadyVoked = errors.New("entry already revoked")
)

type (
	Repository interface {
		AppendLedgerEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
		SumLedger(ctx context.Context, userID, kind string) (int, error)
		QueryLedger(ctx context.Context, filter EntryFilter, page core.DBPage) ([]LedgerEntry, error)
	}

	Service interface {
		Append(ctx context.Context, userID, kind string, delta int, reason, ref string) (LedgerEntry, error)
		Adjust(ctx context.Context, userID, kind string, delta int, note string) (LedgerEntry, error)
		// Revoke writes a compensating entry negating whatever remains of the
		// entries carrying the given ref for the user.
		Revoke(ctx context.Context, userID, ref string) (LedgerEntry, error)
		BalanceOf(ctx context.Context, userID string) (Balance, error)
		HistoryOf(ctx context.Context, userID string, page core.DBPage) ([]LedgerEntry, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Append(ctx context.Context, userID, kind string, delta int, reason, ref string) (LedgerEntry, error) {
	if kind != KindXP && kind != KindCredit {
		return LedgerEntry{}, ErrInvalidKind
	}
	if delta == 0 {
		return LedgerEntry{}, ErrZeroDelta
	}
	return svc.repo.AppendLedgerEntry(ctx, LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Delta:     delta,
		Reason:    reason,
		Ref:       ref,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Adjust(ctx context.Context, userID, kind string, delta int, note string) (LedgerEntry, error) {
	if kind != KindXP && kind != KindCredit {
		return LedgerEntry{}, ErrInvalidKind
	}
	if delta == 0 {
		return LedgerEntry{}, core.NewValidationError(ErrZeroDelta, core.FieldError{Field: "delta", Error: ErrZeroDelta.Error()})
	}
	return svc.repo.AppendLedgerEntry(ctx, LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Delta:     delta,
		Reason:    ReasonAdminAdjustment,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Revoke(ctx context.Context, userID, ref string) (LedgerEntry, error) {
	entries, err := svc.repo.QueryLedger(ctx, EntryFilter{UserID: userID, Ref: ref}, core.DBPage{})
	if err != nil {
		return LedgerEntry{}, errors.Wrap(err, "querying ledger for revocation")
	}
	if len(entries) == 0 {
		return LedgerEntry{}, ErrNotFound
	}

	// net out what remains of the original award; a prior revocation leaves nothing to revoke
	var remaining int
	var kind string
	for _, e := range entries {
		remaining += e.Delta
		kind = e.Kind
	}
	if remaining == 0 {
		return LedgerEntry{}, ErrAlreadyVoked
	}

	return svc.repo.AppendLedgerEntry(ctx, LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Delta:     -remaining,
		Reason:    ReasonVerificationRevoked,
		Ref:       ref,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) BalanceOf(ctx context.Context, userID string) (Balance, error) {
	xp, err := svc.repo.SumLedger(ctx, userID, KindXP)
	if err != nil {
		return Balance{}, errors.Wrap(err, "summing xp ledger")
	}
	credits, err := svc.repo.SumLedger(ctx, userID, KindCredit)
	if err != nil {
		return Balance{}, errors.Wrap(err, "summing credit ledger")
	}
	return Balance{UserID: userID, XP: xp, Credits: credits}, nil
}

func (svc *service) HistoryOf(ctx context.Context, userID string, page core.DBPage) ([]LedgerEntry, error) {
	return svc.repo.QueryLedger(ctx, EntryFilter{UserID: userID}, page)
}
