package credit_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/credit"
	dummydb "github.com/optioeducation/optio/storage/database/dummy"
)

func newTestService() credit.Service {
	db, _ := dummydb.Open()
	return credit.NewService(dummydb.NewCreditRepository(db))
}

func Test_service_Append(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Append(ctx, "u1", "gold", 10, credit.ReasonTaskCompleted, "t1")
	assert.Equal(t, credit.ErrInvalidKind, errors.Cause(err))

	_, err = svc.Append(ctx, "u1", credit.KindXP, 0, credit.ReasonTaskCompleted, "t1")
	assert.Equal(t, credit.ErrZeroDelta, errors.Cause(err))

	entry, err := svc.Append(ctx, "u1", credit.KindXP, 25, credit.ReasonTaskCompleted, "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 25, entry.Delta)
	assert.False(t, entry.CreatedAt.IsZero())
}

func Test_service_BalanceOf(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Append(ctx, "u1", credit.KindXP, 25, credit.ReasonTaskCompleted, "t1")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "u1", credit.KindXP, 50, credit.ReasonQuestCompleted, "q1")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "u1", credit.KindCredit, 10, credit.ReasonAdminAdjustment, "")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "u2", credit.KindXP, 100, credit.ReasonTaskCompleted, "t2")
	require.NoError(t, err)

	balance, err := svc.BalanceOf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, credit.Balance{UserID: "u1", XP: 75, Credits: 10}, balance)

	// empty ledger sums to zero
	balance, err = svc.BalanceOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, credit.Balance{UserID: "nobody"}, balance)
}

func Test_service_Adjust(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Adjust(ctx, "u1", credit.KindCredit, 0, "oops")
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))

	entry, err := svc.Adjust(ctx, "u1", credit.KindCredit, -5, "store refund")
	require.NoError(t, err)
	assert.Equal(t, credit.ReasonAdminAdjustment, entry.Reason)
	assert.Equal(t, "store refund", entry.Note)

	balance, err := svc.BalanceOf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, -5, balance.Credits)
}

func Test_service_Revoke(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// nothing to revoke
	_, err := svc.Revoke(ctx, "u1", "t1")
	assert.Equal(t, credit.ErrNotFound, errors.Cause(err))

	_, err = svc.Append(ctx, "u1", credit.KindXP, 25, credit.ReasonTaskCompleted, "t1")
	require.NoError(t, err)

	entry, err := svc.Revoke(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, -25, entry.Delta)
	assert.Equal(t, credit.ReasonVerificationRevoked, entry.Reason)

	balance, err := svc.BalanceOf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.XP)

	// double revocation nets to zero and is rejected
	_, err = svc.Revoke(ctx, "u1", "t1")
	assert.Equal(t, credit.ErrAlreadyVoked, errors.Cause(err))
}

func Test_service_HistoryOf(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Append(ctx, "u1", credit.KindXP, 10+i, credit.ReasonTaskCompleted, "t1")
		require.NoError(t, err)
	}

	entries, err := svc.HistoryOf(ctx, "u1", core.DBPage{})
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	entries, err = svc.HistoryOf(ctx, "u1", core.DBPage{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
