package settlement

import (
	"context"
	"testing"

	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFillerScenarioB(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	x := env.account(t, "owner-x", 0)
	y := env.account(t, "owner-y", 0)
	z := env.account(t, "owner-z", 0)

	env.seedOrders(t,
		models.Order{OwnerID: y.ID, Price: 10, Amount: 145},
		models.Order{OwnerID: x.ID, Price: 10, Amount: 100},
		models.Order{OwnerID: x.ID, Price: 10, Amount: 55},
		models.Order{OwnerID: z.ID, Price: 20, Amount: 500},
	)

	owners, err := env.engine.RunFiller(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.Equal(t, []uint64{x.ID, y.ID}, owners)

	assert.Equal(t, int64(15), env.tokens(t, x.ID))
	assert.Equal(t, int64(14), env.tokens(t, y.ID))
	assert.Zero(t, env.tokens(t, z.ID))

	var live []models.Order
	require.NoError(t, env.db.Find(&live).Error)
	require.Len(t, live, 1)
	assert.Equal(t, int64(20), live[0].Price)

	var archived []models.ArchiveOrder
	require.NoError(t, env.db.Order("source_order_id").Find(&archived).Error)
	require.Len(t, archived, 3)
	var total int64
	for _, a := range archived {
		assert.Equal(t, int64(10), a.Price)
		assert.False(t, a.ArchivedAt.IsZero())
		total += a.Amount
	}
	assert.Equal(t, int64(300), total)
	assert.Equal(t, y.ID, archived[0].OwnerID)
}

func TestRunFillerScenarioC(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	x := env.account(t, "owner-x", 0)
	env.seedOrders(t,
		models.Order{OwnerID: x.ID, Price: 10, Amount: 30},
		models.Order{OwnerID: x.ID, Price: 10, Amount: 20},
	)

	owners, err := env.engine.RunFiller(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.Empty(t, owners)

	assert.Equal(t, int64(2), env.count(t, &models.Order{}))
	assert.Zero(t, env.count(t, &models.ArchiveOrder{}))
	assert.Zero(t, env.tokens(t, x.ID))
}

func TestRunFillerSecondRunIsNoop(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	x := env.account(t, "owner-x", 0)
	env.seedOrders(t, models.Order{OwnerID: x.ID, Price: 10, Amount: 120})

	owners, err := env.engine.RunFiller(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.Equal(t, []uint64{x.ID}, owners)
	assert.Equal(t, int64(12), env.tokens(t, x.ID))

	owners, err = env.engine.RunFiller(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.Empty(t, owners)
	assert.Equal(t, int64(12), env.tokens(t, x.ID))
	assert.Equal(t, int64(1), env.count(t, &models.ArchiveOrder{}))
}

func TestRunFillerRoundingStrategies(t *testing.T) {
	for _, tc := range []struct {
		rounding Rounding
		tokens   int64
	}{
		{RoundPerOrder, 0},
		{RoundAggregate, 1},
	} {
		t.Run(tc.rounding.String(), func(t *testing.T) {
			env := setupTestEnv(t, tc.rounding)
			x := env.account(t, "owner-x", 0)
			env.seedOrders(t,
				models.Order{OwnerID: x.ID, Price: 10, Amount: 5},
				models.Order{OwnerID: x.ID, Price: 10, Amount: 5},
			)

			owners, err := env.engine.RunFiller(context.Background(), 10, 10)
			require.NoError(t, err)
			assert.Equal(t, []uint64{x.ID}, owners)
			assert.Equal(t, tc.tokens, env.tokens(t, x.ID))
			assert.Zero(t, env.count(t, &models.Order{}))
			assert.Equal(t, int64(2), env.count(t, &models.ArchiveOrder{}))
		})
	}
}

func TestRunFillerTransactionFailureLeavesOrders(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	x := env.account(t, "owner-x", 0)
	env.seedOrders(t, models.Order{OwnerID: x.ID, Price: 10, Amount: 200})

	failOnCreate(t, env.db, "archive_orders")

	owners, err := env.engine.RunFiller(context.Background(), 10, 100)
	require.Error(t, err)
	assert.True(t, ErrSettlementUnavailable.Has(err))
	assert.Empty(t, owners)

	assert.Zero(t, env.tokens(t, x.ID))
	assert.Equal(t, int64(1), env.count(t, &models.Order{}))
	assert.Zero(t, env.count(t, &models.ArchiveOrder{}))
}

func TestRunFillerRejectsNonPositiveArguments(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	_, err := env.engine.RunFiller(context.Background(), 0, 10)
	assert.Error(t, err)
	_, err = env.engine.RunFiller(context.Background(), 10, 0)
	assert.Error(t, err)
}

func TestRoundingCredits(t *testing.T) {
	orders := []models.Order{
		{OwnerID: 1, Amount: 15},
		{OwnerID: 1, Amount: 15},
		{OwnerID: 2, Amount: 9},
	}
	assert.Equal(t, map[uint64]int64{1: 2}, RoundPerOrder.Credits(orders, 10))
	assert.Equal(t, map[uint64]int64{1: 3}, RoundAggregate.Credits(orders, 10))
	assert.Empty(t, RoundPerOrder.Credits(orders, 0))
}

func TestParseRounding(t *testing.T) {
	r, err := ParseRounding("per_order")
	require.NoError(t, err)
	assert.Equal(t, RoundPerOrder, r)

	r, err = ParseRounding("aggregate")
	require.NoError(t, err)
	assert.Equal(t, RoundAggregate, r)

	_, err = ParseRounding("ceil")
	assert.Error(t, err)
}
