package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/GhasemiTaheri/aban-exchange/internal/database"
	"github.com/GhasemiTaheri/aban-exchange/internal/ledger"
	"github.com/GhasemiTaheri/aban-exchange/internal/orderqueue"
	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db     *gorm.DB
	store  *ledger.Store
	queue  *orderqueue.RedisQueue
	redis  *miniredis.Miniredis
	intake *Intake
	engine *Engine
}

func setupTestEnv(t *testing.T, rounding Rounding) *testEnv {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	store := ledger.NewStore(db, ledger.DefaultOptions(), logger)
	queue := orderqueue.NewRedisQueue(client, orderqueue.DefaultKey, 0, logger)

	return &testEnv{
		db:     db,
		store:  store,
		queue:  queue,
		redis:  mr,
		intake: NewIntake(queue, logger),
		engine: NewEngine(queue, store, rounding, logger),
	}
}

func (e *testEnv) account(t *testing.T, name string, balance int64) *models.Account {
	t.Helper()
	a, err := e.store.CreateAccount(context.Background(), name, "", balance)
	require.NoError(t, err)
	return a
}

func (e *testEnv) submit(t *testing.T, owner uint64, amount, price int64) {
	t.Helper()
	_, err := e.intake.Submit(context.Background(), owner, amount, price)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, id uint64) int64 {
	t.Helper()
	a, err := e.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func (e *testEnv) tokens(t *testing.T, id uint64) int64 {
	t.Helper()
	a, err := e.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.TokenBalance
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func (e *testEnv) seedOrders(t *testing.T, orders ...models.Order) {
	t.Helper()
	require.NoError(t, e.store.Transact(context.Background(), func(tx *ledger.Tx) error {
		return tx.InsertOrders(orders)
	}))
}

func failOnCreate(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("injected failure"))
		}
	})
	require.NoError(t, err)
}

func TestRunBatchScenarioA(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	x := env.account(t, "owner-x", 200)
	y := env.account(t, "owner-y", 50)

	env.submit(t, x.ID, 100, 10)
	env.submit(t, y.ID, 70, 10)

	result, err := env.engine.RunBatch(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, []uint64{y.ID}, result.Rejected)
	assert.Empty(t, result.Malformed)

	assert.Equal(t, int64(100), env.balance(t, x.ID))
	assert.Equal(t, int64(50), env.balance(t, y.ID))
	assert.Equal(t, int64(1), env.count(t, &models.Order{}))

	var order models.Order
	require.NoError(t, env.db.First(&order, result.Accepted[0]).Error)
	assert.Equal(t, x.ID, order.OwnerID)
	assert.Equal(t, int64(100), order.Amount)
	assert.Equal(t, int64(10), order.Price)
}

func TestRunBatchEmptyQueue(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)

	result, err := env.engine.RunBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, result.Accepted)
	assert.Empty(t, result.Rejected)
}

func TestRunBatchAcceptsExactBalance(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	a := env.account(t, "alice", 75)
	env.submit(t, a.ID, 75, 3)

	result, err := env.engine.RunBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	assert.Empty(t, result.Rejected)
	assert.Zero(t, env.balance(t, a.ID))
}

func TestRunBatchDebitsSequentiallyWithinBatch(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	a := env.account(t, "alice", 100)
	b := env.account(t, "bob", 30)

	env.submit(t, a.ID, 60, 10)
	env.submit(t, b.ID, 40, 10)
	env.submit(t, a.ID, 50, 10)
	env.submit(t, a.ID, 40, 10)
	env.submit(t, b.ID, 30, 10)
	env.submit(t, a.ID, 1, 10)

	result, err := env.engine.RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 3)
	assert.Equal(t, []uint64{b.ID, a.ID, a.ID}, result.Rejected)
	assert.Zero(t, env.balance(t, a.ID))
	assert.Zero(t, env.balance(t, b.ID))
	assert.Equal(t, int64(3), env.count(t, &models.Order{}))
}

func TestRunBatchRejectsUnknownOwner(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	a := env.account(t, "alice", 10)

	env.submit(t, 9999, 1, 1)
	env.submit(t, a.ID, 5, 1)

	result, err := env.engine.RunBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	assert.Equal(t, []uint64{9999}, result.Rejected)
}

func TestRunBatchRespectsBatchSize(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	a := env.account(t, "alice", 100)
	for i := 0; i < 5; i++ {
		env.submit(t, a.ID, 1, 1)
	}

	result, err := env.engine.RunBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 2)

	left, err := env.queue.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), left)

	_, err = env.engine.RunBatch(context.Background(), 0)
	assert.Error(t, err)
}

func TestRunBatchReportsMalformedRecords(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	ctx := context.Background()
	a := env.account(t, "alice", 100)

	require.NoError(t, env.queue.Push(ctx, []byte("not json")))
	env.submit(t, a.ID, 10, 1)
	require.NoError(t, env.queue.Push(ctx, []byte(`{"owner_id":1,"amount":0,"price":5}`)))
	require.NoError(t, env.queue.Push(ctx, []byte(`{"owner_id":1,"amount":3,"price":5,"extra":true}`)))

	result, err := env.engine.RunBatch(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	assert.Empty(t, result.Rejected)
	require.Len(t, result.Malformed, 3)
	assert.Equal(t, []byte("not json"), result.Malformed[0])
	assert.Equal(t, int64(90), env.balance(t, a.ID))
}

func TestRunBatchQueueUnavailable(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	a := env.account(t, "alice", 100)
	env.submit(t, a.ID, 10, 1)

	env.redis.Close()

	_, err := env.engine.RunBatch(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, ErrQueueUnavailable.Has(err))
	assert.Equal(t, int64(100), env.balance(t, a.ID))
	assert.Zero(t, env.count(t, &models.Order{}))
}

func TestRunBatchTransactionFailureVoidsBatch(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	a := env.account(t, "alice", 100)
	b := env.account(t, "bob", 5)

	env.submit(t, a.ID, 40, 10)
	env.submit(t, b.ID, 50, 10)
	env.submit(t, a.ID, 20, 10)

	failOnCreate(t, env.db, "orders")

	result, err := env.engine.RunBatch(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, ErrSettlementUnavailable.Has(err))

	assert.Empty(t, result.Accepted)
	assert.Equal(t, []uint64{a.ID, b.ID, a.ID}, result.Rejected)
	assert.Equal(t, int64(100), env.balance(t, a.ID))
	assert.Equal(t, int64(5), env.balance(t, b.ID))
	assert.Zero(t, env.count(t, &models.Order{}))

	left, err := env.queue.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestIntakeSubmit(t *testing.T) {
	env := setupTestEnv(t, RoundPerOrder)
	ctx := context.Background()

	id, err := env.intake.Submit(ctx, 1, 10, 2)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	records, err := env.queue.DrainHead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	req, err := DecodeRequest(records[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), req.OwnerID)
	assert.Equal(t, int64(10), req.Amount)
	assert.Equal(t, int64(2), req.Price)
	assert.Equal(t, id, req.RequestID)
	assert.False(t, req.ReceivedAt.IsZero())

	_, err = env.intake.Submit(ctx, 1, 0, 2)
	assert.True(t, ErrMalformedRecord.Has(err))
	_, err = env.intake.Submit(ctx, 0, 1, 2)
	assert.True(t, ErrMalformedRecord.Has(err))

	env.redis.Close()
	_, err = env.intake.Submit(ctx, 1, 1, 1)
	assert.True(t, ErrQueueUnavailable.Has(err))
}
