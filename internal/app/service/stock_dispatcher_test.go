package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/pkg/catalog"
	"gorm.io/gorm"
)

func setupDispatcherTest(t *testing.T, maxAttempts int) (*gorm.DB, *fakeCatalog, *StockDispatcher) {
	testDB := setupServiceDB(t)
	cat := newFakeCatalog()
	outbox := repository.NewOutboxRepository(testDB)
	dispatcher := NewStockDispatcher(outbox, cat, 10, maxAttempts)
	dispatcher.grace = 0
	return testDB, cat, dispatcher
}

func writeEvents(t *testing.T, testDB *gorm.DB, productIDs ...uint) []model.StockOutbox {
	t.Helper()
	events := make([]model.StockOutbox, 0, len(productIDs))
	for _, id := range productIDs {
		events = append(events, model.StockOutbox{
			EventID:   uuid.NewString(),
			CartID:    1,
			ProductID: id,
			Quantity:  1,
			Status:    model.OutboxPending,
		})
	}
	require.NoError(t, repository.NewOutboxRepository(testDB).CreateBatch(events))
	return events
}

func loadEvent(t *testing.T, testDB *gorm.DB, id uint) model.StockOutbox {
	t.Helper()
	var event model.StockOutbox
	require.NoError(t, testDB.First(&event, id).Error)
	return event
}

func TestStockDispatcher_Dispatch(t *testing.T) {
	testDB, cat, dispatcher := setupDispatcherTest(t, 5)
	cat.put(catalog.Product{ID: 1, Stock: 5})
	cat.put(catalog.Product{ID: 2, Stock: 0})
	cat.put(catalog.Product{ID: 3, Stock: 5})
	cat.decrementErr[2] = catalog.ErrInsufficientStock
	cat.decrementErr[3] = catalog.ErrNetworkError

	events := writeEvents(t, testDB, 1, 2, 3, 4)

	sent := dispatcher.Dispatch(context.Background(), events)
	assert.Equal(t, 1, sent)

	assert.Equal(t, model.OutboxSent, loadEvent(t, testDB, events[0].ID).Status)
	assert.Equal(t, model.OutboxFailed, loadEvent(t, testDB, events[1].ID).Status, "insufficient stock is permanent")
	assert.Equal(t, model.OutboxPending, loadEvent(t, testDB, events[2].ID).Status, "network errors are retried")
	assert.Equal(t, model.OutboxFailed, loadEvent(t, testDB, events[3].ID).Status, "unknown product is permanent")

	calls := cat.calls()
	require.Len(t, calls, 4)
	assert.Equal(t, events[0].EventID, calls[0].Key)
}

func TestStockDispatcher_RelayPending(t *testing.T) {
	testDB, cat, dispatcher := setupDispatcherTest(t, 2)
	cat.put(catalog.Product{ID: 1, Stock: 5})
	cat.decrementErr[1] = errors.New("timeout")

	events := writeEvents(t, testDB, 1)

	sent, err := dispatcher.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, model.OutboxPending, loadEvent(t, testDB, events[0].ID).Status)

	sent, err = dispatcher.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	event := loadEvent(t, testDB, events[0].ID)
	assert.Equal(t, model.OutboxFailed, event.Status, "gives up after max attempts")
	assert.Equal(t, 2, event.Attempts)

	sent, err = dispatcher.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, cat.calls(), 2)
}

func TestStockDispatcher_RelayPending_Recovers(t *testing.T) {
	testDB, cat, dispatcher := setupDispatcherTest(t, 5)
	cat.put(catalog.Product{ID: 1, Stock: 5})
	cat.decrementErr[1] = errors.New("timeout")

	events := writeEvents(t, testDB, 1)
	dispatcher.Dispatch(context.Background(), events)

	delete(cat.decrementErr, 1)
	sent, err := dispatcher.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	event := loadEvent(t, testDB, events[0].ID)
	assert.Equal(t, model.OutboxSent, event.Status)
	assert.Equal(t, 2, event.Attempts)

	calls := cat.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Key, calls[1].Key, "retries reuse the idempotency key")
}
