package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/pkg"
)

// stubPOS fails until attempt succeedOn, then succeeds; succeedOn 0 always fails.
type stubPOS struct {
	mu        sync.Mutex
	calls     int
	succeedOn int
	block     chan struct{} // when set, SubmitOrder waits until closed
}

func (s *stubPOS) SubmitOrder(ctx context.Context, order models.Order) (string, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.succeedOn > 0 && s.calls >= s.succeedOn {
		return fmt.Sprintf("POS-%d", s.calls), nil
	}
	return "", errors.New("pos unavailable")
}

func newTestQueue(client *stubPOS) *RetryQueue {
	q := NewRetryQueue(client, zap.NewNop())
	q.pacer = rate.NewLimiter(rate.Inf, 1) // no pacing in tests
	return q
}

func testOrder(no string) models.Order {
	return models.Order{
		OrderNo:   no,
		OrderType: pkg.OrderTypeDelivery,
		Customer:  models.Customer{Name: "Nguyễn Văn An", Phone: "0912345678", Address: "Q1, TP.HCM"},
		Items:     []models.OrderItem{{Name: "Trà sữa", Quantity: 2, Price: 30000, Amount: 60000}},
		Subtotal:  60000,
		Total:     75000,
	}
}

func TestRetryQueue_EnqueueAndStatus(t *testing.T) {
	q := newTestQueue(&stubPOS{})

	pending := q.Enqueue(testOrder("AMT-1"), "pos unavailable")
	assert.Equal(t, int64(1), pending.ID)
	assert.Equal(t, pkg.OrderStatusPending, pending.Status)
	assert.Equal(t, 1, q.CountPending())

	got, ok := q.Status("AMT-1")
	require.True(t, ok)
	assert.Equal(t, "pos unavailable", got.LastError)

	_, ok = q.Status("AMT-404")
	assert.False(t, ok)
}

func TestRetryQueue_ExhaustedRetriesFail(t *testing.T) {
	client := &stubPOS{} // never succeeds
	q := newTestQueue(client)
	pending := q.Enqueue(testOrder("AMT-1"), "down")

	for i := 0; i < MaxRetryCount; i++ {
		_, err := q.RetryOne(context.Background(), pending.ID)
		require.Error(t, err)
	}

	got, ok := q.Status("AMT-1")
	require.True(t, ok)
	assert.Equal(t, pkg.OrderStatusFailed, got.Status)
	assert.Equal(t, MaxRetryCount, got.RetryCount)

	// Terminal: no further attempts are made
	_, err := q.RetryOne(context.Background(), pending.ID)
	assert.ErrorIs(t, err, pkg.ErrOrderNotPending)
	assert.Equal(t, MaxRetryCount, client.calls)
}

func TestRetryQueue_SucceedsOnThirdAttempt(t *testing.T) {
	q := newTestQueue(&stubPOS{succeedOn: 3})
	pending := q.Enqueue(testOrder("AMT-1"), "down")

	_, err := q.RetryOne(context.Background(), pending.ID)
	require.Error(t, err)
	_, err = q.RetryOne(context.Background(), pending.ID)
	require.Error(t, err)

	code, err := q.RetryOne(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "POS-3", code)

	got, _ := q.Status("AMT-1")
	assert.Equal(t, pkg.OrderStatusSynced, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, 0, q.CountPending())
}

func TestRetryQueue_RetryAllAggregates(t *testing.T) {
	q := newTestQueue(&stubPOS{succeedOn: 2}) // first call fails, rest succeed
	q.Enqueue(testOrder("AMT-1"), "down")
	q.Enqueue(testOrder("AMT-2"), "down")
	q.Enqueue(testOrder("AMT-3"), "down")

	summary, err := q.RetryAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Synced)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "AMT-1", summary.Results[0].OrderNo)
	assert.False(t, summary.Results[0].Success)
	assert.True(t, summary.Results[1].Success)
}

func TestRetryQueue_ConcurrentRetryAllRejected(t *testing.T) {
	client := &stubPOS{block: make(chan struct{})}
	q := newTestQueue(client)
	q.Enqueue(testOrder("AMT-1"), "down")

	done := make(chan struct{})
	go func() {
		_, _ = q.RetryAll(context.Background())
		close(done)
	}()

	// Wait for the first run to be inside the POS call
	assert.Eventually(t, func() bool { return q.retryInFlight.Load() }, time.Second, time.Millisecond)

	_, err := q.RetryAll(context.Background())
	assert.ErrorIs(t, err, pkg.ErrRetryInFlight)

	close(client.block)
	<-done
}

func TestRetryQueue_CleanupRemovesOnlySynced(t *testing.T) {
	q := newTestQueue(&stubPOS{succeedOn: 1})
	synced := q.Enqueue(testOrder("AMT-1"), "down")
	q.Enqueue(testOrder("AMT-2"), "down")

	_, err := q.RetryOne(context.Background(), synced.ID)
	require.NoError(t, err)

	// Only the synced order goes away
	assert.Equal(t, 1, q.Cleanup())
	_, ok := q.Status("AMT-1")
	assert.False(t, ok)
	_, ok = q.Status("AMT-2")
	assert.True(t, ok)
	assert.Equal(t, 0, q.Cleanup())
}
