package security

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTransactionLog_RecordAssignsIDAndTimestamp(t *testing.T) {
	log := NewTransactionLog(zap.NewNop())

	tx := log.Record(Transaction{Type: TxOrder, Status: TxSuccess, Amount: 55000, ClientIP: "1.2.3.4"})
	assert.Regexp(t, `^TXN_\d+_[0-9a-f-]{8}$`, tx.ID)
	assert.False(t, tx.Timestamp.IsZero())

	recent := log.Recent(10)
	assert.Len(t, recent, 1)
	assert.Equal(t, tx.ID, recent[0].ID)
}

func TestTransactionLog_RecentIsNewestFirst(t *testing.T) {
	log := NewTransactionLog(zap.NewNop())
	for i := 0; i < 5; i++ {
		log.Record(Transaction{Type: TxOrder, Status: TxSuccess, OrderID: fmt.Sprintf("ord-%d", i)})
	}

	recent := log.Recent(3)
	assert.Len(t, recent, 3)
	assert.Equal(t, "ord-4", recent[0].OrderID)
	assert.Equal(t, "ord-2", recent[2].OrderID)
}

func TestTransactionLog_SuspiciousFilter(t *testing.T) {
	log := NewTransactionLog(zap.NewNop())
	log.Record(Transaction{Type: TxWebhook, Status: TxSuccess})
	log.Record(Transaction{Type: TxWebhook, Status: TxSuspicious, ClientIP: "6.6.6.6"})

	suspicious := log.Suspicious()
	assert.Len(t, suspicious, 1)
	assert.Equal(t, "6.6.6.6", suspicious[0].ClientIP)
}

func TestTransactionLog_SuspiciousActivityHeuristics(t *testing.T) {
	t.Run("failed transactions", func(t *testing.T) {
		log := NewTransactionLog(zap.NewNop())
		for i := 0; i < 6; i++ {
			log.Record(Transaction{Type: TxPayment, Status: TxFailed, Amount: 50000, ClientIP: "1.1.1.1"})
		}
		assert.True(t, log.CheckSuspiciousActivity("1.1.1.1"))
		assert.False(t, log.CheckSuspiciousActivity("2.2.2.2"))
	})

	t.Run("volume", func(t *testing.T) {
		log := NewTransactionLog(zap.NewNop())
		for i := 0; i < 21; i++ {
			log.Record(Transaction{Type: TxOrder, Status: TxSuccess, Amount: 50000, ClientIP: "1.1.1.1"})
		}
		assert.True(t, log.CheckSuspiciousActivity("1.1.1.1"))
	})

	t.Run("small amount clustering", func(t *testing.T) {
		log := NewTransactionLog(zap.NewNop())
		for i := 0; i < 11; i++ {
			log.Record(Transaction{Type: TxPayment, Status: TxSuccess, Amount: 500, ClientIP: "1.1.1.1"})
		}
		assert.True(t, log.CheckSuspiciousActivity("1.1.1.1"))
	})

	t.Run("older than an hour ignored", func(t *testing.T) {
		log := NewTransactionLog(zap.NewNop())
		current := time.Now().Add(-2 * time.Hour)
		log.now = func() time.Time { return current }
		for i := 0; i < 25; i++ {
			log.Record(Transaction{Type: TxOrder, Status: TxFailed, ClientIP: "1.1.1.1"})
		}
		current = time.Now()
		assert.False(t, log.CheckSuspiciousActivity("1.1.1.1"))
	})
}
