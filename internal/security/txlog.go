package security

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type TransactionType string

const (
	TxOrder   TransactionType = "ORDER"
	TxPayment TransactionType = "PAYMENT"
	TxRefund  TransactionType = "REFUND"
	TxWebhook TransactionType = "WEBHOOK"
)

type TransactionStatus string

const (
	TxPending    TransactionStatus = "PENDING"
	TxSuccess    TransactionStatus = "SUCCESS"
	TxFailed     TransactionStatus = "FAILED"
	TxSuspicious TransactionStatus = "SUSPICIOUS"
)

// Transaction is one append-only audit record of an order, payment or
// webhook event.
type Transaction struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	OrderID   string            `json:"orderId,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	ClientIP  string            `json:"clientIP"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
}

const maxTransactions = 10000

// TransactionLog is a bounded in-memory audit trail used for
// suspicious-activity heuristics. Oldest entries are evicted first.
type TransactionLog struct {
	mu     sync.Mutex
	logs   []Transaction
	logger *zap.Logger

	now func() time.Time
}

func NewTransactionLog(logger *zap.Logger) *TransactionLog {
	return &TransactionLog{logger: logger, now: time.Now}
}

// Record appends a transaction, assigning ID and timestamp. Appending happens
// before any HTTP response is produced so audit entries cannot be skipped by
// early returns.
func (t *TransactionLog) Record(tx Transaction) Transaction {
	tx.ID = fmt.Sprintf("TXN_%d_%s", t.now().UnixMilli(), shortID())
	tx.Timestamp = t.now()

	t.mu.Lock()
	t.logs = append(t.logs, tx)
	if len(t.logs) > maxTransactions {
		t.logs = t.logs[len(t.logs)-maxTransactions:]
	}
	t.mu.Unlock()

	if tx.Status == TxSuspicious || tx.Error != "" {
		t.logger.Warn("transaction flagged",
			zap.String("txn_id", tx.ID),
			zap.String("type", string(tx.Type)),
			zap.String("status", string(tx.Status)),
			zap.String("order_id", tx.OrderID),
			zap.String(ipField, tx.ClientIP),
			zap.String("error", tx.Error))
	}
	return tx
}

// Suspicious returns all transactions flagged SUSPICIOUS, oldest first.
func (t *TransactionLog) Suspicious() []Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Transaction
	for _, tx := range t.logs {
		if tx.Status == TxSuspicious {
			out = append(out, tx)
		}
	}
	return out
}

// Recent returns the newest transactions, newest first.
func (t *TransactionLog) Recent(limit int) []Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit > len(t.logs) {
		limit = len(t.logs)
	}
	out := make([]Transaction, 0, limit)
	for i := len(t.logs) - 1; i >= len(t.logs)-limit; i-- {
		out = append(out, t.logs[i])
	}
	return out
}

// CheckSuspiciousActivity applies the per-IP heuristics over the last hour:
// more than 5 failed transactions, more than 20 transactions total, or more
// than 10 small amounts (card-testing behavior).
func (t *TransactionLog) CheckSuspiciousActivity(clientIP string) bool {
	cutoff := t.now().Add(-time.Hour)

	t.mu.Lock()
	defer t.mu.Unlock()

	var total, failed, smallAmounts int
	for _, tx := range t.logs {
		if tx.ClientIP != clientIP || tx.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if tx.Status == TxFailed {
			failed++
		}
		if tx.Amount < 1000 {
			smallAmounts++
		}
	}

	return failed > 5 || total > 20 || smallAmounts > 10
}
