package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/internal/security"
	"github.com/anmilktea/storefront-api/pkg"
)

type telegramStub struct {
	calls atomic.Int32
	last  atomic.Value // string message text
	fail  atomic.Int32 // number of requests to fail before succeeding
}

func (s *telegramStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.fail.Load() > 0 {
			s.fail.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "bad gateway"})
			return
		}
		var body struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.last.Store(body.Text)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
}

func newStubTelegram(t *testing.T, stub *telegramStub) *Telegram {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewTelegram(Config{BotToken: "bot-token", ChatID: "-100123", BaseURL: srv.URL}, zap.NewNop())
}

func TestNotifyOrder_MessageContent(t *testing.T) {
	stub := &telegramStub{}
	tg := newStubTelegram(t, stub)

	tg.NotifyOrder(models.Order{
		OrderNo:   "AMT-1",
		OrderType: pkg.OrderTypeDelivery,
		Customer:  models.Customer{Name: "Nguyễn Văn An", Phone: "0912345678", Address: "Quận 1"},
		Items:     []models.OrderItem{{Name: "Trà sữa", Quantity: 2, Amount: 60000}},
		Total:     75000, DeliveryFee: 15000,
	}, true, "")

	require.Equal(t, int32(1), stub.calls.Load())
	msg, _ := stub.last.Load().(string)
	assert.Contains(t, msg, "AMT-1")
	assert.Contains(t, msg, "Nguyễn Văn An")
	assert.Contains(t, msg, "Trà sữa x2")
	assert.NotContains(t, msg, "CHƯA SYNC POS")
}

func TestNotifyOrder_FlagsFailedSync(t *testing.T) {
	stub := &telegramStub{}
	tg := newStubTelegram(t, stub)

	tg.NotifyOrder(models.Order{OrderNo: "AMT-2", OrderType: pkg.OrderTypePickup,
		Customer: models.Customer{Name: "An", Phone: "0912345678"}}, false, "pos down")

	msg, _ := stub.last.Load().(string)
	assert.Contains(t, msg, "CHƯA SYNC POS")
	assert.Contains(t, msg, "pos down")
}

func TestNotify_RetriesOnceThenGivesUp(t *testing.T) {
	stub := &telegramStub{}
	stub.fail.Store(5) // keeps failing
	tg := newStubTelegram(t, stub)

	tg.NotifyIncident(security.Incident{Type: security.IncidentBruteForce, ClientIP: "1.2.3.4"})
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestNotify_UnconfiguredIsNoop(t *testing.T) {
	stub := &telegramStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	tg := NewTelegram(Config{BaseURL: srv.URL}, zap.NewNop())
	tg.NotifyOrder(models.Order{OrderNo: "AMT-3"}, true, "")
	tg.NotifyIncident(security.Incident{})

	assert.Equal(t, int32(0), stub.calls.Load())
}
