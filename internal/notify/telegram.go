// Package notify sends best-effort Telegram messages to the shop's order
// group. Delivery failures are logged and retried once; they never block or
// fail the request that triggered them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/internal/security"
	"github.com/anmilktea/storefront-api/pkg"
	"github.com/anmilktea/storefront-api/pkg/utils"
)

type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string // override for tests; defaults to api.telegram.org
}

type Telegram struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewTelegram(cfg Config, logger *zap.Logger) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	return &Telegram{
		cfg:    cfg,
		http:   utils.NewHTTPClient(utils.WithClientTimeout(5 * time.Second)),
		logger: logger,
	}
}

func (t *Telegram) configured() bool {
	return t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

// NotifyOrder announces a new order, flagging it when the POS sync failed so
// the staff can enter it manually or retry when the shift opens.
func (t *Telegram) NotifyOrder(order models.Order, posSynced bool, posErr string) {
	if !t.configured() {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>ĐƠN HÀNG MỚI #%s</b>\n", order.OrderNo)
	if order.OrderType == pkg.OrderTypeDelivery {
		b.WriteString("GIAO HÀNG\n")
	} else {
		b.WriteString("ĐẾN LẤY TẠI QUÁN\n")
	}
	if !posSynced {
		fmt.Fprintf(&b, "\n⚠ <b>CHƯA SYNC POS</b>\n<i>%s</i>\n", posErr)
	}

	fmt.Fprintf(&b, "\n<b>Khách hàng:</b>\n• Tên: %s\n• SĐT: %s\n", order.Customer.Name, order.Customer.Phone)
	if order.OrderType == pkg.OrderTypeDelivery {
		fmt.Fprintf(&b, "• Địa chỉ: %s\n", order.Customer.Address)
		if order.Customer.Latitude != nil && order.Customer.Longitude != nil {
			fmt.Fprintf(&b, "• Maps: https://maps.google.com/?q=%v,%v\n",
				*order.Customer.Latitude, *order.Customer.Longitude)
		}
	}
	if order.Customer.Note != "" {
		fmt.Fprintf(&b, "• Ghi chú: %s\n", order.Customer.Note)
	}

	b.WriteString("\n<b>Đơn hàng:</b>\n")
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. %s x%d - %.0f₫\n", i+1, item.Name, item.Quantity, item.Amount)
	}
	fmt.Fprintf(&b, "\n<b>TỔNG: %.0f₫</b> (ship %.0f₫)", order.Total, order.DeliveryFee)

	t.send(b.String())
}

// NotifyIncident implements security.AdminNotifier for critical incidents.
func (t *Telegram) NotifyIncident(incident security.Incident) {
	if !t.configured() {
		return
	}
	msg := fmt.Sprintf("<b>CRITICAL SECURITY INCIDENT</b>\nType: %s\nIP: %s\nAction: %s\nTime: %s",
		incident.Type, incident.ClientIP, incident.Action, incident.Timestamp.Format(time.RFC3339))
	t.send(msg)
}

// send posts the message with one jittered-backoff retry.
func (t *Telegram) send(text string) {
	for attempt := 1; attempt <= 2; attempt++ {
		if err := t.post(text); err == nil {
			return
		} else if attempt == 2 {
			t.logger.Error("telegram notification failed", zap.Error(err))
			return
		} else {
			t.logger.Warn("telegram notification retrying", zap.Error(err))
		}
		time.Sleep(utils.ExponentialBackoffWithJitter(attempt, time.Second, 5*time.Second))
	}
}

func (t *Telegram) post(text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.Ok {
		return fmt.Errorf("telegram api: %s", result.Description)
	}
	return nil
}
