// Package pos talks to the upstream CukCuk POS. The POS is treated as an
// untrusted, sometimes-unavailable dependency: every call carries a timeout
// and callers are expected to queue orders when submission fails.
package pos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/pkg"
	"github.com/anmilktea/storefront-api/pkg/utils"
)

// Client submits finalized orders to the POS.
type Client interface {
	SubmitOrder(ctx context.Context, order models.Order) (orderCode string, err error)
}

type Config struct {
	BaseURL   string
	Domain    string
	SecretKey string
	AppID     string
	BranchID  string
}

var (
	ErrNotConfigured = errors.New("pos credentials not configured")

	errAuthFailed = errors.New("pos authentication failed")
)

const (
	tokenTTL = 25 * time.Minute // tokens are valid 30m upstream; keep a buffer

	errorTypeDuplicateRequest = 102
)

type cukcukClient struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	token *cachedToken

	now func() time.Time
}

type cachedToken struct {
	accessToken string
	companyCode string
	expiresAt   time.Time
}

func NewClient(cfg Config, logger *zap.Logger) Client {
	if cfg.AppID == "" {
		cfg.AppID = "CUKCUKOpenPlatform"
	}
	return &cukcukClient{
		cfg:    cfg,
		http:   utils.NewHTTPClient(utils.WithClientTimeout(10 * time.Second)),
		logger: logger,
		now:    time.Now,
	}
}

type loginParams struct {
	AppID     string `json:"AppID"`
	Domain    string `json:"Domain"`
	LoginTime string `json:"LoginTime"`
}

type loginRequest struct {
	loginParams
	SignatureInfo string `json:"SignatureInfo"`
}

type loginResponse struct {
	Success   bool   `json:"Success"`
	ErrorType int    `json:"ErrorType"`
	Message   string `json:"Message"`
	Data      *struct {
		AccessToken string `json:"AccessToken"`
		CompanyCode string `json:"CompanyCode"`
	} `json:"Data"`
}

// authenticate logs in with an HMAC-SHA256 hex signature over the JSON login
// params and caches the token until shortly before upstream expiry.
func (c *cukcukClient) authenticate(ctx context.Context) (*cachedToken, error) {
	if c.cfg.Domain == "" || c.cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	if c.token != nil && c.token.expiresAt.After(c.now()) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	params := loginParams{
		AppID:     c.cfg.AppID,
		Domain:    c.cfg.Domain,
		LoginTime: c.now().UTC().Format(time.RFC3339),
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write(paramsJSON)

	body, err := json.Marshal(loginRequest{
		loginParams:   params,
		SignatureInfo: hex.EncodeToString(mac.Sum(nil)),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/Account/Login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pos login request: %w", err)
	}
	defer resp.Body.Close()

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("pos login decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !loginResp.Success || loginResp.Data == nil {
		return nil, fmt.Errorf("%w: status %d, error type %d: %s",
			errAuthFailed, resp.StatusCode, loginResp.ErrorType, loginResp.Message)
	}

	token := &cachedToken{
		accessToken: loginResp.Data.AccessToken,
		companyCode: loginResp.Data.CompanyCode,
		expiresAt:   c.now().Add(tokenTTL),
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

func (c *cukcukClient) clearToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

type orderOnlineAddition struct {
	Id          string  `json:"Id"`
	Description string  `json:"Description,omitempty"`
	Price       float64 `json:"Price"`
	Quantity    int     `json:"Quantity"`
}

type orderOnlineItem struct {
	Id        string                `json:"Id"`
	Code      string                `json:"Code,omitempty"`
	ItemType  int                   `json:"ItemType,omitempty"`
	Name      string                `json:"Name"`
	Price     float64               `json:"Price"`
	UnitID    string                `json:"UnitID,omitempty"`
	UnitName  string                `json:"UnitName,omitempty"`
	Note      string                `json:"Note,omitempty"`
	Quantity  int                   `json:"Quantity"`
	Additions []orderOnlineAddition `json:"Additions,omitempty"`
}

type orderOnlineRequest struct {
	BranchId        string            `json:"BranchId"`
	OrderType       int               `json:"OrderType"` // 0 = delivery, 1 = pickup
	OrderCode       string            `json:"OrderCode"`
	CustomerName    string            `json:"CustomerName"`
	CustomerTel     string            `json:"CustomerTel"`
	ShippingAddress string            `json:"ShippingAddress"`
	ShippingDueDate string            `json:"ShippingDueDate"`
	OrderNote       string            `json:"OrderNote,omitempty"`
	PaymentStatus   int               `json:"PaymentStatus"` // 1 = unpaid (COD)
	OrderSource     int               `json:"OrderSource"`   // 1 = restaurant website
	Amount          float64           `json:"Amount"`
	TotalAmount     float64           `json:"TotalAmount"`
	DeliveryAmount  float64           `json:"DeliveryAmount"`
	DiscountAmount  float64           `json:"DiscountAmount"`
	TaxAmount       float64           `json:"TaxAmount"`
	DepositAmount   float64           `json:"DepositAmount"`
	OrderItems      []orderOnlineItem `json:"OrderItems"`
}

type orderOnlineResponse struct {
	Success   bool   `json:"Success"`
	ErrorType int    `json:"ErrorType"`
	Message   string `json:"Message"`
	Data      string `json:"Data"` // order code
}

// SubmitOrder creates the order in the POS, which triggers bill and label
// printing in the shop. A duplicate-request upstream error is treated as
// success: the order already made it through on a prior attempt.
func (c *cukcukClient) SubmitOrder(ctx context.Context, order models.Order) (string, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(c.buildRequest(order))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/order-onlines/create", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token.accessToken)
	req.Header.Set("CompanyCode", token.companyCode)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pos order request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("pos order read: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.clearToken()
		}
		return "", fmt.Errorf("pos order create: status %d", resp.StatusCode)
	}

	var orderResp orderOnlineResponse
	if err := json.Unmarshal(respBody, &orderResp); err != nil {
		return "", fmt.Errorf("pos order decode: %w", err)
	}

	if !orderResp.Success {
		if orderResp.ErrorType == errorTypeDuplicateRequest {
			c.logger.Warn("pos duplicate request, treating as synced", zap.String("order_no", order.OrderNo))
			return order.OrderNo, nil
		}
		return "", fmt.Errorf("pos order rejected: error type %d: %s", orderResp.ErrorType, orderResp.Message)
	}

	if orderResp.Data != "" {
		return orderResp.Data, nil
	}
	return order.OrderNo, nil
}

func (c *cukcukClient) buildRequest(order models.Order) orderOnlineRequest {
	items := make([]orderOnlineItem, 0, len(order.Items))
	for _, item := range order.Items {
		var noteParts []string
		var additions []orderOnlineAddition

		for _, opt := range item.Options {
			// Priced toppings become additions; other choices go into the
			// item note, except "no X" defaults.
			if opt.OptionID == "topping" && opt.Price > 0 {
				additions = append(additions, orderOnlineAddition{
					Id:          strings.TrimPrefix(opt.ChoiceID, "topping-"),
					Description: opt.ChoiceName,
					Price:       opt.Price,
					Quantity:    1,
				})
				continue
			}
			if !strings.Contains(strings.ToLower(opt.ChoiceName), "không") {
				noteParts = append(noteParts, opt.OptionName+": "+opt.ChoiceName)
			}
		}
		if item.Note != "" {
			noteParts = append(noteParts, item.Note)
		}

		items = append(items, orderOnlineItem{
			Id:        item.PosID,
			Code:      item.PosCode,
			ItemType:  item.ItemType,
			Name:      item.Name,
			Price:     item.Price,
			UnitID:    item.PosUnitID,
			UnitName:  item.UnitName,
			Note:      strings.Join(noteParts, " | "),
			Quantity:  item.Quantity,
			Additions: additions,
		})
	}

	isDelivery := order.OrderType == pkg.OrderTypeDelivery
	orderType := 1 // pickup
	shippingAddress := "Đến lấy tại quán"
	if isDelivery {
		orderType = 0
		shippingAddress = order.Customer.Address
		if order.Customer.Latitude != nil && order.Customer.Longitude != nil {
			shippingAddress += fmt.Sprintf(" | Maps: https://maps.google.com/?q=%v,%v",
				*order.Customer.Latitude, *order.Customer.Longitude)
		}
	}

	orderNote := order.Customer.Note
	if !isDelivery {
		if orderNote == "" {
			orderNote = "[ĐẾN LẤY TẠI QUÁN]"
		} else {
			orderNote = "[ĐẾN LẤY] " + orderNote
		}
	}

	return orderOnlineRequest{
		BranchId:        c.cfg.BranchID,
		OrderType:       orderType,
		OrderCode:       order.OrderNo,
		CustomerName:    order.Customer.Name,
		CustomerTel:     order.Customer.Phone,
		ShippingAddress: shippingAddress,
		ShippingDueDate: c.now().UTC().Format(time.RFC3339),
		OrderNote:       orderNote,
		PaymentStatus:   1,
		OrderSource:     1,
		Amount:          order.Subtotal,
		TotalAmount:     order.Total,
		DeliveryAmount:  order.DeliveryFee,
		OrderItems:      items,
	}
}
