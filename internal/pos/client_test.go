package pos

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/pkg"
)

type fakePOSServer struct {
	t *testing.T

	logins       atomic.Int32
	orders       atomic.Int32
	orderStatus  int
	orderPayload orderOnlineResponse

	lastOrder orderOnlineRequest
}

func (f *fakePOSServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Account/Login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)

		var req loginRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

		// The signature must be the HMAC over the login params JSON
		paramsJSON, err := json.Marshal(req.loginParams)
		require.NoError(f.t, err)
		mac := hmac.New(sha256.New, []byte("shop-secret"))
		mac.Write(paramsJSON)
		require.Equal(f.t, hex.EncodeToString(mac.Sum(nil)), req.SignatureInfo)

		_ = json.NewEncoder(w).Encode(loginResponse{
			Success: true,
			Data: &struct {
				AccessToken string `json:"AccessToken"`
				CompanyCode string `json:"CompanyCode"`
			}{AccessToken: "tok-1", CompanyCode: "anmilktea"},
		})
	})
	mux.HandleFunc("/api/v1/order-onlines/create", func(w http.ResponseWriter, r *http.Request) {
		f.orders.Add(1)
		require.Equal(f.t, "Bearer tok-1", r.Header.Get("Authorization"))

		_ = json.NewDecoder(r.Body).Decode(&f.lastOrder)
		if f.orderStatus != 0 && f.orderStatus != http.StatusOK {
			w.WriteHeader(f.orderStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(f.orderPayload)
	})
	return mux
}

func newTestClient(t *testing.T, srv *httptest.Server) *cukcukClient {
	client := NewClient(Config{
		BaseURL:   srv.URL,
		Domain:    "anmilktea",
		SecretKey: "shop-secret",
		BranchID:  "branch-1",
	}, zap.NewNop())
	return client.(*cukcukClient)
}

func deliveryOrder() models.Order {
	lat, lon := 10.7769, 106.7009
	return models.Order{
		OrderNo:   "AMT-1724900000000",
		OrderType: pkg.OrderTypeDelivery,
		Customer: models.Customer{
			Name: "Nguyễn Văn An", Phone: "0912345678",
			Address: "123 Lê Lợi, Quận 1", Latitude: &lat, Longitude: &lon,
		},
		Items: []models.OrderItem{{
			PosID: "pos-1", Name: "Trà sữa trân châu", Quantity: 2, Price: 30000, Amount: 60000,
			Options: []models.ItemOption{
				{OptionID: "topping", ChoiceID: "topping-tc1", ChoiceName: "Trân châu đen", Price: 5000},
				{OptionID: "sugar", OptionName: "Đường", ChoiceName: "50%"},
				{OptionID: "ice", OptionName: "Đá", ChoiceName: "Không đá"},
			},
		}},
		Subtotal: 60000, DeliveryFee: 15000, Total: 75000,
	}
}

func TestSubmitOrder_MapsOrderPayload(t *testing.T) {
	fake := &fakePOSServer{t: t, orderPayload: orderOnlineResponse{Success: true, Data: "POS-77"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv)
	code, err := client.SubmitOrder(context.Background(), deliveryOrder())
	require.NoError(t, err)
	assert.Equal(t, "POS-77", code)

	got := fake.lastOrder
	assert.Equal(t, 0, got.OrderType) // delivery
	assert.Equal(t, "AMT-1724900000000", got.OrderCode)
	assert.Contains(t, got.ShippingAddress, "123 Lê Lợi")
	assert.Contains(t, got.ShippingAddress, "maps.google.com")
	assert.Equal(t, 75000.0, got.TotalAmount)
	assert.Equal(t, 15000.0, got.DeliveryAmount)

	require.Len(t, got.OrderItems, 1)
	item := got.OrderItems[0]
	require.Len(t, item.Additions, 1)
	assert.Equal(t, "tc1", item.Additions[0].Id) // topping- prefix stripped
	assert.Equal(t, 5000.0, item.Additions[0].Price)
	// "Không đá" is a default, only the sugar choice lands in the note
	assert.Equal(t, "Đường: 50%", item.Note)
}

func TestSubmitOrder_PickupMapping(t *testing.T) {
	fake := &fakePOSServer{t: t, orderPayload: orderOnlineResponse{Success: true}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	order := deliveryOrder()
	order.OrderType = pkg.OrderTypePickup
	order.Customer.Note = "10 phút nữa tới"

	client := newTestClient(t, srv)
	code, err := client.SubmitOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNo, code) // empty Data falls back to our order number

	assert.Equal(t, 1, fake.lastOrder.OrderType)
	assert.Equal(t, "Đến lấy tại quán", fake.lastOrder.ShippingAddress)
	assert.Equal(t, "[ĐẾN LẤY] 10 phút nữa tới", fake.lastOrder.OrderNote)
}

func TestSubmitOrder_TokenIsCached(t *testing.T) {
	fake := &fakePOSServer{t: t, orderPayload: orderOnlineResponse{Success: true, Data: "POS-1"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.SubmitOrder(context.Background(), deliveryOrder())
	require.NoError(t, err)
	_, err = client.SubmitOrder(context.Background(), deliveryOrder())
	require.NoError(t, err)

	assert.Equal(t, int32(1), fake.logins.Load())
	assert.Equal(t, int32(2), fake.orders.Load())
}

func TestSubmitOrder_TokenExpiryTriggersRelogin(t *testing.T) {
	fake := &fakePOSServer{t: t, orderPayload: orderOnlineResponse{Success: true, Data: "POS-1"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv)
	current := time.Now()
	client.now = func() time.Time { return current }

	_, err := client.SubmitOrder(context.Background(), deliveryOrder())
	require.NoError(t, err)

	current = current.Add(26 * time.Minute)
	_, err = client.SubmitOrder(context.Background(), deliveryOrder())
	require.NoError(t, err)

	assert.Equal(t, int32(2), fake.logins.Load())
}

func TestSubmitOrder_UnauthorizedClearsToken(t *testing.T) {
	fake := &fakePOSServer{t: t, orderStatus: http.StatusUnauthorized}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.SubmitOrder(context.Background(), deliveryOrder())
	require.Error(t, err)

	client.mu.Lock()
	assert.Nil(t, client.token)
	client.mu.Unlock()
}

func TestSubmitOrder_DuplicateRequestIsSuccess(t *testing.T) {
	fake := &fakePOSServer{t: t, orderPayload: orderOnlineResponse{
		Success: false, ErrorType: errorTypeDuplicateRequest, Message: "duplicated request",
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv)
	order := deliveryOrder()
	code, err := client.SubmitOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNo, code)
}

func TestSubmitOrder_NotConfigured(t *testing.T) {
	client := NewClient(Config{}, zap.NewNop())
	_, err := client.SubmitOrder(context.Background(), deliveryOrder())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
