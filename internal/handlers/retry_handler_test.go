package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/internal/queue"
)

type alwaysFailPOS struct{}

func (alwaysFailPOS) SubmitOrder(ctx context.Context, order models.Order) (string, error) {
	return "", errors.New("pos unavailable")
}

const testAPIKey = "internal-test-key-0123456789"

func newRetryRouter(q *queue.RetryQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	NewRetryHandler(zap.NewNop(), q, testAPIKey).RegisterRoutes(api)
	return router
}

func TestRetryHandler_PendingCountIsOpen(t *testing.T) {
	q := queue.NewRetryQueue(alwaysFailPOS{}, zap.NewNop())
	q.Enqueue(models.Order{OrderNo: "AMT-1"}, "down")
	router := newRetryRouter(q)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/retry", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			PendingCount int `json:"pendingCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.PendingCount)
}

func TestRetryHandler_PostRequiresBearerKey(t *testing.T) {
	q := queue.NewRetryQueue(alwaysFailPOS{}, zap.NewNop())
	router := newRetryRouter(q)

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testAPIKey},
		{"wrong key", "Bearer not-the-key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders/retry", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRetryHandler_RetryAllWithCleanup(t *testing.T) {
	q := queue.NewRetryQueue(alwaysFailPOS{}, zap.NewNop())
	q.Enqueue(models.Order{OrderNo: "AMT-1"}, "down")
	router := newRetryRouter(q)

	body, _ := json.Marshal(map[string]bool{"cleanup": true})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/retry", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Total   int `json:"total"`
			Synced  int `json:"synced"`
			Failed  int `json:"failed"`
			Cleaned int `json:"cleaned"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 0, resp.Data.Synced)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 0, resp.Data.Cleaned) // the failed retry stays visible
}
