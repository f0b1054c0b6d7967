package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/config"
	"github.com/potlam/cloudprint/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.BackendConfig{
		Host:             srv.URL,
		PublicKey:        "pk-123",
		PrintListPath:    "/cloudprint/list",
		StatusUpdatePath: "/cloudprint/status",
		BulkStatusPath:   "/cloudprint/status/bulk",
		Timeout:          5 * time.Second,
	}, zap.NewNop())
}

func TestFetchPendingOrders(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": 200,
			"message": "ok",
			"body": [
				{
					"cloud_print_id": "555",
					"order_id": "100",
					"restaurant_code": "abc123",
					"restaurant_details": {"name": "Testaurant"},
					"print_order": {"order_id": "100"}
				},
				{
					"cloud_print_id": "556",
					"order_id": "101",
					"restaurant_code": "abc123",
					"print_order": ""
				}
			]
		}`)
	})

	orders, err := client.FetchPendingOrders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/cloudprint/list", gotPath)
	assert.Equal(t, "pk-123", gotBody["public_key"])

	require.Len(t, orders, 2)
	assert.Equal(t, "555", orders[0].CloudPrintID)
	assert.Equal(t, "Testaurant", orders[0].RestaurantDetails.Name)
	assert.Equal(t, json.RawMessage(`{"order_id": "100"}`), orders[0].PrintOrder)
	assert.Equal(t, json.RawMessage(`""`), orders[1].PrintOrder)
}

func TestFetchPendingOrders_EmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	orders, err := client.FetchPendingOrders(context.Background())
	require.NoError(t, err)
	assert.Nil(t, orders)
}

func TestFetchPendingOrders_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	_, err := client.FetchPendingOrders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http error: 502")
}

func TestFetchPendingOrders_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	})

	_, err := client.FetchPendingOrders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode pending orders response")
}

func TestUpdateStatus(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := client.UpdateStatus(context.Background(), "555", core.StatusPrintInProgress)
	require.NoError(t, err)

	assert.Equal(t, "/cloudprint/status", gotPath)
	assert.Equal(t, "pk-123", gotBody["public_key"])
	assert.Equal(t, "555", gotBody["cloud_print_id"])
	assert.Equal(t, "print_in_progress", gotBody["status"])
}

func TestBulkUpdateStatus(t *testing.T) {
	var gotPath string
	var gotBody bulkStatusRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := client.BulkUpdateStatus(context.Background(), []core.StatusUpdate{
		{CloudPrintID: "555", Status: core.StatusPrintInProgress},
		{CloudPrintID: "556", Status: core.StatusPrintInProgress},
	})
	require.NoError(t, err)

	assert.Equal(t, "/cloudprint/status/bulk", gotPath)
	assert.Equal(t, "pk-123", gotBody.PublicKey)
	require.Len(t, gotBody.OrderList, 2)
	assert.Equal(t, "556", gotBody.OrderList[1].CloudPrintID)
}

func TestBulkUpdateStatus_EmptyListSkipsCall(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	require.NoError(t, client.BulkUpdateStatus(context.Background(), nil))
	assert.False(t, called)
}
