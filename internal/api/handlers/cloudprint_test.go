package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/core"
)

const testCredential = "dGVzdFVzZXI6dGVzdFBhc3N3b3Jk"

type stubStore struct {
	mu         sync.Mutex
	inProgress []string
	deleted    []string
	pending    bool
}

func (s *stubStore) InsertPendingOrders(ctx context.Context, orders []*core.Order) error { return nil }

func (s *stubStore) MarkInProgress(ctx context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = append(s.inProgress, uuid)
	return nil
}

func (s *stubStore) DeleteOrder(ctx context.Context, restaurantCode, orderID string) error {
	return nil
}

func (s *stubStore) DeleteOrderByUUID(ctx context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, uuid)
	return nil
}

func (s *stubStore) OrderExists(ctx context.Context, restaurantCode, orderID string) (bool, error) {
	return false, nil
}

func (s *stubStore) HasPendingOrders(ctx context.Context, restaurantCode string) (bool, error) {
	return s.pending, nil
}

type stubNotifier struct {
	mu      sync.Mutex
	updates []core.StatusUpdate
}

func (n *stubNotifier) UpdateStatus(ctx context.Context, cloudPrintID string, status core.OrderStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, core.StatusUpdate{CloudPrintID: cloudPrintID, Status: status})
	return nil
}

func (n *stubNotifier) BulkUpdateStatus(ctx context.Context, updates []core.StatusUpdate) error {
	return nil
}

type stubRenderer struct {
	mu      sync.Mutex
	fail    bool
	cleaned []string
}

func (r *stubRenderer) Render(ctx context.Context, order *core.Order) ([]byte, error) {
	if r.fail {
		return nil, context.DeadlineExceeded
	}
	return []byte("rendered:" + order.OrderID), nil
}

func (r *stubRenderer) Cleanup(uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleaned = append(r.cleaned, uuid)
	return nil
}

type protocolFixture struct {
	router   *gin.Engine
	queue    *core.OrderQueue
	store    *stubStore
	notifier *stubNotifier
	renderer *stubRenderer
}

func newProtocolFixture(t *testing.T) *protocolFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &protocolFixture{
		queue:    core.NewOrderQueue(),
		store:    &stubStore{},
		notifier: &stubNotifier{},
		renderer: &stubRenderer{},
	}

	auth := core.NewAuthCache(testCredential, time.Minute)
	h := NewCloudPrintHandler(f.queue, auth, f.store, f.notifier, f.renderer,
		"application/vnd.star.starprnt", zap.NewNop())

	f.router = gin.New()
	f.router.POST("/print/:restaurant_code", h.PostPoll)
	f.router.GET("/print/:restaurant_code", h.GetJob)
	f.router.DELETE("/print/:restaurant_code", h.DeleteJob)
	return f
}

func (f *protocolFixture) poll(t *testing.T, code, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/print/"+code, strings.NewReader(`{"statusCode":"200 OK"}`))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *protocolFixture) fetch(t *testing.T, code string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/print/"+code, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *protocolFixture) cleanup(t *testing.T, code, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodDelete, "/print/"+code+"?jobToken="+token, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *protocolFixture) admit(code, orderID, cpID string) *core.Order {
	order := &core.Order{
		UUID:           "uuid-" + orderID,
		RestaurantCode: code,
		OrderID:        orderID,
		CloudPrintID:   cpID,
		PrintOrder:     json.RawMessage(`{"order_id":"` + orderID + `","orderdate":"2024-06-01","ordertime":"12:30","orderdetails":[]}`),
		Status:         core.StatusPrintPending,
	}
	f.queue.Enqueue(order)
	return order
}

func decodePoll(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPostPoll_Unauthenticated(t *testing.T) {
	f := newProtocolFixture(t)

	w := f.poll(t, "abc123", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="Authentication Required"`, w.Header().Get("WWW-Authenticate"))

	body := decodePoll(t, w)
	assert.Equal(t, "Authentication Required.", body["message"])
	assert.NotContains(t, body, "jobReady")
}

func TestPostPoll_InvalidCredentials(t *testing.T) {
	f := newProtocolFixture(t)

	w := f.poll(t, "abc123", "Basic bm9wZQ==")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication Failed. Invalid Credentials.", decodePoll(t, w)["message"])
}

func TestPostPoll_EmptyQueue(t *testing.T) {
	f := newProtocolFixture(t)

	w := f.poll(t, "abc123", "Basic "+testCredential)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodePoll(t, w)
	assert.Equal(t, "false", body["jobReady"])
	assert.Equal(t, "DELETE", body["deleteMethod"])
	assert.NotContains(t, body, "jobToken")
}

func TestPostPoll_JobReadyAndTokenStable(t *testing.T) {
	f := newProtocolFixture(t)
	f.admit("abc123", "100", "555")

	first := decodePoll(t, f.poll(t, "abc123", "Basic "+testCredential))
	assert.Equal(t, "true", first["jobReady"])
	assert.Equal(t, "abc123_100_555_uuid-100", first["jobToken"])
	assert.Equal(t, []interface{}{"application/vnd.star.starprnt"}, first["mediaTypes"])

	// Polling again without a fetch in between returns the same token.
	second := decodePoll(t, f.poll(t, "abc123", "Basic "+testCredential))
	assert.Equal(t, first["jobToken"], second["jobToken"])
	assert.Equal(t, 1, f.queue.Depth("abc123"))
}

func TestGetJob_RequiresActiveWindow(t *testing.T) {
	f := newProtocolFixture(t)
	f.admit("abc123", "100", "555")

	w := f.fetch(t, "abc123")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, 1, f.queue.Depth("abc123"))
}

func TestGetJob_PopsAndRenders(t *testing.T) {
	f := newProtocolFixture(t)
	f.admit("abc123", "100", "555")
	f.poll(t, "abc123", "Basic "+testCredential)

	w := f.fetch(t, "abc123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/vnd.star.markup", w.Header().Get("Content-Type"))
	assert.Equal(t, "rendered:100", w.Body.String())

	assert.Equal(t, 0, f.queue.Depth("abc123"))
	assert.Equal(t, []string{"uuid-100"}, f.store.inProgress)
	require.Len(t, f.notifier.updates, 1)
	assert.Equal(t, core.StatusUpdate{CloudPrintID: "555", Status: core.StatusPrintInProgress}, f.notifier.updates[0])
}

func TestGetJob_EmptyQueueIsNormal(t *testing.T) {
	f := newProtocolFixture(t)
	f.poll(t, "abc123", "Basic "+testCredential)

	w := f.fetch(t, "abc123")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No more orders in queue for abc123")
	assert.Empty(t, f.store.inProgress)
}

func TestGetJob_RenderFailure(t *testing.T) {
	f := newProtocolFixture(t)
	f.renderer.fail = true
	f.admit("abc123", "100", "555")
	f.poll(t, "abc123", "Basic "+testCredential)

	w := f.fetch(t, "abc123")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// The order stays popped; its durable record is left for
	// reconciliation.
	assert.Equal(t, 0, f.queue.Depth("abc123"))
	assert.Empty(t, f.store.deleted)
}

func TestDeleteJob_Idempotent(t *testing.T) {
	f := newProtocolFixture(t)
	token := "abc123_100_555_uuid-100"

	first := f.cleanup(t, "abc123", token)
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.cleanup(t, "abc123", token)
	assert.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, []string{"uuid-100", "uuid-100"}, f.store.deleted)
	assert.Equal(t, []string{"uuid-100", "uuid-100"}, f.renderer.cleaned)
}

func TestDeleteJob_MalformedTokenIsNoOp(t *testing.T) {
	f := newProtocolFixture(t)

	w := f.cleanup(t, "abc123", "not-a-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.store.deleted)
	assert.Empty(t, f.renderer.cleaned)
}

func TestProtocol_TwoOrderScenario(t *testing.T) {
	f := newProtocolFixture(t)
	f.admit("abc123", "100", "555")
	f.admit("abc123", "101", "556")

	first := decodePoll(t, f.poll(t, "abc123", "Basic "+testCredential))
	require.Equal(t, "true", first["jobReady"])
	assert.Contains(t, first["jobToken"], "_100_")

	w := f.fetch(t, "abc123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rendered:100", w.Body.String())
	assert.Equal(t, 1, f.queue.Depth("abc123"))

	second := decodePoll(t, f.poll(t, "abc123", "Basic "+testCredential))
	require.Equal(t, "true", second["jobReady"])
	assert.Contains(t, second["jobToken"], "_101_")

	w = f.fetch(t, "abc123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rendered:101", w.Body.String())

	third := decodePoll(t, f.poll(t, "abc123", "Basic "+testCredential))
	assert.Equal(t, "false", third["jobReady"])
}
