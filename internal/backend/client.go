package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/config"
	"github.com/potlam/cloudprint/internal/core"
)

// Client talks to the POTLAM backend: it pulls the list of orders
// awaiting print and pushes per-order print status updates back. Every
// call is a POST carrying the shared public key.
type Client struct {
	host           string
	publicKey      string
	printListPath  string
	statusPath     string
	bulkStatusPath string
	httpClient     *http.Client
	logger         *zap.Logger
}

func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	return &Client{
		host:           cfg.Host,
		publicKey:      cfg.PublicKey,
		printListPath:  cfg.PrintListPath,
		statusPath:     cfg.StatusUpdatePath,
		bulkStatusPath: cfg.BulkStatusPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type ordersListRequest struct {
	PublicKey string `json:"public_key"`
}

type ordersListResponse struct {
	Status  int                  `json:"status"`
	Message string               `json:"message"`
	Body    []core.UpstreamOrder `json:"body"`
}

type statusUpdateRequest struct {
	PublicKey    string `json:"public_key"`
	CloudPrintID string `json:"cloud_print_id"`
	Status       string `json:"status"`
}

type bulkStatusRequest struct {
	PublicKey string              `json:"public_key"`
	OrderList []core.StatusUpdate `json:"order_list"`
}

// FetchPendingOrders returns the backend's current pending-print list.
// An empty response body means there is nothing to print and yields a
// nil slice, not an error.
func (c *Client) FetchPendingOrders(ctx context.Context) ([]core.UpstreamOrder, error) {
	body, err := c.post(ctx, c.printListPath, ordersListRequest{PublicKey: c.publicKey})
	if err != nil {
		return nil, fmt.Errorf("fetch pending orders: %w", err)
	}

	if len(body) == 0 {
		return nil, nil
	}

	var resp ordersListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode pending orders response: %w", err)
	}

	return resp.Body, nil
}

func (c *Client) UpdateStatus(ctx context.Context, cloudPrintID string, status core.OrderStatus) error {
	_, err := c.post(ctx, c.statusPath, statusUpdateRequest{
		PublicKey:    c.publicKey,
		CloudPrintID: cloudPrintID,
		Status:       string(status),
	})
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (c *Client) BulkUpdateStatus(ctx context.Context, updates []core.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	_, err := c.post(ctx, c.bulkStatusPath, bulkStatusRequest{
		PublicKey: c.publicKey,
		OrderList: updates,
	})
	if err != nil {
		return fmt.Errorf("bulk update order status: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return body, nil
}
