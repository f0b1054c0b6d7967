package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/core"
)

const (
	printPayloadMediaType = "text/vnd.star.markup"
	authChallenge         = `Basic realm="Authentication Required"`
)

// Renderer produces the printer-ready payload for a popped order and
// removes its tmp artifacts on cleanup.
type Renderer interface {
	Render(ctx context.Context, order *core.Order) ([]byte, error)
	Cleanup(uuid string) error
}

// PollRequest is the Star CloudPRNT server-polling POST body. It is
// accepted leniently; only the fields worth logging are mapped.
type PollRequest struct {
	Status             string `json:"status"`
	PrinterMAC         string `json:"printerMAC"`
	UniqueID           string `json:"uniqueID"`
	StatusCode         string `json:"statusCode"`
	JobToken           string `json:"jobToken"`
	PrintingInProgress bool   `json:"printingInProgress"`
}

type PollResponse struct {
	JobReady     string   `json:"jobReady"`
	MediaTypes   []string `json:"mediaTypes"`
	JobToken     string   `json:"jobToken,omitempty"`
	DeleteMethod string   `json:"deleteMethod"`
}

// CloudPrintHandler implements the three-call printer polling protocol:
// POST status poll, GET job fetch, DELETE cleanup.
type CloudPrintHandler struct {
	queue     *core.OrderQueue
	auth      *core.AuthCache
	store     core.OrderStore
	notifier  core.StatusNotifier
	renderer  Renderer
	mediaType string
	logger    *zap.Logger
}

func NewCloudPrintHandler(queue *core.OrderQueue, auth *core.AuthCache, store core.OrderStore, notifier core.StatusNotifier, renderer Renderer, mediaType string, logger *zap.Logger) *CloudPrintHandler {
	return &CloudPrintHandler{
		queue:     queue,
		auth:      auth,
		store:     store,
		notifier:  notifier,
		renderer:  renderer,
		mediaType: mediaType,
		logger:    logger,
	}
}

func (h *CloudPrintHandler) unauthorized(c *gin.Context, res core.AuthResult) {
	c.Header("WWW-Authenticate", authChallenge)
	c.JSON(res.HTTPStatus, gin.H{"message": res.Message})
}

// PostPoll answers the printer's periodic "is a job ready" question. It
// never mutates the queue: repeated polls with no fetch in between keep
// returning the same token, minted from the order the next GET will pop.
func (h *CloudPrintHandler) PostPoll(c *gin.Context) {
	code := strings.ToLower(c.Param("restaurant_code"))

	res := h.auth.Authorize(code, c.GetHeader("Authorization"))
	if !res.OK {
		h.unauthorized(c, res)
		return
	}

	var req PollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("unreadable poll body", zap.String("restaurant_code", code), zap.Error(err))
	} else if req.StatusCode != "" {
		h.logger.Debug("printer poll",
			zap.String("restaurant_code", code),
			zap.String("status_code", req.StatusCode),
			zap.String("printer_mac", req.PrinterMAC))
	}

	ready := h.queue.IsJobReady(code)

	// Observational cross-check against the durable store. A mismatch
	// points at a crash between enqueue and insert, or a stale row.
	if pending, err := h.store.HasPendingOrders(c.Request.Context(), code); err != nil {
		h.logger.Error("failed to check pending orders in database",
			zap.String("restaurant_code", code), zap.Error(err))
	} else if pending != ready {
		h.logger.Warn("queue and database disagree on pending orders",
			zap.String("restaurant_code", code),
			zap.Bool("queue_ready", ready),
			zap.Bool("db_pending", pending))
	}

	resp := PollResponse{
		JobReady:     strconv.FormatBool(ready),
		MediaTypes:   []string{h.mediaType},
		DeleteMethod: http.MethodDelete,
	}

	if ready {
		if next := h.queue.NextOrder(code); next != nil {
			resp.JobToken = core.MintToken(next)
		} else {
			// A concurrent fetch drained the queue between the two
			// reads; report not ready rather than a token-less job.
			resp.JobReady = "false"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GetJob pops the next order and returns its rendered payload. The wire
// protocol sends this GET without an Authorization header, so it passes
// only on a still-active auth window. An empty queue is a normal
// outcome, answered with 200 and a plain message.
func (h *CloudPrintHandler) GetJob(c *gin.Context) {
	code := strings.ToLower(c.Param("restaurant_code"))

	res := h.auth.Authorize(code, "")
	if !res.OK {
		h.unauthorized(c, res)
		return
	}

	order := h.queue.Pop(code)
	if order == nil {
		c.String(http.StatusOK, "No more orders in queue for %s", code)
		return
	}

	order.Status = core.StatusPrintInProgress
	h.logger.Info("popped order from queue",
		zap.String("restaurant_code", code),
		zap.String("uuid", order.UUID),
		zap.String("cloud_print_id", order.CloudPrintID),
		zap.String("order_id", order.OrderID))

	ctx := c.Request.Context()

	if err := h.store.MarkInProgress(ctx, order.UUID); err != nil {
		h.logger.Error("failed to mark order in progress",
			zap.String("uuid", order.UUID), zap.Error(err))
	}

	if err := h.notifier.UpdateStatus(ctx, order.CloudPrintID, core.StatusPrintInProgress); err != nil {
		h.logger.Error("failed to notify backend of print start",
			zap.String("cloud_print_id", order.CloudPrintID), zap.Error(err))
	}

	payload, err := h.renderer.Render(ctx, order)
	if err != nil {
		// The order is already popped; its durable record stays for
		// operator reconciliation.
		h.logger.Error("failed to render order",
			zap.String("uuid", order.UUID), zap.Error(err))
		c.String(http.StatusInternalServerError, "failed to render order %s", order.OrderID)
		return
	}

	c.Data(http.StatusOK, printPayloadMediaType, payload)
}

// DeleteJob is the printer's cleanup acknowledgment: it removes the tmp
// files and the durable record the job token refers to. The call is
// idempotent and a malformed token is a logged no-op, never an error.
func (h *CloudPrintHandler) DeleteJob(c *gin.Context) {
	code := strings.ToLower(c.Param("restaurant_code"))
	token := c.Query("jobToken")

	fields, err := core.ParseToken(token)
	if err != nil {
		h.logger.Warn("cleanup with malformed job token",
			zap.String("restaurant_code", code), zap.Error(err))
		c.String(http.StatusOK, "Delete Call Response.")
		return
	}

	if err := h.renderer.Cleanup(fields.UUID); err != nil {
		h.logger.Error("failed to remove tmp print files",
			zap.String("uuid", fields.UUID), zap.Error(err))
	}

	if err := h.store.DeleteOrderByUUID(c.Request.Context(), fields.UUID); err != nil {
		h.logger.Error("failed to delete order record",
			zap.String("uuid", fields.UUID), zap.Error(err))
	}

	h.logger.Info("order cleanup acknowledged",
		zap.String("restaurant_code", code),
		zap.String("order_id", fields.OrderID),
		zap.String("uuid", fields.UUID))

	c.String(http.StatusOK, "Delete Call Response.")
}
