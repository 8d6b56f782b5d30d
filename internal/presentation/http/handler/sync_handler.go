package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/application/service"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/request"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/response"
	"github.com/kasbon/kasirsync/internal/presentation/http/middleware"
	"github.com/kasbon/kasirsync/pkg/apperror"
)

// SyncHandler handles the push/pull sync endpoints
type SyncHandler struct {
	pushService  *service.PushService
	pullService  *service.PullService
	maxBatchSize int
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(pushService *service.PushService, pullService *service.PullService, maxBatchSize int) *SyncHandler {
	if maxBatchSize <= 0 {
		maxBatchSize = 50
	}
	return &SyncHandler{
		pushService:  pushService,
		pullService:  pullService,
		maxBatchSize: maxBatchSize,
	}
}

// Push handles POST /sync/push
func (h *SyncHandler) Push(c *gin.Context) {
	claims := middleware.GetScopeClaims(c)
	if claims == nil {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	var req request.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if len(req.Transactions) > h.maxBatchSize {
		response.Error(c, apperror.NewSyncError(http.StatusBadRequest, apperror.SyncCodeValidation,
			fmt.Sprintf("Batch exceeds maximum of %d transactions", h.maxBatchSize)))
		return
	}

	inputs := make([]service.TransactionInput, 0, len(req.Transactions))
	for _, trx := range req.Transactions {
		in, err := toTransactionInput(&trx)
		if err != nil {
			response.BadRequest(c, fmt.Sprintf("Transaction %s: %v", trx.ClientTxID, err))
			return
		}
		inputs = append(inputs, *in)
	}

	correlationID := middleware.GetRequestID(c)
	results := h.pushService.ProcessBatch(c.Request.Context(), claims, correlationID, inputs)

	c.JSON(http.StatusOK, response.PushResponse{OK: true, Results: results})
}

// Pull handles GET /sync/pull
func (h *SyncHandler) Pull(c *gin.Context) {
	claims := middleware.GetScopeClaims(c)
	if claims == nil {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	outletID, err := uuid.Parse(c.Query("outlet_id"))
	if err != nil {
		response.BadRequest(c, "Invalid outlet_id")
		return
	}

	if !claims.AllowsOutlet(outletID) {
		response.Forbidden(c, "Outlet not authorized for this caller")
		return
	}

	sinceVersion := int64(0)
	if raw := c.Query("since_version"); raw != "" {
		sinceVersion, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "Invalid since_version")
			return
		}
	}

	snap, err := h.pullService.Snapshot(c.Request.Context(), claims.CompanyID, outletID, sinceVersion)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPullResponse(snap))
}

// toTransactionInput maps a wire transaction to the service input, parsing
// the timestamp. An offset is mandatory; RFC3339 enforces that.
func toTransactionInput(trx *request.PushTransaction) (*service.TransactionInput, error) {
	trxAt, err := time.Parse(time.RFC3339, trx.TrxAt)
	if err != nil {
		return nil, fmt.Errorf("trx_at must be ISO 8601 with offset: %w", err)
	}

	in := &service.TransactionInput{
		ClientTxID:    trx.ClientTxID,
		CompanyID:     trx.CompanyID,
		OutletID:      trx.OutletID,
		CashierUserID: trx.CashierUserID,
		Status:        trx.Status,
		TrxAtRaw:      trx.TrxAt,
		TrxAt:         trxAt,
		Subtotal:      trx.Subtotal,
		DiscountTotal: trx.DiscountTotal,
		TaxTotal:      trx.TaxTotal,
		GrandTotal:    trx.GrandTotal,
		PaidTotal:     trx.PaidTotal,
		ChangeTotal:   trx.ChangeTotal,
	}

	for _, item := range trx.Items {
		in.Items = append(in.Items, service.LineInput{
			ItemID:    item.ItemID,
			Name:      item.Name,
			ItemType:  item.Type,
			UnitPrice: item.UnitPrice,
			Qty:       item.Qty,
			Discount:  item.Discount,
			LineTotal: item.LineTotal,
		})
	}

	for _, p := range trx.Payments {
		in.Payments = append(in.Payments, service.PaymentInput{
			Method:    p.Method,
			Amount:    p.Amount,
			Reference: p.Reference,
		})
	}

	return in, nil
}
