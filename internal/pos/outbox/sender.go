package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/kasbon/kasirsync/internal/pos/apiclient"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/request"
)

// PushSender adapts the sync API client to the drainer's Sender interface,
// translating a stored sale into its wire shape.
type PushSender struct {
	client *apiclient.Client
}

// NewPushSender wraps an API client as a Sender
func NewPushSender(client *apiclient.Client) *PushSender {
	return &PushSender{client: client}
}

func (s *PushSender) Send(ctx context.Context, sale *localstore.Sale, lines []localstore.SaleLine, payments []localstore.Payment) (Outcome, error) {
	trx := request.PushTransaction{
		ClientTxID:    sale.ClientTxID,
		CompanyID:     sale.CompanyID,
		OutletID:      sale.OutletID,
		CashierUserID: sale.CashierID,
		Status:        sale.Status,
		TrxAt:         sale.TrxAt.Format(time.RFC3339),
		Subtotal:      sale.Subtotal,
		DiscountTotal: sale.DiscountTotal,
		TaxTotal:      sale.TaxTotal,
		GrandTotal:    sale.GrandTotal,
		PaidTotal:     sale.PaidTotal,
		ChangeTotal:   sale.ChangeTotal,
	}
	for _, line := range lines {
		trx.Items = append(trx.Items, request.PushItem{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Type:      line.ItemType,
			UnitPrice: line.UnitPrice,
			Qty:       line.Qty,
			Discount:  line.Discount,
			LineTotal: line.LineTotal,
		})
	}
	for _, p := range payments {
		trx.Payments = append(trx.Payments, request.PushPayment{
			Method:    p.Method,
			Amount:    p.Amount,
			Reference: p.Reference,
		})
	}

	outcomes, err := s.client.Push(ctx, sale.OutletID, []request.PushTransaction{trx})
	if err != nil {
		return Outcome{}, err
	}
	for _, o := range outcomes {
		if o.ClientTxID == sale.ClientTxID {
			return Outcome{Result: o.Result, SyncCode: o.SyncCode, Message: o.Message}, nil
		}
	}
	return Outcome{}, fmt.Errorf("push response missing client_tx_id %s", sale.ClientTxID)
}

var _ Sender = (*PushSender)(nil)
