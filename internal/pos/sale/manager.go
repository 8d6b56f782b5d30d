package sale

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/pkg/apperror"
	"github.com/shopspring/decimal"
)

// Manager drives the local sale lifecycle: draft, completion, and the
// void/refund corrections. Completion is the only place an outbox job is
// born, and it happens in the same transaction as the sale promotion.
type Manager struct {
	store *localstore.Store
}

// NewManager creates a sale manager over the agent store
func NewManager(store *localstore.Store) *Manager {
	return &Manager{store: store}
}

// CompleteInput carries everything a completion needs besides the sale id
type CompleteInput struct {
	Lines    []localstore.SaleLine
	Payments []localstore.Payment
	Totals   localstore.SaleTotals
}

// CreateDraft opens a new DRAFT sale in the given scope. Drafts have no
// client_tx_id and no outbox side effect; abandoning one costs nothing.
func (m *Manager) CreateDraft(ctx context.Context, scope localstore.Scope, cashierID uuid.UUID) (*localstore.Sale, error) {
	if scope.CompanyID == uuid.Nil || scope.OutletID == uuid.Nil {
		return nil, fmt.Errorf("create draft: scope is incomplete")
	}
	if cashierID == uuid.Nil {
		return nil, fmt.Errorf("create draft: cashier id is required")
	}

	draft := &localstore.Sale{
		SaleID:     uuid.New(),
		CompanyID:  scope.CompanyID,
		OutletID:   scope.OutletID,
		CashierID:  cashierID,
		Status:     enum.SaleStatusDraft,
		SyncStatus: enum.SyncStatusLocalOnly,
	}

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		return m.store.InsertDraftSale(ctx, tx, draft)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// CompleteSale promotes a DRAFT sale to COMPLETED in one local
// transaction: validate the submitted lines and totals against the
// reference cache, assign the client_tx_id exactly once, persist the line
// snapshots and payments, and enqueue exactly one outbox job keyed by
// that client_tx_id. Two racing completions of the same draft resolve to
// one COMPLETED sale and one ErrInvalidTransition.
func (m *Manager) CompleteSale(ctx context.Context, saleID uuid.UUID, in CompleteInput) (*localstore.Sale, error) {
	sale, err := m.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, fmt.Errorf("complete sale: sale %s not found", saleID)
	}

	scope := localstore.Scope{CompanyID: sale.CompanyID, OutletID: sale.OutletID}
	if err := m.validate(ctx, scope, in); err != nil {
		return nil, err
	}

	// Generated before the transaction, written exactly once inside it.
	clientTxID := uuid.NewString()
	trxAt := time.Now()

	err = m.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := m.store.PromoteDraftSale(ctx, tx, saleID, enum.SaleStatusCompleted, clientTxID, trxAt, in.Totals)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("complete sale %s: %w", saleID, apperror.ErrInvalidTransition)
		}
		if err := m.store.InsertSaleLines(ctx, tx, saleID, in.Lines); err != nil {
			return err
		}
		if err := m.store.InsertPayments(ctx, tx, saleID, in.Payments); err != nil {
			return err
		}
		return m.store.EnqueueOutboxJob(ctx, tx, &localstore.OutboxJob{
			DedupeKey: clientTxID,
			SaleID:    saleID,
			CompanyID: sale.CompanyID,
			OutletID:  sale.OutletID,
		})
	})
	if err != nil {
		return nil, err
	}

	return m.store.GetSale(ctx, saleID)
}

// VoidSale records a void as a new sale referencing the original.
// COMPLETED sales are immutable; corrections are forward-only.
func (m *Manager) VoidSale(ctx context.Context, originalID uuid.UUID, cashierID uuid.UUID) (*localstore.Sale, error) {
	return m.correct(ctx, originalID, cashierID, enum.SaleStatusVoid)
}

// RefundSale records a refund as a new sale referencing the original.
func (m *Manager) RefundSale(ctx context.Context, originalID uuid.UUID, cashierID uuid.UUID) (*localstore.Sale, error) {
	return m.correct(ctx, originalID, cashierID, enum.SaleStatusRefund)
}

func (m *Manager) correct(ctx context.Context, originalID uuid.UUID, cashierID uuid.UUID, status enum.SaleStatus) (*localstore.Sale, error) {
	original, err := m.store.GetSale(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("correct sale: sale %s not found", originalID)
	}
	if original.Status != enum.SaleStatusCompleted {
		return nil, fmt.Errorf("correct sale %s: only completed sales can be corrected: %w", originalID, apperror.ErrInvalidTransition)
	}

	lines, err := m.store.GetSaleLines(ctx, originalID)
	if err != nil {
		return nil, err
	}
	payments, err := m.store.GetPayments(ctx, originalID)
	if err != nil {
		return nil, err
	}

	correction := &localstore.Sale{
		SaleID:     uuid.New(),
		CompanyID:  original.CompanyID,
		OutletID:   original.OutletID,
		CashierID:  cashierID,
		RefSaleID:  originalID.String(),
		Status:     enum.SaleStatusDraft,
		SyncStatus: enum.SyncStatusLocalOnly,
	}

	// Correction amounts mirror the original, negated.
	negLines := make([]localstore.SaleLine, len(lines))
	for i, line := range lines {
		negLines[i] = line
		negLines[i].UnitPrice = line.UnitPrice.Neg()
		negLines[i].Discount = line.Discount.Neg()
		negLines[i].LineTotal = line.LineTotal.Neg()
	}
	negPayments := make([]localstore.Payment, len(payments))
	for i, p := range payments {
		negPayments[i] = p
		negPayments[i].Amount = p.Amount.Neg()
	}
	totals := localstore.SaleTotals{
		Subtotal:      original.Subtotal.Neg(),
		DiscountTotal: original.DiscountTotal.Neg(),
		TaxTotal:      original.TaxTotal.Neg(),
		GrandTotal:    original.GrandTotal.Neg(),
		PaidTotal:     original.PaidTotal.Neg(),
		ChangeTotal:   original.ChangeTotal.Neg(),
	}

	clientTxID := uuid.NewString()
	trxAt := time.Now()

	err = m.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := m.store.InsertDraftSale(ctx, tx, correction); err != nil {
			return err
		}
		n, err := m.store.PromoteDraftSale(ctx, tx, correction.SaleID, status, clientTxID, trxAt, totals)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("correct sale %s: %w", originalID, apperror.ErrInvalidTransition)
		}
		if err := m.store.InsertSaleLines(ctx, tx, correction.SaleID, negLines); err != nil {
			return err
		}
		if err := m.store.InsertPayments(ctx, tx, correction.SaleID, negPayments); err != nil {
			return err
		}
		return m.store.EnqueueOutboxJob(ctx, tx, &localstore.OutboxJob{
			DedupeKey: clientTxID,
			SaleID:    correction.SaleID,
			CompanyID: correction.CompanyID,
			OutletID:  correction.OutletID,
		})
	})
	if err != nil {
		return nil, err
	}

	return m.store.GetSale(ctx, correction.SaleID)
}

// validate checks the submitted completion against structural rules, the
// reference cache, and recomputed totals.
func (m *Manager) validate(ctx context.Context, scope localstore.Scope, in CompleteInput) error {
	if len(in.Lines) == 0 {
		return fmt.Errorf("complete sale: at least one line is required")
	}
	if len(in.Payments) == 0 {
		return fmt.Errorf("complete sale: at least one payment is required")
	}

	subtotal := decimal.Zero
	discountTotal := decimal.Zero
	for i, line := range in.Lines {
		if line.Qty <= 0 {
			return fmt.Errorf("complete sale: line %d: qty must be positive", i)
		}
		if line.UnitPrice.IsNegative() || line.Discount.IsNegative() {
			return fmt.Errorf("complete sale: line %d: negative amounts are not allowed", i)
		}

		ref, err := m.store.GetRefItem(ctx, scope, line.ItemID)
		if err != nil {
			return err
		}
		if ref == nil || !ref.Active {
			return fmt.Errorf("item %d has no active snapshot in outlet %s: %w",
				line.ItemID, scope.OutletID, apperror.ErrSnapshotMissing)
		}

		want := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))).Sub(line.Discount)
		if !line.LineTotal.Equal(want) {
			return fmt.Errorf("complete sale: line %d: total %s does not match %s",
				i, line.LineTotal, want)
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
		discountTotal = discountTotal.Add(line.Discount)
	}

	paid := decimal.Zero
	for i, p := range in.Payments {
		if p.Amount.IsNegative() {
			return fmt.Errorf("complete sale: payment %d: negative amount", i)
		}
		if p.Method == "" {
			return fmt.Errorf("complete sale: payment %d: method is required", i)
		}
		paid = paid.Add(p.Amount)
	}

	t := in.Totals
	for _, check := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"subtotal", t.Subtotal},
		{"discount_total", t.DiscountTotal},
		{"tax_total", t.TaxTotal},
		{"grand_total", t.GrandTotal},
		{"paid_total", t.PaidTotal},
		{"change_total", t.ChangeTotal},
	} {
		if check.v.IsNegative() {
			return fmt.Errorf("complete sale: %s must not be negative", check.name)
		}
	}

	if !t.Subtotal.Equal(subtotal) {
		return fmt.Errorf("complete sale: subtotal %s does not match lines %s", t.Subtotal, subtotal)
	}
	if !t.DiscountTotal.Equal(discountTotal) {
		return fmt.Errorf("complete sale: discount_total %s does not match lines %s", t.DiscountTotal, discountTotal)
	}
	want := t.Subtotal.Sub(t.DiscountTotal).Add(t.TaxTotal)
	if !t.GrandTotal.Equal(want) {
		return fmt.Errorf("complete sale: grand_total %s does not match %s", t.GrandTotal, want)
	}
	if !t.PaidTotal.Equal(paid) {
		return fmt.Errorf("complete sale: paid_total %s does not match payments %s", t.PaidTotal, paid)
	}
	if t.PaidTotal.LessThan(t.GrandTotal) {
		return fmt.Errorf("complete sale: paid_total %s is less than grand_total %s", t.PaidTotal, t.GrandTotal)
	}
	if !t.ChangeTotal.Equal(t.PaidTotal.Sub(t.GrandTotal)) {
		return fmt.Errorf("complete sale: change_total %s does not match paid minus grand", t.ChangeTotal)
	}

	return nil
}
