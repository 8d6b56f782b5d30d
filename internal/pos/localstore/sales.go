package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// InsertDraftSale writes a new DRAFT sale header. No outbox side effect.
func (s *Store) InsertDraftSale(ctx context.Context, tx *sql.Tx, sale *Sale) error {
	now := formatTime(time.Now())
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sales
		(sale_id, company_id, outlet_id, cashier_id, status, sync_status,
		 client_tx_id, ref_sale_id, trx_at, subtotal, discount_total, tax_total,
		 grand_total, paid_total, change_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, NULL, '0', '0', '0', '0', '0', '0', ?, ?)
	`,
		sale.SaleID.String(),
		sale.CompanyID.String(),
		sale.OutletID.String(),
		sale.CashierID.String(),
		enum.SaleStatusDraft,
		enum.SyncStatusLocalOnly,
		sale.RefSaleID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert draft sale: %w", err)
	}
	return nil
}

// PromoteDraftSale flips a DRAFT sale to the given terminal status,
// assigning its client_tx_id and totals in the same statement. The
// WHERE status clause makes the transition single-shot: the returned
// count is zero when the sale is missing or no longer a draft.
func (s *Store) PromoteDraftSale(ctx context.Context, tx *sql.Tx, saleID uuid.UUID, status enum.SaleStatus, clientTxID string, trxAt time.Time, totals SaleTotals) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET status = ?, sync_status = ?, client_tx_id = ?, trx_at = ?,
		    subtotal = ?, discount_total = ?, tax_total = ?,
		    grand_total = ?, paid_total = ?, change_total = ?, updated_at = ?
		WHERE sale_id = ? AND status = ?
	`,
		status,
		enum.SyncStatusPending,
		clientTxID,
		formatTime(trxAt),
		totals.Subtotal.String(),
		totals.DiscountTotal.String(),
		totals.TaxTotal.String(),
		totals.GrandTotal.String(),
		totals.PaidTotal.String(),
		totals.ChangeTotal.String(),
		formatTime(time.Now()),
		saleID.String(),
		enum.SaleStatusDraft,
	)
	if err != nil {
		return 0, fmt.Errorf("promote draft sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("promote draft sale: %w", err)
	}
	return n, nil
}

// SaleTotals groups the monetary totals written at completion
type SaleTotals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	GrandTotal    decimal.Decimal
	PaidTotal     decimal.Decimal
	ChangeTotal   decimal.Decimal
}

// InsertSaleLines writes the immutable line snapshots of a sale.
func (s *Store) InsertSaleLines(ctx context.Context, tx *sql.Tx, saleID uuid.UUID, lines []SaleLine) error {
	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items
			(sale_id, item_id, name, item_type, unit_price, qty, discount, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			saleID.String(),
			line.ItemID,
			line.Name,
			line.ItemType,
			line.UnitPrice.String(),
			line.Qty,
			line.Discount.String(),
			line.LineTotal.String(),
		)
		if err != nil {
			return fmt.Errorf("insert sale line: %w", err)
		}
	}
	return nil
}

// InsertPayments writes the payments captured against a sale.
func (s *Store) InsertPayments(ctx context.Context, tx *sql.Tx, saleID uuid.UUID, payments []Payment) error {
	for _, p := range payments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payments (sale_id, method, amount, reference)
			VALUES (?, ?, ?, ?)
		`,
			saleID.String(),
			p.Method,
			p.Amount.String(),
			p.Reference,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return nil
}

// GetSale returns a sale header by id, or nil when absent.
func (s *Store) GetSale(ctx context.Context, saleID uuid.UUID) (*Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sale_id, company_id, outlet_id, cashier_id, status, sync_status,
		       COALESCE(client_tx_id, ''), COALESCE(ref_sale_id, ''),
		       COALESCE(trx_at, ''), subtotal, discount_total, tax_total,
		       grand_total, paid_total, change_total, created_at, updated_at
		FROM sales WHERE sale_id = ?
	`, saleID.String())

	sale, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// GetSaleLines returns the line snapshots of a sale in insertion order.
func (s *Store) GetSaleLines(ctx context.Context, saleID uuid.UUID) ([]SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, item_type, unit_price, qty, discount, line_total
		FROM sale_items WHERE sale_id = ? ORDER BY id ASC
	`, saleID.String())
	if err != nil {
		return nil, fmt.Errorf("query sale lines: %w", err)
	}
	defer rows.Close()

	var lines []SaleLine
	for rows.Next() {
		var line SaleLine
		var unitPrice, discount, lineTotal string
		if err := rows.Scan(&line.ItemID, &line.Name, &line.ItemType, &unitPrice, &line.Qty, &discount, &lineTotal); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parse unit_price: %w", err)
		}
		if line.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("parse discount: %w", err)
		}
		if line.LineTotal, err = decimal.NewFromString(lineTotal); err != nil {
			return nil, fmt.Errorf("parse line_total: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetPayments returns the payments of a sale in insertion order.
func (s *Store) GetPayments(ctx context.Context, saleID uuid.UUID) ([]Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT method, amount, reference
		FROM payments WHERE sale_id = ? ORDER BY id ASC
	`, saleID.String())
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		var amount string
		if err := rows.Scan(&p.Method, &amount, &p.Reference); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SetSaleSyncStatus updates only the delivery status of a sale.
func (s *Store) SetSaleSyncStatus(ctx context.Context, tx *sql.Tx, saleID uuid.UUID, status enum.SyncStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sales SET sync_status = ?, updated_at = ? WHERE sale_id = ?
	`, status, formatTime(time.Now()), saleID.String())
	if err != nil {
		return fmt.Errorf("set sale sync status: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*Sale, error) {
	var sale Sale
	var saleID, companyID, outletID, cashierID string
	var trxAt, createdAt, updatedAt string
	var subtotal, discountTotal, taxTotal, grandTotal, paidTotal, changeTotal string

	err := row.Scan(
		&saleID, &companyID, &outletID, &cashierID,
		&sale.Status, &sale.SyncStatus, &sale.ClientTxID, &sale.RefSaleID,
		&trxAt, &subtotal, &discountTotal, &taxTotal,
		&grandTotal, &paidTotal, &changeTotal, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sale.SaleID, err = uuid.Parse(saleID); err != nil {
		return nil, fmt.Errorf("parse sale_id: %w", err)
	}
	if sale.CompanyID, err = uuid.Parse(companyID); err != nil {
		return nil, fmt.Errorf("parse company_id: %w", err)
	}
	if sale.OutletID, err = uuid.Parse(outletID); err != nil {
		return nil, fmt.Errorf("parse outlet_id: %w", err)
	}
	if sale.CashierID, err = uuid.Parse(cashierID); err != nil {
		return nil, fmt.Errorf("parse cashier_id: %w", err)
	}
	if sale.TrxAt, err = parseTime(trxAt); err != nil {
		return nil, err
	}
	if sale.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sale.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	for _, col := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{subtotal, &sale.Subtotal},
		{discountTotal, &sale.DiscountTotal},
		{taxTotal, &sale.TaxTotal},
		{grandTotal, &sale.GrandTotal},
		{paidTotal, &sale.PaidTotal},
		{changeTotal, &sale.ChangeTotal},
	} {
		if *col.dst, err = decimal.NewFromString(col.raw); err != nil {
			return nil, fmt.Errorf("parse sale total: %w", err)
		}
	}

	return &sale, nil
}
