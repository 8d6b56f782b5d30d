package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/entity"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	domainRepo "github.com/kasbon/kasirsync/internal/domain/repository"
	"github.com/kasbon/kasirsync/internal/infrastructure/database"
	"github.com/kasbon/kasirsync/pkg/apperror"
	"github.com/kasbon/kasirsync/pkg/authtoken"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineInput is one submitted sale line
type LineInput struct {
	ItemID    int64
	Name      string
	ItemType  enum.ItemType
	UnitPrice decimal.Decimal
	Qty       int
	Discount  decimal.Decimal
	LineTotal decimal.Decimal
}

// PaymentInput is one submitted payment
type PaymentInput struct {
	Method    string
	Amount    decimal.Decimal
	Reference string
}

// TransactionInput is one submitted client transaction
type TransactionInput struct {
	ClientTxID    string
	CompanyID     uuid.UUID
	OutletID      uuid.UUID
	CashierUserID uuid.UUID
	Status        enum.SaleStatus
	TrxAtRaw      string
	TrxAt         time.Time
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	GrandTotal    decimal.Decimal
	PaidTotal     decimal.Decimal
	ChangeTotal   decimal.Decimal
	Items         []LineInput
	Payments      []PaymentInput
}

// PushItemResult is the per-item outcome returned to the client. SyncCode
// tells the agent whether a retry of the same payload can ever succeed.
type PushItemResult struct {
	ClientTxID string            `json:"client_tx_id"`
	Result     enum.PushResult   `json:"result"`
	SyncCode   apperror.SyncCode `json:"sync_code,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// PushService ingests client transactions. Each item runs in its own
// database transaction; the unique constraint on client_tx_id is the only
// concurrency primitive guarding against double insertion.
type PushService struct {
	db          *gorm.DB
	trxRepo     domainRepo.TransactionRepository
	auditRepo   domainRepo.AuditRepository
	posting     PostingHook
	postingMode string
}

// NewPushService creates a new push ingestion service
func NewPushService(db *gorm.DB, trxRepo domainRepo.TransactionRepository, auditRepo domainRepo.AuditRepository, posting PostingHook, postingMode string) *PushService {
	return &PushService{
		db:          db,
		trxRepo:     trxRepo,
		auditRepo:   auditRepo,
		posting:     posting,
		postingMode: postingMode,
	}
}

// ProcessBatch processes submitted transactions strictly in array order.
// Each item commits or fails independently; a failure never rolls back
// earlier items.
func (s *PushService) ProcessBatch(ctx context.Context, claims *authtoken.ScopeClaims, correlationID string, inputs []TransactionInput) []PushItemResult {
	results := make([]PushItemResult, 0, len(inputs))
	for seq, in := range inputs {
		res := s.processOne(ctx, claims, correlationID, seq+1, &in)
		log.Printf("[%s] push item=%d dedupe_key=%s result=%s msg=%q",
			correlationID, seq+1, in.ClientTxID, res.Result, res.Message)
		results = append(results, res)
	}
	return results
}

// postingFailure marks a posting-hook error outside shadow mode so the
// caller can write the best-effort failure audit after the rollback.
type postingFailure struct {
	result PostingResult
	err    error
}

func (e *postingFailure) Error() string {
	return "posting hook failed: " + e.err.Error()
}

func (s *PushService) processOne(ctx context.Context, claims *authtoken.ScopeClaims, correlationID string, seq int, in *TransactionInput) PushItemResult {
	if err := validateInput(in); err != nil {
		appErr := apperror.GetAppError(err)
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: appErr.SyncCode, Message: appErr.Message}
	}

	// Scope check before any write
	if in.CompanyID != claims.CompanyID || !claims.AllowsOutlet(in.OutletID) {
		scopeErr := apperror.NewScopeMismatchError(
			fmt.Sprintf("scope mismatch: company %s outlet %s not authorized", in.CompanyID, in.OutletID))
		return PushItemResult{
			ClientTxID: in.ClientTxID,
			Result:     enum.PushResultError,
			SyncCode:   scopeErr.SyncCode,
			Message:    scopeErr.Message,
		}
	}

	hash := contentHash(in, enum.HashVersionCanonical)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trx := buildTransaction(in, hash)
		if err := tx.Create(trx).Error; err != nil {
			return err
		}

		for i := range in.Items {
			item := entity.SyncTransactionItem{
				TransactionID: trx.ID,
				ItemID:        in.Items[i].ItemID,
				Name:          in.Items[i].Name,
				ItemType:      in.Items[i].ItemType,
				UnitPrice:     in.Items[i].UnitPrice,
				Qty:           in.Items[i].Qty,
				Discount:      in.Items[i].Discount,
				LineTotal:     in.Items[i].LineTotal,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		for i := range in.Payments {
			payment := entity.SyncTransactionPayment{
				TransactionID: trx.ID,
				Method:        in.Payments[i].Method,
				Amount:        in.Payments[i].Amount,
				Reference:     in.Payments[i].Reference,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
		}

		accepted := &AcceptedTransaction{Transaction: trx, CorrelationID: correlationID}
		postingRes, postingErr := s.posting.Run(ctx, tx, accepted)

		audit := entity.SyncAudit{
			CorrelationID:  correlationID,
			ClientTxID:     in.ClientTxID,
			Result:         enum.PushResultOK,
			PostingMode:    postingRes.Mode,
			JournalBatchID: postingRes.JournalBatchID,
			BalanceOK:      postingRes.BalanceOK,
			PostingReason:  postingRes.Reason,
		}

		if postingErr != nil {
			var shadowErr *ShadowModeError
			if s.postingMode == PostingModeShadow && errors.As(postingErr, &shadowErr) {
				// Soft failure: record and accept
				audit.Message = string(apperror.SyncCodePostingSoftFail) + ": " + shadowErr.Reason
				audit.PostingReason = shadowErr.Reason
				audit.BalanceOK = false
				return tx.Create(&audit).Error
			}
			return &postingFailure{result: postingRes, err: postingErr}
		}

		return tx.Create(&audit).Error
	})

	switch {
	case err == nil:
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultOK}

	case database.IsUniqueViolation(err):
		return s.classifyCollision(ctx, correlationID, in, hash)

	case database.IsLockTimeout(err):
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: apperror.ErrLockTimeout.SyncCode, Message: apperror.ErrLockTimeout.Message}

	case database.IsDeadlock(err):
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: apperror.ErrDeadlock.SyncCode, Message: apperror.ErrDeadlock.Message}

	default:
		var pf *postingFailure
		if errors.As(err, &pf) {
			s.recordPostingFailure(ctx, correlationID, in.ClientTxID, pf)
			return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: apperror.SyncCodeInternal, Message: "posting failed"}
		}
		log.Printf("[%s] push item=%d dedupe_key=%s unexpected error: %v", correlationID, seq, in.ClientTxID, err)
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: apperror.SyncCodeInternal, Message: "internal error"}
	}
}

// classifyCollision decides whether a unique-key collision on client_tx_id
// is a safe replay or a genuine conflict. The decision strategy is keyed by
// the hash scheme the stored row was hashed under; a future scheme bump only
// adds one more case here.
func (s *PushService) classifyCollision(ctx context.Context, correlationID string, in *TransactionInput, currentHash string) PushItemResult {
	existing, err := s.trxRepo.GetByClientTxID(ctx, in.ClientTxID)
	if err != nil || existing == nil {
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: apperror.SyncCodeInternal, Message: "internal error"}
	}

	duplicate := false
	switch existing.HashVersion {
	case enum.HashVersionCanonical:
		duplicate = existing.ContentHash == currentHash

	case enum.HashVersionLegacy:
		for _, h := range legacyContentHashes(in) {
			if existing.ContentHash == h {
				duplicate = true
				break
			}
		}

	case enum.HashVersionNone:
		// Rows predating hashing entirely: full field comparison.
		duplicate = storedMatchesInput(existing, in)
	}

	if !duplicate {
		s.writeAudit(ctx, &entity.SyncAudit{
			CorrelationID: correlationID,
			ClientTxID:    in.ClientTxID,
			Result:        enum.PushResultError,
			Message:       apperror.ErrIdempotencyConflict.Message,
		})
		return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultError, SyncCode: apperror.ErrIdempotencyConflict.SyncCode, Message: apperror.ErrIdempotencyConflict.Message}
	}

	// Safe replay: the duplicate audit references the original accepted
	// entry's posting metadata.
	dupAudit := entity.SyncAudit{
		CorrelationID: correlationID,
		ClientTxID:    in.ClientTxID,
		Result:        enum.PushResultDuplicate,
	}
	if original, err := s.auditRepo.GetAccepted(ctx, in.ClientTxID); err == nil && original != nil {
		dupAudit.PostingMode = original.PostingMode
		dupAudit.JournalBatchID = original.JournalBatchID
		dupAudit.BalanceOK = original.BalanceOK
		dupAudit.PostingReason = original.PostingReason
	}
	s.writeAudit(ctx, &dupAudit)

	return PushItemResult{ClientTxID: in.ClientTxID, Result: enum.PushResultDuplicate, SyncCode: apperror.SyncCodeDuplicate}
}

// recordPostingFailure writes a best-effort failure audit after the item
// transaction has rolled back, on a connection outside it. An audit-write
// failure must not crash the request.
func (s *PushService) recordPostingFailure(ctx context.Context, correlationID, clientTxID string, pf *postingFailure) {
	s.writeAudit(ctx, &entity.SyncAudit{
		CorrelationID:  correlationID,
		ClientTxID:     clientTxID,
		Result:         enum.PushResultError,
		Message:        pf.Error(),
		PostingMode:    pf.result.Mode,
		JournalBatchID: pf.result.JournalBatchID,
		BalanceOK:      false,
		PostingReason:  pf.result.Reason,
	})
}

func (s *PushService) writeAudit(ctx context.Context, audit *entity.SyncAudit) {
	if err := s.auditRepo.Create(ctx, audit); err != nil {
		log.Printf("[%s] audit write failed for dedupe_key=%s: %v", audit.CorrelationID, audit.ClientTxID, err)
	}
}

func validateInput(in *TransactionInput) error {
	if in.ClientTxID == "" {
		return apperror.NewBadRequestError("client_tx_id is required")
	}
	if in.TrxAt.IsZero() {
		return apperror.NewBadRequestError("trx_at is required with an explicit offset")
	}
	// Out-of-range enums must die here; String() on them would otherwise
	// feed garbage into the content hash.
	if !in.Status.Valid() {
		return apperror.NewBadRequestError(fmt.Sprintf("status %d is not a recognized sale status", in.Status))
	}
	if len(in.Items) == 0 {
		return apperror.NewBadRequestError("at least one item is required")
	}
	if len(in.Payments) == 0 {
		return apperror.NewBadRequestError("at least one payment is required")
	}
	for i := range in.Items {
		if !in.Items[i].ItemType.Valid() {
			return apperror.NewBadRequestError(fmt.Sprintf("item %d: type %d is not a recognized item type", in.Items[i].ItemID, in.Items[i].ItemType))
		}
	}
	return nil
}

func buildTransaction(in *TransactionInput, hash string) *entity.SyncTransaction {
	return &entity.SyncTransaction{
		ClientTxID:    in.ClientTxID,
		CompanyID:     in.CompanyID,
		OutletID:      in.OutletID,
		CashierUserID: in.CashierUserID,
		Status:        in.Status,
		TrxAt:         in.TrxAt.UTC(),
		TrxAtRaw:      in.TrxAtRaw,
		Subtotal:      in.Subtotal,
		DiscountTotal: in.DiscountTotal,
		TaxTotal:      in.TaxTotal,
		GrandTotal:    in.GrandTotal,
		PaidTotal:     in.PaidTotal,
		ChangeTotal:   in.ChangeTotal,
		ContentHash:   hash,
		HashVersion:   enum.HashVersionCanonical,
	}
}

// storedMatchesInput compares a stored transaction field by field against a
// resubmission. Used only for rows without any stored hash. Lines and
// payments are compared as sorted fingerprints so the verdict never depends
// on submission or preload order.
func storedMatchesInput(stored *entity.SyncTransaction, in *TransactionInput) bool {
	if stored.CompanyID != in.CompanyID ||
		stored.OutletID != in.OutletID ||
		stored.CashierUserID != in.CashierUserID ||
		stored.Status != in.Status {
		return false
	}
	if !stored.TrxAt.Equal(in.TrxAt) && stored.TrxAtRaw != in.TrxAtRaw {
		return false
	}
	if !stored.Subtotal.Equal(in.Subtotal) ||
		!stored.DiscountTotal.Equal(in.DiscountTotal) ||
		!stored.TaxTotal.Equal(in.TaxTotal) ||
		!stored.GrandTotal.Equal(in.GrandTotal) ||
		!stored.PaidTotal.Equal(in.PaidTotal) ||
		!stored.ChangeTotal.Equal(in.ChangeTotal) {
		return false
	}
	if len(stored.Items) != len(in.Items) || len(stored.Payments) != len(in.Payments) {
		return false
	}

	storedItems := make([]string, 0, len(stored.Items))
	for _, it := range stored.Items {
		storedItems = append(storedItems, itemFingerprint(it.ItemID, it.Name, it.ItemType, it.UnitPrice, it.Qty, it.Discount, it.LineTotal))
	}
	inItems := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		inItems = append(inItems, itemFingerprint(it.ItemID, it.Name, it.ItemType, it.UnitPrice, it.Qty, it.Discount, it.LineTotal))
	}
	if !sortedEqual(storedItems, inItems) {
		return false
	}

	storedPayments := make([]string, 0, len(stored.Payments))
	for _, p := range stored.Payments {
		storedPayments = append(storedPayments, paymentFingerprint(p.Method, p.Amount, p.Reference))
	}
	inPayments := make([]string, 0, len(in.Payments))
	for _, p := range in.Payments {
		inPayments = append(inPayments, paymentFingerprint(p.Method, p.Amount, p.Reference))
	}
	return sortedEqual(storedPayments, inPayments)
}

func itemFingerprint(id int64, name string, itemType enum.ItemType, unitPrice decimal.Decimal, qty int, discount, lineTotal decimal.Decimal) string {
	return fmt.Sprintf("%d|%s|%s|%s|%d|%s|%s", id, name, itemType, unitPrice.String(), qty, discount.String(), lineTotal.String())
}

func paymentFingerprint(method string, amount decimal.Decimal, reference string) string {
	return fmt.Sprintf("%s|%s|%s", method, amount.String(), reference)
}

func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
