package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/kasbon/kasirsync/internal/domain/enum"
)

// contentHash computes the canonical content hash of a submitted transaction
// under the given scheme. The serialization is deterministic: fixed field
// order, fixed decimal precision, item lines and payments in submitted order.
// Only the timestamp treatment differs between schemes.
func contentHash(in *TransactionInput, version enum.HashVersion) string {
	ts := in.TrxAtRaw
	if version == enum.HashVersionCanonical {
		ts = in.TrxAt.UTC().Format(time.RFC3339)
	}
	return hashWithTimestamp(in, ts)
}

// legacyContentHashes recomputes the legacy-scheme hash under a small set of
// timestamp-format equivalences. Legacy clients sent non-canonicalized
// timestamps, so the same instant may have been hashed under any of these
// renderings.
func legacyContentHashes(in *TransactionInput) []string {
	variants := []string{
		in.TrxAtRaw,
		in.TrxAt.Format(time.RFC3339),
		in.TrxAt.UTC().Format(time.RFC3339),
		in.TrxAt.Format("2006-01-02T15:04:05"),
		in.TrxAt.Format("2006-01-02 15:04:05"),
	}

	seen := make(map[string]struct{}, len(variants))
	hashes := make([]string, 0, len(variants))
	for _, ts := range variants {
		if _, ok := seen[ts]; ok {
			continue
		}
		seen[ts] = struct{}{}
		hashes = append(hashes, hashWithTimestamp(in, ts))
	}
	return hashes
}

func hashWithTimestamp(in *TransactionInput, ts string) string {
	var b strings.Builder
	b.WriteString(in.CompanyID.String())
	b.WriteString("|")
	b.WriteString(in.OutletID.String())
	b.WriteString("|")
	b.WriteString(in.CashierUserID.String())
	b.WriteString("|")
	b.WriteString(in.Status.String())
	b.WriteString("|")
	b.WriteString(ts)
	b.WriteString("|")
	b.WriteString(in.GrandTotal.StringFixed(2))

	for _, item := range in.Items {
		b.WriteString("|i:")
		b.WriteString(strconv.FormatInt(item.ItemID, 10))
		b.WriteString(":")
		b.WriteString(strconv.Itoa(item.Qty))
		b.WriteString(":")
		b.WriteString(item.UnitPrice.StringFixed(2))
		b.WriteString(":")
		b.WriteString(item.Discount.StringFixed(2))
		b.WriteString(":")
		b.WriteString(item.LineTotal.StringFixed(2))
	}

	for _, p := range in.Payments {
		b.WriteString("|p:")
		b.WriteString(p.Method)
		b.WriteString(":")
		b.WriteString(p.Amount.StringFixed(2))
		b.WriteString(":")
		b.WriteString(p.Reference)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
