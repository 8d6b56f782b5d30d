package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uuidFixed builds a deterministic id so hash inputs are reproducible
func uuidFixed(b byte) uuid.UUID {
	var id uuid.UUID
	id[15] = b
	return id
}

// fixedInput is sampleInput with every random field pinned
func fixedInput() TransactionInput {
	in := sampleInput(uuidFixed(1), uuidFixed(2))
	in.ClientTxID = "trx-0001"
	in.CashierUserID = uuidFixed(3)
	return in
}

func TestContentHash_Deterministic(t *testing.T) {
	in := fixedInput()

	h1 := contentHash(&in, enum.HashVersionCanonical)
	h2 := contentHash(&in, enum.HashVersionCanonical)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "sha256 hex")
}

func TestContentHash_CanonicalNormalizesOffset(t *testing.T) {
	in := fixedInput()

	// Same instant rendered with a different offset.
	shifted := in
	shifted.TrxAtRaw = in.TrxAt.UTC().Format(time.RFC3339)
	shifted.TrxAt = in.TrxAt.UTC()
	require.True(t, in.TrxAt.Equal(shifted.TrxAt))

	assert.Equal(t,
		contentHash(&in, enum.HashVersionCanonical),
		contentHash(&shifted, enum.HashVersionCanonical),
		"canonical scheme hashes the instant, not the rendering")

	assert.NotEqual(t,
		contentHash(&in, enum.HashVersionLegacy),
		contentHash(&shifted, enum.HashVersionLegacy),
		"legacy scheme hashes the raw rendering")
}

func TestContentHash_SensitiveToContent(t *testing.T) {
	base := fixedInput()

	tests := []struct {
		name   string
		mutate func(*TransactionInput)
	}{
		{"grand total", func(in *TransactionInput) { in.GrandTotal = in.GrandTotal.Add(decimal.NewFromInt(1)) }},
		{"item qty", func(in *TransactionInput) { in.Items[0].Qty++ }},
		{"item price", func(in *TransactionInput) { in.Items[0].UnitPrice = in.Items[0].UnitPrice.Add(decimal.NewFromInt(1)) }},
		{"payment method", func(in *TransactionInput) { in.Payments[0].Method = "QRIS" }},
		{"status", func(in *TransactionInput) { in.Status = enum.SaleStatusRefund }},
		{"extra item", func(in *TransactionInput) { in.Items = append(in.Items, in.Items[0]) }},
	}

	want := contentHash(&base, enum.HashVersionCanonical)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fixedInput()
			tt.mutate(&in)
			assert.NotEqual(t, want, contentHash(&in, enum.HashVersionCanonical))
		})
	}
}

func TestContentHash_DecimalRenderingNormalized(t *testing.T) {
	a := fixedInput()
	b := fixedInput()
	b.GrandTotal = decimal.RequireFromString("30000.00")
	require.True(t, a.GrandTotal.Equal(b.GrandTotal))

	assert.Equal(t,
		contentHash(&a, enum.HashVersionCanonical),
		contentHash(&b, enum.HashVersionCanonical),
		"30000 and 30000.00 must hash identically")
}

func TestLegacyContentHashes_CoverTimestampEquivalences(t *testing.T) {
	in := fixedInput()

	hashes := legacyContentHashes(&in)
	require.NotEmpty(t, hashes)

	// The raw rendering and the UTC rendering are both covered.
	assert.Contains(t, hashes, hashWithTimestamp(&in, in.TrxAtRaw))
	assert.Contains(t, hashes, hashWithTimestamp(&in, in.TrxAt.UTC().Format(time.RFC3339)))

	// Variants are deduplicated.
	seen := map[string]struct{}{}
	for _, h := range hashes {
		_, dup := seen[h]
		assert.False(t, dup, "duplicate hash variant")
		seen[h] = struct{}{}
	}
}
