package response

import (
	"github.com/kasbon/kasirsync/internal/application/service"
	"github.com/shopspring/decimal"
)

// PushResponse is the per-item result envelope for /sync/push
type PushResponse struct {
	OK      bool                     `json:"ok"`
	Results []service.PushItemResult `json:"results"`
}

// PullResponse is the versioned reference snapshot for /sync/pull
type PullResponse struct {
	OK          bool        `json:"ok"`
	DataVersion int64       `json:"data_version"`
	NotModified bool        `json:"not_modified,omitempty"`
	Items       []PullItem  `json:"items"`
	Prices      []PullPrice `json:"prices"`
	Config      *PullConfig `json:"config,omitempty"`
}

// PullItem is one catalog row in a pull snapshot
type PullItem struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// PullPrice is the per-outlet price of one catalog item
type PullPrice struct {
	ItemID int64           `json:"item_id"`
	Price  decimal.Decimal `json:"price"`
}

// PullConfig carries the scoped tax and payment-method configuration
type PullConfig struct {
	Tax            PullTax  `json:"tax"`
	PaymentMethods []string `json:"payment_methods"`
}

// PullTax is the scoped tax configuration
type PullTax struct {
	Rate      decimal.Decimal `json:"rate"`
	Inclusive bool            `json:"inclusive"`
}

// NewPullResponse maps a snapshot into the wire shape
func NewPullResponse(snap *service.PullSnapshot) *PullResponse {
	resp := &PullResponse{
		OK:          true,
		DataVersion: snap.DataVersion,
		NotModified: snap.NotModified,
		Items:       make([]PullItem, 0, len(snap.Items)),
		Prices:      make([]PullPrice, 0, len(snap.Items)),
	}
	for _, item := range snap.Items {
		resp.Items = append(resp.Items, PullItem{
			ItemID: item.ItemID,
			Name:   item.Name,
			Type:   item.ItemType.String(),
			Active: item.Active,
		})
		resp.Prices = append(resp.Prices, PullPrice{ItemID: item.ItemID, Price: item.Price})
	}
	if snap.Config != nil {
		resp.Config = &PullConfig{
			Tax: PullTax{
				Rate:      snap.Config.TaxRate,
				Inclusive: snap.Config.TaxInclusive,
			},
			PaymentMethods: snap.Config.PaymentMethods,
		}
	}
	return resp
}

func init() {
	// decimal's default JSON rendering quotes numbers; sync clients expect
	// bare numerics.
	decimal.MarshalJSONWithoutQuotes = true
}
