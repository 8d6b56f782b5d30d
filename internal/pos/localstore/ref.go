package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// GetRefItem returns one cached catalog row for a scope, or nil when the
// item was never synced to this device.
func (s *Store) GetRefItem(ctx context.Context, scope Scope, itemID int64) (*RefItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_id, name, item_type, active, price, updated_version
		FROM ref_items
		WHERE company_id = ? AND outlet_id = ? AND item_id = ?
	`, scope.CompanyID.String(), scope.OutletID.String(), itemID)

	item := RefItem{CompanyID: scope.CompanyID, OutletID: scope.OutletID}
	var price string
	err := row.Scan(&item.ItemID, &item.Name, &item.ItemType, &item.Active, &price, &item.UpdatedVersion)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ref item: %w", err)
	}
	if item.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse ref price: %w", err)
	}
	return &item, nil
}

// ListRefItems returns every cached catalog row for a scope ordered by item id.
func (s *Store) ListRefItems(ctx context.Context, scope Scope) ([]RefItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, item_type, active, price, updated_version
		FROM ref_items
		WHERE company_id = ? AND outlet_id = ?
		ORDER BY item_id ASC
	`, scope.CompanyID.String(), scope.OutletID.String())
	if err != nil {
		return nil, fmt.Errorf("list ref items: %w", err)
	}
	defer rows.Close()

	var items []RefItem
	for rows.Next() {
		item := RefItem{CompanyID: scope.CompanyID, OutletID: scope.OutletID}
		var price string
		if err := rows.Scan(&item.ItemID, &item.Name, &item.ItemType, &item.Active, &price, &item.UpdatedVersion); err != nil {
			return nil, fmt.Errorf("scan ref item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse ref price: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetScopeConfig returns the cached config + watermark for a scope, or nil
// before the first successful pull.
func (s *Store) GetScopeConfig(ctx context.Context, scope Scope) (*ScopeConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data_version, tax_rate, tax_inclusive, payment_methods
		FROM scope_config
		WHERE company_id = ? AND outlet_id = ?
	`, scope.CompanyID.String(), scope.OutletID.String())

	cfg := ScopeConfig{CompanyID: scope.CompanyID, OutletID: scope.OutletID}
	var taxRate, methodsJSON string
	err := row.Scan(&cfg.DataVersion, &taxRate, &cfg.TaxInclusive, &methodsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scope config: %w", err)
	}
	if cfg.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, fmt.Errorf("parse tax rate: %w", err)
	}
	if err := json.Unmarshal([]byte(methodsJSON), &cfg.PaymentMethods); err != nil {
		return nil, fmt.Errorf("parse payment methods: %w", err)
	}
	return &cfg, nil
}

// ApplyRefSnapshot applies one pulled catalog version in a single
// transaction: upsert every returned item, mark previously active rows
// absent from the snapshot inactive, then persist the watermark and the
// outlet config. Rows are never deleted so historical sales can still
// resolve their item names.
func (s *Store) ApplyRefSnapshot(ctx context.Context, scope Scope, items []RefItem, cfg ScopeConfig) error {
	methodsJSON, err := json.Marshal(cfg.PaymentMethods)
	if err != nil {
		return fmt.Errorf("marshal payment methods: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		seen := make(map[int64]struct{}, len(items))
		for _, item := range items {
			seen[item.ItemID] = struct{}{}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO ref_items
				(company_id, outlet_id, item_id, name, item_type, active, price, updated_version)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(company_id, outlet_id, item_id) DO UPDATE SET
					name = excluded.name,
					item_type = excluded.item_type,
					active = excluded.active,
					price = excluded.price,
					updated_version = excluded.updated_version
			`,
				scope.CompanyID.String(),
				scope.OutletID.String(),
				item.ItemID,
				item.Name,
				item.ItemType,
				item.Active,
				item.Price.String(),
				cfg.DataVersion,
			)
			if err != nil {
				return fmt.Errorf("upsert ref item %d: %w", item.ItemID, err)
			}
		}

		// Anything active locally but absent from the snapshot is retired.
		rows, err := tx.QueryContext(ctx, `
			SELECT item_id FROM ref_items
			WHERE company_id = ? AND outlet_id = ? AND active = 1
		`, scope.CompanyID.String(), scope.OutletID.String())
		if err != nil {
			return fmt.Errorf("list active ref items: %w", err)
		}
		var stale []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan active ref item: %w", err)
			}
			if _, ok := seen[id]; !ok {
				stale = append(stale, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate active ref items: %w", err)
		}
		for _, id := range stale {
			_, err := tx.ExecContext(ctx, `
				UPDATE ref_items SET active = 0, updated_version = ?
				WHERE company_id = ? AND outlet_id = ? AND item_id = ?
			`, cfg.DataVersion, scope.CompanyID.String(), scope.OutletID.String(), id)
			if err != nil {
				return fmt.Errorf("retire ref item %d: %w", id, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO scope_config
			(company_id, outlet_id, data_version, tax_rate, tax_inclusive, payment_methods)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(company_id, outlet_id) DO UPDATE SET
				data_version = excluded.data_version,
				tax_rate = excluded.tax_rate,
				tax_inclusive = excluded.tax_inclusive,
				payment_methods = excluded.payment_methods
		`,
			scope.CompanyID.String(),
			scope.OutletID.String(),
			cfg.DataVersion,
			cfg.TaxRate.String(),
			cfg.TaxInclusive,
			string(methodsJSON),
		)
		if err != nil {
			return fmt.Errorf("save scope config: %w", err)
		}
		return nil
	})
}

// PutRefItem seeds or overwrites one cached catalog row directly,
// bypassing the snapshot path.
func (s *Store) PutRefItem(ctx context.Context, item RefItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ref_items
		(company_id, outlet_id, item_id, name, item_type, active, price, updated_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, outlet_id, item_id) DO UPDATE SET
			name = excluded.name,
			item_type = excluded.item_type,
			active = excluded.active,
			price = excluded.price,
			updated_version = excluded.updated_version
	`,
		item.CompanyID.String(),
		item.OutletID.String(),
		item.ItemID,
		item.Name,
		item.ItemType,
		item.Active,
		item.Price.String(),
		item.UpdatedVersion,
	)
	if err != nil {
		return fmt.Errorf("put ref item: %w", err)
	}
	return nil
}
