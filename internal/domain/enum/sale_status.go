package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SaleStatus represents the lifecycle status of a sale
type SaleStatus int

const (
	SaleStatusDraft     SaleStatus = 0
	SaleStatusCompleted SaleStatus = 1
	SaleStatusVoid      SaleStatus = 2
	SaleStatusRefund    SaleStatus = 3
)

// Valid reports whether s is one of the declared statuses. Wire input
// must be checked before String or hashing sees it.
func (s SaleStatus) Valid() bool {
	return s >= SaleStatusDraft && s <= SaleStatusRefund
}

func (s SaleStatus) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return [...]string{"DRAFT", "COMPLETED", "VOID", "REFUND"}[s]
}

func (s SaleStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SaleStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		// Try unmarshaling as int
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		if v := SaleStatus(i); v.Valid() {
			*s = v
			return nil
		}
		return fmt.Errorf("invalid sale status %d", i)
	}
	switch str {
	case "DRAFT":
		*s = SaleStatusDraft
	case "COMPLETED":
		*s = SaleStatusCompleted
	case "VOID":
		*s = SaleStatusVoid
	case "REFUND":
		*s = SaleStatusRefund
	default:
		return fmt.Errorf("invalid sale status %q", str)
	}
	return nil
}

func (s SaleStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *SaleStatus) Scan(value interface{}) error {
	if value == nil {
		*s = SaleStatusDraft
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = SaleStatus(v)
	case int:
		*s = SaleStatus(v)
	}
	return nil
}
