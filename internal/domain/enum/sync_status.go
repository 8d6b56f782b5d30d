package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// SyncStatus tracks how far a local sale has travelled towards the server
type SyncStatus int

const (
	SyncStatusLocalOnly SyncStatus = 0
	SyncStatusPending   SyncStatus = 1
	SyncStatusSent      SyncStatus = 2
	SyncStatusFailed    SyncStatus = 3
)

func (s SyncStatus) String() string {
	if s < SyncStatusLocalOnly || s > SyncStatusFailed {
		return "UNKNOWN"
	}
	return [...]string{"LOCAL_ONLY", "PENDING", "SENT", "FAILED"}[s]
}

func (s SyncStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SyncStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = SyncStatus(i)
		return nil
	}
	switch str {
	case "LOCAL_ONLY":
		*s = SyncStatusLocalOnly
	case "PENDING":
		*s = SyncStatusPending
	case "SENT":
		*s = SyncStatusSent
	case "FAILED":
		*s = SyncStatusFailed
	}
	return nil
}

func (s SyncStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *SyncStatus) Scan(value interface{}) error {
	if value == nil {
		*s = SyncStatusLocalOnly
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = SyncStatus(v)
	case int:
		*s = SyncStatus(v)
	}
	return nil
}
