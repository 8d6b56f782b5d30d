package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// OutboxStatus represents the delivery status of an outbox job.
// Sent and Dead are terminal: a job never leaves them.
type OutboxStatus int

const (
	OutboxStatusPending OutboxStatus = 0
	OutboxStatusSent    OutboxStatus = 1
	OutboxStatusFailed  OutboxStatus = 2
	// OutboxStatusDead marks a job whose payload the server rejected in a
	// way no retry can change, e.g. an idempotency conflict.
	OutboxStatusDead OutboxStatus = 3
)

func (s OutboxStatus) String() string {
	if s < OutboxStatusPending || s > OutboxStatusDead {
		return "UNKNOWN"
	}
	return [...]string{"PENDING", "SENT", "FAILED", "DEAD"}[s]
}

func (s OutboxStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OutboxStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = OutboxStatus(i)
		return nil
	}
	switch str {
	case "PENDING":
		*s = OutboxStatusPending
	case "SENT":
		*s = OutboxStatusSent
	case "FAILED":
		*s = OutboxStatusFailed
	case "DEAD":
		*s = OutboxStatusDead
	}
	return nil
}

func (s OutboxStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *OutboxStatus) Scan(value interface{}) error {
	if value == nil {
		*s = OutboxStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = OutboxStatus(v)
	case int:
		*s = OutboxStatus(v)
	}
	return nil
}
