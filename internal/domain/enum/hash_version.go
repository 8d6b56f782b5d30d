package enum

import "database/sql/driver"

// HashVersion identifies the content-hash scheme a stored transaction was
// hashed under. Old rows keep their original version so duplicate detection
// stays backward-compatible across scheme migrations.
type HashVersion int

const (
	// HashVersionNone marks rows that predate content hashing entirely.
	HashVersionNone HashVersion = 0
	// HashVersionLegacy hashed the raw client timestamp string as sent.
	HashVersionLegacy HashVersion = 1
	// HashVersionCanonical hashes the timestamp normalized to UTC RFC3339.
	HashVersionCanonical HashVersion = 2
)

func (v HashVersion) String() string {
	if v < HashVersionNone || v > HashVersionCanonical {
		return "UNKNOWN"
	}
	return [...]string{"NONE", "LEGACY", "CANONICAL"}[v]
}

func (v HashVersion) Value() (driver.Value, error) {
	return int64(v), nil
}

func (v *HashVersion) Scan(value interface{}) error {
	if value == nil {
		*v = HashVersionNone
		return nil
	}
	switch x := value.(type) {
	case int64:
		*v = HashVersion(x)
	case int:
		*v = HashVersion(x)
	}
	return nil
}
