package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ScopeClaims carries the caller's authorized sync scope. Tokens are minted
// by the identity service; this package only validates them, plus signs
// short-lived tokens for agents and tests.
type ScopeClaims struct {
	CompanyID uuid.UUID   `json:"company_id"`
	OutletIDs []uuid.UUID `json:"outlet_ids"`
	DeviceID  string      `json:"device_id"`
	jwt.RegisteredClaims
}

// AllowsOutlet reports whether the claims authorize the given outlet.
func (c *ScopeClaims) AllowsOutlet(outletID uuid.UUID) bool {
	for _, id := range c.OutletIDs {
		if id == outletID {
			return true
		}
	}
	return false
}

// Manager handles scope token generation and validation
type Manager struct {
	secretKey []byte
	expiry    time.Duration
}

// NewManager creates a new token manager
func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		expiry:    expiry,
	}
}

// Generate signs a token scoped to one company and a set of outlets.
func (m *Manager) Generate(companyID uuid.UUID, outletIDs []uuid.UUID, deviceID string) (string, error) {
	claims := &ScopeClaims{
		CompanyID: companyID,
		OutletIDs: outletIDs,
		DeviceID:  deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "kasirsync",
			Subject:   companyID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Validate validates a scope token and returns the claims
func (m *Manager) Validate(tokenString string) (*ScopeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ScopeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ScopeClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
