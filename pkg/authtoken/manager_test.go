package authtoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	companyID := uuid.New()
	outletA, outletB := uuid.New(), uuid.New()

	token, err := m.Generate(companyID, []uuid.UUID{outletA, outletB}, "pos-01")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, companyID, claims.CompanyID)
	assert.Equal(t, "pos-01", claims.DeviceID)
	assert.True(t, claims.AllowsOutlet(outletA))
	assert.True(t, claims.AllowsOutlet(outletB))
	assert.False(t, claims.AllowsOutlet(uuid.New()))
}

func TestValidate_WrongSecret(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, err := m.Generate(uuid.New(), nil, "pos-01")
	require.NoError(t, err)

	other := NewManager("different-secret", time.Hour)
	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)
	token, err := m.Generate(uuid.New(), nil, "pos-01")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	_, err := m.Validate("not.a.token")
	assert.Error(t, err)
}
