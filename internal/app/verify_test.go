package app_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
)

func TestPlaintextVerifier(t *testing.T) {
	v := app.PlaintextVerifier{}
	assert.True(t, v.Verify("Open-Sesame", "  open-sesame "))
	assert.False(t, v.Verify("open-sesame", "open sesame"))
}

func TestAdminGatePlaintext(t *testing.T) {
	gate := app.NewAdminGate("", "admin123")
	assert.NoError(t, gate.Authorize("admin123"))
	assert.ErrorIs(t, gate.Authorize("ADMIN123"), domain.ErrUnauthorized)
	assert.ErrorIs(t, gate.Authorize(""), domain.ErrUnauthorized)
}

func TestAdminGateBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	gate := app.NewAdminGate(string(hash), "ignored")

	assert.NoError(t, gate.Authorize("s3cret"))
	assert.ErrorIs(t, gate.Authorize("ignored"), domain.ErrUnauthorized)
}

func TestAdminGateWithoutSecretRefusesAll(t *testing.T) {
	gate := app.NewAdminGate("", "")
	assert.ErrorIs(t, gate.Authorize("anything"), domain.ErrUnauthorized)

	var nilGate *app.AdminGate
	assert.ErrorIs(t, nilGate.Authorize("anything"), domain.ErrUnauthorized)
}

func TestResolveDisplayName(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	name, err := app.ResolveDisplayName("  Ada  ", false, rnd)
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	_, err = app.ResolveDisplayName(strings.Repeat("x", domain.MaxDisplayNameLength+1), false, rnd)
	assert.ErrorIs(t, err, domain.ErrInvalidDisplayName)

	name, err = app.ResolveDisplayName("ignored", true, rnd)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "Seeker-"))
}
