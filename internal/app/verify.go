package app

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"treasure-quest-service/internal/domain"
)

// Verifier compares a secret attempt against the stored expected value.
type Verifier interface {
	Verify(expected, attempt string) bool
}

// PlaintextVerifier matches trimmed, case-folded strings.
type PlaintextVerifier struct{}

func (PlaintextVerifier) Verify(expected, attempt string) bool {
	return normalizeText(expected) == normalizeText(attempt)
}

// BcryptVerifier treats the expected value as a bcrypt hash.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(hash, attempt string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(attempt)) == nil
}

// AdminGate authorizes administrative operations against one configured secret.
type AdminGate struct {
	verifier Verifier
	secret   string
}

// NewAdminGate uses bcrypt when a hash is configured and falls back to a plaintext
// password otherwise. With neither, every attempt is refused.
func NewAdminGate(passwordHash, password string) *AdminGate {
	if passwordHash != "" {
		return &AdminGate{verifier: BcryptVerifier{}, secret: passwordHash}
	}
	return &AdminGate{verifier: exactVerifier{}, secret: password}
}

// Authorize returns domain.ErrUnauthorized unless attempt verifies.
func (g *AdminGate) Authorize(attempt string) error {
	if g == nil || g.secret == "" || attempt == "" {
		return domain.ErrUnauthorized
	}
	if !g.verifier.Verify(g.secret, attempt) {
		return domain.ErrUnauthorized
	}
	return nil
}

// exactVerifier is the case-sensitive comparison used for plaintext admin passwords.
type exactVerifier struct{}

func (exactVerifier) Verify(expected, attempt string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(attempt)) == 1
}

// answersMatch compares a player's answer with the canonical one.
func answersMatch(input, canonical string) bool {
	return normalizeText(input) == normalizeText(canonical)
}

func normalizeText(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(s))
}
