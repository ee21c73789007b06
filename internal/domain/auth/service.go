// Package auth implements the practice's master-password session: one shared
// password both authenticates the user and unlocks field encryption.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/domain/identity"
	"github.com/visitplan/visitplan/internal/domain/settings"
	"github.com/visitplan/visitplan/internal/platform/phi"
)

var (
	// ErrNotConfigured is returned when no master password has been set yet.
	ErrNotConfigured = errors.New("auth: master password not configured")
	// ErrAlreadyConfigured is returned when setup runs a second time.
	ErrAlreadyConfigured = errors.New("auth: master password already configured")
	// ErrInvalidPassword is returned when the password does not match.
	ErrInvalidPassword = errors.New("auth: invalid password")
	// ErrPasswordTooShort is returned during setup for weak passwords.
	ErrPasswordTooShort = errors.New("auth: password too short")
)

const (
	minPasswordLen = 8

	// checkKey stores an encrypted known value. Decrypting it back to
	// checkValue proves the entered password derives the right key.
	checkKey   = "auth_check"
	checkValue = "visitplan-check"
)

// TokenIssuer hands out session tokens after a successful login.
type TokenIssuer interface {
	Issue(now time.Time) (string, error)
}

// Status describes the authentication state of the practice.
type Status struct {
	Configured bool `json:"configured"`
	Unlocked   bool `json:"unlocked"`
}

type Service struct {
	vault    *phi.Vault
	settings settings.Repository
	patients identity.PatientRepository
	tokens   TokenIssuer
	logger   zerolog.Logger
}

func NewService(vault *phi.Vault, settingsRepo settings.Repository, patients identity.PatientRepository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		vault:    vault,
		settings: settingsRepo,
		patients: patients,
		tokens:   tokens,
		logger:   logger,
	}
}

func (s *Service) Status(ctx context.Context) Status {
	_, err := s.settings.Get(ctx, checkKey)
	return Status{
		Configured: err == nil,
		Unlocked:   s.vault.IsUnlocked(),
	}
}

// Setup establishes the master password: it unlocks the vault, stores the
// encrypted check value, and seals any patient fields written before
// encryption existed. Returns a session token.
func (s *Service) Setup(ctx context.Context, password string, now time.Time) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrPasswordTooShort
	}
	if _, err := s.settings.Get(ctx, checkKey); err == nil {
		return "", ErrAlreadyConfigured
	} else if !errors.Is(err, settings.ErrNotFound) {
		return "", fmt.Errorf("read check value: %w", err)
	}

	if err := s.vault.Unlock(password); err != nil {
		return "", fmt.Errorf("unlock vault: %w", err)
	}
	sealed, err := s.vault.Encrypt(checkValue)
	if err != nil {
		return "", fmt.Errorf("seal check value: %w", err)
	}
	if err := s.settings.Set(ctx, checkKey, sealed); err != nil {
		return "", fmt.Errorf("store check value: %w", err)
	}

	migrated, err := s.patients.MigratePlaintext(ctx)
	if err != nil {
		return "", fmt.Errorf("migrate plaintext fields: %w", err)
	}
	if migrated > 0 {
		s.logger.Info().Int("patients", migrated).Msg("sealed pre-existing plaintext fields")
	}

	return s.tokens.Issue(now)
}

// Login verifies the master password by decrypting the stored check value
// with the key it derives. Verification happens outside the vault: a
// candidate key must never be loaded before it is proven right, or
// concurrent requests could seal fields with it. Only on success is the
// vault unlocked and a token issued.
func (s *Service) Login(ctx context.Context, password string, now time.Time) (string, error) {
	stored, err := s.settings.Get(ctx, checkKey)
	if errors.Is(err, settings.ErrNotFound) {
		return "", ErrNotConfigured
	}
	if err != nil {
		return "", fmt.Errorf("read check value: %w", err)
	}

	// A wrong key leaves the ciphertext unopened, so the comparison fails
	// without an explicit error.
	opened, err := phi.DecryptWithPassword(password, stored)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if opened != checkValue {
		return "", ErrInvalidPassword
	}

	if err := s.vault.Unlock(password); err != nil {
		return "", fmt.Errorf("unlock vault: %w", err)
	}
	return s.tokens.Issue(now)
}

// Logout locks the vault. Outstanding session tokens are not revoked; they
// fail on field access because the key is gone, and expire on their own.
func (s *Service) Logout() {
	s.vault.Lock()
}
