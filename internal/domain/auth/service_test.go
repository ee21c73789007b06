package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/domain/identity"
	"github.com/visitplan/visitplan/internal/domain/settings"
	"github.com/visitplan/visitplan/internal/platform/phi"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type mockSettings struct {
	values map[string]string
}

func newMockSettings() *mockSettings {
	return &mockSettings{values: make(map[string]string)}
}

func (m *mockSettings) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", settings.ErrNotFound
	}
	return v, nil
}

func (m *mockSettings) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *mockSettings) All(_ context.Context) ([]settings.Setting, error) { return nil, nil }

type migrateOnlyPatients struct {
	identity.PatientRepository
	migrations int
}

func (m *migrateOnlyPatients) MigratePlaintext(_ context.Context) (int, error) {
	m.migrations++
	return 3, nil
}

type stubIssuer struct {
	issued int
}

func (s *stubIssuer) Issue(_ time.Time) (string, error) {
	s.issued++
	return "token", nil
}

func newTestService() (*Service, *phi.Vault, *mockSettings, *migrateOnlyPatients, *stubIssuer) {
	vault := phi.NewVault()
	store := newMockSettings()
	patients := &migrateOnlyPatients{}
	issuer := &stubIssuer{}
	svc := NewService(vault, store, patients, issuer, zerolog.Nop())
	return svc, vault, store, patients, issuer
}

func TestStatusUnconfigured(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	st := svc.Status(context.Background())
	if st.Configured || st.Unlocked {
		t.Errorf("expected unconfigured locked status, got %+v", st)
	}
}

func TestSetupEstablishesPassword(t *testing.T) {
	svc, vault, store, patients, _ := newTestService()

	token, err := svc.Setup(context.Background(), "correct horse", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token" {
		t.Errorf("expected session token, got %q", token)
	}
	if !vault.IsUnlocked() {
		t.Error("vault must be unlocked after setup")
	}
	if !phi.IsEncrypted(store.values[checkKey]) {
		t.Error("check value must be stored encrypted")
	}
	if patients.migrations != 1 {
		t.Errorf("expected one plaintext migration run, got %d", patients.migrations)
	}

	st := svc.Status(context.Background())
	if !st.Configured || !st.Unlocked {
		t.Errorf("expected configured unlocked status, got %+v", st)
	}
}

func TestSetupRejectsShortPassword(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, err := svc.Setup(context.Background(), "short", now); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestSetupTwiceFails(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, err := svc.Setup(context.Background(), "correct horse", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Setup(context.Background(), "another pass", now); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("expected ErrAlreadyConfigured, got %v", err)
	}
}

func TestLoginRightPassword(t *testing.T) {
	svc, vault, _, _, _ := newTestService()
	if _, err := svc.Setup(context.Background(), "correct horse", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Logout()
	if vault.IsUnlocked() {
		t.Fatal("vault must be locked after logout")
	}

	token, err := svc.Login(context.Background(), "correct horse", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token" {
		t.Errorf("expected session token, got %q", token)
	}
	if !vault.IsUnlocked() {
		t.Error("vault must be unlocked after login")
	}
}

func TestLoginWrongPasswordLeavesVaultLocked(t *testing.T) {
	svc, vault, _, _, _ := newTestService()
	if _, err := svc.Setup(context.Background(), "correct horse", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Logout()

	if _, err := svc.Login(context.Background(), "wrong horse!", now); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if vault.IsUnlocked() {
		t.Error("failed login must leave the vault locked")
	}
}

// A failed login must never install the candidate key: fields sealed by
// concurrent requests while someone mistypes the password have to stay
// readable under the session key.
func TestLoginWrongPasswordKeepsSessionKey(t *testing.T) {
	svc, vault, _, _, _ := newTestService()
	if _, err := svc.Setup(context.Background(), "correct horse", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sealed, err := vault.Encrypt("Anna Muster")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan []string)
	go func() {
		var out []string
		for i := 0; i < 50; i++ {
			s, err := vault.Encrypt("Berta Beispiel")
			if err == nil {
				out = append(out, s)
			}
		}
		done <- out
	}()

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(context.Background(), "wrong horse!", now); !errors.Is(err, ErrInvalidPassword) {
			t.Fatalf("expected ErrInvalidPassword, got %v", err)
		}
	}
	concurrent := <-done

	if !vault.IsUnlocked() {
		t.Fatal("failed login must not disturb the active session")
	}
	if got, err := vault.Decrypt(sealed); err != nil || got != "Anna Muster" {
		t.Errorf("field sealed before failed login unreadable: %q, %v", got, err)
	}
	for _, s := range concurrent {
		if got, err := vault.Decrypt(s); err != nil || got != "Berta Beispiel" {
			t.Errorf("field sealed during failed login unreadable: %q, %v", got, err)
		}
	}
}

func TestLoginUnconfigured(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, err := svc.Login(context.Background(), "correct horse", now); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
