package auth

import (
	"errors"
	"testing"

	"github.com/wastemaster/wastemaster/core/model"
)

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	return h
}

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewVerifier([]Account{
		{ID: "crew-1", Name: "Crew One", Role: "operator", SecretHash: mustHash(t, "s3cret")},
		{ID: "admin", Name: "Back Office", Role: "administrator", SecretHash: mustHash(t, "topsecret")},
	})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	actor, err := v.Verify("crew-1", "s3cret")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actor.ID != "crew-1" || actor.Name != "Crew One" || actor.Role != model.RoleOperator {
		t.Fatalf("unexpected actor %+v", actor)
	}

	admin, err := v.Verify("admin", "topsecret")
	if err != nil {
		t.Fatalf("Verify admin: %v", err)
	}
	if admin.Role != model.RoleAdministrator || !admin.IsAdmin() {
		t.Fatalf("expected administrator, got %+v", admin)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, err := NewVerifier([]Account{
		{ID: "crew-1", Name: "Crew One", Role: "operator", SecretHash: mustHash(t, "s3cret")},
	})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := v.Verify("crew-1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyRejectsUnknownAccount(t *testing.T) {
	v, err := NewVerifier(nil)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := v.Verify("ghost", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNewVerifierValidation(t *testing.T) {
	hash := mustHash(t, "pw")
	cases := []struct {
		name     string
		accounts []Account
	}{
		{"missing id", []Account{{Name: "x", Role: "operator", SecretHash: hash}}},
		{"duplicate id", []Account{
			{ID: "a", Role: "operator", SecretHash: hash},
			{ID: "a", Role: "operator", SecretHash: hash},
		}},
		{"bad role", []Account{{ID: "a", Role: "superuser", SecretHash: hash}}},
		{"no hash", []Account{{ID: "a", Role: "operator"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewVerifier(tc.accounts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
