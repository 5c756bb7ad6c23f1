// Package auth verifies crew and back-office credentials. Session management
// stays with the caller; the core only needs a verified actor identity.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/wastemaster/wastemaster/core/model"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong secrets
// alike, so a caller cannot probe which accounts exist.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Account is a provisioned identity with a bcrypt secret hash.
type Account struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"` // "operator" or "administrator"
	SecretHash string `json:"secret_hash"`
}

// Verifier checks credentials against the provisioned accounts.
type Verifier struct {
	accounts map[string]Account
}

// NewVerifier validates and indexes the accounts.
func NewVerifier(accounts []Account) (*Verifier, error) {
	idx := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("auth: account without id")
		}
		if _, ok := idx[a.ID]; ok {
			return nil, fmt.Errorf("auth: duplicate account %s", a.ID)
		}
		if _, err := parseRole(a.Role); err != nil {
			return nil, fmt.Errorf("auth: account %s: %w", a.ID, err)
		}
		if a.SecretHash == "" {
			return nil, fmt.Errorf("auth: account %s has no secret hash", a.ID)
		}
		idx[a.ID] = a
	}
	return &Verifier{accounts: idx}, nil
}

// Verify checks the secret against the account's bcrypt hash and returns the
// verified actor.
func (v *Verifier) Verify(account, secret string) (model.Actor, error) {
	a, ok := v.accounts[account]
	if !ok {
		return model.Actor{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.SecretHash), []byte(secret)); err != nil {
		return model.Actor{}, ErrInvalidCredentials
	}
	role, err := parseRole(a.Role)
	if err != nil {
		return model.Actor{}, err
	}
	return model.Actor{ID: a.ID, Name: a.Name, Role: role}, nil
}

// HashSecret produces a bcrypt hash suitable for Account.SecretHash.
func HashSecret(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseRole(s string) (model.Role, error) {
	switch s {
	case "operator":
		return model.RoleOperator, nil
	case "administrator":
		return model.RoleAdministrator, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
