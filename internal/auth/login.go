package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"absensi/internal/master"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// HashSecret bcrypt-hashes a password or access code.
func HashSecret(secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("secret required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckSecret compares a bcrypt hash with a candidate secret.
func CheckSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Accounts is the account lookup a login needs.
type Accounts interface {
	GetAkun(ctx context.Context, id string) (master.Akun, error)
	GetAkunByUsername(ctx context.Context, role master.Role, username string) (master.Akun, error)
}

// Authenticator verifies credentials and issues tokens.
type Authenticator struct {
	accounts Accounts
	signer   *Signer
}

// NewAuthenticator builds an authenticator.
func NewAuthenticator(accounts Accounts, signer *Signer) *Authenticator {
	return &Authenticator{accounts: accounts, signer: signer}
}

// Signer returns the token signer.
func (a *Authenticator) Signer() *Signer { return a.signer }

// Login checks username and secret for the given role. Wali log in with their
// phone number, pengabsen with an access code; the check is the same.
func (a *Authenticator) Login(ctx context.Context, role master.Role, username, secret string) (master.Akun, TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return master.Akun{}, TokenPair{}, ErrInvalidCredentials
	}
	akun, err := a.accounts.GetAkunByUsername(ctx, role, username)
	if err != nil {
		if errors.Is(err, master.ErrNotFound) {
			return master.Akun{}, TokenPair{}, ErrInvalidCredentials
		}
		return master.Akun{}, TokenPair{}, err
	}
	if !CheckSecret(akun.SecretHash, secret) {
		return master.Akun{}, TokenPair{}, ErrInvalidCredentials
	}
	tokens, err := a.signer.Issue(akun.ID, string(akun.Role), akun.Nama)
	if err != nil {
		return master.Akun{}, TokenPair{}, err
	}
	return akun, tokens, nil
}

// Refresh exchanges a refresh token for a new pair, re-reading the account so
// deleted accounts cannot refresh.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (master.Akun, TokenPair, error) {
	claims, err := a.signer.Parse(refreshToken, KindRefresh)
	if err != nil {
		return master.Akun{}, TokenPair{}, err
	}
	akun, err := a.accounts.GetAkun(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, master.ErrNotFound) {
			return master.Akun{}, TokenPair{}, ErrInvalidToken
		}
		return master.Akun{}, TokenPair{}, err
	}
	tokens, err := a.signer.Issue(akun.ID, string(akun.Role), akun.Nama)
	if err != nil {
		return master.Akun{}, TokenPair{}, err
	}
	return akun, tokens, nil
}
