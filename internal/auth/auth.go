// Package auth mints the short-lived HS256 bearer tokens the worker
// attaches to every NMS call. There is no external identity provider:
// tokens are self-issued from a shared secret, one signing key per
// caller-type (admin vs RT), per spec.md §6.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CallerType selects which shared secret and claim set to mint with.
type CallerType string

const (
	// Admin mints tokens used for node/hub/AP/RT creation and secret
	// registration calls against NBAPI/SBAPI.
	Admin CallerType = "admin"
	// RT mints tokens scoped to a single RT's own heartbeat and
	// rt-registration calls.
	RT CallerType = "rt"
)

// Minter mints bearer tokens from the two configured shared secrets.
type Minter struct {
	secretKey   []byte
	secretKeyRT []byte
	expiry      time.Duration
}

// NewMinter builds a Minter. algorithm is currently unused beyond
// validating it's HS256, the only algorithm the spec authorizes.
func NewMinter(secretKey, secretKeyRT, algorithm string, expirySeconds int) (*Minter, error) {
	if algorithm != "" && algorithm != "HS256" {
		return nil, fmt.Errorf("auth: unsupported algorithm %q, only HS256 is implemented", algorithm)
	}
	return &Minter{
		secretKey:   []byte(secretKey),
		secretKeyRT: []byte(secretKeyRT),
		expiry:      time.Duration(expirySeconds) * time.Second,
	}, nil
}

// claims mirrors the original's JWT payload shape: username, roles, and
// an access permission list, plus the standard expiry.
type claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Access   []string `json:"access"`
}

// MintAdmin mints a bearer token for NBAPI/SBAPI calls made on behalf of
// the simulator itself (node creation, AP secret and candidate
// registration).
func (m *Minter) MintAdmin() (string, error) {
	return m.mint(m.secretKey, claims{
		Username: "fleetsim-admin",
		Roles:    []string{"admin"},
		Access:   []string{"node:write", "ap:write", "rt:write"},
	})
}

// MintRT mints a bearer token scoped to a single RT, used for that RT's
// own heartbeat and registration calls.
func (m *Minter) MintRT(auid string) (string, error) {
	return m.mint(m.secretKeyRT, claims{
		Username: auid,
		Roles:    []string{"rt"},
		Access:   []string{"rt:heartbeat", "rt:register"},
	})
}

func (m *Minter) mint(secret []byte, c claims) (string, error) {
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
