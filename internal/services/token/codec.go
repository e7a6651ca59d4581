// Package token issues and verifies the signed session tokens that carry an
// identity claim. A token is base58(CBOR(claims) || Ed25519 signature).
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-tron/base58"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/dependencies/random"
	"github.com/mcoot/bananaclick/internal/model"
)

// Errors returned by Authenticate. Every refusal is one of the first two;
// the rest are wrapped inside ErrInvalidToken to say why.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")

	ErrMalformed        = errors.New("token is not valid base58")
	ErrTokenTooShort    = errors.New("token too short for signature")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

const (
	signatureSize = ed25519.SignatureSize
	idLength      = 22
	idAlphabet    = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// Config holds token settings
type Config struct {
	// TTL is how long an issued token stays valid
	TTL time.Duration `yaml:"ttl"`
	// SigningKey is a base58 Ed25519 seed
	SigningKey string `yaml:"signing_key"`
	// KeyDir holds a generated key when SigningKey is empty
	KeyDir string `yaml:"key_dir"`
}

// DefaultConfig returns default token configuration
func DefaultConfig() Config {
	return Config{
		TTL: 24 * time.Hour,
	}
}

// Codec issues and authenticates session tokens
type Codec struct {
	private   ed25519.PrivateKey
	public    ed25519.PublicKey
	ttl       time.Duration
	clock     clock.Clock
	random    random.Random
	blacklist *Blacklist
}

// NewCodec creates a codec signing with key
func NewCodec(key ed25519.PrivateKey, ttl time.Duration, clk clock.Clock, rnd random.Random) (*Codec, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key has %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &Codec{
		private:   key,
		public:    key.Public().(ed25519.PublicKey),
		ttl:       ttl,
		clock:     clk,
		random:    rnd,
		blacklist: NewBlacklist(),
	}, nil
}

// New loads the key described by cfg and builds a codec
func New(cfg Config, clk clock.Clock, rnd random.Random, logger *slog.Logger) (*Codec, error) {
	key, err := LoadKey(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewCodec(key, cfg.TTL, clk, rnd)
}

// Issue mints a token for identity
func (c *Codec) Issue(identity model.Identity) (string, Claims, error) {
	now := c.clock.Now()
	claims := Claims{
		Subject:   string(identity.ID),
		Username:  identity.Username,
		Role:      string(identity.Role),
		ID:        c.random.String(idLength, idAlphabet),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.ttl).Unix(),
	}

	payload, err := encMode.Marshal(&claims)
	if err != nil {
		return "", Claims{}, fmt.Errorf("encoding token claims: %w", err)
	}
	signature := ed25519.Sign(c.private, payload)

	raw := make([]byte, len(payload)+signatureSize)
	copy(raw, payload)
	copy(raw[len(payload):], signature)

	return base58.Encode(raw), claims, nil
}

// Verify checks signature, expiry and revocation and returns the claims
func (c *Codec) Verify(token string) (Claims, error) {
	raw, err := base58.Decode(token)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	if len(raw) <= signatureSize {
		return Claims{}, ErrTokenTooShort
	}

	split := len(raw) - signatureSize
	payload, signature := raw[:split], raw[split:]
	if !ed25519.Verify(c.public, payload, signature) {
		return Claims{}, ErrInvalidSignature
	}

	var claims Claims
	if err := decMode.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("decoding token claims: %w", err)
	}
	if c.clock.Now().Unix() >= claims.ExpiresAt {
		return Claims{}, ErrTokenExpired
	}
	if c.blacklist.IsRevoked(claims.ID) {
		return Claims{}, ErrTokenRevoked
	}
	return claims, nil
}

// Authenticate turns a bearer token into the identity it carries. It has no
// side effects and never consults the account store.
func (c *Codec) Authenticate(token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, ErrMissingToken
	}
	claims, err := c.Verify(token)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil || claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: bad subject or role", ErrInvalidToken)
	}
	return model.Identity{
		ID:       model.AccountID(claims.Subject),
		Username: claims.Username,
		Role:     role,
	}, nil
}

// Revoke blacklists a token until it expires. Invalid tokens are ignored.
func (c *Codec) Revoke(token string) {
	claims, err := c.Verify(token)
	if err != nil {
		return
	}
	c.blacklist.Revoke(claims.ID, time.Unix(claims.ExpiresAt, 0))
}

// Cleanup prunes revocations whose tokens have expired
func (c *Codec) Cleanup() int {
	return c.blacklist.Cleanup(c.clock.Now())
}

// PublicKey returns the verification key
func (c *Codec) PublicKey() ed25519.PublicKey {
	return c.public
}
