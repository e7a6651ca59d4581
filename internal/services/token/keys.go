package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
)

const (
	privateKeyFile = "token-signing-key"
	publicKeyFile  = "token-signing-key.pub"
)

// GenerateKey creates a new Ed25519 signing key
func GenerateKey() (ed25519.PrivateKey, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 key: %w", err)
	}
	return private, nil
}

// ParseSeed decodes a base58 Ed25519 seed into a private key
func ParseSeed(encoded string) (ed25519.PrivateKey, error) {
	seed, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key seed has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// EncodeSeed returns the base58 seed for a private key, the form ParseSeed reads
func EncodeSeed(key ed25519.PrivateKey) string {
	return base58.Encode(key.Seed())
}

// LoadOrGenerateKey loads the signing key from dir, generating and saving a
// new one if none exists. A present but unreadable key is an error.
func LoadOrGenerateKey(dir string) (ed25519.PrivateKey, bool, error) {
	privatePath := filepath.Join(dir, privateKeyFile)

	data, err := os.ReadFile(privatePath)
	if err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return nil, false, fmt.Errorf("private key has %d bytes, want %d", len(data), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(data), false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("reading private key: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, false, fmt.Errorf("creating key dir: %w", err)
	}
	if err := os.WriteFile(privatePath, key, 0600); err != nil {
		return nil, false, fmt.Errorf("writing private key: %w", err)
	}
	public := key.Public().(ed25519.PublicKey)
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), public, 0644); err != nil {
		return nil, false, fmt.Errorf("writing public key: %w", err)
	}
	return key, true, nil
}

// LoadKey resolves the signing key from config: an explicit seed wins, then
// the key dir, then a per-process key that invalidates tokens on restart.
func LoadKey(cfg Config, logger *slog.Logger) (ed25519.PrivateKey, error) {
	switch {
	case cfg.SigningKey != "":
		return ParseSeed(cfg.SigningKey)
	case cfg.KeyDir != "":
		key, generated, err := LoadOrGenerateKey(cfg.KeyDir)
		if err != nil {
			return nil, err
		}
		if generated {
			logger.Info("generated token signing key", slog.String("dir", cfg.KeyDir))
		}
		return key, nil
	default:
		logger.Warn("no token signing key configured, using an ephemeral key")
		return GenerateKey()
	}
}
