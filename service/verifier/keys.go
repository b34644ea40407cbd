package verifier

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/scy"
)

// ErrNoKey is returned when no public key material is configured
var ErrNoKey = errors.New("verifier: no public key")

// KeySource supplies the dispatcher public key used for signature checks
type KeySource interface {
	PublicKey(ctx context.Context) (crypto.PublicKey, error)
}

// ParsePublicKey parses a PEM encoded PKIX or PKCS#1 public key
func ParsePublicKey(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("invalid public key: no PEM block")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
}

// StaticKeys holds PEM key material in memory
type StaticKeys struct {
	key crypto.PublicKey
	err error
}

// PublicKey returns the parsed key
func (s *StaticKeys) PublicKey(context.Context) (crypto.PublicKey, error) {
	return s.key, s.err
}

// NewStaticKeys parses PEM key material once
func NewStaticKeys(pemData []byte) *StaticKeys {
	key, err := ParsePublicKey(pemData)
	return &StaticKeys{key: key, err: err}
}

// NewKey wraps an already parsed public key
func NewKey(key crypto.PublicKey) *StaticKeys {
	return &StaticKeys{key: key}
}

// SecretKeys loads PEM key material with scy from any afs URL, optionally
// decrypting it with a scy key such as blowfish://default.  The key is loaded
// on first use and cached.
type SecretKeys struct {
	service  *scy.Service
	resource *scy.Resource
	mu       sync.Mutex
	key      crypto.PublicKey
}

// PublicKey loads, decrypts and parses the key
func (s *SecretKeys) PublicKey(ctx context.Context) (crypto.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		return s.key, nil
	}
	secret, err := s.service.Load(ctx, s.resource)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key from %s: %w", s.resource.URL, err)
	}
	key, err := ParsePublicKey([]byte(secret.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key from %s: %w", s.resource.URL, err)
	}
	s.key = key
	return key, nil
}

// NewSecretKeys creates a scy backed key source
func NewSecretKeys(URL, key string) *SecretKeys {
	return &SecretKeys{
		service:  scy.New(),
		resource: scy.NewResource(nil, URL, key),
	}
}
