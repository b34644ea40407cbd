package verifier

import (
	"crypto"
	"crypto/ed25519"
	"crypto/md5"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Checksum algorithm names
const (
	MD5        = "MD5"
	SHA1       = "SHA1"
	SHA256     = "SHA256"
	SHA512     = "SHA512"
	BLAKE2B256 = "BLAKE2B256"
)

// Signature algorithm names, both sign the SHA-256 digest of the artifact
const (
	RSASHA256 = "RSA-SHA256"
	ED25519   = "ED25519"
)

var checksums = map[string]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA512: sha512.New,
	BLAKE2B256: func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
}

var signatures = map[string]string{
	"RSASHA256": RSASHA256,
	"ED25519":   ED25519,
}

func canonical(name string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToUpper(name))
}

// ChecksumAlgorithm returns the canonical checksum algorithm name
func ChecksumAlgorithm(name string) (string, bool) {
	key := canonical(name)
	_, ok := checksums[key]
	return key, ok
}

// SignatureAlgorithm returns the canonical signature algorithm name, an empty name defaults to RSA-SHA256
func SignatureAlgorithm(name string) (string, bool) {
	if name == "" {
		return RSASHA256, true
	}
	ret, ok := signatures[canonical(name)]
	return ret, ok
}

func verifySignature(algorithm string, key crypto.PublicKey, digest, signature []byte) bool {
	switch algorithm {
	case RSASHA256:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return false
		}
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, signature) == nil
	case ED25519:
		pub, ok := key.(ed25519.PublicKey)
		if !ok {
			return false
		}
		return ed25519.Verify(pub, digest, signature)
	}
	return false
}
