// Package token seals canonical album tokens into opaque public share
// tokens. Sealed tokens are AES-256-GCM ciphertext under an Argon2id-derived
// key, base64url-encoded so they survive URL paths.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/iconidentify/albumproxy/internal/domain"
)

const (
	// MagicBytes identify a sealed token.
	MagicBytes = "APTK"

	// FormatVersion of the sealing format.
	FormatVersion = 1

	// Argon2id parameters (OWASP recommended)
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32 // AES-256

	saltSize  = 16
	nonceSize = 12 // GCM standard nonce size

	// header: magic(4) + version(4) + salt(16) + nonce(12)
	headerSize = 4 + 4 + saltSize + nonceSize
)

// Resolver resolves public share tokens to canonical tokens. With an empty
// secret it passes tokens through unmodified, which keeps local setups and
// tests free of key management.
type Resolver struct {
	secret string
}

// NewResolver creates a resolver. secret may be empty for passthrough mode.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: secret}
}

// Resolve maps a public token to its canonical form. A malformed or
// tampered sealed token resolves to domain.ErrInvalidToken.
func (r *Resolver) Resolve(public string) (domain.Token, error) {
	if public == "" {
		return "", domain.ErrInvalidToken
	}
	if r.secret == "" {
		return domain.Token(public), nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(public)
	if err != nil {
		return "", domain.ErrInvalidToken
	}

	plain, err := open(raw, r.secret)
	if err != nil {
		return "", domain.ErrInvalidToken
	}

	return domain.Token(plain), nil
}

// Seal wraps a canonical token into a public share token.
func (r *Resolver) Seal(canonical domain.Token) (string, error) {
	if r.secret == "" {
		return canonical.String(), nil
	}

	sealed, err := seal([]byte(canonical), r.secret)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func deriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func seal(plaintext []byte, secret string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, headerSize+len(ciphertext))
	copy(out[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(out[4:8], FormatVersion)
	copy(out[8:8+saltSize], salt)
	copy(out[8+saltSize:headerSize], nonce)
	copy(out[headerSize:], ciphertext)

	return out, nil
}

func open(data []byte, secret string) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("sealed token too short")
	}
	if string(data[0:4]) != MagicBytes {
		return nil, fmt.Errorf("not a sealed token")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("unsupported token format version %d", v)
	}

	salt := data[8 : 8+saltSize]
	nonce := data[8+saltSize : headerSize]
	ciphertext := data[headerSize:]

	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed token: %w", err)
	}

	return plain, nil
}
