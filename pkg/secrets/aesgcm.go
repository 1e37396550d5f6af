package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// AESVault is an AES-256-GCM implementation of Vault. The sealed blob is
// nonce || ciphertext; the nonce is generated fresh per Seal call.
type AESVault struct {
	aead cipher.AEAD
}

// NewAESVault derives a 256-bit key from the given passphrase and builds
// the vault. The passphrase normally comes from the CONDUIT_VAULT_KEY
// environment variable or a key file.
func NewAESVault(passphrase string) (*AESVault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("vault passphrase is empty")
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &AESVault{aead: aead}, nil
}

// Seal implements Vault.
func (v *AESVault) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open implements Vault.
func (v *AESVault) Open(blob []byte) ([]byte, error) {
	if len(blob) < v.aead.NonceSize() {
		return nil, fmt.Errorf("sealed blob too short")
	}
	nonce, ciphertext := blob[:v.aead.NonceSize()], blob[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed blob: %w", err)
	}
	return plaintext, nil
}
