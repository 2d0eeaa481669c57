package replication

import (
	"crypto/cipher"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/nucleus/remdb/pkg/remerr"
)

// sealer encrypts/decrypts WAL entry values in transit when a Config's
// EncryptionKey is set. A nil *sealer is a valid no-op value.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) == 0 {
		return nil, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeStorageFatal, err, "init chacha20poly1305")
	}
	return &sealer{aead: aead}, nil
}

// seal returns a random nonce and the sealed ciphertext for plaintext.
func (s *sealer) seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, remerr.Wrap(remerr.CodeStorageFatal, err, "generate nonce")
	}
	return nonce, s.aead.Seal(nil, nonce, plaintext, nil), nil
}

func (s *sealer) open(nonce, ciphertext []byte) ([]byte, error) {
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeReplicationTransient, err, "decrypt wal entry")
	}
	return plaintext, nil
}
