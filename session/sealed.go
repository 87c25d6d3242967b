package session

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealedSaltLen = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// SealedFileKeyring is a Keyring for environments without an OS keychain
// (headless hosts, CI). Secrets live in a single file sealed with
// XChaCha20-Poly1305 under an argon2id-derived key. Writes go through a temp
// file and rename, so readers see the old or new file, never a partial one.
type SealedFileKeyring struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

// NewSealedFileKeyring creates a file-backed keyring at path. The passphrase
// must be non-empty; the file is created on first Set.
func NewSealedFileKeyring(path, passphrase string) (*SealedFileKeyring, error) {
	if path == "" {
		return nil, errors.New("[NewSealedFileKeyring] path is required")
	}
	if passphrase == "" {
		return nil, errors.New("[NewSealedFileKeyring] passphrase is required")
	}
	return &SealedFileKeyring{path: path, passphrase: []byte(passphrase)}, nil
}

func (k *SealedFileKeyring) Set(service, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	secrets, err := k.loadLocked()
	if err != nil {
		return err
	}
	secrets[service+"/"+key] = value
	return k.storeLocked(secrets)
}

func (k *SealedFileKeyring) Get(service, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	secrets, err := k.loadLocked()
	if err != nil {
		return "", err
	}
	v, ok := secrets[service+"/"+key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (k *SealedFileKeyring) Delete(service, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	secrets, err := k.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := secrets[service+"/"+key]; !ok {
		return ErrSecretNotFound
	}
	delete(secrets, service+"/"+key)
	return k.storeLocked(secrets)
}

func (k *SealedFileKeyring) loadLocked() (map[string]string, error) {
	raw, err := os.ReadFile(k.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[SealedFileKeyring] read")
	}
	if len(raw) < sealedSaltLen+chacha20poly1305.NonceSizeX {
		return nil, errors.New("[SealedFileKeyring] file truncated")
	}

	salt := raw[:sealedSaltLen]
	nonce := raw[sealedSaltLen : sealedSaltLen+chacha20poly1305.NonceSizeX]
	ciphertext := raw[sealedSaltLen+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(k.deriveKey(salt))
	if err != nil {
		return nil, errors.Wrap(err, "[SealedFileKeyring] cipher init")
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[SealedFileKeyring] unseal")
	}

	secrets := map[string]string{}
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, errors.Wrap(err, "[SealedFileKeyring] decode")
	}
	return secrets, nil
}

func (k *SealedFileKeyring) storeLocked(secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return errors.Wrap(err, "[SealedFileKeyring] encode")
	}

	salt := make([]byte, sealedSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, "[SealedFileKeyring] salt")
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[SealedFileKeyring] nonce")
	}

	aead, err := chacha20poly1305.NewX(k.deriveKey(salt))
	if err != nil {
		return errors.Wrap(err, "[SealedFileKeyring] cipher init")
	}

	sealed := append(append(salt, nonce...), aead.Seal(nil, nonce, plaintext, nil)...)

	tmp, err := os.CreateTemp(filepath.Dir(k.path), ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "[SealedFileKeyring] temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[SealedFileKeyring] write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[SealedFileKeyring] close")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[SealedFileKeyring] chmod")
	}
	if err := os.Rename(tmpName, k.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[SealedFileKeyring] rename")
	}
	return nil
}

func (k *SealedFileKeyring) deriveKey(salt []byte) []byte {
	return argon2.IDKey(k.passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

var _ Keyring = (*SealedFileKeyring)(nil)
