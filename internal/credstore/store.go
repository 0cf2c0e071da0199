// Package credstore caches the auth token and a minimal user record in the
// local key-value store.
//
// Values are sealed with AES-256-GCM under a key derived from a device
// fingerprint. That fingerprint is recomputable by any process running as the
// same user, so this is obfuscation against casual inspection, not
// confidentiality. When the cipher cannot be built the store falls back to
// plain base64 and marks the blob with fallback=true.
package credstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// KeyPrefix marks entries written through the encrypted path.
	KeyPrefix = "fq_enc_"

	tokenKey = KeyPrefix + "auth_token"
	userKey  = KeyPrefix + "user"

	blobVersion = 1
)

// Backend is the persistence the store writes through. storage.KVRepo
// satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// batchDeleter is implemented by backends that can remove several keys
// atomically.
type batchDeleter interface {
	DeleteMany(ctx context.Context, keys ...string) error
}

// EncryptedBlob is the JSON document stored under each key.
type EncryptedBlob struct {
	Data      string `json:"data"`
	Tag       string `json:"tag"`
	Salt      string `json:"salt,omitempty"`
	IV        string `json:"iv,omitempty"`
	Version   int    `json:"version"`
	Encrypted bool   `json:"encrypted"`
	Fallback  bool   `json:"fallback,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Expires   *int64 `json:"expires"`
}

type sealedPayload struct {
	Value    string `json:"value"`
	StoredAt int64  `json:"stored_at"`
}

type Store struct {
	backend Backend
	newAEAD func(key []byte) (cipher.AEAD, error)
	random  io.Reader
	now     func() time.Time

	fingerprint func(ctx context.Context) string
}

// New returns a store writing through backend. A nil backend means no
// persistent storage is available: every operation becomes a no-op.
func New(backend Backend) *Store {
	s := &Store{
		backend: backend,
		newAEAD: newGCM,
		random:  rand.Reader,
		now:     time.Now,
	}
	s.fingerprint = s.deviceFingerprint
	return s
}

// Supported reports whether a backend is attached.
func (s *Store) Supported() bool {
	return s != nil && s.backend != nil
}

func (s *Store) SetToken(ctx context.Context, token string, expiresIn *time.Duration) bool {
	return s.setItem(ctx, tokenKey, token, expiresIn)
}

func (s *Store) GetToken(ctx context.Context) (string, bool) {
	return s.getItem(ctx, tokenKey)
}

func (s *Store) HasToken(ctx context.Context) bool {
	_, ok := s.GetToken(ctx)
	return ok
}

func (s *Store) RemoveToken(ctx context.Context) bool {
	return s.remove(ctx, tokenKey)
}

// Clear removes every credential the store owns.
func (s *Store) Clear(ctx context.Context) bool {
	if !s.Supported() {
		return false
	}
	if bd, ok := s.backend.(batchDeleter); ok {
		if err := bd.DeleteMany(ctx, tokenKey, userKey); err != nil {
			log.WithError(err).Warn("credstore: clear failed")
			return false
		}
		return true
	}
	okToken := s.remove(ctx, tokenKey)
	okUser := s.remove(ctx, userKey)
	return okToken && okUser
}

// SetPlain stores a non-secret value (theme, raw expiry) without encryption.
func (s *Store) SetPlain(ctx context.Context, key, value string) bool {
	if !s.Supported() {
		return false
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		log.WithError(err).Warn("credstore: write plain value failed")
		return false
	}
	return true
}

func (s *Store) GetPlain(ctx context.Context, key string) (string, bool) {
	if !s.Supported() {
		return "", false
	}
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("credstore: read plain value failed")
		return "", false
	}
	return v, ok
}

func (s *Store) RemovePlain(ctx context.Context, key string) bool {
	return s.remove(ctx, key)
}

func (s *Store) setItem(ctx context.Context, key, value string, expiresIn *time.Duration) bool {
	if !s.Supported() {
		return false
	}
	blob, err := s.seal(ctx, value)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("credstore: encrypt failed")
		return false
	}
	if expiresIn != nil {
		exp := s.now().Add(*expiresIn).UnixMilli()
		blob.Expires = &exp
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		log.WithError(err).Warn("credstore: encode blob failed")
		return false
	}
	if err := s.backend.Set(ctx, key, string(raw)); err != nil {
		log.WithError(err).WithField("key", key).Warn("credstore: write failed")
		return false
	}
	return true
}

func (s *Store) getItem(ctx context.Context, key string) (string, bool) {
	if !s.Supported() {
		return "", false
	}
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("credstore: read failed")
		return "", false
	}
	if !ok {
		return "", false
	}

	var blob EncryptedBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		log.WithError(err).WithField("key", key).Warn("credstore: corrupt entry purged")
		s.remove(ctx, key)
		return "", false
	}
	if blob.Expires != nil && s.now().UnixMilli() > *blob.Expires {
		s.remove(ctx, key)
		return "", false
	}

	value, err := s.open(ctx, blob)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("credstore: decrypt failed, entry purged")
		s.remove(ctx, key)
		return "", false
	}
	return value, true
}

func (s *Store) remove(ctx context.Context, key string) bool {
	if !s.Supported() {
		return false
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("credstore: delete failed")
		return false
	}
	return true
}

func (s *Store) seal(ctx context.Context, value string) (EncryptedBlob, error) {
	now := s.now()
	payload, err := json.Marshal(sealedPayload{Value: value, StoredAt: now.UnixMilli()})
	if err != nil {
		return EncryptedBlob{}, err
	}
	blob := EncryptedBlob{Version: blobVersion, Timestamp: now.UnixMilli()}

	salt, err := randomBytes(s.random, saltSize)
	if err != nil {
		return EncryptedBlob{}, fmt.Errorf("salt: %w", err)
	}
	key, err := deriveKey(s.fingerprint(ctx), salt)
	if err != nil {
		return EncryptedBlob{}, err
	}
	aead, err := s.newAEAD(key)
	if err != nil {
		log.WithError(err).Warn("credstore: cipher unavailable, storing obfuscated fallback")
		blob.Data = base64.StdEncoding.EncodeToString(payload)
		blob.Fallback = true
		return blob, nil
	}
	iv, err := randomBytes(s.random, aead.NonceSize())
	if err != nil {
		return EncryptedBlob{}, fmt.Errorf("iv: %w", err)
	}
	ciphertext := aead.Seal(nil, iv, payload, nil)

	blob.Data = base64.StdEncoding.EncodeToString(ciphertext)
	blob.Salt = base64.StdEncoding.EncodeToString(salt)
	blob.IV = base64.StdEncoding.EncodeToString(iv)
	blob.Encrypted = true
	return blob, nil
}

func (s *Store) open(ctx context.Context, blob EncryptedBlob) (string, error) {
	data, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		return "", fmt.Errorf("decode data: %w", err)
	}

	var plain []byte
	switch {
	case blob.Fallback || !blob.Encrypted:
		plain = data
	default:
		salt, err := base64.StdEncoding.DecodeString(blob.Salt)
		if err != nil {
			return "", fmt.Errorf("decode salt: %w", err)
		}
		iv, err := base64.StdEncoding.DecodeString(blob.IV)
		if err != nil {
			return "", fmt.Errorf("decode iv: %w", err)
		}
		key, err := deriveKey(s.fingerprint(ctx), salt)
		if err != nil {
			return "", err
		}
		aead, err := s.newAEAD(key)
		if err != nil {
			return "", fmt.Errorf("cipher: %w", err)
		}
		if len(iv) != aead.NonceSize() {
			return "", errors.New("bad iv length")
		}
		plain, err = aead.Open(nil, iv, data, nil)
		if err != nil {
			return "", fmt.Errorf("open: %w", err)
		}
	}

	var p sealedPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return p.Value, nil
}
