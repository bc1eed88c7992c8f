package vault

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	drepo "SigCast/internal/domain/repository"
	"SigCast/pkg/cache"
	"SigCast/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	secrets map[string]EncryptedSecret
	reads   int
	touches int
}

func (s *fakeStore) EncryptedSecret(ctx context.Context, ref string) (EncryptedSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	enc, ok := s.secrets[ref]
	if !ok {
		return EncryptedSecret{}, drepo.ErrCredentialNotFound
	}
	return enc, nil
}

func (s *fakeStore) TouchAccess(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	return nil
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func testEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.NewEncryptor(bytes.Repeat([]byte("k"), crypto.KeySize), 1)
	require.NoError(t, err)
	return enc
}

func storeWithSecret(t *testing.T, enc *crypto.Encryptor, ref, apiKey, apiSecret string) *fakeStore {
	t.Helper()
	keyCt, err := enc.Encrypt(apiKey)
	require.NoError(t, err)
	secretCt, err := enc.Encrypt(apiSecret)
	require.NoError(t, err)
	return &fakeStore{secrets: map[string]EncryptedSecret{
		ref: {APIKeyCiphertext: keyCt, APISecretCiphertext: secretCt},
	}}
}

func TestResolveReturnsDecryptedPair(t *testing.T) {
	enc := testEncryptor(t)
	store := storeWithSecret(t, enc, "ref-1", "my-key", "my-secret")
	adapter := NewAdapter(store, enc, nil, time.Minute, nil)

	creds, err := adapter.Resolve(context.Background(), "ref-1")

	require.NoError(t, err)
	assert.Equal(t, "my-key", creds.APIKey)
	assert.Equal(t, "my-secret", creds.APISecret)
	assert.Equal(t, 1, store.touches)
}

func TestResolveEmptyRefIsNotFound(t *testing.T) {
	adapter := NewAdapter(&fakeStore{}, testEncryptor(t), nil, time.Minute, nil)

	_, err := adapter.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, drepo.ErrCredentialNotFound)
}

func TestResolveUnknownRefIsNotFound(t *testing.T) {
	adapter := NewAdapter(&fakeStore{}, testEncryptor(t), nil, time.Minute, nil)

	_, err := adapter.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, drepo.ErrCredentialNotFound)
}

func TestResolveIncompletePairFailsClosed(t *testing.T) {
	enc := testEncryptor(t)
	keyCt, err := enc.Encrypt("only-key")
	require.NoError(t, err)
	store := &fakeStore{secrets: map[string]EncryptedSecret{
		"ref-1": {APIKeyCiphertext: keyCt},
	}}
	adapter := NewAdapter(store, enc, nil, time.Minute, nil)

	_, err = adapter.Resolve(context.Background(), "ref-1")
	assert.ErrorIs(t, err, drepo.ErrCredentialIncomplete)
}

func TestResolveWrongKeyIsDecryptionFailure(t *testing.T) {
	writer := testEncryptor(t)
	store := storeWithSecret(t, writer, "ref-1", "my-key", "my-secret")

	other, err := crypto.NewEncryptor(bytes.Repeat([]byte("x"), crypto.KeySize), 1)
	require.NoError(t, err)
	adapter := NewAdapter(store, other, nil, time.Minute, nil)

	_, err = adapter.Resolve(context.Background(), "ref-1")
	assert.ErrorIs(t, err, drepo.ErrDecryptionFailed)
}

func TestResolveCachesCiphertextOnly(t *testing.T) {
	enc := testEncryptor(t)
	store := storeWithSecret(t, enc, "ref-1", "my-key", "my-secret")
	c := cache.NewMemoryCache(16, time.Minute)
	defer c.Close()
	adapter := NewAdapter(store, enc, c, time.Minute, nil)

	_, err := adapter.Resolve(context.Background(), "ref-1")
	require.NoError(t, err)
	creds, err := adapter.Resolve(context.Background(), "ref-1")
	require.NoError(t, err)

	assert.Equal(t, "my-key", creds.APIKey)
	assert.Equal(t, 1, store.readCount(), "second resolve must be served from cache")

	// Whatever is cached must still be ciphertext, not the plaintext pair.
	var cached EncryptedSecret
	require.NoError(t, c.Get(context.Background(), "cred:ref-1", &cached))
	assert.NotContains(t, cached.APIKeyCiphertext, "my-key")
	assert.NotContains(t, cached.APISecretCiphertext, "my-secret")
}

func TestOnRotatedInvalidatesCache(t *testing.T) {
	enc := testEncryptor(t)
	store := storeWithSecret(t, enc, "ref-1", "old-key", "old-secret")
	c := cache.NewMemoryCache(16, time.Minute)
	defer c.Close()
	adapter := NewAdapter(store, enc, c, time.Minute, nil)

	_, err := adapter.Resolve(context.Background(), "ref-1")
	require.NoError(t, err)

	// Rotate the stored secret, then invalidate.
	keyCt, err := enc.Encrypt("new-key")
	require.NoError(t, err)
	secretCt, err := enc.Encrypt("new-secret")
	require.NoError(t, err)
	store.mu.Lock()
	store.secrets["ref-1"] = EncryptedSecret{APIKeyCiphertext: keyCt, APISecretCiphertext: secretCt}
	store.mu.Unlock()
	adapter.OnRotated(context.Background(), "ref-1")

	creds, err := adapter.Resolve(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "new-key", creds.APIKey)
	assert.Equal(t, 2, store.readCount())
}
