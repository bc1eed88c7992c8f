// Package vault resolves opaque credential references into usable exchange
// secrets. Secrets are stored encrypted at rest; this adapter fetches the
// ciphertext (with a short cache window over the store), decrypts on
// demand, and fails closed on anything less than a complete secret pair.
// Only ciphertext is ever cached.
package vault

import (
	"context"
	"fmt"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	"SigCast/pkg/cache"
	"SigCast/pkg/crypto"
	"SigCast/pkg/logger"
)

// SecretStore is the persistence side of the vault: it returns the
// encrypted secret pair for a reference, or drepo.ErrCredentialNotFound.
type SecretStore interface {
	EncryptedSecret(ctx context.Context, credentialRef string) (EncryptedSecret, error)
	// TouchAccess bumps the access counter; failures are ignored.
	TouchAccess(ctx context.Context, credentialRef string) error
}

// EncryptedSecret is the at-rest form of one credential pair.
type EncryptedSecret struct {
	APIKeyCiphertext    string `json:"api_key_ciphertext"`
	APISecretCiphertext string `json:"api_secret_ciphertext"`
}

// Adapter implements drepo.CredentialVault.
type Adapter struct {
	store     SecretStore
	decryptor *crypto.Encryptor
	cache     cache.Service
	ttl       time.Duration
	log       *logger.Logger
}

func NewAdapter(store SecretStore, decryptor *crypto.Encryptor, c cache.Service, ttl time.Duration, log *logger.Logger) *Adapter {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{store: store, decryptor: decryptor, cache: c, ttl: ttl, log: log}
}

// Resolve returns a complete secret pair or a credential error. It never
// returns a partially populated result.
func (a *Adapter) Resolve(ctx context.Context, credentialRef string) (models.Credentials, error) {
	if credentialRef == "" {
		return models.Credentials{}, drepo.ErrCredentialNotFound
	}

	enc, cached, err := a.fetchEncrypted(ctx, credentialRef)
	if err != nil {
		return models.Credentials{}, err
	}
	if enc.APIKeyCiphertext == "" || enc.APISecretCiphertext == "" {
		return models.Credentials{}, drepo.ErrCredentialIncomplete
	}

	apiKey, err := a.decryptor.Decrypt(enc.APIKeyCiphertext)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: api key", drepo.ErrDecryptionFailed)
	}
	apiSecret, err := a.decryptor.Decrypt(enc.APISecretCiphertext)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: api secret", drepo.ErrDecryptionFailed)
	}
	if apiKey == "" || apiSecret == "" {
		return models.Credentials{}, drepo.ErrCredentialIncomplete
	}

	if !cached {
		if err := a.store.TouchAccess(ctx, credentialRef); err != nil {
			a.log.Debug("access counter update failed", logger.Error(err))
		}
		if a.cache != nil {
			if err := a.cache.Set(ctx, cacheKey(credentialRef), enc, a.ttl); err != nil {
				a.log.Debug("credential cache set failed", logger.Error(err))
			}
		}
	}

	return models.Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}

// fetchEncrypted reads the ciphertext pair, preferring the cache within
// its TTL window.
func (a *Adapter) fetchEncrypted(ctx context.Context, credentialRef string) (EncryptedSecret, bool, error) {
	if a.cache != nil {
		var enc EncryptedSecret
		if err := a.cache.Get(ctx, cacheKey(credentialRef), &enc); err == nil {
			return enc, true, nil
		}
	}
	enc, err := a.store.EncryptedSecret(ctx, credentialRef)
	if err != nil {
		return EncryptedSecret{}, false, err
	}
	return enc, false, nil
}

// OnRotated drops the cached ciphertext for a rotated reference so the
// next resolution re-reads from the store.
func (a *Adapter) OnRotated(ctx context.Context, credentialRef string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Delete(ctx, cacheKey(credentialRef)); err != nil {
		a.log.Warn("credential cache invalidation failed",
			logger.Error(err), logger.String("credential_ref", credentialRef))
	}
}

func cacheKey(credentialRef string) string {
	return "cred:" + credentialRef
}

var _ drepo.CredentialVault = (*Adapter)(nil)
