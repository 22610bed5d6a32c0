package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/cryptox"
	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
)

const maxProviderKeyLen = 500

var providerKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.:]+$`)

// wipePlaintext zeroes key material once it has been sealed or copied out.
var wipePlaintext = common.WipeByteArray

// VaultService stores provider keys encrypted at rest. Plaintext leaves it
// only through ResolveGenerationKey.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keyring     *cryptox.Keyring
	log         logging.Logger
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, keyring *cryptox.Keyring, log logging.Logger) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		keyring:     keyring,
		log:         log.With("module", "vault"),
	}
}

// credentialAAD binds a ciphertext to its row, so a sealed key copied to
// another owner or provider fails to decrypt.
func credentialAAD(provider models.Provider, owner models.Owner) []byte {
	return []byte(string(provider) + ":" + owner.Kind().String() + ":" + owner.ID())
}

// KeyHint renders the last four characters of a key.
func KeyHint(key string) string {
	if len(key) < 4 {
		return "...****"
	}
	return "..." + key[len(key)-4:]
}

// providerKeyProblem describes why key is unacceptable for provider, or
// returns "" when it is fine.
func providerKeyProblem(provider models.Provider, key string) string {
	switch {
	case !provider.Valid():
		return fmt.Sprintf("unknown provider %q", provider)
	case key == "":
		return "api key is required"
	case len(key) > maxProviderKeyLen:
		return "api key is too long"
	case !providerKeyPattern.MatchString(key):
		return "api key contains invalid characters"
	}
	return ""
}

func validateProviderKey(provider models.Provider, key string) error {
	if p := providerKeyProblem(provider, key); p != "" {
		return fmt.Errorf("%w: %s", common.ErrValidation, p)
	}
	return nil
}

func (s *VaultService) seal(owner models.Owner, provider models.Provider, key string) (*models.Credential, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, models.ErrInvalidOwner)
	}
	if err := validateProviderKey(provider, key); err != nil {
		return nil, err
	}

	plain := []byte(key)
	defer wipePlaintext(plain)

	sealed, err := s.keyring.Encrypt(plain, credentialAAD(provider, owner))
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}

	return &models.Credential{
		Provider:   provider,
		Owner:      owner,
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		Tag:        sealed.Tag,
		KeyVersion: sealed.KeyVersion,
		Hint:       KeyHint(key),
	}, nil
}

func hintOf(c *models.Credential) models.KeyHint {
	return models.KeyHint{Provider: c.Provider, Hint: c.Hint, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// SetKey encrypts and upserts the owner's key for provider.
func (s *VaultService) SetKey(ctx context.Context, owner models.Owner, provider models.Provider, key string) (*models.KeyHint, error) {
	return s.setKey(ctx, s.db, owner, provider, key)
}

func (s *VaultService) setKey(ctx context.Context, db dbx.DBTX, owner models.Owner, provider models.Provider, key string) (*models.KeyHint, error) {
	cred, err := s.seal(owner, provider, strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.Credentials(db).Upsert(ctx, cred); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "provider key stored", "owner", owner.String(), "provider", string(provider), "key_version", cred.KeyVersion)
	h := hintOf(cred)
	return &h, nil
}

func (s *VaultService) ListKeys(ctx context.Context, owner models.Owner) ([]models.KeyHint, error) {
	creds, err := s.repomanager.Credentials(s.db).List(ctx, owner)
	if err != nil {
		return nil, err
	}

	hints := make([]models.KeyHint, 0, len(creds))
	for _, c := range creds {
		hints = append(hints, hintOf(c))
	}
	return hints, nil
}

// ResolveGenerationKey returns the first stored key in provider priority
// order, or nil when the owner has none. Decryption failures are integrity
// errors and are returned, never skipped.
func (s *VaultService) ResolveGenerationKey(ctx context.Context, owner models.Owner) (*models.ResolvedCredential, error) {
	repo := s.repomanager.Credentials(s.db)

	for _, p := range models.ProviderPriority {
		cred, err := repo.Get(ctx, owner, p)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		plain, err := s.keyring.Decrypt(&cryptox.Sealed{
			Ciphertext: cred.Ciphertext,
			Nonce:      cred.Nonce,
			Tag:        cred.Tag,
			KeyVersion: cred.KeyVersion,
		}, credentialAAD(p, owner))
		if err != nil {
			s.log.Error(ctx, "credential decryption failed", "owner", owner.String(), "provider", string(p), "key_version", cred.KeyVersion)
			return nil, fmt.Errorf("decrypt %s credential: %w", p, err)
		}

		resolved := &models.ResolvedCredential{Provider: p, APIKey: string(plain)}
		wipePlaintext(plain)
		return resolved, nil
	}

	return nil, nil
}

// DeleteKey reports whether a key was stored. Deleting twice is not an error.
func (s *VaultService) DeleteKey(ctx context.Context, owner models.Owner, provider models.Provider) (bool, error) {
	if !provider.Valid() {
		return false, fmt.Errorf("%w: unknown provider %q", common.ErrValidation, provider)
	}

	found, err := s.repomanager.Credentials(s.db).Delete(ctx, owner, provider)
	if err != nil {
		return false, err
	}
	if found {
		s.log.Info(ctx, "provider key deleted", "owner", owner.String(), "provider", string(provider))
	}
	return found, nil
}
