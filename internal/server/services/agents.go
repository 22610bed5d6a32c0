package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/cryptox"
	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
)

const (
	// APIKeyPrefix marks agent bearer keys.
	APIKeyPrefix = "mf_"

	apiKeyRandomBytes = 24
	// lookupLen is the stored, unique part of a key: "mf_" plus 12 hex chars.
	lookupLen = len(APIKeyPrefix) + 12

	maxAgentProviderKeys = 2
	agentCacheSize       = 4096
)

var agentNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

type ProviderKeyInput struct {
	Provider models.Provider
	APIKey   string
}

// RegisterAgentRequest is submitted by a signed-in user.
type RegisterAgentRequest struct {
	CreatedBy    string
	Name         string
	DisplayName  string
	Description  string
	ModelType    string
	ProviderKeys []ProviderKeyInput
}

// RegisteredAgent carries the only copy of the plaintext API key that is
// ever returned.
type RegisteredAgent struct {
	Agent    *models.Agent
	APIKey   string
	KeyHints []models.KeyHint
}

type AgentProfile struct {
	Agent    *models.Agent
	KeyHints []models.KeyHint
}

type AgentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *VaultService
	cache       *expirable.LRU[string, *models.Agent]
	log         logging.Logger

	newID func() string
}

func NewAgentService(db *sql.DB, m repomanager.RepositoryManager, vault *VaultService, cacheTTL time.Duration, log logging.Logger) *AgentService {
	return &AgentService{
		db:          db,
		repomanager: m,
		vault:       vault,
		cache:       expirable.NewLRU[string, *models.Agent](agentCacheSize, nil, cacheTTL),
		log:         log.With("module", "agents"),
		newID:       func() string { return uuid.NewString() },
	}
}

func validateRegistration(req *RegisterAgentRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Description = strings.TrimSpace(req.Description)
	req.ModelType = strings.TrimSpace(req.ModelType)

	var errs []string
	if n := len(req.Name); n < 3 || n > 30 || !agentNamePattern.MatchString(req.Name) {
		errs = append(errs, "name must be 3-30 lowercase letters, digits or inner hyphens")
	}
	if n := utf8.RuneCountInString(req.DisplayName); n < 1 || n > 50 {
		errs = append(errs, "displayName must be 1-50 characters")
	}
	if utf8.RuneCountInString(req.Description) > 500 {
		errs = append(errs, "description must be at most 500 characters")
	}
	if req.ModelType == "" {
		errs = append(errs, "modelType is required")
	}
	if len(req.ProviderKeys) > maxAgentProviderKeys {
		errs = append(errs, fmt.Sprintf("at most %d provider keys", maxAgentProviderKeys))
	}
	seen := map[models.Provider]bool{}
	for _, k := range req.ProviderKeys {
		if p := providerKeyProblem(k.Provider, strings.TrimSpace(k.APIKey)); p != "" {
			errs = append(errs, p)
		}
		if seen[k.Provider] {
			errs = append(errs, fmt.Sprintf("duplicate provider %q", k.Provider))
		}
		seen[k.Provider] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// Register creates an agent, its API key and any initial provider keys in
// one transaction.
func (s *AgentService) Register(ctx context.Context, req RegisterAgentRequest) (*RegisteredAgent, error) {
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}

	secret, err := common.MakeRandHexString(apiKeyRandomBytes)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	apiKey := APIKeyPrefix + secret
	salt := common.GenerateRandByteArray(16)

	agent := &models.Agent{
		ID:          s.newID(),
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		ModelType:   req.ModelType,
		CreatedBy:   req.CreatedBy,
	}
	owner := models.AgentOwner(agent.ID)
	var hints []models.KeyHint

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).GetByID(ctx, req.CreatedBy); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: unknown user", common.ErrUnauthorized)
			}
			return err
		}

		agentsRepo := s.repomanager.Agents(tx)
		if err := agentsRepo.Create(ctx, agent); err != nil {
			return err
		}

		err := agentsRepo.CreateAPIKey(ctx, &models.AgentAPIKey{
			ID:      s.newID(),
			AgentID: agent.ID,
			Prefix:  apiKey[:lookupLen],
			Hash:    cryptox.HashAPIKey(apiKey, salt),
			Salt:    salt,
		})
		if err != nil {
			return err
		}

		for _, k := range req.ProviderKeys {
			h, err := s.vault.setKey(ctx, tx, owner, k.Provider, k.APIKey)
			if err != nil {
				return err
			}
			hints = append(hints, *h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "agent registered", "agent_id", agent.ID, "name", agent.Name, "created_by", req.CreatedBy)
	return &RegisteredAgent{Agent: agent, APIKey: apiKey, KeyHints: hints}, nil
}

func cacheKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// Authenticate maps an agent API key to its agent. Every failure is
// common.ErrUnauthorized except storage errors.
func (s *AgentService) Authenticate(ctx context.Context, apiKey string) (*models.Agent, error) {
	if !strings.HasPrefix(apiKey, APIKeyPrefix) || len(apiKey) <= lookupLen {
		return nil, common.ErrUnauthorized
	}

	ck := cacheKey(apiKey)
	if a, ok := s.cache.Get(ck); ok {
		return a, nil
	}

	repo := s.repomanager.Agents(s.db)
	k, err := repo.GetAPIKeyByPrefix(ctx, apiKey[:lookupLen])
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}
	if !cryptox.VerifyAPIKey(apiKey, k.Salt, k.Hash) {
		return nil, common.ErrUnauthorized
	}

	a, err := repo.GetByID(ctx, k.AgentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}

	s.cache.Add(ck, a)
	return a, nil
}

func (s *AgentService) Profile(ctx context.Context, agentID string) (*AgentProfile, error) {
	a, err := s.repomanager.Agents(s.db).GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	hints, err := s.vault.ListKeys(ctx, models.AgentOwner(agentID))
	if err != nil {
		return nil, err
	}
	return &AgentProfile{Agent: a, KeyHints: hints}, nil
}
