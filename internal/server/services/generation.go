package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/redact"
	"github.com/dmitrijs2005/memeforge/internal/server/imagegen"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memeforge/internal/server/safety"
	"github.com/dmitrijs2005/memeforge/internal/server/storage"
)

const (
	minConceptLen = 3
	maxConceptLen = 500
	maxCaptionLen = 100

	compensationTimeout = 10 * time.Second

	promptTemplate = "cartoon meme style, funny illustration of %s, digital art, colorful, expressive characters, meme format, humorous, trending on reddit"
)

// Captioner draws top and bottom text onto an image.
type Captioner interface {
	Composite(ctx context.Context, img []byte, top, bottom string) ([]byte, error)
}

// ObjectStore holds rendered images.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProviderFactory builds an image provider for a decrypted credential.
type ProviderFactory interface {
	New(cred models.ResolvedCredential) (imagegen.Provider, error)
}

// CredentialResolver finds the caller's own provider key.
type CredentialResolver interface {
	ResolveGenerationKey(ctx context.Context, owner models.Owner) (*models.ResolvedCredential, error)
}

// GenerateRequest is one meme generation. Internal requests (operator seeding)
// may fall back to the platform credential when the owner has none.
type GenerateRequest struct {
	Owner         models.Owner
	Concept       string
	TopCaption    string
	BottomCaption string
	Internal      bool
}

type GenerationDeps struct {
	Screener    safety.Screener
	Captioner   Captioner
	Store       ObjectStore
	Providers   ProviderFactory
	Credentials CredentialResolver
	// Fallback is the platform credential, nil when not configured.
	Fallback *models.ResolvedCredential
	Deadline time.Duration
}

type GenerationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deps        GenerationDeps
	log         logging.Logger

	newID  func() string
	now    func() time.Time
	withTx dbx.TxFunc
}

func NewGenerationService(db *sql.DB, m repomanager.RepositoryManager, deps GenerationDeps, log logging.Logger) *GenerationService {
	return &GenerationService{
		db:          db,
		repomanager: m,
		deps:        deps,
		log:         log.With("module", "generation"),
		newID:       func() string { return uuid.NewString() },
		now:         time.Now,
		withTx:      dbx.WithTx,
	}
}

// BuildPrompt sanitizes concept and embeds it in the fixed style template.
func BuildPrompt(concept string) string {
	return fmt.Sprintf(promptTemplate, safety.Sanitize(concept))
}

// BuildCaption picks the text drawn on the image and the caption stored with
// the meme. Without explicit captions the concept, uppercased, becomes the
// bottom text.
func BuildCaption(concept, top, bottom string) (drawTop, drawBottom, display string) {
	if top == "" && bottom == "" {
		upper := strings.ToUpper(concept)
		return "", upper, upper
	}

	parts := make([]string, 0, 2)
	for _, p := range []string{top, bottom} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return top, bottom, strings.Join(parts, " / ")
}

func validateGenerateRequest(req *GenerateRequest) error {
	if !req.Owner.Valid() {
		return fmt.Errorf("%w: %v", common.ErrValidation, models.ErrInvalidOwner)
	}

	req.Concept = strings.TrimSpace(req.Concept)
	req.TopCaption = strings.TrimSpace(req.TopCaption)
	req.BottomCaption = strings.TrimSpace(req.BottomCaption)

	n := utf8.RuneCountInString(req.Concept)
	if n < minConceptLen || n > maxConceptLen {
		return fmt.Errorf("%w: concept must be %d-%d characters", common.ErrValidation, minConceptLen, maxConceptLen)
	}
	if utf8.RuneCountInString(req.TopCaption) > maxCaptionLen || utf8.RuneCountInString(req.BottomCaption) > maxCaptionLen {
		return fmt.Errorf("%w: captions must be at most %d characters", common.ErrValidation, maxCaptionLen)
	}
	return nil
}

// screen checks each free-text field in order and stops at the first
// rejection.
func (s *GenerationService) screen(ctx context.Context, req *GenerateRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"concept", req.Concept},
		{"topCaption", req.TopCaption},
		{"bottomCaption", req.BottomCaption},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		v, err := s.deps.Screener.Check(ctx, f.value)
		if err != nil {
			return fmt.Errorf("safety screen: %w", err)
		}
		if !v.Safe {
			return &common.SafetyRejectedError{Field: f.name, Reason: v.Reason}
		}
	}
	return nil
}

func (s *GenerationService) credentialFor(ctx context.Context, req *GenerateRequest) (*models.ResolvedCredential, error) {
	cred, err := s.deps.Credentials.ResolveGenerationKey(ctx, req.Owner)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		return cred, nil
	}
	if req.Internal && s.deps.Fallback != nil {
		return s.deps.Fallback, nil
	}
	return nil, common.ErrMissingProviderKey
}

// Generate runs the whole pipeline: validate, screen, generate, caption,
// upload, commit. Nothing is uploaded or inserted unless every earlier step
// succeeded; an upload whose commit fails is deleted again.
func (s *GenerationService) Generate(ctx context.Context, req GenerateRequest) (*models.Meme, error) {
	started := s.now()
	meme, err := s.generate(ctx, &req)

	outcome := "ok"
	if err != nil {
		outcome = generationOutcome(err)
		s.log.Warn(ctx, "generation failed", "owner", req.Owner.String(), "outcome", outcome, "error", err)
	}
	generationsTotal.WithLabelValues(outcome).Inc()
	generationDuration.Observe(s.now().Sub(started).Seconds())

	return meme, err
}

func (s *GenerationService) generate(ctx context.Context, req *GenerateRequest) (*models.Meme, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Deadline)
	defer cancel()

	saga := &generationSaga{}

	if err := validateGenerateRequest(req); err != nil {
		return nil, err
	}
	if err := s.screen(ctx, req); err != nil {
		return nil, err
	}
	saga.advance(StepSafetyChecked)

	prompt := BuildPrompt(req.Concept)
	drawTop, drawBottom, display := BuildCaption(req.Concept, req.TopCaption, req.BottomCaption)

	cred, err := s.credentialFor(ctx, req)
	if err != nil {
		return nil, err
	}
	provider, err := s.deps.Providers.New(*cred)
	if err != nil {
		return nil, err
	}

	img, err := provider.Generate(ctx, prompt, imagegen.DefaultOptions)
	if err != nil {
		return nil, err
	}
	if len(img.Bytes) > common.MaxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", common.ErrPayloadTooLarge, common.MaxImageBytes)
	}
	saga.advance(StepGenerated)

	final, err := s.deps.Captioner.Composite(ctx, img.Bytes, drawTop, drawBottom)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrPayloadTooLarge):
		return nil, err
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: captioning interrupted: %v", common.ErrProviderTimeout, ctx.Err())
	default:
		return nil, fmt.Errorf("%w: %s returned an unusable image: %v", common.ErrProviderFailure, img.ProviderName, err)
	}
	saga.advance(StepCaptioned)

	id := s.newID()
	key := storage.KeyFor(id)
	sagas := s.repomanager.Sagas(s.db)

	if err := sagas.Create(ctx, &models.GenerationSaga{MemeID: id, StorageKey: key, State: models.SagaPending}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailure, err)
	}

	url, err := s.deps.Store.Put(ctx, key, final, "image/png")
	if err != nil {
		// the object may have landed even though the call failed
		s.compensate(ctx, saga, id, key)
		return nil, fmt.Errorf("%w: %v", common.ErrStorageFailure, redact.Error(err))
	}
	saga.advance(StepUploaded)

	if err := sagas.SetState(ctx, id, models.SagaUploaded); err != nil {
		// the saga stays pending; the reconciler treats both open states alike
		s.log.Warn(ctx, "saga update failed", "meme_id", id, "error", err)
	}

	now := s.now()
	meme := &models.Meme{
		ID:         id,
		ImageURL:   url,
		Caption:    display,
		PromptUsed: prompt,
		ModelUsed:  img.ProviderName + "/" + img.ModelID,
		HotScore:   HotScore(0, now),
		CreatedAt:  now,
		Owner:      req.Owner,
	}

	err = s.withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Memes(tx).Create(ctx, meme); err != nil {
			return err
		}
		return s.repomanager.Sagas(tx).SetState(ctx, id, models.SagaCommitted)
	})
	if err != nil {
		s.compensate(ctx, saga, id, key)
		if errors.Is(err, common.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailure, err)
	}
	saga.advance(StepCommitted)

	s.log.Info(ctx, "meme generated", "meme_id", id, "owner", req.Owner.String(), "model", meme.ModelUsed)
	return meme, nil
}

// compensate deletes an object whose meme never committed, including one
// whose upload reported failure. It runs detached from the request so a
// cancelled caller still gets cleanup, and it is never retried here: when the
// delete fails the saga stays open and the reconciler takes over.
func (s *GenerationService) compensate(ctx context.Context, saga *generationSaga, id, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.deps.Store.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "compensating delete failed, object orphaned", "meme_id", id, "key", key, "error", err)
		return
	}
	saga.advance(StepRolledBack)

	if err := s.repomanager.Sagas(s.db).SetState(ctx, id, models.SagaRolledBack); err != nil {
		s.log.Warn(ctx, "saga close failed", "meme_id", id, "error", err)
	}
}

func generationOutcome(err error) string {
	switch {
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	case errors.Is(err, common.ErrUnauthorized):
		return "unknown_owner"
	case errors.Is(err, common.ErrSafetyRejected):
		return "safety_rejected"
	case errors.Is(err, common.ErrMissingProviderKey):
		return "missing_key"
	case errors.Is(err, common.ErrProviderTimeout):
		return "provider_timeout"
	case errors.Is(err, common.ErrProviderAuthRejected):
		return "provider_auth_rejected"
	case errors.Is(err, common.ErrProviderFailure):
		return "provider_failure"
	case errors.Is(err, common.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, common.ErrStorageFailure):
		return "storage_failure"
	case errors.Is(err, common.ErrPersistenceFailure):
		return "persistence_failure"
	}
	return "error"
}
