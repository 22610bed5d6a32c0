package imagegen

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Config carries the per-provider settings shared by every credential.
type Config struct {
	Timeout          time.Duration
	HuggingFaceModel string
	HuggingFaceURL   string
	ReplicateModel   string
	ReplicateURL     string
}

// Factory builds a Provider for a resolved credential.
type Factory struct {
	cfg    Config
	client *http.Client
	robust *retryablehttp.Client
}

func NewFactory(cfg Config, log logging.Logger) *Factory {
	robust := retryablehttp.NewClient()
	robust.HTTPClient = cleanhttp.DefaultPooledClient()
	robust.RetryMax = 3
	robust.RetryWaitMin = 500 * time.Millisecond
	robust.RetryWaitMax = 5 * time.Second
	robust.Logger = retryablehttp.LeveledLogger(leveledLogger{inner: log.With("subsystem", "imagegen-http")})

	return &Factory{
		cfg:    cfg,
		client: cleanhttp.DefaultPooledClient(),
		robust: robust,
	}
}

func (f *Factory) New(cred models.ResolvedCredential) (Provider, error) {
	switch cred.Provider {
	case models.ProviderHuggingFace:
		return NewHuggingFace(cred.APIKey, f.cfg.HuggingFaceModel, f.cfg.HuggingFaceURL, f.cfg.Timeout, f.client), nil
	case models.ProviderReplicate:
		return NewReplicate(cred.APIKey, f.cfg.ReplicateModel, f.cfg.ReplicateURL, f.cfg.Timeout, f.client, f.robust), nil
	}
	return nil, fmt.Errorf("%w: unsupported provider %q", common.ErrValidation, cred.Provider)
}

// leveledLogger demotes retry errors to warnings; a retried failure is not
// yet a failure of the request.
type leveledLogger struct {
	inner logging.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(context.Background(), msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(context.Background(), msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	l.inner.Info(context.Background(), msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(context.Background(), msg, keysAndValues...)
}
