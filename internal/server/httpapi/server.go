// Package httpapi is the public JSON API: the meme feed, generation, voting,
// provider key management and agent registration.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/ratelimit"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

type Feed interface {
	List(ctx context.Context, q services.FeedQuery) (*services.FeedPage, error)
	Get(ctx context.Context, id string, viewer models.Owner) (*services.FeedItem, error)
}

type Generator interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*models.Meme, error)
}

type Voter interface {
	Vote(ctx context.Context, memeID string, voter models.Owner, d models.Direction) (*services.VoteResult, error)
}

type Vault interface {
	SetKey(ctx context.Context, owner models.Owner, provider models.Provider, key string) (*models.KeyHint, error)
	ListKeys(ctx context.Context, owner models.Owner) ([]models.KeyHint, error)
	DeleteKey(ctx context.Context, owner models.Owner, provider models.Provider) (bool, error)
}

type Agents interface {
	Authenticate(ctx context.Context, apiKey string) (*models.Agent, error)
	Register(ctx context.Context, req services.RegisterAgentRequest) (*services.RegisteredAgent, error)
	Profile(ctx context.Context, agentID string) (*services.AgentProfile, error)
}

type Limiter interface {
	Check(identity string, tier ratelimit.Tier) (ratelimit.Result, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Feed      Feed
	Generator Generator
	Voter     Voter
	Vault     Vault
	Agents    Agents
	Limiter   Limiter
	DB        Pinger
	JWTSecret []byte
	Logger    logging.Logger
}

// NewRouter builds the echo instance serving /api/v1, /healthz and /metrics.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(d.Logger)

	e.Use(requestLogger(d.Logger))

	e.GET("/healthz", HealthHandler(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", authenticate(d.Agents, d.JWTSecret))

	api.GET("/memes", FeedHandler(d.Feed), rateLimit(d.Limiter, ratelimit.General))
	api.GET("/memes/:id", MemeHandler(d.Feed), rateLimit(d.Limiter, ratelimit.General))
	api.POST("/memes", GenerateHandler(d.Generator),
		requireOwner(), rateLimit(d.Limiter, ratelimit.Generation))
	api.POST("/memes/:id/vote", VoteHandler(d.Voter),
		requireOwner(), rateLimit(d.Limiter, ratelimit.Voting))

	keys := api.Group("/provider-keys", requireOwner(), rateLimit(d.Limiter, ratelimit.General))
	keys.GET("", ListProviderKeysHandler(d.Vault))
	keys.PUT("", PutProviderKeyHandler(d.Vault))
	keys.DELETE("", DeleteProviderKeyHandler(d.Vault))

	api.POST("/agents", RegisterAgentHandler(d.Agents),
		requireOwner(models.OwnerUser), rateLimit(d.Limiter, ratelimit.General))
	api.GET("/agents/me", AgentProfileHandler(d.Agents),
		requireOwner(models.OwnerAgent), rateLimit(d.Limiter, ratelimit.General))

	return e
}

type Server struct {
	address string
	echo    *echo.Echo
	logger  logging.Logger
}

func NewServer(address string, d Deps) *Server {
	return &Server{
		address: address,
		echo:    NewRouter(d),
		logger:  d.Logger.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 60*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
