package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/auth"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/ratelimit"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

const ownerKey = "owner"

func ownerFrom(c echo.Context) (models.Owner, bool) {
	o, ok := c.Get(ownerKey).(models.Owner)
	return o, ok && o.Valid()
}

// authenticate resolves an optional bearer credential. Agent API keys are
// recognised by their prefix; anything else must be a user JWT. Requests
// without credentials continue anonymously.
func authenticate(agents Agents, secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if h == "" {
				return next(c)
			}
			token, ok := strings.CutPrefix(h, common.BearerPrefix)
			if !ok || token == "" {
				return unauthorized("expected a bearer token")
			}

			ctx := c.Request().Context()
			if strings.HasPrefix(token, services.APIKeyPrefix) {
				a, err := agents.Authenticate(ctx, token)
				if err != nil {
					return err
				}
				c.Set(ownerKey, models.AgentOwner(a.ID))
				return next(c)
			}

			userID, err := auth.GetUserIDFromToken(token, secret)
			if err != nil {
				return err
			}
			c.Set(ownerKey, models.UserOwner(userID))
			return next(c)
		}
	}
}

// requireOwner rejects anonymous requests, and, when kinds are given,
// owners of any other kind.
func requireOwner(kinds ...models.OwnerKind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			o, ok := ownerFrom(c)
			if !ok {
				return unauthorized("authentication required")
			}
			if len(kinds) == 0 {
				return next(c)
			}
			for _, k := range kinds {
				if o.Kind() == k {
					return next(c)
				}
			}
			return &APIError{Status: http.StatusForbidden, Code: CodeUnauthorized,
				Message: "this endpoint is only available to " + kinds[0].String() + " callers"}
		}
	}
}

// rateLimit charges the general tier and then tier, if different. The
// caller's identity is its owner, or its address when anonymous.
func rateLimit(l Limiter, tier ratelimit.Tier) echo.MiddlewareFunc {
	tiers := []ratelimit.Tier{ratelimit.General}
	if tier != ratelimit.General {
		tiers = append(tiers, tier)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := "ip:" + c.RealIP()
			if o, ok := ownerFrom(c); ok {
				identity = o.String()
			}

			for _, t := range tiers {
				res, err := l.Check(identity, t)
				if err != nil {
					return err
				}

				hdr := c.Response().Header()
				hdr.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				hdr.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

				if !res.Allowed {
					return &APIError{
						Status:     http.StatusTooManyRequests,
						Code:       CodeRateLimited,
						Message:    "rate limit exceeded for " + string(t) + " requests",
						RetryAfter: res.RetryAfterSeconds,
					}
				}
			}
			return next(c)
		}
	}
}

// requestLogger logs one line per request.
func requestLogger(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			log.Info(req.Context(), "request",
				"method", req.Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(begin).String(),
			)
			return nil
		}
	}
}
