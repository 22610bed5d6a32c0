package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 10_000

// decodeBody reads at most maxBodyBytes of JSON into v.
func decodeBody(c echo.Context, v any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return badRequest("cannot read request body")
	}
	if len(body) > maxBodyBytes {
		return &APIError{Status: http.StatusRequestEntityTooLarge, Code: CodePayloadTooLarge, Message: "request body too large"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("invalid JSON in request body")
	}
	return nil
}

func FeedHandler(feed Feed) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := services.DefaultFeedLimit
		if s := c.QueryParam("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return badRequest("limit must be an integer")
			}
			limit = n
		}

		viewer, _ := ownerFrom(c)
		page, err := feed.List(c.Request().Context(), services.FeedQuery{
			Sort:   c.QueryParam("sort"),
			Period: c.QueryParam("period"),
			Cursor: c.QueryParam("cursor"),
			Limit:  limit,
			Viewer: viewer,
		})
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, toFeedResponse(page, limit))
	}
}

// MemeHandler serves one meme with the caller's own vote.
func MemeHandler(feed Feed) echo.HandlerFunc {
	return func(c echo.Context) error {
		viewer, _ := ownerFrom(c)

		item, err := feed.Get(c.Request().Context(), c.Param("id"), viewer)
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, feedItemResponse{memeResponse: toMemeResponse(item.Meme), UserVote: directionPtr(item.UserVote)})
	}
}

func GenerateHandler(gen Generator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		var req generateRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}

		m, err := gen.Generate(c.Request().Context(), services.GenerateRequest{
			Owner:         owner,
			Concept:       req.Concept,
			TopCaption:    req.TopCaption,
			BottomCaption: req.BottomCaption,
		})
		if err != nil {
			return err
		}

		return c.JSON(http.StatusCreated, toMemeResponse(m))
	}
}

func VoteHandler(voter Voter) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		var req voteRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		if req.Direction == nil {
			return badRequest("direction must be 1 (up), -1 (down) or 0 (remove)")
		}
		d, err := models.ParseDirection(*req.Direction)
		if err != nil {
			return badRequest("direction must be 1 (up), -1 (down) or 0 (remove)")
		}

		res, err := voter.Vote(c.Request().Context(), c.Param("id"), owner, d)
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, voteResponse{MemeID: res.MemeID, Score: res.Score, UserVote: directionPtr(res.UserVote)})
	}
}

func ListProviderKeysHandler(vault Vault) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		hints, err := vault.ListKeys(c.Request().Context(), owner)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, providerKeysResponse{Keys: nonNilHints(hints)})
	}
}

func PutProviderKeyHandler(vault Vault) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		var req providerKeyRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}

		hint, err := vault.SetKey(c.Request().Context(), owner, models.Provider(strings.ToLower(req.Provider)), req.APIKey)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, hint)
	}
}

func DeleteProviderKeyHandler(vault Vault) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		provider := c.QueryParam("provider")
		if provider == "" {
			var req providerKeyRequest
			if err := decodeBody(c, &req); err != nil {
				return err
			}
			provider = req.Provider
		}

		found, err := vault.DeleteKey(c.Request().Context(), owner, models.Provider(strings.ToLower(provider)))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]bool{"deleted": found})
	}
}

func RegisterAgentHandler(agents Agents) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		var req registerAgentRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}

		keys := make([]services.ProviderKeyInput, 0, len(req.ProviderKeys))
		for _, k := range req.ProviderKeys {
			keys = append(keys, services.ProviderKeyInput{Provider: models.Provider(strings.ToLower(k.Provider)), APIKey: k.APIKey})
		}

		reg, err := agents.Register(c.Request().Context(), services.RegisterAgentRequest{
			CreatedBy:    owner.ID(),
			Name:         req.Name,
			DisplayName:  req.DisplayName,
			Description:  req.Description,
			ModelType:    req.ModelType,
			ProviderKeys: keys,
		})
		if err != nil {
			return err
		}

		return c.JSON(http.StatusCreated, registerAgentResponse{
			Agent:        toAgentResponse(reg.Agent),
			APIKey:       reg.APIKey,
			ProviderKeys: nonNilHints(reg.KeyHints),
			Important:    "Save this API key now. It will not be shown again.",
		})
	}
}

func AgentProfileHandler(agents Agents) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, _ := ownerFrom(c)

		p, err := agents.Profile(c.Request().Context(), owner.ID())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, agentProfileResponse{agentResponse: toAgentResponse(p.Agent), ProviderKeys: nonNilHints(p.KeyHints)})
	}
}

func HealthHandler(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
