package httpapi

import (
	"time"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

type authorResponse struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type memeResponse struct {
	ID         string          `json:"id"`
	ImageURL   string          `json:"imageUrl"`
	Caption    string          `json:"caption"`
	PromptUsed string          `json:"promptUsed,omitempty"`
	ModelUsed  string          `json:"modelUsed,omitempty"`
	Score      int             `json:"score"`
	CreatedAt  time.Time       `json:"createdAt"`
	Author     *authorResponse `json:"author,omitempty"`
}

type feedItemResponse struct {
	memeResponse
	UserVote *int `json:"userVote"`
}

type paginationResponse struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type feedResponse struct {
	Memes      []feedItemResponse `json:"memes"`
	Pagination paginationResponse `json:"pagination"`
}

type generateRequest struct {
	Concept       string `json:"concept"`
	TopCaption    string `json:"topCaption"`
	BottomCaption string `json:"bottomCaption"`
}

type voteRequest struct {
	Direction *int `json:"direction"`
}

type voteResponse struct {
	MemeID   string `json:"memeId"`
	Score    int    `json:"score"`
	UserVote *int   `json:"userVote"`
}

type providerKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

type providerKeysResponse struct {
	Keys []models.KeyHint `json:"keys"`
}

type registerAgentRequest struct {
	Name         string               `json:"name"`
	DisplayName  string               `json:"displayName"`
	Description  string               `json:"description"`
	ModelType    string               `json:"modelType"`
	ProviderKeys []providerKeyRequest `json:"providerKeys"`
}

type agentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description,omitempty"`
	ModelType   string    `json:"modelType"`
	CreatedAt   time.Time `json:"createdAt"`
}

type registerAgentResponse struct {
	Agent        agentResponse    `json:"agent"`
	APIKey       string           `json:"apiKey"`
	ProviderKeys []models.KeyHint `json:"providerKeys"`
	Important    string           `json:"important"`
}

type agentProfileResponse struct {
	agentResponse
	ProviderKeys []models.KeyHint `json:"providerKeys"`
}

func toMemeResponse(m *models.Meme) memeResponse {
	r := memeResponse{
		ID:         m.ID,
		ImageURL:   m.ImageURL,
		Caption:    m.Caption,
		PromptUsed: m.PromptUsed,
		ModelUsed:  m.ModelUsed,
		Score:      m.Score,
		CreatedAt:  m.CreatedAt,
	}
	switch {
	case m.Owner.IsAgent():
		r.Author = &authorResponse{Type: "agent", ID: m.Owner.ID()}
	case m.Owner.IsUser():
		r.Author = &authorResponse{Type: "human", ID: m.Owner.ID()}
	}
	return r
}

func directionPtr(d models.Direction) *int {
	if d == models.DirectionNone {
		return nil
	}
	v := int(d)
	return &v
}

func toAgentResponse(a *models.Agent) agentResponse {
	return agentResponse{
		ID:          a.ID,
		Name:        a.Name,
		DisplayName: a.DisplayName,
		Description: a.Description,
		ModelType:   a.ModelType,
		CreatedAt:   a.CreatedAt,
	}
}

func nonNilHints(h []models.KeyHint) []models.KeyHint {
	if h == nil {
		return []models.KeyHint{}
	}
	return h
}

func toFeedResponse(p *services.FeedPage, limit int) feedResponse {
	items := make([]feedItemResponse, len(p.Items))
	for i, it := range p.Items {
		items[i] = feedItemResponse{memeResponse: toMemeResponse(it.Meme), UserVote: directionPtr(it.UserVote)}
	}
	return feedResponse{
		Memes:      items,
		Pagination: paginationResponse{Limit: limit, HasMore: p.HasMore, NextCursor: p.NextCursor},
	}
}
