package httpapi

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/ratelimit"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

type fakeFeed struct {
	page *services.FeedPage
	err  error
	got  services.FeedQuery

	item      *services.FeedItem
	gotID     string
	gotViewer models.Owner
}

func (f *fakeFeed) List(_ context.Context, q services.FeedQuery) (*services.FeedPage, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeFeed) Get(_ context.Context, id string, viewer models.Owner) (*services.FeedItem, error) {
	f.gotID, f.gotViewer = id, viewer
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

type fakeGenerator struct {
	meme *models.Meme
	err  error
	got  services.GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req services.GenerateRequest) (*models.Meme, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.meme, nil
}

type fakeVoter struct {
	res       *services.VoteResult
	err       error
	gotMeme   string
	gotVoter  models.Owner
	gotDirect models.Direction
}

func (f *fakeVoter) Vote(_ context.Context, memeID string, voter models.Owner, d models.Direction) (*services.VoteResult, error) {
	f.gotMeme, f.gotVoter, f.gotDirect = memeID, voter, d
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeVault struct {
	mu    sync.Mutex
	keys  map[string]models.KeyHint
	err   error
	owner models.Owner
}

func newFakeVault() *fakeVault {
	return &fakeVault{keys: map[string]models.KeyHint{}}
}

func (f *fakeVault) SetKey(_ context.Context, owner models.Owner, provider models.Provider, key string) (*models.KeyHint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if !provider.Valid() {
		return nil, common.ErrValidation
	}
	f.owner = owner
	h := models.KeyHint{Provider: provider, Hint: services.KeyHint(key)}
	f.keys[owner.String()+"/"+string(provider)] = h
	return &h, nil
}

func (f *fakeVault) ListKeys(_ context.Context, owner models.Owner) ([]models.KeyHint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.KeyHint
	for _, p := range models.ProviderPriority {
		if h, ok := f.keys[owner.String()+"/"+string(p)]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeVault) DeleteKey(_ context.Context, owner models.Owner, provider models.Provider) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := owner.String() + "/" + string(provider)
	_, ok := f.keys[k]
	delete(f.keys, k)
	return ok, nil
}

type fakeAgents struct {
	byKey       map[string]*models.Agent
	registered  *services.RegisteredAgent
	registerErr error
	gotRegister services.RegisterAgentRequest
}

func (f *fakeAgents) Authenticate(_ context.Context, apiKey string) (*models.Agent, error) {
	if a, ok := f.byKey[apiKey]; ok {
		return a, nil
	}
	return nil, common.ErrUnauthorized
}

func (f *fakeAgents) Register(_ context.Context, req services.RegisterAgentRequest) (*services.RegisteredAgent, error) {
	f.gotRegister = req
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registered, nil
}

func (f *fakeAgents) Profile(_ context.Context, agentID string) (*services.AgentProfile, error) {
	for _, a := range f.byKey {
		if a.ID == agentID {
			return &services.AgentProfile{Agent: a}, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type allowAll struct{}

func (allowAll) Check(string, ratelimit.Tier) (ratelimit.Result, error) {
	return ratelimit.Result{Allowed: true, Limit: 100, Remaining: 99}, nil
}
