package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/agents"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/memes"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/sagas"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/users"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/votes"
)

// memStore is an in-memory stand-in for every repository. A single mutex
// guards it; memTx uses the same mutex to make transactions serial.
type memStore struct {
	mu sync.Mutex

	users   map[string]*models.User
	agents  map[string]*models.Agent
	apiKeys map[string]*models.AgentAPIKey
	creds   map[string]*models.Credential
	memes   map[string]*models.Meme
	votes   map[string]*models.Vote
	sagas   map[string]*models.GenerationSaga

	clock func() time.Time

	// failures injected per operation name
	fail map[string]error
	// raceVote, when set, is committed by a "concurrent" transaction right
	// before the next vote insert, which then hits a unique violation.
	raceVote *models.Vote
	// external holds writes that survive a rollback.
	external []func()
	// memeLookups records every meme id that reached Get or LockScore.
	memeLookups []string
}

type inTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*models.User{},
		agents:  map[string]*models.Agent{},
		apiKeys: map[string]*models.AgentAPIKey{},
		creds:   map[string]*models.Credential{},
		memes:   map[string]*models.Meme{},
		votes:   map[string]*models.Vote{},
		sagas:   map[string]*models.GenerationSaga{},
		clock:   func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		fail:    map[string]error{},
	}
}

// lock takes mu unless ctx belongs to a memTx, which already holds it.
func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(inTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) failure(op string) error {
	return s.fail[op]
}

func credKey(o models.Owner, p models.Provider) string { return o.String() + "/" + string(p) }
func voteKey(memeID string, o models.Owner) string   { return memeID + "/" + o.String() }

type memSnapshot struct {
	creds map[string]models.Credential
	memes map[string]models.Meme
	votes map[string]models.Vote
	sagas map[string]models.GenerationSaga
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		creds: map[string]models.Credential{},
		memes: map[string]models.Meme{},
		votes: map[string]models.Vote{},
		sagas: map[string]models.GenerationSaga{},
	}
	for k, v := range s.creds {
		snap.creds[k] = *v
	}
	for k, v := range s.memes {
		snap.memes[k] = *v
	}
	for k, v := range s.votes {
		snap.votes[k] = *v
	}
	for k, v := range s.sagas {
		snap.sagas[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.creds, s.memes, s.votes, s.sagas = map[string]*models.Credential{}, map[string]*models.Meme{}, map[string]*models.Vote{}, map[string]*models.GenerationSaga{}
	for k, v := range snap.creds {
		v := v
		s.creds[k] = &v
	}
	for k, v := range snap.memes {
		v := v
		s.memes[k] = &v
	}
	for k, v := range snap.votes {
		v := v
		s.votes[k] = &v
	}
	for k, v := range snap.sagas {
		v := v
		s.sagas[k] = &v
	}
}

// memTx is a dbx.TxFunc that serializes transactions and undoes their
// writes on error.
func (s *memStore) memTx(ctx context.Context, _ *sql.DB, _ *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.external = nil
	if err := fn(context.WithValue(ctx, inTxKey{}, true), nil); err != nil {
		s.restore(snap)
		for _, w := range s.external {
			w()
		}
		return err
	}
	return nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return memUsers{m.s} }
func (m *fakeRepoManager) Agents(dbx.DBTX) agents.Repository           { return memAgents{m.s} }
func (m *fakeRepoManager) Credentials(dbx.DBTX) credentials.Repository { return memCreds{m.s} }
func (m *fakeRepoManager) Memes(dbx.DBTX) memes.Repository             { return memMemes{m.s} }
func (m *fakeRepoManager) Votes(dbx.DBTX) votes.Repository             { return memVotes{m.s} }
func (m *fakeRepoManager) Sagas(dbx.DBTX) sagas.Repository             { return memSagas{m.s} }

var uniqueViolation = &pgconn.PgError{Code: pgerrcode.UniqueViolation}

// --- users ---

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

// --- agents ---

type memAgents struct{ s *memStore }

func (r memAgents) Create(ctx context.Context, a *models.Agent) error {
	defer r.s.lock(ctx)()
	for _, x := range r.s.agents {
		if x.Name == a.Name {
			return common.ErrConflict
		}
	}
	a.CreatedAt = r.s.clock()
	c := *a
	r.s.agents[a.ID] = &c
	return nil
}

func (r memAgents) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *a
	return &c, nil
}

func (r memAgents) CreateAPIKey(ctx context.Context, k *models.AgentAPIKey) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.apiKeys[k.Prefix]; ok {
		return uniqueViolation
	}
	k.CreatedAt = r.s.clock()
	c := *k
	r.s.apiKeys[k.Prefix] = &c
	return nil
}

func (r memAgents) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.AgentAPIKey, error) {
	defer r.s.lock(ctx)()
	k, ok := r.s.apiKeys[prefix]
	if !ok || k.RevokedAt != nil {
		return nil, common.ErrorNotFound
	}
	c := *k
	return &c, nil
}

// --- credentials ---

type memCreds struct{ s *memStore }

func (r memCreds) Upsert(ctx context.Context, c *models.Credential) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure("creds.Upsert"); err != nil {
		return err
	}
	now := r.s.clock()
	k := credKey(c.Owner, c.Provider)
	if old, ok := r.s.creds[k]; ok {
		c.CreatedAt = old.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	r.s.creds[k] = &cp
	return nil
}

func (r memCreds) Get(ctx context.Context, o models.Owner, p models.Provider) (*models.Credential, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.creds[credKey(o, p)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCreds) List(ctx context.Context, o models.Owner) ([]*models.Credential, error) {
	defer r.s.lock(ctx)()
	var out []*models.Credential
	for _, c := range r.s.creds {
		if c.Owner == o {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (r memCreds) Delete(ctx context.Context, o models.Owner, p models.Provider) (bool, error) {
	defer r.s.lock(ctx)()
	k := credKey(o, p)
	_, ok := r.s.creds[k]
	delete(r.s.creds, k)
	return ok, nil
}

// --- memes ---

type memMemes struct{ s *memStore }

func (r memMemes) Create(ctx context.Context, m *models.Meme) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure("memes.Create"); err != nil {
		return err
	}
	if _, ok := r.s.memes[m.ID]; ok {
		return uniqueViolation
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.clock()
	}
	c := *m
	r.s.memes[m.ID] = &c
	return nil
}

func (r memMemes) Get(ctx context.Context, id string) (*models.Meme, error) {
	defer r.s.lock(ctx)()
	r.s.memeLookups = append(r.s.memeLookups, id)
	m, ok := r.s.memes[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *m
	return &c, nil
}

func (r memMemes) LockScore(ctx context.Context, id string) (int, time.Time, error) {
	defer r.s.lock(ctx)()
	r.s.memeLookups = append(r.s.memeLookups, id)
	m, ok := r.s.memes[id]
	if !ok {
		return 0, time.Time{}, common.ErrorNotFound
	}
	return m.Score, m.CreatedAt, nil
}

func (r memMemes) AddScore(ctx context.Context, id string, delta int, hot float64) (int, error) {
	defer r.s.lock(ctx)()
	if err := r.s.failure("memes.AddScore"); err != nil {
		return 0, err
	}
	m, ok := r.s.memes[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	m.Score += delta
	m.HotScore = hot
	return m.Score, nil
}

// less reports whether a sorts after b in the descending ordering.
func memeLess(s memes.Sort, a, b *models.Meme) bool {
	switch s {
	case memes.SortNew:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case memes.SortTop:
		if a.Score != b.Score {
			return a.Score < b.Score
		}
	case memes.SortHot:
		if a.HotScore != b.HotScore {
			return a.HotScore < b.HotScore
		}
	}
	return a.ID < b.ID
}

func (r memMemes) List(ctx context.Context, q memes.ListQuery) ([]*models.Meme, error) {
	defer r.s.lock(ctx)()
	var out []*models.Meme
	for _, m := range r.s.memes {
		if q.Since != nil && m.CreatedAt.Before(*q.Since) {
			continue
		}
		if q.After != nil && !memeLess(q.Sort, m, q.After) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return memeLess(q.Sort, out[j], out[i]) })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// --- votes ---

type memVotes struct{ s *memStore }

func (r memVotes) Get(ctx context.Context, memeID string, voter models.Owner) (*models.Vote, error) {
	defer r.s.lock(ctx)()
	v, ok := r.s.votes[voteKey(memeID, voter)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *v
	return &c, nil
}

func (r memVotes) Create(ctx context.Context, v *models.Vote) error {
	defer r.s.lock(ctx)()
	if race := r.s.raceVote; race != nil {
		r.s.raceVote = nil
		commit := func() {
			c := *race
			r.s.votes[voteKey(race.MemeID, race.Voter)] = &c
			r.s.memes[race.MemeID].Score += int(race.Direction)
		}
		commit()
		r.s.external = append(r.s.external, commit)
	}
	k := voteKey(v.MemeID, v.Voter)
	if _, ok := r.s.votes[k]; ok {
		return uniqueViolation
	}
	c := *v
	r.s.votes[k] = &c
	return nil
}

func (r memVotes) Update(ctx context.Context, v *models.Vote) error {
	defer r.s.lock(ctx)()
	old, ok := r.s.votes[voteKey(v.MemeID, v.Voter)]
	if !ok {
		return common.ErrorNotFound
	}
	old.Direction = v.Direction
	return nil
}

func (r memVotes) Delete(ctx context.Context, memeID string, voter models.Owner) error {
	defer r.s.lock(ctx)()
	k := voteKey(memeID, voter)
	if _, ok := r.s.votes[k]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.votes, k)
	return nil
}

func (r memVotes) Directions(ctx context.Context, voter models.Owner, ids []string) (map[string]models.Direction, error) {
	defer r.s.lock(ctx)()
	out := map[string]models.Direction{}
	for _, id := range ids {
		if v, ok := r.s.votes[voteKey(id, voter)]; ok {
			out[id] = v.Direction
		}
	}
	return out, nil
}

// --- sagas ---

type memSagas struct{ s *memStore }

func (r memSagas) Create(ctx context.Context, g *models.GenerationSaga) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure("sagas.Create"); err != nil {
		return err
	}
	now := r.s.clock()
	g.CreatedAt, g.UpdatedAt = now, now
	c := *g
	r.s.sagas[g.MemeID] = &c
	return nil
}

func (r memSagas) SetState(ctx context.Context, memeID string, state models.SagaState) error {
	defer r.s.lock(ctx)()
	g, ok := r.s.sagas[memeID]
	if !ok {
		return common.ErrorNotFound
	}
	g.State = state
	g.UpdatedAt = r.s.clock()
	return nil
}

func (r memSagas) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.GenerationSaga, error) {
	defer r.s.lock(ctx)()
	var out []*models.GenerationSaga
	for _, g := range r.s.sagas {
		if (g.State == models.SagaPending || g.State == models.SagaUploaded) && g.UpdatedAt.Before(before) {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemeID < out[j].MemeID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// newTxDB returns a sqlmock-backed *sql.DB that expects one committed
// transaction, for services that call dbx.WithTx directly.
func newTxDB(t *testing.T, commits int) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	for i := 0; i < commits; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}
