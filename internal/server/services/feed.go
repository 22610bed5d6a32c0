package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/memes"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 50

	defaultPeriod = 7 * 24 * time.Hour
)

// ParseSort maps a sort name to an ordering; empty means hot.
func ParseSort(s string) (memes.Sort, error) {
	switch memes.Sort(strings.ToLower(s)) {
	case "", memes.SortHot:
		return memes.SortHot, nil
	case memes.SortNew:
		return memes.SortNew, nil
	case memes.SortTop:
		return memes.SortTop, nil
	}
	return "", fmt.Errorf("%w: sort must be one of hot, new, top", common.ErrValidation)
}

// ParsePeriod maps a period name to a lookback. Zero means unbounded; empty
// means seven days.
func ParsePeriod(s string) (time.Duration, error) {
	switch strings.ToLower(s) {
	case "":
		return defaultPeriod, nil
	case "24h", "day":
		return 24 * time.Hour, nil
	case "7d", "week":
		return 7 * 24 * time.Hour, nil
	case "30d", "month":
		return 30 * 24 * time.Hour, nil
	case "all":
		return 0, nil
	}
	return 0, fmt.Errorf("%w: period must be one of 24h, 7d, 30d, all", common.ErrValidation)
}

// FeedQuery selects a page. A zero Viewer is anonymous and gets no per-item
// vote state.
type FeedQuery struct {
	Sort   string
	Period string
	Cursor string
	Limit  int
	Viewer models.Owner
}

type FeedItem struct {
	Meme     *models.Meme
	UserVote models.Direction
}

type FeedPage struct {
	Items      []FeedItem
	HasMore    bool
	NextCursor string
}

type FeedService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewFeedService(db *sql.DB, m repomanager.RepositoryManager) *FeedService {
	return &FeedService{db: db, repomanager: m, now: time.Now}
}

func (s *FeedService) List(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	sort, err := ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}
	period, err := ParsePeriod(q.Period)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultFeedLimit
	}
	if limit < 1 || limit > MaxFeedLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", common.ErrValidation, MaxFeedLimit)
	}

	repo := s.repomanager.Memes(s.db)
	lq := memes.ListQuery{Sort: sort, Limit: limit + 1}

	if sort == memes.SortTop && period > 0 {
		since := s.now().Add(-period)
		lq.Since = &since
	}

	// an unknown or malformed cursor restarts from the top of the ordering
	if q.Cursor != "" && validID(q.Cursor) {
		after, err := repo.Get(ctx, q.Cursor)
		switch {
		case err == nil:
			lq.After = after
		case !errors.Is(err, common.ErrorNotFound):
			return nil, err
		}
	}

	rows, err := repo.List(ctx, lq)
	if err != nil {
		return nil, err
	}

	page := &FeedPage{}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
		page.NextCursor = rows[limit-1].ID
	}

	var directions map[string]models.Direction
	if q.Viewer.Valid() && len(rows) > 0 {
		ids := make([]string, len(rows))
		for i, m := range rows {
			ids[i] = m.ID
		}
		directions, err = s.repomanager.Votes(s.db).Directions(ctx, q.Viewer, ids)
		if err != nil {
			return nil, err
		}
	}

	page.Items = make([]FeedItem, len(rows))
	for i, m := range rows {
		page.Items[i] = FeedItem{Meme: m, UserVote: directions[m.ID]}
	}
	return page, nil
}

// Get returns one meme with the viewer's vote on it.
func (s *FeedService) Get(ctx context.Context, id string, viewer models.Owner) (*FeedItem, error) {
	if !validID(id) {
		return nil, fmt.Errorf("meme %s: %w", id, common.ErrorNotFound)
	}

	m, err := s.repomanager.Memes(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}

	item := &FeedItem{Meme: m}
	if !viewer.Valid() {
		return item, nil
	}

	v, err := s.repomanager.Votes(s.db).Get(ctx, id, viewer)
	switch {
	case err == nil:
		item.UserVote = v.Direction
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}
	return item, nil
}

// validID reports whether id can name a row; ids are UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
