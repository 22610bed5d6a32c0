package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
)

type voteAction int

const (
	voteNoop voteAction = iota
	voteCreate
	voteUpdate
	voteDelete
)

func (a voteAction) String() string {
	switch a {
	case voteCreate:
		return "create"
	case voteUpdate:
		return "update"
	case voteDelete:
		return "delete"
	}
	return "noop"
}

// decideVote applies the toggle table: a repeated direction or an explicit
// zero clears the vote, the opposite direction flips it.
func decideVote(existing, requested models.Direction) (action voteAction, delta int, result models.Direction) {
	switch {
	case existing == models.DirectionNone && requested == models.DirectionNone:
		return voteNoop, 0, models.DirectionNone
	case existing == models.DirectionNone:
		return voteCreate, int(requested), requested
	case requested == models.DirectionNone || requested == existing:
		return voteDelete, -int(existing), models.DirectionNone
	default:
		return voteUpdate, 2 * int(requested), requested
	}
}

// VoteResult is the state after a vote: the meme's score and the caller's
// own vote.
type VoteResult struct {
	MemeID   string
	Score    int
	UserVote models.Direction
}

type VotingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger

	withTx dbx.TxFunc
}

func NewVotingService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *VotingService {
	return &VotingService{
		db:          db,
		repomanager: m,
		log:         log.With("module", "voting"),
		withTx:      dbx.WithTx,
	}
}

// Vote applies direction for voter on memeID in one serializable
// transaction. Losing a duplicate-create race is not an error: the committed
// state is re-read and returned. A serialization failure surfaces as
// common.ErrConflict so the caller can retry.
func (s *VotingService) Vote(ctx context.Context, memeID string, voter models.Owner, direction models.Direction) (*VoteResult, error) {
	if !voter.Valid() {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, models.ErrInvalidOwner)
	}
	if !validID(memeID) {
		return nil, fmt.Errorf("meme %s: %w", memeID, common.ErrorNotFound)
	}

	var (
		res    VoteResult
		action voteAction
	)

	err := s.withTx(ctx, s.db, dbx.Serializable, func(ctx context.Context, tx dbx.DBTX) error {
		memes := s.repomanager.Memes(tx)
		votes := s.repomanager.Votes(tx)

		score, createdAt, err := memes.LockScore(ctx, memeID)
		if err != nil {
			return err
		}

		existing := models.DirectionNone
		v, err := votes.Get(ctx, memeID, voter)
		switch {
		case err == nil:
			existing = v.Direction
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		var delta int
		action, delta, res.UserVote = decideVote(existing, direction)
		res.MemeID = memeID
		res.Score = score

		switch action {
		case voteNoop:
			return nil
		case voteCreate:
			err = votes.Create(ctx, &models.Vote{MemeID: memeID, Voter: voter, Direction: direction})
		case voteUpdate:
			err = votes.Update(ctx, &models.Vote{MemeID: memeID, Voter: voter, Direction: direction})
		case voteDelete:
			err = votes.Delete(ctx, memeID, voter)
		}
		if err != nil {
			return err
		}

		res.Score, err = memes.AddScore(ctx, memeID, delta, HotScore(score+delta, createdAt))
		return err
	})

	switch {
	case err == nil:
		votesTotal.WithLabelValues(action.String()).Inc()
		return &res, nil
	case errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("meme %s: %w", memeID, common.ErrorNotFound)
	case dbx.IsUniqueViolation(err):
		s.log.Debug(ctx, "duplicate vote race resolved", "meme_id", memeID, "voter", voter.String())
		votesTotal.WithLabelValues("race").Inc()
		return s.current(ctx, memeID, voter)
	case dbx.IsSerializationFailure(err):
		return nil, fmt.Errorf("%w: concurrent vote on meme %s", common.ErrConflict, memeID)
	}
	return nil, err
}

// current reads the committed score and voter's vote outside any transaction.
func (s *VotingService) current(ctx context.Context, memeID string, voter models.Owner) (*VoteResult, error) {
	m, err := s.repomanager.Memes(s.db).Get(ctx, memeID)
	if err != nil {
		return nil, err
	}

	res := &VoteResult{MemeID: memeID, Score: m.Score, UserVote: models.DirectionNone}
	v, err := s.repomanager.Votes(s.db).Get(ctx, memeID, voter)
	switch {
	case err == nil:
		res.UserVote = v.Direction
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}
	return res, nil
}
