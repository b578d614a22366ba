package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/round"
)

// Where a top list was read from.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// Repository is the persistence the leaderboard needs.
type Repository interface {
	UpsertBest(ctx context.Context, key repository.BoardKey, res repository.BestResult) (repository.UpsertOutcome, error)
	Standing(ctx context.Context, key repository.BoardKey, userID uuid.UUID) (repository.Standing, error)
	Top(ctx context.Context, key repository.BoardKey, limit int) ([]repository.Entry, error)
	Stats(ctx context.Context, key repository.BoardKey) (repository.BoardStats, error)
}

// KeyFunc resolves the live board for a period and duration.
type KeyFunc func(period round.Period, durationSec int) repository.BoardKey

// Position is a user's rank as returned to clients.
type Position struct {
	Rank         int          `json:"rank"`
	TotalPlayers int          `json:"totalPlayers"`
	Period       round.Period `json:"period"`
}

// Stats is the public board summary.
type Stats struct {
	TotalPlayers int `json:"totalPlayers"`
	AverageScore int `json:"averageScore"`
	TopScore     int `json:"topScore"`
	MedianScore  int `json:"medianScore"`
}

// ServiceOptions configures read behavior.
type ServiceOptions struct {
	TopN int
}

// Service serves leaderboard reads, preferring the top-N cache.
type Service struct {
	repo   Repository
	cache  *Cache
	key    KeyFunc
	topN   int
	logger zerolog.Logger
}

// NewService constructs a leaderboard read service. cache may be nil.
func NewService(repo Repository, cache *Cache, key KeyFunc, opts ServiceOptions, logger zerolog.Logger) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		key:    key,
		topN:   topN,
		logger: logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Key exposes the board resolver.
func (s *Service) Key(period round.Period, durationSec int) repository.BoardKey {
	return s.key(period, durationSec)
}

// WithScope returns the board for period and duration on a specific scope.
func (s *Service) WithScope(period round.Period, durationSec int, scope string) repository.BoardKey {
	key := s.key(period, durationSec)
	if scope != "" {
		key.Scope = scope
	}
	return key
}

// Top returns up to limit entries and where they came from.
func (s *Service) Top(ctx context.Context, key repository.BoardKey, limit int) ([]repository.Entry, string, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("period", string(key.Period)).Msg("leaderboard cache read failed")
		case ok:
			if len(entries) > limit {
				entries = entries[:limit]
			}
			return entries, SourceCache, nil
		}
	}

	entries, err := s.repo.Top(ctx, key, s.topN)
	if err != nil {
		return nil, "", fmt.Errorf("fetch leaderboard: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries); err != nil {
			s.logger.Warn().Err(err).Msg("leaderboard cache write failed")
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, SourceDatabase, nil
}

// Refresh reloads the top-N list from the database into the cache.
func (s *Service) Refresh(ctx context.Context, key repository.BoardKey) ([]repository.Entry, error) {
	entries, err := s.repo.Top(ctx, key, s.topN)
	if err != nil {
		return nil, fmt.Errorf("refresh leaderboard: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries); err != nil {
			return entries, err
		}
	}
	return entries, nil
}

// Position returns the user's rank; rank 0 means the user has no result yet.
func (s *Service) Position(ctx context.Context, key repository.BoardKey, userID uuid.UUID) (Position, error) {
	st, err := s.repo.Standing(ctx, key, userID)
	if err != nil {
		return Position{}, err
	}
	return Position{Rank: st.Rank, TotalPlayers: st.TotalPlayers, Period: key.Period}, nil
}

// Stats summarises the board.
func (s *Service) Stats(ctx context.Context, key repository.BoardKey) (Stats, error) {
	st, err := s.repo.Stats(ctx, key)
	if err != nil {
		return Stats{}, err
	}
	return Stats(st), nil
}

func now() time.Time { return time.Now().UTC() }
