// Package stats keeps player stats in memory and writes them back asynchronously.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/persist"
	"github.com/mcoot/towers-go/internal/storage"
)

// Service is the in-memory owner of loaded player stats
type Service struct {
	storage   storage.Storage
	persister *persist.Persister
	clock     clock.Clock
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[model.PlayerID]*model.PlayerStats
	// pending counts queued writes per player; evict marks entries to drop once they land
	pending map[model.PlayerID]int
	evict   map[model.PlayerID]bool
}

// New creates a stats service
func New(store storage.Storage, persister *persist.Persister, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage:   store,
		persister: persister,
		clock:     clk,
		logger:    logger.With(slog.String("component", "stats")),
		cache:     make(map[model.PlayerID]*model.PlayerStats),
		pending:   make(map[model.PlayerID]int),
		evict:     make(map[model.PlayerID]bool),
	}
}

// Load returns the player's stats, reading or creating them in storage on first access
func (s *Service) Load(ctx context.Context, id model.PlayerID) (*model.PlayerStats, error) {
	if st, ok := s.Peek(id); ok {
		return st, nil
	}

	loaded, err := s.storage.LoadOrCreateStats(ctx, id, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent load or a game result may have landed while storage was read
	if st, ok := s.cache[id]; ok {
		return st.Clone(), nil
	}
	s.cache[id] = loaded
	return loaded.Clone(), nil
}

// Peek returns cached stats without touching storage
func (s *Service) Peek(id model.PlayerID) (*model.PlayerStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.cache[id]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Rating returns the player's current rating, loading their stats on first use
func (s *Service) Rating(ctx context.Context, id model.PlayerID) (int, error) {
	st, err := s.Load(ctx, id)
	if err != nil {
		return 0, err
	}
	return st.Rating, nil
}

// ApplyResult records a finished game for a player and schedules the write.
// Stats not yet cached are read from storage first, so the stored record is
// extended rather than replaced. It returns the updated stats.
func (s *Service) ApplyResult(ctx context.Context, id model.PlayerID, won bool, newRating int) (*model.PlayerStats, error) {
	loaded, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	s.mu.Lock()
	st, ok := s.cache[id]
	if !ok {
		// Forgotten between the load and now
		st = loaded
		s.cache[id] = st
	}
	if won {
		st.RecordWin(now)
	} else {
		st.RecordLoss(now)
	}
	st.Rating = newRating
	snapshot := st.Clone()
	s.pending[id]++
	s.mu.Unlock()

	s.save(snapshot)
	return snapshot.Clone(), nil
}

// IsHeroEligible reports whether the player currently qualifies as a hero
func (s *Service) IsHeroEligible(id model.PlayerID) bool {
	st, ok := s.Peek(id)
	if !ok {
		return false
	}
	return st.IsHeroEligible(s.clock.Now())
}

// Forget drops a player from the cache. Stats with writes still queued stay
// cached until the last of them lands, so a reload never reads a stale row.
func (s *Service) Forget(id model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] > 0 {
		s.evict[id] = true
		return
	}
	delete(s.cache, id)
	delete(s.evict, id)
}

func (s *Service) save(snapshot *model.PlayerStats) {
	id := snapshot.PlayerID
	err := s.persister.Enqueue("stats", func(ctx context.Context) error {
		if err := s.storage.SaveStats(ctx, snapshot); err != nil {
			return err
		}
		s.written(id)
		return nil
	})
	if err != nil {
		// The write will never land; the cache stays the only copy of the result
		s.logger.Error("failed to schedule stats save",
			slog.String("player_id", string(id)),
			slog.Any("error", err))
	}
}

// written settles one queued write, evicting the entry if it was forgotten meanwhile
func (s *Service) written(id model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id]--
	if s.pending[id] > 0 {
		return
	}
	delete(s.pending, id)
	if s.evict[id] {
		delete(s.evict, id)
		delete(s.cache, id)
	}
}
