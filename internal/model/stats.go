package model

import "time"

const (
	// DefaultRating is the rating assigned to a player with no rated history
	DefaultRating = 1200

	// HeroWindow is the sliding window used for hero eligibility
	HeroWindow = 2 * time.Hour
	// HeroWins is the number of wins inside HeroWindow required to be a hero
	HeroWins = 25
)

// PlayerStats is the persisted competitive record of a player
type PlayerStats struct {
	PlayerID       PlayerID
	Rating         int
	GamesCompleted int
	Wins           int
	Losses         int
	Streak         int
	// RecentWins holds win timestamps inside HeroWindow, oldest first, capped at HeroWins
	RecentWins []time.Time
	UpdatedAt  time.Time
}

// NewPlayerStats returns a fresh record for a player
func NewPlayerStats(id PlayerID, now time.Time) *PlayerStats {
	return &PlayerStats{
		PlayerID:   id,
		Rating:     DefaultRating,
		RecentWins: []time.Time{},
		UpdatedAt:  now,
	}
}

// RecordWin counts a completed game as a win and tracks it in the hero window
func (s *PlayerStats) RecordWin(now time.Time) {
	s.GamesCompleted++
	s.Wins++
	s.Streak++
	s.RecentWins = append(s.RecentWins, now)
	s.evictWins(now)
	if len(s.RecentWins) > HeroWins {
		s.RecentWins = s.RecentWins[len(s.RecentWins)-HeroWins:]
	}
	s.UpdatedAt = now
}

// RecordLoss counts a completed game as a loss and resets the streak
func (s *PlayerStats) RecordLoss(now time.Time) {
	s.GamesCompleted++
	s.Losses++
	s.Streak = 0
	s.UpdatedAt = now
}

// IsHeroEligible reports whether the player has HeroWins wins within HeroWindow of now
func (s *PlayerStats) IsHeroEligible(now time.Time) bool {
	count := 0
	for _, t := range s.RecentWins {
		if now.Sub(t) <= HeroWindow {
			count++
		}
	}
	return count >= HeroWins
}

// evictWins drops wins that have aged out of the window
func (s *PlayerStats) evictWins(now time.Time) {
	keep := s.RecentWins[:0]
	for _, t := range s.RecentWins {
		if now.Sub(t) <= HeroWindow {
			keep = append(keep, t)
		}
	}
	s.RecentWins = keep
}

// Clone returns a deep copy safe to hand to another goroutine
func (s *PlayerStats) Clone() *PlayerStats {
	c := *s
	c.RecentWins = append([]time.Time(nil), s.RecentWins...)
	return &c
}
