// Package elo computes multi-team rating changes for rated games.
package elo

import (
	"errors"
	"math"
	"sort"

	"github.com/mcoot/towers-go/internal/model"
)

// K is the rating sensitivity factor
const K = 16

// ErrNotEnoughTeams is returned when fewer than two teams took part
var ErrNotEnoughTeams = errors.New("elo needs at least two teams")

// Member is a player on a team with their rating before the game
type Member struct {
	PlayerID model.PlayerID
	Rating   int
}

// Team is one side of a game
type Team struct {
	Number  int
	Members []Member
}

// Average returns the mean rating of the team's members
func (t Team) Average() float64 {
	if len(t.Members) == 0 {
		return 0
	}
	sum := 0
	for _, m := range t.Members {
		sum += m.Rating
	}
	return float64(sum) / float64(len(t.Members))
}

// Expected returns the expected score of a team rated ra against one rated rb
func Expected(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// Placements ranks teams: any team containing a winner shares placement 1, the remaining teams
// follow in descending order of average rating (input order breaks ties).
// With no winners at all the ranking starts at 1.
func Placements(teams []Team, winners map[model.PlayerID]bool) map[int]int {
	placements := make(map[int]int, len(teams))
	var rest []Team
	for _, t := range teams {
		won := false
		for _, m := range t.Members {
			if winners[m.PlayerID] {
				won = true
				break
			}
		}
		if won {
			placements[t.Number] = 1
		} else {
			rest = append(rest, t)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Average() > rest[j].Average()
	})
	next := 1
	if len(placements) > 0 {
		next = 2
	}
	for i, t := range rest {
		placements[t.Number] = next + i
	}
	return placements
}

// Compute returns the rating change for every member of every team.
// Each pair of teams is scored 1/0.5/0 by placement; a team's delta is K times the sum of
// (actual - expected) over its opponents, rounded, and every member receives that delta.
func Compute(teams []Team, winners map[model.PlayerID]bool) ([]model.RatingChange, error) {
	if len(teams) < 2 {
		return nil, ErrNotEnoughTeams
	}
	placements := Placements(teams, winners)

	var changes []model.RatingChange
	for _, a := range teams {
		total := 0.0
		for _, b := range teams {
			if a.Number == b.Number {
				continue
			}
			actual := 0.5
			switch pa, pb := placements[a.Number], placements[b.Number]; {
			case pa < pb:
				actual = 1
			case pa > pb:
				actual = 0
			}
			total += actual - Expected(a.Average(), b.Average())
		}
		delta := int(math.Round(K * total))
		for _, m := range a.Members {
			changes = append(changes, model.RatingChange{
				PlayerID:  m.PlayerID,
				Team:      a.Number,
				OldRating: m.Rating,
				NewRating: m.Rating + delta,
				Delta:     delta,
			})
		}
	}
	return changes, nil
}
