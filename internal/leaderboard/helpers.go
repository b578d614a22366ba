package leaderboard

import (
	"github.com/gokatarajesh/wordrush/internal/db/repository"
	ws "github.com/gokatarajesh/wordrush/pkg/http/ws"
)

func toWSEntries(entries []repository.Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:       e.Rank,
			UserID:     e.UserID.String(),
			Score:      e.Score,
			Accuracy:   e.Accuracy,
			Speed:      e.Speed,
			Grade:      string(e.Grade),
			Percentile: e.Percentile,
			Stanine:    e.Stanine,
		}
	}
	return result
}
