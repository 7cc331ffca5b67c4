package repo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
)

const (
	collStats      = "player_stats"
	winsRankingKey = "leaderboard:wins"
)

// LeaderboardRepository keeps per-player stats in Mongo and the win ranking
// in a Redis sorted set, so Top() is one ZREVRANGE instead of a full scan.
type LeaderboardRepository struct {
	log   *zap.SugaredLogger
	redis *redis.Client
	mongo *mongo.Database
}

func NewLeaderboardRepository(log *zap.SugaredLogger, redisClient *redis.Client, db *mongo.Database) *LeaderboardRepository {
	return &LeaderboardRepository{log: log, redis: redisClient, mongo: db}
}

func (l *LeaderboardRepository) RecordResult(ctx context.Context, username string, won bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	inc := bson.M{"total_games_played": 1}
	if won {
		inc["total_games_won"] = 1
	} else {
		inc["total_games_lost"] = 1
	}

	opts := options.Update().SetUpsert(true)
	_, err := l.mongo.Collection(collStats).UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{
			"$inc": inc,
			"$set": bson.M{"updated_at": time.Now()},
		}, opts)
	if err != nil {
		l.log.Errorf("failed to record result for %s: %v", username, err)
		return errors.ErrStoreWriteFailed
	}

	if won {
		if err := l.redis.ZIncrBy(ctx, winsRankingKey, 1, username).Err(); err != nil {
			l.log.Errorf("failed to bump ranking for %s: %v", username, err)
		}
	}
	return nil
}

// Top returns the ranking ordered by total wins. Ranks come straight from
// the sorted set; percentages are derived from the stats documents.
func (l *LeaderboardRepository) Top(ctx context.Context, limit int) ([]gamedom.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ranked, err := l.redis.ZRevRangeWithScores(ctx, winsRankingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]gamedom.LeaderboardEntry, 0, len(ranked))
	for i, z := range ranked {
		username, ok := z.Member.(string)
		if !ok {
			continue
		}

		entry := gamedom.LeaderboardEntry{
			Username:      username,
			TotalGamesWon: int(z.Score),
			Rank:          i + 1,
		}

		var stats gamedom.LeaderboardEntry
		err := l.mongo.Collection(collStats).FindOne(ctx, bson.M{"username": username}).Decode(&stats)
		if err == nil {
			entry.TotalGamesPlayed = stats.TotalGamesPlayed
			entry.TotalGamesLost = stats.TotalGamesLost
			if stats.TotalGamesPlayed > 0 {
				entry.WinPercentage = float64(stats.TotalGamesWon) / float64(stats.TotalGamesPlayed) * 100
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}
