// Package leaderboard ranks learners by XP in a Redis sorted set.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis keys.
const (
	XPKey    = "leaderboard:xp"
	NamesKey = "leaderboard:names"
)

// Entry is one ranked learner.
type Entry struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
	Rank     int64  `json:"rank"`
}

// Board records and reads XP rankings.
type Board interface {
	RecordXP(ctx context.Context, userID int64, username string, xp int) error
	Top(ctx context.Context, n int) ([]Entry, error)

	// Rank returns the learner's entry; Rank is 0 when unranked.
	Rank(ctx context.Context, userID int64) (Entry, error)
}

// Redis is a Board backed by a sorted set of user ids scored by XP total
// and a hash of usernames.
type Redis struct {
	client *redis.Client
}

// NewRedis returns a Board using client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Dial connects to the Redis server at addr and checks it is reachable.
func Dial(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return NewRedis(client), nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// RecordXP stores the learner's XP total. One round trip.
func (r *Redis) RecordXP(ctx context.Context, userID int64, username string, xp int) error {
	member := memberOf(userID)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, XPKey, redis.Z{Score: float64(xp), Member: member})
	pipe.HSet(ctx, NamesKey, member, username)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record xp for user %d: %w", userID, err)
	}
	return nil
}

// Top returns the n highest XP totals, best first.
func (r *Redis) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, XPKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	members := make([]string, 0, len(zs))
	for _, z := range zs {
		if m, ok := z.Member.(string); ok {
			members = append(members, m)
		}
	}
	names, err := r.client.HMGet(ctx, NamesKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard names: %w", err)
	}
	return entries(zs, nameMap(members, names)), nil
}

func (r *Redis) Rank(ctx context.Context, userID int64) (Entry, error) {
	member := memberOf(userID)
	e := Entry{UserID: userID}

	rank, err := r.client.ZRevRank(ctx, XPKey, member).Result()
	if errors.Is(err, redis.Nil) {
		return e, nil
	}
	if err != nil {
		return e, fmt.Errorf("rank user %d: %w", userID, err)
	}
	score, err := r.client.ZScore(ctx, XPKey, member).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return e, fmt.Errorf("score user %d: %w", userID, err)
	}
	name, err := r.client.HGet(ctx, NamesKey, member).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return e, fmt.Errorf("name user %d: %w", userID, err)
	}

	e.Rank = rank + 1
	e.XP = int(score)
	e.Username = name
	return e, nil
}

// Noop is the Board used when no Redis server is configured.
type Noop struct{}

func (Noop) RecordXP(context.Context, int64, string, int) error { return nil }
func (Noop) Top(context.Context, int) ([]Entry, error) { return nil, nil }
func (Noop) Rank(_ context.Context, userID int64) (Entry, error) {
	return Entry{UserID: userID}, nil
}

func memberOf(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// entries converts sorted-set members, best first, into ranked entries.
// Members that are not user ids are skipped.
func entries(zs []redis.Z, names map[string]string) []Entry {
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{
			UserID:   id,
			Username: names[m],
			XP:       int(z.Score),
			Rank:     int64(len(out) + 1),
		})
	}
	return out
}

func nameMap(members []string, values []any) map[string]string {
	names := make(map[string]string, len(members))
	for i, m := range members {
		if i >= len(values) {
			break
		}
		if s, ok := values[i].(string); ok {
			names[m] = s
		}
	}
	return names
}
