package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"partygame/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	gameCacheKeyPrefix = "game:"
	versionKeySuffix   = ":v"
	noVersion          = "0"
)

// setIfVersion writes the snapshot only while the game's version key still
// holds the value the loader saw before reading the database.
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2])
if not v then v = '0' end
if v ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GameCache keeps GameDetail snapshots in Redis. A nil *GameCache, or one built
// without a client, is a no-op so the service works without Redis.
//
// Every write to a game bumps its version key. Loaders read the version before
// going to the database and store their snapshot with SetIfVersion, so a load
// that overlaps a write never puts the older roster back.
type GameCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGameCache(client *redis.Client, ttl time.Duration) *GameCache {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &GameCache{client: client, ttl: ttl}
}

func (c *GameCache) enabled() bool {
	return c != nil && c.client != nil
}

func gameCacheKey(gameID string) string {
	return gameCacheKeyPrefix + gameID
}

func gameVersionKey(gameID string) string {
	return gameCacheKeyPrefix + gameID + versionKeySuffix
}

// Version returns the current version of a game's cached state. ok is false
// when Redis is disabled or unreachable, and the caller must not cache.
func (c *GameCache) Version(ctx context.Context, gameID string) (string, bool) {
	if !c.enabled() {
		return "", false
	}

	v, err := c.client.Get(ctx, gameVersionKey(gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return noVersion, true
	}
	if err != nil {
		logger.L().Warn("redis version read failed", zap.String("game_id", gameID), zap.Error(err))
		return "", false
	}
	return v, true
}

func (c *GameCache) Get(ctx context.Context, gameID string) (*GameDetail, bool) {
	if !c.enabled() {
		return nil, false
	}

	data, err := c.client.Get(ctx, gameCacheKey(gameID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("redis get failed", zap.String("game_id", gameID), zap.Error(err))
		}
		return nil, false
	}

	var detail GameDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		logger.L().Warn("corrupt cached game", zap.String("game_id", gameID), zap.Error(err))
		return nil, false
	}
	return &detail, true
}

// SetIfVersion stores the snapshot unless the game changed since version was
// read. It reports whether the snapshot was written.
func (c *GameCache) SetIfVersion(ctx context.Context, detail *GameDetail, version string) bool {
	if !c.enabled() || detail == nil {
		return false
	}

	data, err := json.Marshal(detail)
	if err != nil {
		logger.L().Warn("marshal game for cache", zap.String("game_id", detail.ID), zap.Error(err))
		return false
	}

	keys := []string{gameCacheKey(detail.ID), gameVersionKey(detail.ID)}
	stored, err := setIfVersion.Run(ctx, c.client, keys, version, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		logger.L().Warn("redis set failed", zap.String("game_id", detail.ID), zap.Error(err))
		return false
	}
	if stored == 0 {
		logger.L().Debug("game changed while loading, snapshot dropped", zap.String("game_id", detail.ID))
	}
	return stored == 1
}

// Invalidate drops the snapshot and bumps the version so in-flight loads
// started before the write cannot store their result.
func (c *GameCache) Invalidate(ctx context.Context, gameID string) {
	if !c.enabled() {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gameVersionKey(gameID))
		pipe.Expire(ctx, gameVersionKey(gameID), c.ttl)
		pipe.Del(ctx, gameCacheKey(gameID))
		return nil
	})
	if err != nil {
		logger.L().Warn("redis invalidate failed", zap.String("game_id", gameID), zap.Error(err))
	}
}
