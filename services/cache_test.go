package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"partygame/models"
	"partygame/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestCache(t *testing.T, ttl time.Duration) (*GameCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGameCache(client, ttl), mr
}

func TestGameCache_NilIsNoop(t *testing.T) {
	var cache *GameCache
	ctx := context.Background()

	assert.False(t, cache.SetIfVersion(ctx, &GameDetail{ID: "X"}, noVersion))
	cache.Invalidate(ctx, "X")
	_, ok := cache.Get(ctx, "X")
	assert.False(t, ok)
	_, ok = cache.Version(ctx, "X")
	assert.False(t, ok)

	_, ok = NewGameCache(nil, 0).Get(ctx, "X")
	assert.False(t, ok)
}

func TestGameCache_SetGetWithTTL(t *testing.T) {
	cache, mr := newTestCache(t, 30*time.Minute)
	ctx := context.Background()

	detail := &GameDetail{
		ID:        "CACHE1",
		HostID:    "host",
		IsActive:  true,
		GameModes: []string{"classic"},
		Players:   []RosterEntry{{ID: "host", Name: "Host", IsHost: true}},
	}
	version, ok := cache.Version(ctx, "CACHE1")
	require.True(t, ok)
	assert.Equal(t, noVersion, version)
	require.True(t, cache.SetIfVersion(ctx, detail, version))

	assert.True(t, mr.Exists("game:CACHE1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("game:CACHE1"))

	got, ok := cache.Get(ctx, "CACHE1")
	require.True(t, ok)
	assert.Equal(t, detail.Players, got.Players)
	assert.Equal(t, detail.GameModes, got.GameModes)

	cache.Invalidate(ctx, "CACHE1")
	assert.False(t, mr.Exists("game:CACHE1"))
}

func TestGameCache_SetIfVersionRefusesAfterWrite(t *testing.T) {
	cache, mr := newTestCache(t, time.Hour)
	ctx := context.Background()
	detail := &GameDetail{ID: "VERS01", Players: []RosterEntry{}}

	before, ok := cache.Version(ctx, "VERS01")
	require.True(t, ok)

	cache.Invalidate(ctx, "VERS01")
	after, ok := cache.Version(ctx, "VERS01")
	require.True(t, ok)
	assert.NotEqual(t, before, after)
	assert.Equal(t, time.Hour, mr.TTL("game:VERS01:v"))

	assert.False(t, cache.SetIfVersion(ctx, detail, before))
	assert.False(t, mr.Exists("game:VERS01"))

	assert.True(t, cache.SetIfVersion(ctx, detail, after))
	assert.True(t, mr.Exists("game:VERS01"))
}

func TestGameCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set("game:BAD001", "{not json"))

	_, ok := cache.Get(context.Background(), "BAD001")
	assert.False(t, ok)
}

func TestGetGame_ReadsThroughCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestGame(t, db, "READ01", "host")
	cache, mr := newTestCache(t, 0)
	svc := NewGameService(db, cache)
	ctx := context.Background()

	_, err := svc.GetGame(ctx, "READ01")
	require.NoError(t, err)
	assert.True(t, mr.Exists("game:READ01"))

	// a write behind the service's back is not visible until invalidation
	testutil.AddTestPlayer(t, db, "READ01", "sneaky", "Sneaky")
	detail, err := svc.GetGame(ctx, "READ01")
	require.NoError(t, err)
	assert.Len(t, detail.Players, 1)

	_, created, err := svc.JoinGame(ctx, "READ01", &JoinGameRequest{PlayerID: "p1", PlayerName: "Alice"})
	require.NoError(t, err)
	require.True(t, created)
	assert.False(t, mr.Exists("game:READ01"))

	detail, err = svc.GetGame(ctx, "READ01")
	require.NoError(t, err)
	assert.Len(t, detail.Players, 3)
}

// pauseRosterLoad blocks the first players query until release is closed and
// closes loading once that query has run.
func pauseRosterLoad(t *testing.T, db *gorm.DB) (loading, release chan struct{}) {
	t.Helper()
	loading = make(chan struct{})
	release = make(chan struct{})
	var armed atomic.Bool
	armed.Store(true)

	err := db.Callback().Query().After("gorm:query").Register("test:pause_roster", func(tx *gorm.DB) {
		if tx.Statement.Table == "players" && armed.CompareAndSwap(true, false) {
			close(loading)
			<-release
		}
	})
	require.NoError(t, err)
	return loading, release
}

func TestGetGame_LoadOverlappingJoinIsNotCached(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestGame(t, db, "RACE01", "host")
	cache, mr := newTestCache(t, 0)
	svc := NewGameService(db, cache)
	ctx := context.Background()

	loading, release := pauseRosterLoad(t, db)
	loaded := make(chan *GameDetail, 1)
	go func() {
		detail, err := svc.GetGame(ctx, "RACE01")
		assert.NoError(t, err)
		loaded <- detail
	}()

	<-loading
	_, created, err := svc.JoinGame(ctx, "RACE01", &JoinGameRequest{PlayerID: "p1", PlayerName: "Alice"})
	require.NoError(t, err)
	require.True(t, created)
	close(release)

	stale := <-loaded
	require.NotNil(t, stale)
	assert.Len(t, stale.Players, 1)
	assert.False(t, mr.Exists("game:RACE01"), "snapshot from before the join must not be cached")

	detail, err := svc.GetGame(ctx, "RACE01")
	require.NoError(t, err)
	assert.Len(t, detail.Players, 2)
	assert.True(t, mr.Exists("game:RACE01"))
}

func TestGetGame_LoadOverlappingEndIsNotCached(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestGame(t, db, "RACE02", "host")
	cache, mr := newTestCache(t, 0)
	svc := NewGameService(db, cache)
	ctx := context.Background()

	loading, release := pauseRosterLoad(t, db)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.GetGame(ctx, "RACE02")
		assert.NoError(t, err)
	}()

	<-loading
	ended, err := svc.EndGame(ctx, "RACE02")
	require.NoError(t, err)
	require.True(t, ended)
	close(release)
	<-done

	assert.False(t, mr.Exists("game:RACE02"))
	detail, err := svc.GetGame(ctx, "RACE02")
	require.NoError(t, err)
	assert.False(t, detail.IsActive)
}

func TestEndGame_InvalidatesCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestGame(t, db, "ENDC01", "host")
	cache, mr := newTestCache(t, 0)
	svc := NewGameService(db, cache)
	ctx := context.Background()

	_, err := svc.GetGame(ctx, "ENDC01")
	require.NoError(t, err)

	_, err = svc.EndGame(ctx, "ENDC01")
	require.NoError(t, err)
	assert.False(t, mr.Exists("game:ENDC01"))

	var game models.Game
	require.NoError(t, db.First(&game, "id = ?", "ENDC01").Error)
	assert.False(t, game.IsActive)
}

func TestGetGame_RedisDownFallsBackToDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestGame(t, db, "DOWN01", "host")
	cache, mr := newTestCache(t, 0)
	mr.Close()

	svc := NewGameService(db, cache)
	detail, err := svc.GetGame(context.Background(), "DOWN01")
	require.NoError(t, err)
	assert.Equal(t, "host", detail.HostID)
}
