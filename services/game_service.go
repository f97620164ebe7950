package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"partygame/logger"
	"partygame/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GameService struct {
	db    *gorm.DB
	cache *GameCache
	group singleflight.Group

	// drawCode produces candidate game codes; tests swap it to force collisions.
	drawCode func() string
}

func NewGameService(db *gorm.DB, cache *GameCache) *GameService {
	return &GameService{
		db:       db,
		cache:    cache,
		drawCode: RandomGameCode,
	}
}

type CreateGameRequest struct {
	HostID    string   `json:"host_id" binding:"required"`
	HostName  string   `json:"host_name" binding:"required"`
	GameModes []string `json:"game_modes" binding:"required,min=1"`
}

type JoinGameRequest struct {
	PlayerID   string `json:"player_id" binding:"required"`
	PlayerName string `json:"player_name" binding:"required"`
}

// GameSummary is one row of the active games listing.
type GameSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	PlayerCount int64     `json:"player_count"`
}

type RosterEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`
}

// GameDetail is a game with its full roster, host first.
type GameDetail struct {
	ID        string        `json:"id"`
	HostID    string        `json:"host_id"`
	CreatedAt time.Time     `json:"created_at"`
	IsActive  bool          `json:"is_active"`
	GameModes []string      `json:"game_modes"`
	Players   []RosterEntry `json:"players"`
}

func (r *CreateGameRequest) validate() error {
	r.HostID = strings.TrimSpace(r.HostID)
	r.HostName = strings.TrimSpace(r.HostName)
	if r.HostID == "" || r.HostName == "" || len(r.GameModes) == 0 {
		return fmt.Errorf("%w: host_id, host_name and game_modes are required", ErrInvalidInput)
	}
	for _, mode := range r.GameModes {
		if strings.TrimSpace(mode) == "" {
			return fmt.Errorf("%w: game modes must not be blank", ErrInvalidInput)
		}
		if strings.Contains(mode, models.GameModeSeparator) {
			return fmt.Errorf("%w: game mode %q contains %q", ErrInvalidInput, mode, models.GameModeSeparator)
		}
	}
	return nil
}

func (r *JoinGameRequest) validate() error {
	r.PlayerID = strings.TrimSpace(r.PlayerID)
	r.PlayerName = strings.TrimSpace(r.PlayerName)
	if r.PlayerID == "" || r.PlayerName == "" {
		return fmt.Errorf("%w: player_id and player_name are required", ErrInvalidInput)
	}
	return nil
}

// CreateGame allocates a fresh code and stores the game together with its host
// player. Either both rows are committed or neither is.
func (s *GameService) CreateGame(ctx context.Context, req *CreateGameRequest) (*models.Game, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var game models.Game
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Player{}).Where("id = ?", req.HostID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: %s", ErrPlayerExists, req.HostID)
		}

		id, err := uniqueGameID(tx, s.drawCode)
		if err != nil {
			return err
		}

		game = models.Game{
			ID:        id,
			HostID:    req.HostID,
			IsActive:  true,
			GameModes: models.JoinModes(req.GameModes),
		}
		if err := tx.Create(&game).Error; err != nil {
			return fmt.Errorf("create game: %w", err)
		}

		host := models.Player{
			ID:     req.HostID,
			Name:   req.HostName,
			GameID: id,
			IsHost: true,
		}
		if err := tx.Create(&host).Error; err != nil {
			return fmt.Errorf("create host player: %w", err)
		}
		game.Players = []models.Player{host}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("game created",
		zap.String("game_id", game.ID),
		zap.String("host_id", game.HostID),
		zap.Strings("modes", game.Modes()),
	)
	return &game, nil
}

// JoinGame adds a player to an existing game. Player ids are global, so a
// repeat join with a known id returns the stored player untouched. The second
// return value reports whether a row was inserted.
func (s *GameService) JoinGame(ctx context.Context, gameID string, req *JoinGameRequest) (*models.Player, bool, error) {
	if err := req.validate(); err != nil {
		return nil, false, err
	}
	gameID = NormalizeGameID(gameID)

	var player models.Player
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireGame(tx, gameID); err != nil {
			return err
		}

		player = models.Player{
			ID:     req.PlayerID,
			Name:   req.PlayerName,
			GameID: gameID,
			IsHost: false,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&player)
		if res.Error != nil {
			return fmt.Errorf("create player: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			created = true
			return nil
		}

		// id already taken, possibly by a concurrent join
		return tx.First(&player, "id = ?", req.PlayerID).Error
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.cache.Invalidate(ctx, gameID)
		logger.L().Info("player joined",
			zap.String("game_id", gameID),
			zap.String("player_id", player.ID),
		)
	}
	return &player, created, nil
}

// EndGame clears the active flag. Ending an ended game is a no-op that still
// reports true; false means there is no such game.
func (s *GameService) EndGame(ctx context.Context, gameID string) (bool, error) {
	gameID = NormalizeGameID(gameID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.Select("id", "is_active").First(&game, "id = ?", gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGameNotFound
			}
			return err
		}
		if !game.IsActive {
			return nil
		}
		return tx.Model(&models.Game{}).Where("id = ?", gameID).Update("is_active", false).Error
	})
	if errors.Is(err, ErrGameNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.cache.Invalidate(ctx, gameID)
	logger.L().Info("game ended", zap.String("game_id", gameID))
	return true, nil
}

// ListActiveGames returns every active game with its player count, newest first.
func (s *GameService) ListActiveGames(ctx context.Context) ([]GameSummary, error) {
	db := s.db.WithContext(ctx)

	var games []models.Game
	if err := db.Where("is_active = ?", true).Order("created_at DESC").Find(&games).Error; err != nil {
		return nil, err
	}

	summaries := make([]GameSummary, 0, len(games))
	if len(games) == 0 {
		return summaries, nil
	}

	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}

	var counts []struct {
		GameID string
		Total  int64
	}
	if err := db.Model(&models.Player{}).
		Select("game_id, COUNT(*) AS total").
		Where("game_id IN ?", ids).
		Group("game_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	byGame := make(map[string]int64, len(counts))
	for _, c := range counts {
		byGame[c.GameID] = c.Total
	}
	for _, g := range games {
		summaries = append(summaries, GameSummary{
			ID:          g.ID,
			CreatedAt:   g.CreatedAt,
			PlayerCount: byGame[g.ID],
		})
	}
	return summaries, nil
}

// GetGame returns the game and its roster, reading through the Redis cache.
// Concurrent misses for the same game and version share one database load.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*GameDetail, error) {
	gameID = NormalizeGameID(gameID)

	if detail, ok := s.cache.Get(ctx, gameID); ok {
		return detail, nil
	}

	// loads only share a flight while the version is unchanged, so a reader
	// that arrives after a write never receives a snapshot taken before it
	version, cacheable := s.cache.Version(ctx, gameID)
	v, err, _ := s.group.Do(gameID+"@"+version, func() (interface{}, error) {
		detail, err := s.loadGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.cache.SetIfVersion(ctx, detail, version)
		}
		return detail, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GameDetail), nil
}

func (s *GameService) loadGame(ctx context.Context, gameID string) (*GameDetail, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_host DESC, joined_at ASC, id ASC")
		}).
		First(&game, "id = ?", gameID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}

	detail := &GameDetail{
		ID:        game.ID,
		HostID:    game.HostID,
		CreatedAt: game.CreatedAt,
		IsActive:  game.IsActive,
		GameModes: game.Modes(),
		Players:   make([]RosterEntry, 0, len(game.Players)),
	}
	for _, p := range game.Players {
		detail.Players = append(detail.Players, RosterEntry{ID: p.ID, Name: p.Name, IsHost: p.IsHost})
	}
	return detail, nil
}

// GetPlayerByID retrieves a player by their ID.
func (s *GameService) GetPlayerByID(ctx context.Context, playerID string) (*models.Player, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, "id = ?", playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

// requireGame fails with ErrGameNotFound unless a game row with the id exists.
func requireGame(tx *gorm.DB, gameID string) error {
	var count int64
	if err := tx.Model(&models.Game{}).Where("id = ?", gameID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrGameNotFound
	}
	return nil
}
