package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"partygame/config"
	"partygame/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps the memory database alive and serialises writers.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := config.SQLiteDSN("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...), "migrate test database")

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateTestGame inserts an active game with its host player.
func CreateTestGame(t *testing.T, db *gorm.DB, gameID, hostID string) *models.Game {
	t.Helper()

	game := &models.Game{
		ID:        gameID,
		HostID:    hostID,
		IsActive:  true,
		GameModes: models.JoinModes([]string{"classic"}),
	}
	require.NoError(t, db.Create(game).Error, "create test game")
	require.NoError(t, db.Create(&models.Player{
		ID:     hostID,
		Name:   "Host " + hostID,
		GameID: gameID,
		IsHost: true,
	}).Error, "create test host")
	return game
}

// AddTestPlayer inserts a non-host player into a game.
func AddTestPlayer(t *testing.T, db *gorm.DB, gameID, playerID, name string) *models.Player {
	t.Helper()

	player := &models.Player{ID: playerID, Name: name, GameID: gameID}
	require.NoError(t, db.Create(player).Error, "create test player")
	return player
}

// AddTestQuestion inserts a question and returns it with its assigned id.
func AddTestQuestion(t *testing.T, db *gorm.DB, gameID, text string, order int) *models.Question {
	t.Helper()

	q := &models.Question{GameID: gameID, Text: text, Category: "general", OrderIndex: order}
	require.NoError(t, db.Create(q).Error, "create test question")
	return q
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, bytes.NewBufferString(b))
		req.Header.Set("Content-Type", "application/json")
	default:
		jsonBody, _ := json.Marshal(b)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided value
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
