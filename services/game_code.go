package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"partygame/models"

	"gorm.io/gorm"
)

const (
	GameCodeLength   = 6
	gameCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var alphabetSize = big.NewInt(int64(len(gameCodeAlphabet)))

// RandomGameCode draws a code of GameCodeLength characters from A-Z0-9.
func RandomGameCode() string {
	var b strings.Builder
	b.Grow(GameCodeLength)
	for i := 0; i < GameCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("game code: %v", err))
		}
		b.WriteByte(gameCodeAlphabet[n.Int64()])
	}
	return b.String()
}

// NormalizeGameID upper-cases a code typed by a player.
func NormalizeGameID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// uniqueGameID redraws until no game row carries the code. There is no retry cap.
func uniqueGameID(tx *gorm.DB, draw func() string) (string, error) {
	for {
		code := draw()
		var count int64
		if err := tx.Model(&models.Game{}).Where("id = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check game code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
}
