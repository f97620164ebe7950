package models

import (
	"strings"
	"time"
)

// GameModeSeparator joins the ordered mode list into the game_modes column.
const GameModeSeparator = ","

type Game struct {
	ID        string    `json:"id" gorm:"primaryKey;size:10"`
	HostID    string    `json:"host_id" gorm:"size:50;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true;index"`
	GameModes string    `json:"-" gorm:"size:255;not null"`

	// Relationships
	Players   []Player   `json:"players,omitempty" gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

// Modes splits the stored game_modes column back into its ordered list.
func (g *Game) Modes() []string {
	if g.GameModes == "" {
		return []string{}
	}
	return strings.Split(g.GameModes, GameModeSeparator)
}

// JoinModes is the inverse of Modes.
func JoinModes(modes []string) string {
	return strings.Join(modes, GameModeSeparator)
}
