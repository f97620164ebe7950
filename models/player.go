package models

import "time"

type Player struct {
	ID       string    `json:"id" gorm:"primaryKey;size:50"`
	Name     string    `json:"name" gorm:"size:50;not null"`
	GameID   string    `json:"game_id" gorm:"size:10;not null;index"`
	IsHost   bool      `json:"is_host" gorm:"not null;default:false"`
	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`

	// Relationships
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE"`
}
