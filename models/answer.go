package models

import "time"

// Answer is a player's yes/no response to one question. The composite unique
// index backs the one-answer-per-pair rule and the upsert in the answer service.
type Answer struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PlayerID   string    `json:"player_id" gorm:"size:50;not null;uniqueIndex:idx_answers_player_question"`
	QuestionID uint      `json:"question_id" gorm:"not null;index;uniqueIndex:idx_answers_player_question"`
	Answer     bool      `json:"answer" gorm:"not null"`
	AnsweredAt time.Time `json:"answered_at" gorm:"autoCreateTime"`
}

// All lists every model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Game{},
		&Player{},
		&Question{},
		&Answer{},
	}
}
