package models

type Question struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	GameID     string `json:"game_id" gorm:"size:10;not null;index"`
	Text       string `json:"text" gorm:"type:text;not null"`
	Category   string `json:"category" gorm:"size:50;not null"`
	OrderIndex int    `json:"order_index" gorm:"not null"`

	// Relationships
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}
