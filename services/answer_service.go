package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"partygame/logger"
	"partygame/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerService struct {
	db *gorm.DB
}

func NewAnswerService(db *gorm.DB) *AnswerService {
	return &AnswerService{db: db}
}

// MaxQuestionID is the largest id a bigint question key can hold.
const MaxQuestionID = math.MaxInt64

// SubmitAnswerRequest uses pointers so a false answer or a zero question id
// can be told apart from a missing field.
type SubmitAnswerRequest struct {
	PlayerID   *string `json:"player_id" binding:"required"`
	QuestionID *uint   `json:"question_id" binding:"required"`
	Answer     *bool   `json:"answer" binding:"required"`
}

// RecordedAnswer is the stored answer plus the game it belongs to.
type RecordedAnswer struct {
	models.Answer
	GameID string `json:"-"`
}

// AnswerView is one row of a question's answer listing.
type AnswerView struct {
	ID         uint      `json:"id"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Answer     bool      `json:"answer"`
	AnsweredAt time.Time `json:"answered_at"`
}

type AnswerSummary struct {
	QuestionID uint  `json:"question_id"`
	Yes        int64 `json:"yes"`
	No         int64 `json:"no"`
	Total      int64 `json:"total"`
}

func (r *SubmitAnswerRequest) validate() error {
	if r.PlayerID == nil || r.QuestionID == nil || r.Answer == nil {
		return fmt.Errorf("%w: player_id, question_id and answer are required", ErrInvalidInput)
	}
	if uint64(*r.QuestionID) > MaxQuestionID {
		return fmt.Errorf("%w: question_id out of range", ErrInvalidInput)
	}
	return nil
}

// RecordAnswer upserts the answer for a (player, question) pair. A resubmission
// overwrites the value and keeps the original answered_at. The unique index on
// the pair makes concurrent first submissions collapse into one row.
func (s *AnswerService) RecordAnswer(ctx context.Context, req *SubmitAnswerRequest) (*RecordedAnswer, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	playerID, questionID, value := *req.PlayerID, *req.QuestionID, *req.Answer

	var recorded RecordedAnswer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var player models.Player
		if err := tx.Select("id").First(&player, "id = ?", playerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlayerNotFound
			}
			return err
		}

		var question models.Question
		if err := tx.Select("id", "game_id").First(&question, "id = ?", questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			return err
		}

		row := models.Answer{
			PlayerID:   playerID,
			QuestionID: questionID,
			Answer:     value,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}

		recorded.GameID = question.GameID
		return tx.Where("player_id = ? AND question_id = ?", playerID, questionID).
			First(&recorded.Answer).Error
	})
	if err != nil {
		return nil, err
	}

	logger.L().Debug("answer recorded",
		zap.String("player_id", playerID),
		zap.Uint("question_id", questionID),
		zap.Bool("answer", value),
	)
	return &recorded, nil
}

// ListAnswers returns a question's answers with the answering player's name.
// An unknown question or a storage failure yields an empty list, never an error.
func (s *AnswerService) ListAnswers(ctx context.Context, questionID uint) []AnswerView {
	views := []AnswerView{}
	err := s.db.WithContext(ctx).
		Table("answers").
		Select("answers.id, answers.player_id, players.name AS player_name, answers.answer, answers.answered_at").
		Joins("JOIN players ON players.id = answers.player_id").
		Where("answers.question_id = ?", questionID).
		Order("answers.answered_at ASC, answers.id ASC").
		Scan(&views).Error
	if err != nil {
		logger.L().Error("list answers failed", zap.Uint("question_id", questionID), zap.Error(err))
		return []AnswerView{}
	}
	return views
}

// Summarize counts yes and no answers for a question.
func (s *AnswerService) Summarize(ctx context.Context, questionID uint) (*AnswerSummary, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Question{}).Where("id = ?", questionID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrQuestionNotFound
	}

	var groups []struct {
		Answer bool
		Total  int64
	}
	if err := db.Model(&models.Answer{}).
		Select("answer, COUNT(*) AS total").
		Where("question_id = ?", questionID).
		Group("answer").
		Scan(&groups).Error; err != nil {
		return nil, err
	}

	summary := &AnswerSummary{QuestionID: questionID}
	for _, g := range groups {
		if g.Answer {
			summary.Yes = g.Total
		} else {
			summary.No = g.Total
		}
		summary.Total += g.Total
	}
	return summary, nil
}
