package services

import (
	"context"
	"fmt"
	"strings"

	"partygame/logger"
	"partygame/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuestionService struct {
	db *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{db: db}
}

type AddQuestionsRequest struct {
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1"`
}

type CreateQuestionRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type QuestionResponse struct {
	ID         uint   `json:"id"`
	Text       string `json:"text"`
	Category   string `json:"category"`
	OrderIndex int    `json:"order_index"`
}

func (r *AddQuestionsRequest) validate() error {
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: no questions provided", ErrInvalidInput)
	}
	for i := range r.Questions {
		q := &r.Questions[i]
		q.Text = strings.TrimSpace(q.Text)
		q.Category = strings.TrimSpace(q.Category)
		if q.Text == "" || q.Category == "" {
			return fmt.Errorf("%w: question %d needs text and category", ErrInvalidInput, i)
		}
	}
	return nil
}

// AddQuestions stores the batch for a game. order_index is each question's
// position in this batch, so a second batch starts again at zero.
func (s *QuestionService) AddQuestions(ctx context.Context, gameID string, req *AddQuestionsRequest) ([]models.Question, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	gameID = NormalizeGameID(gameID)

	// Start transaction
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := requireGame(tx, gameID); err != nil {
		tx.Rollback()
		return nil, err
	}

	questions := make([]models.Question, len(req.Questions))
	for idx, q := range req.Questions {
		questions[idx] = models.Question{
			GameID:     gameID,
			Text:       q.Text,
			Category:   q.Category,
			OrderIndex: idx,
		}
	}

	if err := tx.Create(&questions).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("create questions: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.L().Info("questions added", zap.String("game_id", gameID), zap.Int("count", len(questions)))
	return questions, nil
}

// ListQuestions returns a game's questions in display order.
func (s *QuestionService) ListQuestions(ctx context.Context, gameID string) ([]QuestionResponse, error) {
	gameID = NormalizeGameID(gameID)
	db := s.db.WithContext(ctx)

	if err := requireGame(db, gameID); err != nil {
		return nil, err
	}

	var questions []models.Question
	if err := db.Where("game_id = ?", gameID).
		Order("order_index ASC, id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	out := make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, QuestionResponse{
			ID:         q.ID,
			Text:       q.Text,
			Category:   q.Category,
			OrderIndex: q.OrderIndex,
		})
	}
	return out, nil
}
