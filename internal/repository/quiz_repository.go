package repository

import (
	"context"
	"edu_progress_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}
