package repository

import (
	"context"
	"edu_progress_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) WithTx(tx *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: tx}
}

func (r *LessonRepository) FindByID(ctx context.Context, id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := r.DB.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

// courseLessons 课程内计入进度的课时：未删除且非草稿
func (r *LessonRepository) courseLessons(ctx context.Context, courseID uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Where("course_id = ? AND status <> ?", courseID, model.LessonDraft)
}

// ListByCourse 按 order 升序，order 相同按创建时间、ID 排，保证顺序稳定
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.courseLessons(ctx, courseID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.courseLessons(ctx, courseID).Count(&count).Error
	return count, err
}
