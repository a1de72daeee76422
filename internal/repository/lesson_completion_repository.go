package repository

import (
	"context"
	"edu_progress_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LessonCompletionRepository struct {
	DB *gorm.DB
}

func NewLessonCompletionRepository(db *gorm.DB) *LessonCompletionRepository {
	return &LessonCompletionRepository{DB: db}
}

func (r *LessonCompletionRepository) WithTx(tx *gorm.DB) *LessonCompletionRepository {
	return &LessonCompletionRepository{DB: tx}
}

// Upsert (user_id, lesson_id) 已存在时只刷新完成时间，多次调用只保留一条记录
func (r *LessonCompletionRepository) Upsert(ctx context.Context, userID, lessonID uint, completedAt time.Time) (*model.LessonCompletion, error) {
	completion := &model.LessonCompletion{
		UserID:      userID,
		LessonID:    lessonID,
		CompletedAt: completedAt,
	}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed_at", "updated_at"}),
		}).
		Create(completion).Error
	if err != nil {
		return nil, err
	}

	// 冲突更新时驱动返回的自增 ID 不可靠，重新读取
	return r.Find(ctx, userID, lessonID)
}

// Find 不存在时返回 nil, nil
func (r *LessonCompletionRepository) Find(ctx context.Context, userID, lessonID uint) (*model.LessonCompletion, error) {
	var completion model.LessonCompletion
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Limit(1).
		Find(&completion).Error
	if err != nil {
		return nil, err
	}
	if completion.ID == 0 {
		return nil, nil
	}
	return &completion, nil
}

// CompletedAtByLesson 获取用户在一组课时上的完成时间
func (r *LessonCompletionRepository) CompletedAtByLesson(ctx context.Context, userID uint, lessonIDs []uint) (map[uint]time.Time, error) {
	result := make(map[uint]time.Time)
	if len(lessonIDs) == 0 {
		return result, nil
	}

	var completions []model.LessonCompletion
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lesson_id IN ?", userID, lessonIDs).
		Find(&completions).Error
	if err != nil {
		return nil, err
	}

	for _, c := range completions {
		result[c.LessonID] = c.CompletedAt
	}
	return result, nil
}

// CountCompletedInCourse 统计课程内已完成的不同课时数，已删除或草稿课时的完成记录不计入
func (r *LessonCompletionRepository) CountCompletedInCourse(ctx context.Context, userID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.LessonCompletion{}).
		Joins("JOIN lessons ON lessons.id = lesson_completions.lesson_id").
		Where("lesson_completions.user_id = ?", userID).
		Where("lessons.course_id = ? AND lessons.status <> ? AND lessons.deleted_at IS NULL", courseID, model.LessonDraft).
		Distinct("lesson_completions.lesson_id").
		Count(&count).Error
	return count, err
}
