package repository

import (
	"context"
	"edu_progress_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

// AnalyticsRepository 教师端统计的只读查询，全部按外键分组一次查出，避免逐行子查询
type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

// CompletionEvent 一条完成记录的学生与时间
type CompletionEvent struct {
	UserID      uint
	CompletedAt time.Time
}

func (r *AnalyticsRepository) CountTeacherLessons(ctx context.Context, teacherID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Where("teacher_id = ?", teacherID).
		Count(&total).Error
	return total, err
}

// LessonCompletionRates 教师的每个课时被完成的次数，按创建时间倒序
func (r *AnalyticsRepository) LessonCompletionRates(ctx context.Context, teacherID uint, offset, limit int) ([]model.LessonCompletionRate, error) {
	var rows []model.LessonCompletionRate
	err := r.DB.WithContext(ctx).Table("lessons").
		Select("lessons.id AS lesson_id, lessons.title, lessons.created_at, COUNT(lesson_completions.id) AS completions").
		Joins("LEFT JOIN lesson_completions ON lesson_completions.lesson_id = lessons.id").
		Where("lessons.teacher_id = ? AND lessons.deleted_at IS NULL", teacherID).
		Group("lessons.id, lessons.title, lessons.created_at").
		Order("lessons.created_at DESC").
		Order("lessons.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// CompletionEvents 时间区间 [from, to) 内教师课时上的所有完成记录
func (r *AnalyticsRepository) CompletionEvents(ctx context.Context, teacherID uint, from, to time.Time) ([]CompletionEvent, error) {
	var rows []CompletionEvent
	err := r.DB.WithContext(ctx).Table("lesson_completions").
		Select("lesson_completions.user_id, lesson_completions.completed_at").
		Joins("JOIN lessons ON lessons.id = lesson_completions.lesson_id AND lessons.deleted_at IS NULL").
		Where("lessons.teacher_id = ?", teacherID).
		Where("lesson_completions.completed_at >= ? AND lesson_completions.completed_at < ?", from, to).
		Scan(&rows).Error
	return rows, err
}

func (r *AnalyticsRepository) teacherQuizzes(ctx context.Context, teacherID uint) *gorm.DB {
	return r.DB.WithContext(ctx).Table("quizzes").
		Joins("JOIN lessons ON lessons.id = quizzes.lesson_id AND lessons.deleted_at IS NULL").
		Where("lessons.teacher_id = ? AND quizzes.deleted_at IS NULL", teacherID)
}

func (r *AnalyticsRepository) CountTeacherQuizzes(ctx context.Context, teacherID uint) (int64, error) {
	var total int64
	err := r.teacherQuizzes(ctx, teacherID).Count(&total).Error
	return total, err
}

// QuizPerformance 每个测验的作答次数和平均分，没有作答时平均分为 0
func (r *AnalyticsRepository) QuizPerformance(ctx context.Context, teacherID uint, offset, limit int) ([]model.QuizPerformance, error) {
	var rows []model.QuizPerformance
	err := r.teacherQuizzes(ctx, teacherID).
		Select("quizzes.id AS quiz_id, quizzes.title, quizzes.lesson_id, quizzes.created_at, " +
			"COUNT(quiz_attempts.id) AS attempts, COALESCE(AVG(quiz_attempts.score), 0) AS average_score").
		Joins("LEFT JOIN quiz_attempts ON quiz_attempts.quiz_id = quizzes.id AND quiz_attempts.deleted_at IS NULL").
		Group("quizzes.id, quizzes.title, quizzes.lesson_id, quizzes.created_at").
		Order("quizzes.created_at DESC").
		Order("quizzes.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
