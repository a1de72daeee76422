package repository

import (
	"context"
	"edu_progress_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindForUpdate 在事务内锁住选课行，同一学生同一课程的进度重算串行执行
func (r *EnrollmentRepository) FindForUpdate(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Ensure 重复选课不报错，返回已有记录；created 表示本次是否新建
func (r *EnrollmentRepository) Ensure(ctx context.Context, userID, courseID uint) (*model.Enrollment, bool, error) {
	enrollment := &model.Enrollment{UserID: userID, CourseID: courseID}
	result := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(enrollment)
	if result.Error != nil {
		return nil, false, result.Error
	}

	existing, err := r.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		return nil, false, err
	}
	return existing, result.RowsAffected == 1, nil
}

// UpdateProgress 唯一允许写 progress 的入口，由进度重算调用
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id uint, progress float64, completedAt *time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":     progress,
			"completed_at": completedAt,
		}).Error
}

func (r *EnrollmentRepository) UpdateLastAccessed(ctx context.Context, id, lessonID uint) error {
	return r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("id = ?", id).
		Update("last_accessed_lesson_id", lessonID).Error
}

func (r *EnrollmentRepository) ListUserIDsByCourse(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ProgressByLastAccessed 最近一次停留在该课时的学生当前进度
func (r *EnrollmentRepository) ProgressByLastAccessed(ctx context.Context, courseID, lessonID uint) ([]float64, error) {
	var values []float64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ? AND last_accessed_lesson_id = ?", courseID, lessonID).
		Pluck("progress", &values).Error
	return values, err
}
