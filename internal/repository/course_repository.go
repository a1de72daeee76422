package repository

import (
	"context"
	"edu_progress_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// ListIDsWithEnrollments 返回至少有一个选课记录的课程
func (r *CourseRepository) ListIDsWithEnrollments(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Distinct("course_id").
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}
