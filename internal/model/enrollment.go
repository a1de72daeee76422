package model

import "time"

// Enrollment 学生与课程的选课关系，Progress 是完成记录推导值的缓存。
// 选课记录不会被删除，所以不带软删除字段，唯一索引不会撞上已删除的行
// swagger:model Enrollment
type Enrollment struct {
	ID                   uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	UserID               uint       `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID             uint       `gorm:"uniqueIndex:idx_enrollment_user_course;index;not null" json:"courseId"`
	Progress             float64    `gorm:"default:0" json:"progress"`
	CompletedAt          *time.Time `json:"completedAt"`
	LastAccessedLessonID *uint      `json:"lastAccessedLessonId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
