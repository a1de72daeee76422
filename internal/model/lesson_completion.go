package model

import "time"

// LessonCompletion 记录学生完成某个课时，(user_id, lesson_id) 唯一。
// 不做软删除，否则唯一索引会挡住重新完成时的 upsert
// swagger:model LessonCompletion
type LessonCompletion struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_user_lesson;not null" json:"userId"`
	LessonID    uint      `gorm:"uniqueIndex:idx_user_lesson;index;not null" json:"lessonId"`
	CompletedAt time.Time `gorm:"index;not null" json:"completedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}
