package model

type LessonStatus string

const (
	LessonDraft   LessonStatus = "draft"
	LessonPrivate LessonStatus = "private"
	LessonPublic  LessonStatus = "public"
)

// Lesson CourseID 为空表示独立课时，Order 仅在所属课程内有意义
// swagger:model Lesson
type Lesson struct {
	BaseModel
	TeacherID uint         `gorm:"index;not null" json:"teacherId"`
	CourseID  *uint        `gorm:"index" json:"courseId"`
	Title     string       `gorm:"size:255;not null" json:"title"`
	Order     int          `gorm:"default:0" json:"order"`
	Status    LessonStatus `gorm:"size:20;default:'draft'" json:"status"`
}

func (Lesson) TableName() string {
	return "lessons"
}

func (l *Lesson) IsIndependent() bool {
	return l.CourseID == nil
}

func (l *Lesson) IsOwnedBy(userID uint) bool {
	return l.TeacherID == userID
}
