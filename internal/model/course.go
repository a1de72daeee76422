package model

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
)

// swagger:model Course
type Course struct {
	BaseModel
	TeacherID uint         `gorm:"index;not null" json:"teacherId"`
	Title     string       `gorm:"size:255;not null" json:"title"`
	Slug      string       `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Status    CourseStatus `gorm:"size:20;default:'draft'" json:"status"`
}

func (Course) TableName() string {
	return "courses"
}
