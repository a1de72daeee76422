package model

import "gorm.io/datatypes"

type QuizQuestion struct {
	ID      uint     `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID  uint                              `gorm:"index;not null" json:"lessonId"`
	Title     string                            `gorm:"size:255;not null" json:"title"`
	Questions datatypes.JSONSlice[QuizQuestion] `json:"questions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizAttempt Score 为 0-100 的百分制
// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	QuizID  uint              `gorm:"index;not null" json:"quizId"`
	UserID  uint              `gorm:"index;not null" json:"userId"`
	Score   float64           `gorm:"not null" json:"score"`
	Answers datatypes.JSONMap `json:"answers"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
