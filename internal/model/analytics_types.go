package model

import "time"

// LessonCompletionRate 课时完成人数
type LessonCompletionRate struct {
	LessonID    uint      `json:"lessonId"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	Completions int64     `json:"completions"`
}

// DropoffBucket 进度落在 [Min, Max) 的学生数，Min == Max 时表示恰好等于该值
type DropoffBucket struct {
	Label    string  `json:"label"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Students int64   `json:"students"`
}

// LessonDropoff 以选课进度近似“停留在该课时时的进度”分布
type LessonDropoff struct {
	LessonID        uint            `json:"lessonId"`
	CourseID        *uint           `json:"courseId"`
	TotalStudents   int64           `json:"totalStudents"`
	AverageProgress float64         `json:"averageProgress"`
	Buckets         []DropoffBucket `json:"buckets"`
}

// WeeklyActiveStudents 某一周内完成过至少一个课时的去重学生数
type WeeklyActiveStudents struct {
	WeekStart      time.Time `json:"weekStart"`
	ActiveStudents int       `json:"activeStudents"`
}

// QuizPerformance HasAttempts 为 false 时 AverageScore 无意义
type QuizPerformance struct {
	QuizID       uint      `json:"quizId"`
	Title        string    `json:"title"`
	LessonID     uint      `json:"lessonId"`
	CreatedAt    time.Time `json:"createdAt"`
	Attempts     int64     `json:"attempts"`
	HasAttempts  bool      `json:"hasAttempts"`
	AverageScore float64   `json:"averageScore"`
}

// AnalyticsSnapshot 导出到对象存储的教师统计快照
type AnalyticsSnapshot struct {
	TeacherID       uint                   `json:"teacherId"`
	GeneratedAt     time.Time              `json:"generatedAt"`
	LessonRates     []LessonCompletionRate `json:"lessonRates"`
	WeeklyActive    []WeeklyActiveStudents `json:"weeklyActive"`
	QuizPerformance []QuizPerformance      `json:"quizPerformance"`
}
