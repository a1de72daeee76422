package testutil

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/pkg/database"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 每个测试一个独立的内存库。单连接，事务内必须使用 tx 句柄
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(database.Models()...); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Clock 固定时间，测试可手动推进
type Clock struct {
	T time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{T: t}
}

func (c *Clock) Now() time.Time {
	return c.T
}

func (c *Clock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}

func UintPtr(v uint) *uint {
	return &v
}

func SeedCourse(tb testing.TB, db *gorm.DB, teacherID uint, slug string) *model.Course {
	tb.Helper()
	c := &model.Course{
		TeacherID: teacherID,
		Title:     "course " + slug,
		Slug:      slug,
		Status:    model.CoursePublished,
	}
	if err := db.WithContext(context.Background()).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

// SeedLesson courseID 为 nil 时创建独立课时；createdAt 为零值时使用当前时间
func SeedLesson(tb testing.TB, db *gorm.DB, teacherID uint, courseID *uint, order int, status model.LessonStatus, createdAt time.Time) *model.Lesson {
	tb.Helper()
	l := &model.Lesson{
		TeacherID: teacherID,
		CourseID:  courseID,
		Title:     fmt.Sprintf("lesson %d", order),
		Order:     order,
		Status:    status,
	}
	l.CreatedAt = createdAt
	if err := db.WithContext(context.Background()).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

func SeedEnrollment(tb testing.TB, db *gorm.DB, userID, courseID uint) *model.Enrollment {
	tb.Helper()
	e := &model.Enrollment{UserID: userID, CourseID: courseID}
	if err := db.WithContext(context.Background()).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func SeedCompletion(tb testing.TB, db *gorm.DB, userID, lessonID uint, completedAt time.Time) *model.LessonCompletion {
	tb.Helper()
	c := &model.LessonCompletion{UserID: userID, LessonID: lessonID, CompletedAt: completedAt}
	if err := db.WithContext(context.Background()).Create(c).Error; err != nil {
		tb.Fatalf("seed completion: %v", err)
	}
	return c
}

// SeedQuiz 每道题的正确答案都是选项 0
func SeedQuiz(tb testing.TB, db *gorm.DB, lessonID uint, questions int) *model.Quiz {
	tb.Helper()
	items := make([]model.QuizQuestion, 0, questions)
	for i := 1; i <= questions; i++ {
		items = append(items, model.QuizQuestion{
			ID:      uint(i),
			Prompt:  fmt.Sprintf("question %d", i),
			Options: []string{"right", "wrong"},
			Answer:  0,
		})
	}
	q := &model.Quiz{
		LessonID:  lessonID,
		Title:     fmt.Sprintf("quiz for lesson %d", lessonID),
		Questions: datatypes.NewJSONSlice(items),
	}
	if err := db.WithContext(context.Background()).Create(q).Error; err != nil {
		tb.Fatalf("seed quiz: %v", err)
	}
	return q
}

func SeedAttempt(tb testing.TB, db *gorm.DB, quizID, userID uint, score float64) *model.QuizAttempt {
	tb.Helper()
	a := &model.QuizAttempt{QuizID: quizID, UserID: userID, Score: score, Answers: datatypes.JSONMap{}}
	if err := db.WithContext(context.Background()).Create(a).Error; err != nil {
		tb.Fatalf("seed attempt: %v", err)
	}
	return a
}
