package service

import (
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/repository"
	"edu_progress_backend/internal/testutil"
	"testing"
	"time"

	"gorm.io/gorm"
)

// 2026-03-04 是周三
var baseTime = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	clock      *testutil.Clock
	completion *CompletionService
	learning   *LearningService
	analytics  *AnalyticsService
	storageDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.DB(t)
	clock := testutil.NewClock(baseTime)
	storageDir := t.TempDir()

	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	completionRepo := repository.NewLessonCompletionRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	cfg := &config.Config{
		Storage: config.StorageConfig{Type: "local", LocalPath: storageDir},
		Analytics: config.AnalyticsConfig{
			DefaultWeeks:    8,
			MaxWeeks:        52,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	}

	completion := NewCompletionService(lessonRepo, courseRepo, enrollmentRepo, completionRepo, db)
	completion.Now = clock.Now

	learning := NewLearningService(courseRepo, lessonRepo, enrollmentRepo, completionRepo, quizRepo, completion, db)

	analytics := NewAnalyticsService(analyticsRepo, lessonRepo, enrollmentRepo, NewAnalyticsCache(nil, 0), NewStorageService(cfg), cfg.Analytics, db)
	analytics.Now = clock.Now

	return &fixture{
		db:         db,
		clock:      clock,
		completion: completion,
		learning:   learning,
		analytics:  analytics,
		storageDir: storageDir,
	}
}

func student(id uint) Actor {
	return Actor{UserID: id, Role: model.Student}
}

// courseWithLessons 已发布课程，课时按 order 1..n 创建，创建时间依次递增
func (f *fixture) courseWithLessons(t *testing.T, teacherID uint, slug string, n int) (*model.Course, []*model.Lesson) {
	t.Helper()
	course := testutil.SeedCourse(t, f.db, teacherID, slug)
	lessons := make([]*model.Lesson, 0, n)
	for i := 1; i <= n; i++ {
		created := baseTime.Add(-time.Duration(n-i+1) * time.Hour)
		lessons = append(lessons, testutil.SeedLesson(t, f.db, teacherID, testutil.UintPtr(course.ID), i, model.LessonPublic, created))
	}
	return course, lessons
}

func (f *fixture) enrollment(t *testing.T, userID, courseID uint) *model.Enrollment {
	t.Helper()
	var e model.Enrollment
	if err := f.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error; err != nil {
		t.Fatalf("load enrollment: %v", err)
	}
	return &e
}
