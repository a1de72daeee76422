package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/repository"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"edu_progress_backend/pkg/tracing"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompletionService 课时完成记录的写入与选课进度重算。
// Enrollment.Progress 只能经由这里写入
type CompletionService struct {
	LessonRepo     *repository.LessonRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CompletionRepo *repository.LessonCompletionRepository
	DB             *gorm.DB
	Now            func() time.Time
}

func NewCompletionService(
	lessonRepo *repository.LessonRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	completionRepo *repository.LessonCompletionRepository,
	db *gorm.DB,
) *CompletionService {
	return &CompletionService{
		LessonRepo:     lessonRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		CompletionRepo: completionRepo,
		DB:             db,
		Now:            time.Now,
	}
}

// ProgressResult 重算后的选课进度
type ProgressResult struct {
	CourseID       uint       `json:"courseId"`
	Progress       float64    `json:"progress"`
	CompletedAt    *time.Time `json:"completedAt"`
	CompletedCount int64      `json:"completedCount"`
	TotalCount     int64      `json:"totalCount"`
}

// CompletionOutcome RecordCompletion 的结果，独立课时没有 Progress
type CompletionOutcome struct {
	Lesson     *model.Lesson
	Completion *model.LessonCompletion
	Progress   *ProgressResult
}

// CalculateProgress 完成数 / 课时总数 * 100，限定在 [0, 100]
func CalculateProgress(completedCount, totalCount int64) float64 {
	if totalCount <= 0 {
		return 0
	}
	progress := float64(completedCount) / float64(totalCount) * 100
	return math.Max(0, math.Min(100, progress))
}

// RecordCompletion 标记课时完成。重复调用只刷新完成时间；
// 草稿课时视为不存在（包括作者本人），课程内的课时要求已选课，并在同一事务里重算进度
func (s *CompletionService) RecordCompletion(ctx context.Context, studentID, lessonID uint) (*CompletionOutcome, error) {
	ctx, span := tracing.Tracer.Start(ctx, "CompletionService.RecordCompletion", trace.WithAttributes(
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("lesson.id", int64(lessonID)),
	))
	defer span.End()

	lesson, err := s.LessonRepo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	if lesson.Status == model.LessonDraft {
		return nil, util.ErrLessonNotFound
	}

	now := s.Now()

	if lesson.IsIndependent() {
		completion, err := s.CompletionRepo.Upsert(ctx, studentID, lessonID, now)
		if err != nil {
			return nil, err
		}
		monitoring.LessonCompletions.WithLabelValues("independent").Inc()
		return &CompletionOutcome{Lesson: lesson, Completion: completion}, nil
	}

	courseID := *lesson.CourseID
	outcome := &CompletionOutcome{Lesson: lesson}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁选课行，再写完成记录、再计数，保证计数读到的是其它并发完成提交后的状态
		enrollment, err := s.EnrollmentRepo.WithTx(tx).FindForUpdate(ctx, studentID, courseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrNotEnrolled
			}
			return err
		}

		completion, err := s.CompletionRepo.WithTx(tx).Upsert(ctx, studentID, lessonID, now)
		if err != nil {
			return err
		}
		outcome.Completion = completion

		progress, err := s.recomputeLocked(ctx, tx, enrollment)
		if err != nil {
			return err
		}
		outcome.Progress = progress
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.LessonCompletions.WithLabelValues("course").Inc()
	return outcome, nil
}

// Recompute 从完成记录重新推导进度并写回选课记录，可任意重复执行
func (s *CompletionService) Recompute(ctx context.Context, studentID, courseID uint) (*ProgressResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "CompletionService.Recompute", trace.WithAttributes(
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("course.id", int64(courseID)),
	))
	defer span.End()

	var result *ProgressResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.EnrollmentRepo.WithTx(tx).FindForUpdate(ctx, studentID, courseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrNotEnrolled
			}
			return err
		}

		result, err = s.recomputeLocked(ctx, tx, enrollment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CompletionService) recomputeLocked(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) (*ProgressResult, error) {
	courseID := enrollment.CourseID

	if _, err := s.CourseRepo.WithTx(tx).FindByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			monitoring.ProgressRecomputes.WithLabelValues("missing_course").Inc()
			logger.Log.Error("Enrollment references a missing course",
				zap.Uint("enrollmentId", enrollment.ID),
				zap.Uint("courseId", courseID),
			)
			return nil, fmt.Errorf("%w: course %d of enrollment %d does not exist", util.ErrInternalConsistency, courseID, enrollment.ID)
		}
		return nil, err
	}

	totalCount, err := s.LessonRepo.WithTx(tx).CountByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completedCount, err := s.CompletionRepo.WithTx(tx).CountCompletedInCourse(ctx, enrollment.UserID, courseID)
	if err != nil {
		return nil, err
	}

	if totalCount == 0 {
		logger.Log.Warn("Recomputing progress for a course without lessons",
			zap.Uint("courseId", courseID),
			zap.Uint("userId", enrollment.UserID),
		)
	}

	progress := CalculateProgress(completedCount, totalCount)

	var completedAt *time.Time
	if progress >= 100 {
		completedAt = enrollment.CompletedAt
		if completedAt == nil {
			now := s.Now()
			completedAt = &now
		}
	}

	if err := s.EnrollmentRepo.WithTx(tx).UpdateProgress(ctx, enrollment.ID, progress, completedAt); err != nil {
		return nil, err
	}

	outcome := "in_progress"
	if completedAt != nil {
		outcome = "completed"
	}
	monitoring.ProgressRecomputes.WithLabelValues(outcome).Inc()

	return &ProgressResult{
		CourseID:       courseID,
		Progress:       progress,
		CompletedAt:    completedAt,
		CompletedCount: completedCount,
		TotalCount:     totalCount,
	}, nil
}

// ReconcileCourse 重算课程下所有选课的进度，课时发布或删除后调用
func (s *CompletionService) ReconcileCourse(ctx context.Context, courseID uint) (int, error) {
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, util.ErrCourseNotFound
		}
		return 0, err
	}

	userIDs, err := s.EnrollmentRepo.ListUserIDsByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}

	for _, userID := range userIDs {
		if _, err := s.Recompute(ctx, userID, courseID); err != nil {
			return 0, fmt.Errorf("recompute user %d in course %d: %w", userID, courseID, err)
		}
	}
	return len(userIDs), nil
}

// ReconcileAll 定时任务入口，单个课程失败不影响其它课程
func (s *CompletionService) ReconcileAll(ctx context.Context) (int, error) {
	courseIDs, err := s.CourseRepo.ListIDsWithEnrollments(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, courseID := range courseIDs {
		n, err := s.ReconcileCourse(ctx, courseID)
		if err != nil {
			logger.Log.Error("Failed to reconcile course progress", zap.Uint("courseId", courseID), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}
