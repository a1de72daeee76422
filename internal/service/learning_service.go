package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/repository"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"errors"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor 由认证中间件从 JWT 中解析出的调用者
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

type LearningService struct {
	CourseRepo     *repository.CourseRepository
	LessonRepo     *repository.LessonRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CompletionRepo *repository.LessonCompletionRepository
	QuizRepo       *repository.QuizRepository
	Completion     *CompletionService
	DB             *gorm.DB
}

func NewLearningService(
	courseRepo *repository.CourseRepository,
	lessonRepo *repository.LessonRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	completionRepo *repository.LessonCompletionRepository,
	quizRepo *repository.QuizRepository,
	completion *CompletionService,
	db *gorm.DB,
) *LearningService {
	return &LearningService{
		CourseRepo:     courseRepo,
		LessonRepo:     lessonRepo,
		EnrollmentRepo: enrollmentRepo,
		CompletionRepo: completionRepo,
		QuizRepo:       quizRepo,
		Completion:     completion,
		DB:             db,
	}
}

type EnrollResult struct {
	Enrollment *model.Enrollment `json:"enrollment"`
	Created    bool              `json:"created"`
}

type CompleteLessonResult struct {
	LessonID    uint         `json:"lessonId"`
	Completed   bool         `json:"completed"`
	CompletedAt time.Time    `json:"completedAt"`
	Progress    *float64     `json:"progress,omitempty"`
	NextLesson  *LessonBrief `json:"nextLesson"`
}

type LessonNavigation struct {
	Previous *LessonBrief `json:"previous"`
	Next     *LessonBrief `json:"next"`
}

type LessonView struct {
	Lesson      *model.Lesson    `json:"lesson"`
	IsCompleted bool             `json:"isCompleted"`
	CompletedAt *time.Time       `json:"completedAt"`
	Navigation  LessonNavigation `json:"navigation"`
}

type LessonProgress struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Order       int        `json:"order"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type CourseProgress struct {
	CourseID              uint             `json:"courseId"`
	Progress              float64          `json:"progress"`
	CompletedLessonsCount int              `json:"completedLessonsCount"`
	TotalLessons          int              `json:"totalLessons"`
	LastAccessedLessonID  *uint            `json:"lastAccessedLessonId"`
	CompletedAt           *time.Time       `json:"completedAt"`
	Lessons               []LessonProgress `json:"lessons"`
}

type ResumeResult struct {
	CourseID   uint         `json:"courseId"`
	CourseSlug string       `json:"courseSlug"`
	Lesson     *LessonBrief `json:"lesson"`
	Progress   float64      `json:"progress"`
}

type QuizSubmission struct {
	Answers map[uint]int `json:"answers" binding:"required"` // questionID -> 选项下标
}

type QuizResult struct {
	AttemptID uint    `json:"attemptId"`
	Score     float64 `json:"score"`
	Total     int     `json:"total"`
	Correct   int     `json:"correct"`
	Wrong     int     `json:"wrong"`
}

// Enroll 重复选课返回已有记录
func (s *LearningService) Enroll(ctx context.Context, actor Actor, courseID uint) (*EnrollResult, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != model.CoursePublished && course.TeacherID != actor.UserID && !actor.IsAdmin() {
		return nil, util.ErrCourseNotFound
	}

	enrollment, created, err := s.EnrollmentRepo.Ensure(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Log.Info("Student enrolled", zap.Uint("userId", actor.UserID), zap.Uint("courseId", courseID))
	}
	return &EnrollResult{Enrollment: enrollment, Created: created}, nil
}

// CompleteLesson 记录完成并返回下一课
func (s *LearningService) CompleteLesson(ctx context.Context, actor Actor, lessonID uint) (*CompleteLessonResult, error) {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.checkLessonAccess(ctx, actor, lesson); err != nil {
		return nil, err
	}

	outcome, err := s.Completion.RecordCompletion(ctx, actor.UserID, lessonID)
	if err != nil {
		return nil, err
	}

	result := &CompleteLessonResult{
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: outcome.Completion.CompletedAt,
	}
	if outcome.Progress != nil {
		progress := outcome.Progress.Progress
		result.Progress = &progress
	}

	ordered, err := s.orderedLessons(ctx, lesson)
	if err != nil {
		return nil, err
	}
	result.NextLesson = briefOf(ResolveSiblings(lessonID, ordered).Next)
	return result, nil
}

// ViewLesson 返回课时、完成状态与上下课导航；已选课的学生同时刷新续学提示
func (s *LearningService) ViewLesson(ctx context.Context, actor Actor, lessonID uint) (*LessonView, error) {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.checkLessonAccess(ctx, actor, lesson)
	if err != nil {
		return nil, err
	}

	completion, err := s.CompletionRepo.Find(ctx, actor.UserID, lessonID)
	if err != nil {
		return nil, err
	}

	ordered, err := s.orderedLessons(ctx, lesson)
	if err != nil {
		return nil, err
	}
	siblings := ResolveSiblings(lessonID, ordered)

	if enrollment != nil && lesson.Status != model.LessonDraft {
		// 续学提示只是缓存，写失败不影响查看
		if err := s.EnrollmentRepo.UpdateLastAccessed(ctx, enrollment.ID, lessonID); err != nil {
			logger.Log.Warn("Failed to update last accessed lesson",
				zap.Uint("enrollmentId", enrollment.ID),
				zap.Uint("lessonId", lessonID),
				zap.Error(err),
			)
		}
	}

	view := &LessonView{
		Lesson: lesson,
		Navigation: LessonNavigation{
			Previous: briefOf(siblings.Previous),
			Next:     briefOf(siblings.Next),
		},
	}
	if completion != nil {
		completedAt := completion.CompletedAt
		view.IsCompleted = true
		view.CompletedAt = &completedAt
	}
	return view, nil
}

// GetCourseProgress 返回选课进度以及每个课时的完成情况
func (s *LearningService) GetCourseProgress(ctx context.Context, actor Actor, courseID uint) (*CourseProgress, error) {
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}
	enrollment, err := s.findEnrollment(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}

	// 课时可能在上次重算之后发布或删除，先重算再读
	current, err := s.Completion.Recompute(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}

	lessons, completedAt, err := s.courseCompletionState(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}

	progress := &CourseProgress{
		CourseID:             courseID,
		Progress:             current.Progress,
		TotalLessons:         len(lessons),
		LastAccessedLessonID: enrollment.LastAccessedLessonID,
		CompletedAt:          current.CompletedAt,
		Lessons:              make([]LessonProgress, 0, len(lessons)),
	}
	for _, lesson := range lessons {
		item := LessonProgress{ID: lesson.ID, Title: lesson.Title, Order: lesson.Order}
		if t, ok := completedAt[lesson.ID]; ok {
			item.Completed = true
			item.CompletedAt = &t
			progress.CompletedLessonsCount++
		}
		progress.Lessons = append(progress.Lessons, item)
	}
	return progress, nil
}

// ResumeCourse 计算续学课时
func (s *LearningService) ResumeCourse(ctx context.Context, actor Actor, courseID uint) (*ResumeResult, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.findEnrollment(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}

	current, err := s.Completion.Recompute(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}

	lessons, completedAt, err := s.courseCompletionState(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	completed := make(map[uint]bool, len(completedAt))
	for id := range completedAt {
		completed[id] = true
	}

	return &ResumeResult{
		CourseID:   courseID,
		CourseSlug: course.Slug,
		Lesson:     briefOf(ResolveResumePoint(enrollment, lessons, completed)),
		Progress:   current.Progress,
	}, nil
}

// SubmitQuiz 判分并保存一次作答，分数为百分制
func (s *LearningService) SubmitQuiz(ctx context.Context, actor Actor, quizID uint, submission QuizSubmission) (*QuizResult, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	lesson, err := s.findLesson(ctx, quiz.LessonID)
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if _, err := s.checkLessonAccess(ctx, actor, lesson); err != nil {
		return nil, err
	}

	answerKey := make(map[uint]int, len(quiz.Questions))
	for _, question := range quiz.Questions {
		answerKey[question.ID] = question.Answer
	}

	correct := 0
	answers := make(map[string]interface{}, len(submission.Answers))
	for questionID, answer := range submission.Answers {
		expected, ok := answerKey[questionID]
		if !ok {
			return nil, util.ErrInvalidQuizAnswers
		}
		if expected == answer {
			correct++
		}
		answers[strconv.FormatUint(uint64(questionID), 10)] = answer
	}

	total := len(quiz.Questions)
	score := 0.0
	if total > 0 {
		score = math.Round(float64(correct)/float64(total)*10000) / 100
	}

	attempt := &model.QuizAttempt{
		QuizID:  quizID,
		UserID:  actor.UserID,
		Score:   score,
		Answers: answers,
	}
	if err := s.QuizRepo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	return &QuizResult{
		AttemptID: attempt.ID,
		Score:     score,
		Total:     total,
		Correct:   correct,
		Wrong:     total - correct,
	}, nil
}

// checkLessonAccess 草稿只对作者和管理员可见；私有课时要求选课（独立私有课时仅作者可见）。
// 返回调用者在课时所属课程的选课记录，可能为 nil
func (s *LearningService) checkLessonAccess(ctx context.Context, actor Actor, lesson *model.Lesson) (*model.Enrollment, error) {
	privileged := actor.IsAdmin() || lesson.IsOwnedBy(actor.UserID)

	var enrollment *model.Enrollment
	if !lesson.IsIndependent() {
		found, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, actor.UserID, *lesson.CourseID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		enrollment = found
	}

	if privileged {
		return enrollment, nil
	}

	switch lesson.Status {
	case model.LessonPublic:
		return enrollment, nil
	case model.LessonPrivate:
		if lesson.IsIndependent() {
			return nil, util.ErrLessonNotFound
		}
		if enrollment == nil {
			return nil, util.ErrNotEnrolled
		}
		return enrollment, nil
	default:
		return nil, util.ErrLessonNotFound
	}
}

// orderedLessons 课时所在课程的有序课时列表，独立课时返回空
func (s *LearningService) orderedLessons(ctx context.Context, lesson *model.Lesson) ([]model.Lesson, error) {
	if lesson.IsIndependent() {
		return nil, nil
	}
	lessons, err := s.LessonRepo.ListByCourse(ctx, *lesson.CourseID)
	if err != nil {
		return nil, err
	}
	SortLessons(lessons)
	return lessons, nil
}

func (s *LearningService) courseCompletionState(ctx context.Context, userID, courseID uint) ([]model.Lesson, map[uint]time.Time, error) {
	lessons, err := s.LessonRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	SortLessons(lessons)

	ids := make([]uint, 0, len(lessons))
	for _, lesson := range lessons {
		ids = append(ids, lesson.ID)
	}
	completedAt, err := s.CompletionRepo.CompletedAtByLesson(ctx, userID, ids)
	if err != nil {
		return nil, nil, err
	}
	return lessons, completedAt, nil
}

func (s *LearningService) findLesson(ctx context.Context, lessonID uint) (*model.Lesson, error) {
	lesson, err := s.LessonRepo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	return lesson, nil
}

func (s *LearningService) findCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (s *LearningService) findEnrollment(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotEnrolled
		}
		return nil, err
	}
	return enrollment, nil
}
