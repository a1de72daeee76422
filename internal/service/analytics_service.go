package service

import (
	"bytes"
	"context"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/repository"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/tracing"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scope 统计查询的教师范围。管理员可以代查任意教师，并跳过课时归属校验
type Scope struct {
	TeacherID uint
	Admin     bool
}

type AnalyticsService struct {
	AnalyticsRepo  *repository.AnalyticsRepository
	LessonRepo     *repository.LessonRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Cache          *AnalyticsCache
	Storage        *StorageService
	Settings       config.AnalyticsConfig
	DB             *gorm.DB
	Now            func() time.Time
}

func NewAnalyticsService(
	analyticsRepo *repository.AnalyticsRepository,
	lessonRepo *repository.LessonRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	cache *AnalyticsCache,
	storage *StorageService,
	settings config.AnalyticsConfig,
	db *gorm.DB,
) *AnalyticsService {
	return &AnalyticsService{
		AnalyticsRepo:  analyticsRepo,
		LessonRepo:     lessonRepo,
		EnrollmentRepo: enrollmentRepo,
		Cache:          cache,
		Storage:        storage,
		Settings:       settings,
		DB:             db,
		Now:            time.Now,
	}
}

// 进度分布区间 [Min, Max)，最后一个区间只包含 100
var dropoffBuckets = []model.DropoffBucket{
	{Label: "0-24", Min: 0, Max: 25},
	{Label: "25-49", Min: 25, Max: 50},
	{Label: "50-74", Min: 50, Max: 75},
	{Label: "75-99", Min: 75, Max: 100},
	{Label: "100", Min: 100, Max: 100},
}

type lessonRatesPage struct {
	Items []model.LessonCompletionRate `json:"items"`
	Total int64                        `json:"total"`
}

type quizPerformancePage struct {
	Items []model.QuizPerformance `json:"items"`
	Total int64                   `json:"total"`
}

// ExportResult 导出文件的位置
type ExportResult struct {
	Object      string    `json:"object"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ClampWeeks weeks <= 0 时使用默认值，并限制最大周数
func (s *AnalyticsService) ClampWeeks(weeks int) int {
	if weeks <= 0 {
		weeks = s.Settings.DefaultWeeks
	}
	if weeks <= 0 {
		weeks = 8
	}
	if s.Settings.MaxWeeks > 0 && weeks > s.Settings.MaxWeeks {
		weeks = s.Settings.MaxWeeks
	}
	return weeks
}

func (s *AnalyticsService) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.Settings.DefaultPageSize
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if s.Settings.MaxPageSize > 0 && pageSize > s.Settings.MaxPageSize {
		pageSize = s.Settings.MaxPageSize
	}
	return page, pageSize
}

// LessonCompletionRates 教师每个课时的完成记录数，按课时创建时间倒序分页
func (s *AnalyticsService) LessonCompletionRates(ctx context.Context, scope Scope, page, pageSize int) ([]model.LessonCompletionRate, int64, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AnalyticsService.LessonCompletionRates",
		trace.WithAttributes(attribute.Int64("teacher.id", int64(scope.TeacherID))))
	defer span.End()

	page, pageSize = s.normalizePage(page, pageSize)
	key := analyticsKey("lessons", scope.TeacherID, page, pageSize)

	var cached lessonRatesPage
	if s.Cache.Get(ctx, "lessons", key, &cached) {
		return cached.Items, cached.Total, nil
	}

	total, err := s.AnalyticsRepo.CountTeacherLessons(ctx, scope.TeacherID)
	if err != nil {
		return nil, 0, err
	}
	rates, err := s.AnalyticsRepo.LessonCompletionRates(ctx, scope.TeacherID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if rates == nil {
		rates = []model.LessonCompletionRate{}
	}

	s.Cache.Set(ctx, key, lessonRatesPage{Items: rates, Total: total})
	return rates, total, nil
}

// LessonDropoff 最后停留在该课时的学生的选课进度分布。
// 课时不存在返回 ErrLessonNotFound，不属于调用者返回 ErrNotLessonOwner
func (s *AnalyticsService) LessonDropoff(ctx context.Context, scope Scope, lessonID uint) (*model.LessonDropoff, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AnalyticsService.LessonDropoff", trace.WithAttributes(
		attribute.Int64("teacher.id", int64(scope.TeacherID)),
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
	if !scope.Admin && !lesson.IsOwnedBy(scope.TeacherID) {
		return nil, util.ErrNotLessonOwner
	}

	key := analyticsKey("dropoff", lesson.TeacherID, lessonID)
	var cached model.LessonDropoff
	if s.Cache.Get(ctx, "dropoff", key, &cached) {
		return &cached, nil
	}

	var values []float64
	if !lesson.IsIndependent() {
		values, err = s.EnrollmentRepo.ProgressByLastAccessed(ctx, *lesson.CourseID, lessonID)
		if err != nil {
			return nil, err
		}
	}

	dropoff := BuildDropoff(values)
	dropoff.LessonID = lessonID
	dropoff.CourseID = lesson.CourseID

	s.Cache.Set(ctx, key, dropoff)
	return dropoff, nil
}

// BuildDropoff 把进度值按区间计数
func BuildDropoff(values []float64) *model.LessonDropoff {
	buckets := make([]model.DropoffBucket, len(dropoffBuckets))
	copy(buckets, dropoffBuckets)

	sum := 0.0
	for _, v := range values {
		sum += v
		last := len(buckets) - 1
		if v >= buckets[last].Min {
			buckets[last].Students++
			continue
		}
		for i := 0; i < last; i++ {
			if v >= buckets[i].Min && v < buckets[i].Max {
				buckets[i].Students++
				break
			}
		}
	}

	dropoff := &model.LessonDropoff{
		TotalStudents: int64(len(values)),
		Buckets:       buckets,
	}
	if len(values) > 0 {
		dropoff.AverageProgress = sum / float64(len(values))
	}
	return dropoff
}

// WeekWindows 以次日零点为终点向前切 weeks 个 7 天区间，返回各区间起点（从旧到新）与终点
func WeekWindows(now time.Time, weeks int) ([]time.Time, time.Time) {
	y, m, d := now.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	starts := make([]time.Time, weeks)
	for i := 0; i < weeks; i++ {
		starts[i] = end.AddDate(0, 0, -7*(weeks-i))
	}
	return starts, end
}

// WeeklyActiveStudents 每周完成过该教师任一课时的去重学生数，从旧到新
func (s *AnalyticsService) WeeklyActiveStudents(ctx context.Context, scope Scope, weeks int) ([]model.WeeklyActiveStudents, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AnalyticsService.WeeklyActiveStudents",
		trace.WithAttributes(attribute.Int64("teacher.id", int64(scope.TeacherID))))
	defer span.End()

	weeks = s.ClampWeeks(weeks)
	starts, end := WeekWindows(s.Now(), weeks)

	key := analyticsKey("weekly", scope.TeacherID, weeks, end.Format(util.DateFormat))
	var cached []model.WeeklyActiveStudents
	if s.Cache.Get(ctx, "weekly", key, &cached) {
		return cached, nil
	}

	events, err := s.AnalyticsRepo.CompletionEvents(ctx, scope.TeacherID, starts[0], end)
	if err != nil {
		return nil, err
	}

	active := make([]map[uint]struct{}, weeks)
	for i := range active {
		active[i] = make(map[uint]struct{})
	}
	for _, event := range events {
		for i := weeks - 1; i >= 0; i-- {
			if !event.CompletedAt.Before(starts[i]) {
				if event.CompletedAt.Before(end) {
					active[i][event.UserID] = struct{}{}
				}
				break
			}
		}
	}

	result := make([]model.WeeklyActiveStudents, weeks)
	for i := range result {
		result[i] = model.WeeklyActiveStudents{
			WeekStart:      starts[i],
			ActiveStudents: len(active[i]),
		}
	}

	s.Cache.Set(ctx, key, result)
	return result, nil
}

// QuizPerformance 教师课时下每个测验的平均分，没有作答时 HasAttempts 为 false
func (s *AnalyticsService) QuizPerformance(ctx context.Context, scope Scope, page, pageSize int) ([]model.QuizPerformance, int64, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AnalyticsService.QuizPerformance",
		trace.WithAttributes(attribute.Int64("teacher.id", int64(scope.TeacherID))))
	defer span.End()

	page, pageSize = s.normalizePage(page, pageSize)
	key := analyticsKey("quizzes", scope.TeacherID, page, pageSize)

	var cached quizPerformancePage
	if s.Cache.Get(ctx, "quizzes", key, &cached) {
		return cached.Items, cached.Total, nil
	}

	total, err := s.AnalyticsRepo.CountTeacherQuizzes(ctx, scope.TeacherID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.AnalyticsRepo.QuizPerformance(ctx, scope.TeacherID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if rows == nil {
		rows = []model.QuizPerformance{}
	}
	for i := range rows {
		rows[i].HasAttempts = rows[i].Attempts > 0
		if !rows[i].HasAttempts {
			rows[i].AverageScore = 0
		}
	}

	s.Cache.Set(ctx, key, quizPerformancePage{Items: rows, Total: total})
	return rows, total, nil
}

// ExportSnapshot 汇总教师的统计数据写入存储，返回访问地址
func (s *AnalyticsService) ExportSnapshot(ctx context.Context, scope Scope) (*ExportResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AnalyticsService.ExportSnapshot",
		trace.WithAttributes(attribute.Int64("teacher.id", int64(scope.TeacherID))))
	defer span.End()

	now := s.Now()
	snapshot := model.AnalyticsSnapshot{
		TeacherID:   scope.TeacherID,
		GeneratedAt: now,
	}

	_, pageSize := s.normalizePage(1, s.Settings.MaxPageSize)
	for page := 1; ; page++ {
		rates, err := s.AnalyticsRepo.LessonCompletionRates(ctx, scope.TeacherID, (page-1)*pageSize, pageSize)
		if err != nil {
			return nil, err
		}
		snapshot.LessonRates = append(snapshot.LessonRates, rates...)
		if len(rates) < pageSize {
			break
		}
	}

	weekly, err := s.WeeklyActiveStudents(ctx, scope, 0)
	if err != nil {
		return nil, err
	}
	snapshot.WeeklyActive = weekly

	for page := 1; ; page++ {
		rows, err := s.AnalyticsRepo.QuizPerformance(ctx, scope.TeacherID, (page-1)*pageSize, pageSize)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].HasAttempts = rows[i].Attempts > 0
		}
		snapshot.QuizPerformance = append(snapshot.QuizPerformance, rows...)
		if len(rows) < pageSize {
			break
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, err
	}

	object := fmt.Sprintf("analytics/%d/%s-%s.json", scope.TeacherID, now.Format("20060102"), uuid.NewString())
	url, err := s.Storage.Upload(ctx, object, bytes.NewReader(data), int64(len(data)), util.MimeJSON)
	if err != nil {
		return nil, fmt.Errorf("upload analytics snapshot: %w", err)
	}

	logger.Log.Info("Analytics snapshot exported",
		zap.Uint("teacherId", scope.TeacherID),
		zap.String("object", object),
	)
	return &ExportResult{Object: object, URL: url, GeneratedAt: now}, nil
}
