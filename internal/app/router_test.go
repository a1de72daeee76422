package app

import (
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/testutil"
	"edu_progress_backend/internal/util"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-test-secret-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testSecret},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Analytics: config.AnalyticsConfig{
			DefaultWeeks:    8,
			MaxWeeks:        52,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	}
	db := testutil.DB(t)
	router, _ := NewRouter(cfg, db, nil)
	return router, db
}

func token(t *testing.T, userID uint, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, router *gin.Engine, method, path, tok string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w.Code, body
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	code, _ := do(t, router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestStudentRoutes_RequireAuth(t *testing.T) {
	router, _ := setupRouter(t)

	code, _ := do(t, router, http.MethodPost, "/api/lessons/1/complete", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, router, http.MethodGet, "/api/courses/1/progress", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLearningFlow(t *testing.T) {
	router, db := setupRouter(t)
	tok := token(t, 1, model.Student)

	course := testutil.SeedCourse(t, db, 100, "go-basics")
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := testutil.SeedLesson(t, db, 100, testutil.UintPtr(course.ID), 1, model.LessonPublic, base)
	b := testutil.SeedLesson(t, db, 100, testutil.UintPtr(course.ID), 2, model.LessonPublic, base)

	code, body := do(t, router, http.MethodPost, fmt.Sprintf("/api/lessons/%d/complete", a.ID), tok)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "enrollment required", body.Message)

	code, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/courses/%d/enroll", course.ID), tok)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/courses/%d/enroll", course.ID), tok)
	assert.Equal(t, http.StatusOK, code)

	code, body = do(t, router, http.MethodPost, fmt.Sprintf("/api/lessons/%d/complete", a.ID), tok)
	require.Equal(t, http.StatusOK, code)
	var completed struct {
		LessonID   uint     `json:"lessonId"`
		Completed  bool     `json:"completed"`
		Progress   *float64 `json:"progress"`
		NextLesson *struct {
			ID uint `json:"id"`
		} `json:"nextLesson"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &completed))
	assert.True(t, completed.Completed)
	require.NotNil(t, completed.Progress)
	assert.Equal(t, 50.0, *completed.Progress)
	require.NotNil(t, completed.NextLesson)
	assert.Equal(t, b.ID, completed.NextLesson.ID)

	code, body = do(t, router, http.MethodGet, fmt.Sprintf("/api/courses/%d/resume", course.ID), tok)
	require.Equal(t, http.StatusOK, code)
	var resume struct {
		CourseSlug string `json:"courseSlug"`
		Lesson     struct {
			ID uint `json:"id"`
		} `json:"lesson"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &resume))
	assert.Equal(t, "go-basics", resume.CourseSlug)
	assert.Equal(t, b.ID, resume.Lesson.ID)

	code, body = do(t, router, http.MethodGet, fmt.Sprintf("/api/courses/%d/progress", course.ID), tok)
	require.Equal(t, http.StatusOK, code)
	var progress struct {
		Progress              float64 `json:"progress"`
		CompletedLessonsCount int     `json:"completedLessonsCount"`
		Lessons               []struct {
			ID        uint `json:"id"`
			Completed bool `json:"completed"`
		} `json:"lessons"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &progress))
	assert.Equal(t, 50.0, progress.Progress)
	assert.Equal(t, 1, progress.CompletedLessonsCount)
	require.Len(t, progress.Lessons, 2)
	assert.True(t, progress.Lessons[0].Completed)

	code, body = do(t, router, http.MethodGet, "/api/lessons/9999", tok)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "lesson not found", body.Message)

	code, _ = do(t, router, http.MethodGet, "/api/lessons/abc", tok)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTeacherAnalyticsRoutes(t *testing.T) {
	router, db := setupRouter(t)
	teacher := token(t, 100, model.Teacher)
	otherTeacher := token(t, 200, model.Teacher)

	course := testutil.SeedCourse(t, db, 100, "go-basics")
	lesson := testutil.SeedLesson(t, db, 100, testutil.UintPtr(course.ID), 1, model.LessonPublic, time.Now())
	dropoffPath := fmt.Sprintf("/api/teacher/analytics/lessons/%d/dropoff", lesson.ID)

	code, _ := do(t, router, http.MethodGet, "/api/teacher/analytics/lessons", token(t, 1, model.Student))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, router, http.MethodGet, dropoffPath, otherTeacher)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, router, http.MethodGet, "/api/teacher/analytics/lessons/9999/dropoff", otherTeacher)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, router, http.MethodGet, dropoffPath, teacher)
	assert.Equal(t, http.StatusOK, code)

	code, body := do(t, router, http.MethodGet, "/api/teacher/analytics/lessons?page=1&limit=10", teacher)
	require.Equal(t, http.StatusOK, code)
	var page util.PageResponse
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 10, page.Limit)

	code, body = do(t, router, http.MethodGet, "/api/teacher/analytics/weekly-active?weeks=4", teacher)
	require.Equal(t, http.StatusOK, code)
	var weekly []model.WeeklyActiveStudents
	require.NoError(t, json.Unmarshal(body.Data, &weekly))
	assert.Len(t, weekly, 4)

	code, _ = do(t, router, http.MethodGet, "/api/teacher/analytics/quizzes", teacher)
	assert.Equal(t, http.StatusOK, code)

	// 只有管理员可以指定 teacherId
	code, _ = do(t, router, http.MethodGet, "/api/teacher/analytics/lessons?teacherId=200", teacher)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = do(t, router, http.MethodGet, "/api/teacher/analytics/lessons?teacherId=100", token(t, 1, model.Admin))
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, int64(1), page.Total)

	code, _ = do(t, router, http.MethodPost, "/api/teacher/analytics/export", teacher)
	assert.Equal(t, http.StatusCreated, code)
}

func TestAdminRecompute(t *testing.T) {
	router, db := setupRouter(t)

	course := testutil.SeedCourse(t, db, 100, "go-basics")
	lesson := testutil.SeedLesson(t, db, 100, testutil.UintPtr(course.ID), 1, model.LessonPublic, time.Now())
	testutil.SeedEnrollment(t, db, 1, course.ID)
	testutil.SeedCompletion(t, db, 1, lesson.ID, time.Now())

	path := fmt.Sprintf("/api/admin/courses/%d/recompute", course.ID)

	code, _ := do(t, router, http.MethodPost, path, token(t, 100, model.Teacher))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, router, http.MethodPost, path, token(t, 9, model.Admin))
	require.Equal(t, http.StatusOK, code)

	var e model.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", 1, course.ID).First(&e).Error)
	assert.Equal(t, 100.0, e.Progress)
	assert.NotNil(t, e.CompletedAt)

	code, _ = do(t, router, http.MethodPost, "/api/admin/courses/9999/recompute", token(t, 9, model.Admin))
	assert.Equal(t, http.StatusNotFound, code)
}
