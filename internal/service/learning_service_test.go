package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/testutil"
	"edu_progress_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll_SecondEnrollIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := testutil.SeedCourse(t, f.db, 100, "go-basics")

	first, err := f.learning.Enroll(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := f.learning.Enroll(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Enrollment.ID, second.Enrollment.ID)

	var count int64
	require.NoError(t, f.db.Model(&model.Enrollment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnroll_UnknownOrDraftCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.learning.Enroll(ctx, student(1), 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	course := testutil.SeedCourse(t, f.db, 100, "draft-course")
	require.NoError(t, f.db.Model(course).Update("status", model.CourseDraft).Error)

	_, err = f.learning.Enroll(ctx, student(1), course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = f.learning.Enroll(ctx, Actor{UserID: 100, Role: model.Teacher}, course.ID)
	assert.NoError(t, err)
}

func TestCompleteLesson_ReturnsNextLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 3)
	testutil.SeedEnrollment(t, f.db, 1, course.ID)

	result, err := f.learning.CompleteLesson(ctx, student(1), lessons[0].ID)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, lessons[0].ID, result.LessonID)
	require.NotNil(t, result.NextLesson)
	assert.Equal(t, lessons[1].ID, result.NextLesson.ID)
	require.NotNil(t, result.Progress)
	assert.InDelta(t, 33.3, *result.Progress, 0.1)

	result, err = f.learning.CompleteLesson(ctx, student(1), lessons[2].ID)
	require.NoError(t, err)
	assert.Nil(t, result.NextLesson)
}

func TestCompleteLesson_AccessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 1)
	draft := testutil.SeedLesson(t, f.db, 100, testutil.UintPtr(course.ID), 2, model.LessonDraft, baseTime)

	_, err := f.learning.CompleteLesson(ctx, student(1), lessons[0].ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	testutil.SeedEnrollment(t, f.db, 1, course.ID)
	_, err = f.learning.CompleteLesson(ctx, student(1), draft.ID)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	_, err = f.learning.CompleteLesson(ctx, student(1), 9999)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestViewLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 3)
	testutil.SeedEnrollment(t, f.db, 1, course.ID)

	view, err := f.learning.ViewLesson(ctx, student(1), lessons[1].ID)
	require.NoError(t, err)
	assert.False(t, view.IsCompleted)
	assert.Nil(t, view.CompletedAt)
	require.NotNil(t, view.Navigation.Previous)
	require.NotNil(t, view.Navigation.Next)
	assert.Equal(t, lessons[0].ID, view.Navigation.Previous.ID)
	assert.Equal(t, lessons[2].ID, view.Navigation.Next.ID)

	e := f.enrollment(t, 1, course.ID)
	require.NotNil(t, e.LastAccessedLessonID)
	assert.Equal(t, lessons[1].ID, *e.LastAccessedLessonID)

	_, err = f.learning.CompleteLesson(ctx, student(1), lessons[0].ID)
	require.NoError(t, err)

	view, err = f.learning.ViewLesson(ctx, student(1), lessons[0].ID)
	require.NoError(t, err)
	assert.True(t, view.IsCompleted)
	require.NotNil(t, view.CompletedAt)
	assert.True(t, view.CompletedAt.Equal(baseTime))
	assert.Nil(t, view.Navigation.Previous)
}

func TestViewLesson_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := testutil.SeedCourse(t, f.db, 100, "go-basics")
	private := testutil.SeedLesson(t, f.db, 100, testutil.UintPtr(course.ID), 1, model.LessonPrivate, baseTime)
	draft := testutil.SeedLesson(t, f.db, 100, testutil.UintPtr(course.ID), 2, model.LessonDraft, baseTime)
	independent := testutil.SeedLesson(t, f.db, 100, nil, 0, model.LessonPublic, baseTime)
	privateIndependent := testutil.SeedLesson(t, f.db, 100, nil, 0, model.LessonPrivate, baseTime)

	_, err := f.learning.ViewLesson(ctx, student(1), private.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	_, err = f.learning.ViewLesson(ctx, student(1), draft.ID)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	_, err = f.learning.ViewLesson(ctx, student(1), privateIndependent.ID)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	owner := Actor{UserID: 100, Role: model.Teacher}
	view, err := f.learning.ViewLesson(ctx, owner, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, view.Lesson.ID)

	admin := Actor{UserID: 7, Role: model.Admin}
	_, err = f.learning.ViewLesson(ctx, admin, privateIndependent.ID)
	assert.NoError(t, err)

	view, err = f.learning.ViewLesson(ctx, student(1), independent.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Navigation.Previous)
	assert.Nil(t, view.Navigation.Next)

	testutil.SeedEnrollment(t, f.db, 1, course.ID)
	_, err = f.learning.ViewLesson(ctx, student(1), private.ID)
	assert.NoError(t, err)
}

func TestGetCourseProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 3)

	_, err := f.learning.GetCourseProgress(ctx, student(1), course.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	_, err = f.learning.GetCourseProgress(ctx, student(1), 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	testutil.SeedEnrollment(t, f.db, 1, course.ID)
	_, err = f.learning.CompleteLesson(ctx, student(1), lessons[1].ID)
	require.NoError(t, err)

	progress, err := f.learning.GetCourseProgress(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.InDelta(t, 33.3, progress.Progress, 0.1)
	assert.Equal(t, 1, progress.CompletedLessonsCount)
	assert.Equal(t, 3, progress.TotalLessons)
	assert.Nil(t, progress.CompletedAt)
	require.Len(t, progress.Lessons, 3)
	assert.False(t, progress.Lessons[0].Completed)
	assert.True(t, progress.Lessons[1].Completed)
	assert.False(t, progress.Lessons[2].Completed)
	assert.Equal(t, lessons[0].ID, progress.Lessons[0].ID)
}

func TestResumeCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 3)
	testutil.SeedEnrollment(t, f.db, 1, course.ID)

	resume, err := f.learning.ResumeCourse(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "go-basics", resume.CourseSlug)
	require.NotNil(t, resume.Lesson)
	assert.Equal(t, lessons[0].ID, resume.Lesson.ID)

	_, err = f.learning.ViewLesson(ctx, student(1), lessons[0].ID)
	require.NoError(t, err)
	_, err = f.learning.CompleteLesson(ctx, student(1), lessons[0].ID)
	require.NoError(t, err)

	resume, err = f.learning.ResumeCourse(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.Equal(t, lessons[1].ID, resume.Lesson.ID)
	assert.InDelta(t, 33.3, resume.Progress, 0.1)

	for _, lesson := range lessons[1:] {
		_, err = f.learning.CompleteLesson(ctx, student(1), lesson.ID)
		require.NoError(t, err)
	}
	resume, err = f.learning.ResumeCourse(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.Equal(t, lessons[2].ID, resume.Lesson.ID)
	assert.Equal(t, 100.0, resume.Progress)
}

func TestResumeCourse_EmptyCourse(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, 100, "empty")
	testutil.SeedEnrollment(t, f.db, 1, course.ID)

	resume, err := f.learning.ResumeCourse(context.Background(), student(1), course.ID)
	require.NoError(t, err)
	assert.Nil(t, resume.Lesson)
}

func TestSubmitQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 1)
	testutil.SeedEnrollment(t, f.db, 1, course.ID)
	quiz := testutil.SeedQuiz(t, f.db, lessons[0].ID, 3)

	result, err := f.learning.SubmitQuiz(ctx, student(1), quiz.ID, QuizSubmission{
		Answers: map[uint]int{1: 0, 2: 0, 3: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Correct)
	assert.Equal(t, 1, result.Wrong)
	assert.Equal(t, 3, result.Total)
	assert.InDelta(t, 66.67, result.Score, 0.001)

	var attempt model.QuizAttempt
	require.NoError(t, f.db.First(&attempt, result.AttemptID).Error)
	assert.Equal(t, uint(1), attempt.UserID)
	assert.InDelta(t, 66.67, attempt.Score, 0.001)

	_, err = f.learning.SubmitQuiz(ctx, student(1), quiz.ID, QuizSubmission{Answers: map[uint]int{42: 0}})
	assert.ErrorIs(t, err, util.ErrInvalidQuizAnswers)

	_, err = f.learning.SubmitQuiz(ctx, student(1), 9999, QuizSubmission{Answers: map[uint]int{1: 0}})
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestCourseProgress_DemotedAfterLessonPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course, lessons := f.courseWithLessons(t, 100, "go-basics", 2)
	testutil.SeedEnrollment(t, f.db, 1, course.ID)
	for _, lesson := range lessons {
		_, err := f.learning.CompleteLesson(ctx, student(1), lesson.ID)
		require.NoError(t, err)
	}

	// 新课时直接入库，没有经过重算
	added := testutil.SeedLesson(t, f.db, 100, testutil.UintPtr(course.ID), 3, model.LessonPublic, baseTime)

	progress, err := f.learning.GetCourseProgress(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.InDelta(t, 66.7, progress.Progress, 0.1)
	assert.Nil(t, progress.CompletedAt)
	assert.Equal(t, 2, progress.CompletedLessonsCount)
	assert.Equal(t, 3, progress.TotalLessons)

	resume, err := f.learning.ResumeCourse(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.InDelta(t, 66.7, resume.Progress, 0.1)
	require.NotNil(t, resume.Lesson)
	assert.Equal(t, added.ID, resume.Lesson.ID)

	e := f.enrollment(t, 1, course.ID)
	assert.InDelta(t, 66.7, e.Progress, 0.1)
	assert.Nil(t, e.CompletedAt)
}

func TestEnroll_AfterEnrollmentRowRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := testutil.SeedCourse(t, f.db, 100, "go-basics")

	first, err := f.learning.Enroll(ctx, student(1), course.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(&model.Enrollment{}, first.Enrollment.ID).Error)

	second, err := f.learning.Enroll(ctx, student(1), course.ID)
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Enrollment.ID, second.Enrollment.ID)
}
